package domain

import (
	"errors"
	"net/http"
	"strings"
)

// Error kinds. Every failure surfaced to a caller wraps exactly one of these.
var (
	ErrMissingInput         = errors.New("missing input")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrUpstream             = errors.New("upstream error")
	ErrUpstreamNoOutput     = errors.New("upstream returned no output")
	ErrMethodNotAllowed     = errors.New("method not allowed")
)

// Error is the typed failure rendered by the HTTP layer. Message is safe to
// return to callers; Err carries the underlying cause for logs.
type Error struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// HTTPStatus resolves the response status for the error class.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case ErrMissingInput, ErrInvalidInput, ErrUnsupportedMediaType:
		if e.Status >= 400 && e.Status < 500 {
			return e.Status
		}
		return http.StatusBadRequest
	case ErrMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrUpstream:
		if e.Status >= 400 && e.Status < 600 {
			return e.Status
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func MissingInput(msg string) *Error {
	return &Error{Kind: ErrMissingInput, Message: msg}
}

func InvalidInput(msg string, err error) *Error {
	return &Error{Kind: ErrInvalidInput, Message: msg, Err: err}
}

// PayloadTooLarge is an InvalidInput answered with 413.
func PayloadTooLarge(msg string) *Error {
	return &Error{Kind: ErrInvalidInput, Status: http.StatusRequestEntityTooLarge, Message: msg}
}

func UnsupportedMediaType(mime string) *Error {
	mime = strings.TrimSpace(mime)
	if mime == "" {
		mime = "unknown"
	}
	return &Error{Kind: ErrUnsupportedMediaType, Message: "unsupported media type: " + mime + " (allowed: image/png, image/jpeg, image/webp)"}
}

// Upstream reports a failed call to an external capability. status is the
// upstream HTTP status when known, zero otherwise.
func Upstream(status int, msg string, err error) *Error {
	return &Error{Kind: ErrUpstream, Status: status, Message: msg, Err: err}
}

func UpstreamNoOutput(msg string) *Error {
	return &Error{Kind: ErrUpstreamNoOutput, Message: msg}
}

func MethodNotAllowed() *Error {
	return &Error{Kind: ErrMethodNotAllowed, Message: "Method not allowed"}
}

// StatusOf maps any error to an HTTP status; untyped errors are 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// MessageOf returns the caller-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Kind != nil {
			return e.Kind.Error()
		}
	}
	return "internal error"
}

// KindOf returns the kind sentinel, or nil for untyped errors.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
