package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/mora2/cartoonify/internal/domain"
	"github.com/mora2/cartoonify/internal/middleware"
	"github.com/mora2/cartoonify/internal/pipeline"
)

// DefaultMaxBodyBytes caps request bodies when App.MaxBodyBytes is unset.
const DefaultMaxBodyBytes = 10 << 20

type App struct {
	Pipeline     *pipeline.Service
	Logger       zerolog.Logger
	AppEnv       string
	MaxBodyBytes int64
	Now          func() time.Time
}

func NewApp(svc *pipeline.Service, logger zerolog.Logger, appEnv string, maxBodyBytes int64) *App {
	return &App{Pipeline: svc, Logger: logger, AppEnv: appEnv, MaxBodyBytes: maxBodyBytes, Now: time.Now}
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// error renders err through the envelope. Only the safe message reaches the
// caller; the full chain is logged.
func (a *App) error(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.StatusOf(err)
	level := zerolog.WarnLevel
	if status >= http.StatusInternalServerError {
		level = zerolog.ErrorLevel
	}
	kind := "internal"
	if k := domain.KindOf(err); k != nil {
		kind = k.Error()
	}
	a.Logger.WithLevel(level).Err(err).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("path", r.URL.Path).
		Str("kind", kind).
		Int("status", status).
		Msg("request failed")
	a.json(w, status, errorResponse{OK: false, Error: domain.MessageOf(err)})
}

// decode reads a JSON body bounded by MaxBodyBytes. An empty body decodes to
// the zero value so missing fields surface as MissingInput downstream.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	limit := a.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body := http.MaxBytesReader(w, r.Body, limit)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, &tooLarge):
			return domain.PayloadTooLarge("request body too large")
		default:
			return domain.InvalidInput("invalid JSON body", err)
		}
	}
	return nil
}

// MethodNotAllowed answers action routes hit with an unsupported method.
func (a *App) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	a.error(w, r, domain.MethodNotAllowed())
}

func (a *App) NotFound(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusNotFound, errorResponse{OK: false, Error: "not found"})
}

// Recover renders handler panics through the error envelope.
// http.ErrAbortHandler is re-raised so the server still aborts the response.
func (a *App) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			a.Logger.Error().
				Str("request_id", middleware.RequestIDFromContext(r.Context())).
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			a.error(w, r, fmt.Errorf("panic: %v", rec))
		}()
		next.ServeHTTP(w, r)
	})
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
