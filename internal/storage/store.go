// Package storage persists generated images behind a small Store interface
// with interchangeable backends.
package storage

import (
	"context"
	"errors"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/mora2/cartoonify/internal/imaging"
)

// ErrNotConfigured is returned by the disabled backend.
var ErrNotConfigured = errors.New("storage: not configured")

// Object is one blob to persist. Name excludes the extension, which is
// derived from MIMEType.
type Object struct {
	Folder    string
	Name      string
	Bytes     []byte
	MIMEType  string
	Overwrite bool
}

// Reference points at persisted bytes. URL is publicly fetchable when the
// backend can produce one; Key is the backend's own identifier.
type Reference struct {
	URL string
	Key string
}

// Store is implemented by every storage backend.
type Store interface {
	Put(ctx context.Context, obj Object) (Reference, error)
	String() string
}

// Key returns the slash-separated object key "<folder>/<name>.<ext>".
func (o Object) Key() string {
	name := o.Name
	if ext := Extension(o.MIMEType); ext != "" {
		name += "." + ext
	}
	folder := strings.Trim(o.Folder, "/")
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}

// Extension maps a MIME type to the file extension used in keys.
func Extension(mt string) string {
	if ext := imaging.ExtensionFor(mt); ext != "" {
		return ext
	}
	switch strings.ToLower(strings.TrimSpace(mt)) {
	case "text/plain":
		return "txt"
	case "application/json":
		return "json"
	default:
		return "bin"
	}
}

var unsafeName = regexp.MustCompile(`[^a-z0-9_-]+`)

const maxNameLength = 64

// SanitizeName reduces a caller-supplied hint (such as a draft key) to a safe
// object name. It returns "" when nothing usable remains.
func SanitizeName(hint string) string {
	name := strings.ToLower(strings.TrimSpace(hint))
	name = unsafeName.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if len(name) > maxNameLength {
		name = strings.Trim(name[:maxNameLength], "-")
	}
	return name
}

// NameFor returns the sanitised hint, or a fresh UUID when the hint is empty.
func NameFor(hint string) string {
	if name := SanitizeName(hint); name != "" {
		return name
	}
	return uuid.NewString()
}

// Disabled is the backend used when no storage is configured.
type Disabled struct{}

func (Disabled) Put(context.Context, Object) (Reference, error) {
	return Reference{}, ErrNotConfigured
}

func (Disabled) String() string { return "none" }

// IsDisabled reports whether s cannot persist anything.
func IsDisabled(s Store) bool {
	if s == nil {
		return true
	}
	_, ok := s.(Disabled)
	return ok
}
