package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists objects onto the local filesystem. It is intended for
// development and single-host deployments where an object storage service is
// not available; the api binary serves BasePath under /static/.
type FileStore struct {
	basePath string
	baseURL  string
}

// NewFileStore initializes a FileStore rooted at basePath. baseURL is the
// public prefix under which keys are reachable.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath, baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

func (s *FileStore) String() string { return "filesystem" }

// Put writes the object at its canonical key. Without Overwrite an existing
// file is left untouched and reported as an error.
func (s *FileStore) Put(ctx context.Context, obj Object) (Reference, error) {
	if s == nil {
		return Reference{}, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return Reference{}, err
	}
	cleanKey, err := sanitizeKey(obj.Key())
	if err != nil {
		return Reference{}, err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return Reference{}, fmt.Errorf("storage: ensure directory: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !obj.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(fullPath, flags, 0o644)
	if err != nil {
		return Reference{}, fmt.Errorf("storage: open file: %w", err)
	}
	if _, err := f.Write(obj.Bytes); err != nil {
		_ = f.Close()
		return Reference{}, fmt.Errorf("storage: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Reference{}, fmt.Errorf("storage: close file: %w", err)
	}
	ref := Reference{Key: cleanKey}
	if s.baseURL != "" {
		ref.URL = s.baseURL + "/" + cleanKey
	}
	return ref, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

var _ Store = (*FileStore)(nil)
