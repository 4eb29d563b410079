package pipeline

import (
	"context"
	"fmt"

	"github.com/mora2/cartoonify/internal/storage"
	"github.com/mora2/cartoonify/internal/style"
)

// ProbeResult describes the wiring of a Service for diagnostics.
type ProbeResult struct {
	StorageBackend    string
	StorageConfigured bool
	Generator         string
	Styles            []string
	WriteTest         *WriteTest
}

// WriteTest reports the outcome of a storage round-trip.
type WriteTest struct {
	OK    bool
	URL   string
	Error string
}

// Probe reports the configured backends. With write set it also stores a
// small text object; a failed write is reported, never returned as an error.
func (s *Service) Probe(ctx context.Context, write bool) ProbeResult {
	out := ProbeResult{
		StorageBackend:    s.store.String(),
		StorageConfigured: !storage.IsDisabled(s.store),
		Generator:         s.generator,
		Styles:            style.Keys(),
	}
	if !write {
		return out
	}
	ref, err := s.store.Put(ctx, storage.Object{
		Folder:    probeFolder,
		Name:      fmt.Sprintf("healthcheck_%d", s.now().UnixMilli()),
		Bytes:     []byte("ok"),
		MIMEType:  "text/plain",
		Overwrite: true,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("backend", s.store.String()).Msg("storage write probe failed")
		out.WriteTest = &WriteTest{Error: err.Error()}
		return out
	}
	out.WriteTest = &WriteTest{OK: true, URL: ref.URL}
	return out
}
