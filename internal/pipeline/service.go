// Package pipeline runs the cartoonify flow for one request: normalize the
// input image, resolve the style prompt, submit a single edit and persist the
// result when storage is available.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mora2/cartoonify/internal/domain"
	"github.com/mora2/cartoonify/internal/imaging"
	image "github.com/mora2/cartoonify/internal/providers/image"
	"github.com/mora2/cartoonify/internal/storage"
	"github.com/mora2/cartoonify/internal/style"
)

// Default storage folders.
const (
	DefaultPreviewSourceFolder = "mora2/previews_src"
	DefaultHDFolder            = "mora2/generated_hd"
	probeFolder                = "mora2"
)

// Normalizer turns caller input into an artifact.
type Normalizer interface {
	Normalize(ctx context.Context, in imaging.Input) (imaging.Artifact, error)
}

// Options wires a Service. Editor and Normalizer are required; a nil Store
// disables persistence.
type Options struct {
	Normalizer          Normalizer
	Styles              *style.Resolver
	Editor              image.Editor
	Store               storage.Store
	Logger              *zerolog.Logger
	Generator           string
	PreviewSize         image.Size
	HDSize              image.Size
	PreviewSourceFolder string
	HDFolder            string
	Now                 func() time.Time
}

type Service struct {
	normalizer    Normalizer
	styles        *style.Resolver
	editor        image.Editor
	store         storage.Store
	log           zerolog.Logger
	generator     string
	previewSize   image.Size
	hdSize        image.Size
	previewFolder string
	hdFolder      string
	now           func() time.Time
}

func New(opts Options) (*Service, error) {
	if opts.Normalizer == nil {
		return nil, errors.New("pipeline: normalizer is required")
	}
	if opts.Editor == nil {
		return nil, errors.New("pipeline: editor is required")
	}
	s := &Service{
		normalizer:    opts.Normalizer,
		styles:        opts.Styles,
		editor:        opts.Editor,
		store:         opts.Store,
		log:           zerolog.Nop(),
		generator:     opts.Generator,
		previewSize:   opts.PreviewSize,
		hdSize:        opts.HDSize,
		previewFolder: opts.PreviewSourceFolder,
		hdFolder:      opts.HDFolder,
		now:           opts.Now,
	}
	if opts.Logger != nil {
		s.log = *opts.Logger
	}
	if s.styles == nil {
		s.styles = style.NewResolver(style.DefaultKey)
	}
	if s.store == nil {
		s.store = storage.Disabled{}
	}
	if s.generator == "" {
		s.generator = fmt.Sprint(opts.Editor)
	}
	if s.previewSize == "" {
		s.previewSize = image.SizeSmall
	}
	if s.hdSize == "" {
		s.hdSize = image.SizeAuto
	}
	if s.previewFolder == "" {
		s.previewFolder = DefaultPreviewSourceFolder
	}
	if s.hdFolder == "" {
		s.hdFolder = DefaultHDFolder
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Request is the caller's input for either operation. DraftKey only names the
// stored object; no earlier preview is looked up or reused.
type Request struct {
	Input    imaging.Input
	Style    string
	DraftKey string
}

type PreviewResult struct {
	Style         string
	PreviewBase64 string
	SourceURL     string
}

type HDResult struct {
	Style    string
	HDURL    string
	HDKey    string
	HDBase64 string
}

// Preview generates a low-resolution stylization and returns it inline. The
// original upload is stored best-effort so the caller can request the HD
// render later by URL; a remote input is echoed back instead.
func (s *Service) Preview(ctx context.Context, req Request) (*PreviewResult, error) {
	artifact, err := s.normalizer.Normalize(ctx, req.Input)
	if err != nil {
		return nil, err
	}
	key, prompt := s.styles.Resolve(req.Style)

	out := &PreviewResult{Style: key}
	if req.Input.Mode() == imaging.ModeRemote {
		out.SourceURL = req.Input.SourceURL
	} else if ref, ok := s.persist(ctx, storage.Object{
		Folder:    s.previewFolder,
		Name:      storage.NameFor(req.DraftKey),
		Bytes:     artifact.Bytes,
		MIMEType:  artifact.MIMEType,
		Overwrite: true,
	}); ok {
		out.SourceURL = ref.URL
	}

	res, err := s.generate(ctx, image.EditRequest{Artifact: artifact, Prompt: prompt, Size: s.previewSize})
	if err != nil {
		return nil, err
	}
	out.PreviewBase64 = imaging.EncodeDataURL(res.MIMEType, res.Bytes)
	return out, nil
}

// GenerateHD renders the full-resolution stylization and stores it. A stored
// result is reported by URL and key, or by key alone when the store has no
// public URL. When the store is disabled or fails, the bytes are returned
// inline instead.
func (s *Service) GenerateHD(ctx context.Context, req Request) (*HDResult, error) {
	artifact, err := s.normalizer.Normalize(ctx, req.Input)
	if err != nil {
		return nil, err
	}
	key, prompt := s.styles.Resolve(req.Style)

	res, err := s.generate(ctx, image.EditRequest{Artifact: artifact, Prompt: prompt, Size: s.hdSize})
	if err != nil {
		return nil, err
	}

	out := &HDResult{Style: key}
	ref, ok := s.persist(ctx, storage.Object{
		Folder:    s.hdFolder,
		Name:      storage.NameFor(req.DraftKey),
		Bytes:     res.Bytes,
		MIMEType:  res.MIMEType,
		Overwrite: true,
	})
	if ok && (ref.URL != "" || ref.Key != "") {
		out.HDURL = ref.URL
		out.HDKey = ref.Key
		return out, nil
	}
	out.HDBase64 = imaging.EncodeDataURL(res.MIMEType, res.Bytes)
	return out, nil
}

// generate submits exactly one edit. The call is detached from the caller's
// cancellation so a dropped connection cannot abort a billed generation.
func (s *Service) generate(ctx context.Context, req image.EditRequest) (*image.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := s.now()
	res, err := s.editor.Edit(context.WithoutCancel(ctx), req)
	if err != nil {
		s.log.Warn().Err(err).Str("generator", s.generator).Str("size", string(req.Size)).Dur("elapsed", s.now().Sub(start)).Msg("generation failed")
		return nil, err
	}
	if res == nil || len(res.Bytes) == 0 {
		return nil, domain.UpstreamNoOutput("generation returned no image")
	}
	if res.MIMEType == "" {
		res.MIMEType = imaging.MIMEPNG
	}
	s.log.Debug().Str("generator", s.generator).Str("size", string(req.Size)).Int("bytes", len(res.Bytes)).Dur("elapsed", s.now().Sub(start)).Msg("generation complete")
	return res, nil
}

// persist stores obj and reports whether it succeeded. Failures are logged
// and never surfaced.
func (s *Service) persist(ctx context.Context, obj storage.Object) (storage.Reference, bool) {
	if storage.IsDisabled(s.store) {
		return storage.Reference{}, false
	}
	ref, err := s.store.Put(ctx, obj)
	if err != nil {
		s.log.Warn().Err(err).Str("backend", s.store.String()).Str("folder", obj.Folder).Msg("storage put failed, falling back to inline")
		return storage.Reference{}, false
	}
	return ref, true
}
