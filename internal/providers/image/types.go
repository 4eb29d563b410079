package image

import (
	"context"
	"strings"

	"github.com/mora2/cartoonify/internal/domain"
	"github.com/mora2/cartoonify/internal/imaging"
)

// Size enumerates the resolutions callers may request. Each backend maps it
// to the strings its API accepts.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
	SizeAuto   Size = "auto"
)

// ParseSize sanitizes free-form input into a supported size.
func ParseSize(s string) Size {
	switch Size(strings.ToLower(strings.TrimSpace(s))) {
	case SizeSmall:
		return SizeSmall
	case SizeMedium:
		return SizeMedium
	case SizeLarge:
		return SizeLarge
	default:
		return SizeAuto
	}
}

// EditRequest is one prompt-guided edit of a single source image.
type EditRequest struct {
	Artifact imaging.Artifact
	Prompt   string
	Size     Size
}

// Validate enforces that the artifact is of an accepted type and that its
// extension agrees with its MIME type. It runs before anything is submitted.
func (r EditRequest) Validate() error {
	canonical, ok := imaging.CanonicalMIME(r.Artifact.MIMEType)
	if !ok || canonical != r.Artifact.MIMEType {
		return domain.UnsupportedMediaType(r.Artifact.MIMEType)
	}
	if r.Artifact.Ext != imaging.ExtensionFor(canonical) {
		return domain.InvalidInput("image extension does not match its media type", nil)
	}
	if len(r.Artifact.Bytes) == 0 {
		return domain.InvalidInput("image payload is empty", nil)
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return domain.InvalidInput("prompt is required", nil)
	}
	return nil
}

// Result is the decoded output of one edit.
type Result struct {
	Bytes    []byte
	MIMEType string
}

// Editor is the contract implemented by every generation backend. Edit is
// called exactly once per request and must not retry.
type Editor interface {
	Edit(ctx context.Context, req EditRequest) (*Result, error)
}

func resultMIME(mt string) string {
	if canonical, ok := imaging.CanonicalMIME(mt); ok {
		return canonical
	}
	return imaging.MIMEPNG
}
