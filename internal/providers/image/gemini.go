package image

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/mora2/cartoonify/internal/domain"
)

// DefaultGeminiModel is the image-capable Gemini model used when none is set.
const DefaultGeminiModel = "gemini-2.5-flash-image"

var geminiSizes = map[Size]string{
	SizeSmall:  "1K",
	SizeMedium: "2K",
	SizeLarge:  "4K",
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOptions configures the Gemini backend.
type GeminiOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  *zerolog.Logger
}

// GeminiEditor edits images through the Gemini API using inline image parts.
type GeminiEditor struct {
	models contentGenerator
	model  string
	logger zerolog.Logger
}

// NewGeminiEditor creates the SDK client eagerly so that bad credentials
// surface at start-up.
func NewGeminiEditor(ctx context.Context, opts GeminiOptions) (*GeminiEditor, error) {
	cfg := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(opts.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newGeminiEditor(client.Models, opts), nil
}

func newGeminiEditor(models contentGenerator, opts GeminiOptions) *GeminiEditor {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultGeminiModel
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &GeminiEditor{models: models, model: model, logger: logger}
}

func (g *GeminiEditor) String() string {
	return "gemini:" + g.model
}

func (g *GeminiEditor) Edit(ctx context.Context, req EditRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: req.Artifact.Bytes, MIMEType: req.Artifact.MIMEType}},
			{Text: req.Prompt},
		},
	}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		CandidateCount:     1,
	}
	if size, ok := geminiSizes[req.Size]; ok {
		config.ImageConfig = &genai.ImageConfig{ImageSize: size}
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, domain.Upstream(apiErr.Code, "Gemini: "+apiErr.Message, err)
		}
		return nil, domain.Upstream(0, "image generation request failed", err)
	}
	if resp == nil {
		return nil, domain.UpstreamNoOutput("No image returned from Gemini")
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				g.logger.Debug().
					Str("model", g.model).
					Str("mime", part.InlineData.MIMEType).
					Int("bytes", len(part.InlineData.Data)).
					Msg("gemini: edited image")
				return &Result{Bytes: part.InlineData.Data, MIMEType: resultMIME(part.InlineData.MIMEType)}, nil
			}
		}
		if candidate.FinishReason != "" && candidate.FinishReason != genai.FinishReasonStop {
			return nil, domain.UpstreamNoOutput(fmt.Sprintf("No image returned from Gemini (finish reason %s)", candidate.FinishReason))
		}
	}
	return nil, domain.UpstreamNoOutput("No image returned from Gemini")
}

var _ Editor = (*GeminiEditor)(nil)
