package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/mora2/cartoonify/internal/domain"
)

// OpenAIOptions configures the OpenAI image-edit client.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// OpenAIEditor submits edits through the official SDK's Images.Edit.
type OpenAIEditor struct {
	client openai.Client
	model  string
	logger zerolog.Logger
}

var openAISizes = map[Size]openai.ImageEditParamsSize{
	SizeSmall:  openai.ImageEditParamsSize1024x1024,
	SizeMedium: openai.ImageEditParamsSize1024x1536,
	SizeLarge:  openai.ImageEditParamsSize1536x1024,
	SizeAuto:   openai.ImageEditParamsSizeAuto,
}

// NewOpenAIEditor constructs a client with defaults. SDK retries are
// disabled and the HTTP client carries no timeout of its own; the request
// context bounds the call.
func NewOpenAIEditor(opts OpenAIOptions) *OpenAIEditor {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-image-1"
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(opts.APIKey)),
		option.WithBaseURL(base + "/"),
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &OpenAIEditor{
		client: openai.NewClient(reqOpts...),
		model:  model,
		logger: logger,
	}
}

func (e *OpenAIEditor) String() string {
	return "openai:" + e.model
}

// Edit uploads the artifact with a filename whose extension matches its MIME
// type, since the endpoint rejects ambiguous content types.
func (e *OpenAIEditor) Edit(ctx context.Context, req EditRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	size, ok := openAISizes[req.Size]
	if !ok {
		size = openAISizes[SizeAuto]
	}
	file := openai.File(bytes.NewReader(req.Artifact.Bytes), req.Artifact.Filename(), req.Artifact.MIMEType)
	resp, err := e.client.Images.Edit(ctx, openai.ImageEditParams{
		Image:  openai.ImageEditParamsImageUnion{OfFile: file},
		Prompt: req.Prompt,
		Model:  openai.ImageModel(e.model),
		Size:   size,
		N:      openai.Int(1),
	})
	if err != nil {
		return nil, openAIError(err)
	}
	if resp == nil || len(resp.Data) == 0 || strings.TrimSpace(resp.Data[0].B64JSON) == "" {
		return nil, domain.UpstreamNoOutput("No image returned from OpenAI")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, domain.Upstream(0, "OpenAI returned malformed image data", err)
	}
	e.logger.Debug().
		Str("model", e.model).
		Str("size", string(size)).
		Int("bytes", len(data)).
		Msg("openai: edited image")
	return &Result{Bytes: data, MIMEType: "image/png"}, nil
}

func openAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return domain.Upstream(0, "OpenAI request failed", err)
	}
	msg := strings.TrimSpace(apiErr.Message)
	if msg == "" {
		msg = upstreamMessage([]byte(apiErr.RawJSON()))
	}
	if msg == "" {
		msg = http.StatusText(apiErr.StatusCode)
	}
	return domain.Upstream(apiErr.StatusCode, "OpenAI: "+msg, err)
}

var _ Editor = (*OpenAIEditor)(nil)
