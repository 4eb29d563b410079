package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mora2/cartoonify/internal/domain"
)

const defaultHFMaxImageBytes = 20 << 20

// HFSpaceOptions configures a Hugging Face Space backend. CartoonURL is the
// Space predict endpoint; UpscaleURL is an optional second Space whose
// output replaces the cartoon when it succeeds.
type HFSpaceOptions struct {
	Token         string
	CartoonURL    string
	UpscaleURL    string
	MaxImageBytes int64
	HTTPClient    *http.Client
	Logger        *zerolog.Logger
}

// HFSpaceEditor invokes Gradio-style Spaces ({"data": [...]}) in place of a
// vendor image-edit API. The Space applies its own fixed style, so the prompt
// and size are not forwarded.
type HFSpaceEditor struct {
	token      string
	cartoonURL string
	upscaleURL string
	maxBytes   int64
	httpClient *http.Client
	logger     zerolog.Logger
}

type gradioRequest struct {
	Data []string `json:"data"`
}

type gradioResponse struct {
	Data  []json.RawMessage `json:"data"`
	Error string            `json:"error"`
}

func NewHFSpaceEditor(opts HFSpaceOptions) *HFSpaceEditor {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	maxBytes := opts.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = defaultHFMaxImageBytes
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &HFSpaceEditor{
		token:      strings.TrimSpace(opts.Token),
		cartoonURL: strings.TrimSpace(opts.CartoonURL),
		upscaleURL: strings.TrimSpace(opts.UpscaleURL),
		maxBytes:   maxBytes,
		httpClient: client,
		logger:     logger,
	}
}

func (h *HFSpaceEditor) String() string {
	if h.upscaleURL != "" {
		return "hfspace+upscale"
	}
	return "hfspace"
}

func (h *HFSpaceEditor) Edit(ctx context.Context, req EditRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if h.cartoonURL == "" {
		return nil, errors.New("hfspace: cartoon space url not configured")
	}
	ref, err := h.invoke(ctx, h.cartoonURL, req.Artifact.DataURL())
	if err != nil {
		return nil, err
	}
	if h.upscaleURL != "" {
		upscaled, err := h.invoke(ctx, h.upscaleURL, ref)
		if err != nil {
			h.logger.Warn().Err(err).Msg("hfspace: upscale failed, keeping cartoon output")
		} else {
			ref = upscaled
		}
	}
	return h.materialize(ctx, ref)
}

// invoke posts one input to a Space and returns the first output reference,
// either a data-URL or an http(s) URL.
func (h *HFSpaceEditor) invoke(ctx context.Context, endpoint, input string) (string, error) {
	body, err := json.Marshal(gradioRequest{Data: []string{input}})
	if err != nil {
		return "", fmt.Errorf("hfspace: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("hfspace: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", domain.Upstream(0, "HF Space request failed", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.Upstream(resp.StatusCode, "HF Space response unreadable", err)
	}
	if resp.StatusCode >= 300 {
		msg := upstreamMessage(raw)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", domain.Upstream(resp.StatusCode, "HF Space: "+msg, nil)
	}
	var decoded gradioResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", domain.Upstream(resp.StatusCode, "HF Space returned malformed JSON", err)
	}
	if decoded.Error != "" {
		return "", domain.Upstream(0, "HF Space: "+decoded.Error, nil)
	}
	if len(decoded.Data) == 0 {
		return "", domain.UpstreamNoOutput("No image from HF")
	}
	ref := outputRef(decoded.Data[0])
	if ref == "" {
		return "", domain.UpstreamNoOutput("No image from HF")
	}
	return ref, nil
}

func outputRef(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var file struct {
		URL  string `json:"url"`
		Data string `json:"data"`
	}
	if err := json.Unmarshal(raw, &file); err == nil {
		if file.URL != "" {
			return strings.TrimSpace(file.URL)
		}
		return strings.TrimSpace(file.Data)
	}
	return ""
}

func (h *HFSpaceEditor) materialize(ctx context.Context, ref string) (*Result, error) {
	if strings.HasPrefix(ref, "data:") {
		header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, domain.Upstream(0, "HF Space returned a malformed data URL", nil)
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil || len(data) == 0 {
			return nil, domain.Upstream(0, "HF Space returned malformed image data", err)
		}
		return &Result{Bytes: data, MIMEType: resultMIME(strings.TrimSuffix(header, ";base64"))}, nil
	}
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return nil, domain.UpstreamNoOutput("HF Space output is not an image reference")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, domain.Upstream(0, "HF Space output url invalid", err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, domain.Upstream(0, "HF Space output download failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, domain.Upstream(resp.StatusCode, fmt.Sprintf("HF Space output download failed: HTTP %d", resp.StatusCode), nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, domain.Upstream(0, "HF Space output download failed", err)
	}
	if int64(len(data)) > h.maxBytes {
		return nil, domain.Upstream(0, "HF Space output exceeds size limit", nil)
	}
	if len(data) == 0 {
		return nil, domain.UpstreamNoOutput("No image from HF")
	}
	return &Result{Bytes: data, MIMEType: resultMIME(resp.Header.Get("Content-Type"))}, nil
}

var _ Editor = (*HFSpaceEditor)(nil)
