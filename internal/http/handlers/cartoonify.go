package handlers

import (
	"net/http"

	"github.com/mora2/cartoonify/internal/imaging"
	"github.com/mora2/cartoonify/internal/pipeline"
)

type imageRequest struct {
	ImageBase64 string `json:"imageBase64"`
	SourceURL   string `json:"sourceUrl"`
	ImageData   string `json:"imageData"`
	MIMEType    string `json:"mimeType"`
	Style       string `json:"style"`
	DraftKey    string `json:"draftKey"`
}

func (req imageRequest) toPipeline() pipeline.Request {
	return pipeline.Request{
		Input: imaging.Input{
			DataURL:   req.ImageBase64,
			SourceURL: req.SourceURL,
			RawBase64: req.ImageData,
			MIMEType:  req.MIMEType,
		},
		Style:    req.Style,
		DraftKey: req.DraftKey,
	}
}

type previewResponse struct {
	OK            bool   `json:"ok"`
	PreviewBase64 string `json:"previewBase64"`
	SourceURL     string `json:"sourceUrl,omitempty"`
	Style         string `json:"style"`
}

type hdResponse struct {
	OK       bool   `json:"ok"`
	HDURL    string `json:"hdUrl,omitempty"`
	HDKey    string `json:"hdKey,omitempty"`
	HDBase64 string `json:"hdBase64,omitempty"`
	Style    string `json:"style"`
}

// Preview handles POST /preview.
func (a *App) Preview(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := a.decode(w, r, &req); err != nil {
		a.error(w, r, err)
		return
	}
	res, err := a.Pipeline.Preview(r.Context(), req.toPipeline())
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, previewResponse{
		OK:            true,
		PreviewBase64: res.PreviewBase64,
		SourceURL:     res.SourceURL,
		Style:         res.Style,
	})
}

// GenerateHD handles POST /generate-hd.
func (a *App) GenerateHD(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := a.decode(w, r, &req); err != nil {
		a.error(w, r, err)
		return
	}
	res, err := a.Pipeline.GenerateHD(r.Context(), req.toPipeline())
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, hdResponse{
		OK:       true,
		HDURL:    res.HDURL,
		HDKey:    res.HDKey,
		HDBase64: res.HDBase64,
		Style:    res.Style,
	})
}
