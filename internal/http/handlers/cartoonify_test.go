package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mora2/cartoonify/internal/domain"
	"github.com/mora2/cartoonify/internal/imaging"
	"github.com/mora2/cartoonify/internal/middleware"
	"github.com/mora2/cartoonify/internal/pipeline"
	image "github.com/mora2/cartoonify/internal/providers/image"
	"github.com/mora2/cartoonify/internal/storage"
)

// 1x1 transparent PNG.
const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

type stubEditor struct {
	calls int
	res   *image.Result
	err   error
}

func (s *stubEditor) Edit(context.Context, image.EditRequest) (*image.Result, error) {
	s.calls++
	return s.res, s.err
}

func (s *stubEditor) String() string { return "stub:editor" }

type stubStore struct {
	err error
}

func (s *stubStore) Put(_ context.Context, obj storage.Object) (storage.Reference, error) {
	if s.err != nil {
		return storage.Reference{}, s.err
	}
	return storage.Reference{URL: "https://cdn.test/" + obj.Key(), Key: obj.Key()}, nil
}

func (s *stubStore) String() string { return "stub" }

func newTestApp(t *testing.T, editor image.Editor, store storage.Store) *App {
	t.Helper()
	svc, err := pipeline.New(pipeline.Options{
		Normalizer: imaging.NewNormalizer(imaging.Options{}),
		Editor:     editor,
		Store:      store,
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	app := NewApp(svc, zerolog.Nop(), "test", 1<<20)
	app.Now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	return app
}

func serve(handler http.HandlerFunc, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	middleware.RequestID(handler).ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestPreview_AnimeReturnsPNGDataURL(t *testing.T) {
	out, _ := base64.StdEncoding.DecodeString(onePixelPNG)
	editor := &stubEditor{res: &image.Result{Bytes: out, MIMEType: "image/png"}}
	app := newTestApp(t, editor, &stubStore{})

	rr := serve(app.Preview, http.MethodPost, "/preview", map[string]string{
		"imageBase64": "data:image/png;base64," + onePixelPNG,
		"style":       "anime",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["ok"] != true {
		t.Fatalf("expected ok:true, got %#v", payload["ok"])
	}
	preview, _ := payload["previewBase64"].(string)
	if !strings.HasPrefix(preview, "data:image/png;base64,") {
		t.Fatalf("unexpected previewBase64 prefix: %q", preview)
	}
	if payload["style"] != "anime" {
		t.Fatalf("unexpected style: %#v", payload["style"])
	}
	if src, _ := payload["sourceUrl"].(string); !strings.HasPrefix(src, "https://cdn.test/mora2/previews_src/") {
		t.Fatalf("unexpected sourceUrl: %q", src)
	}
	if editor.calls != 1 {
		t.Fatalf("expected one generation call, got %d", editor.calls)
	}
}

func TestPreview_RejectsMalformedDataURL(t *testing.T) {
	editor := &stubEditor{}
	app := newTestApp(t, editor, nil)

	rr := serve(app.Preview, http.MethodPost, "/preview", map[string]string{"imageBase64": "not-a-data-url"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status code: got %d, want 400", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["ok"] != false {
		t.Fatalf("expected ok:false, got %#v", payload["ok"])
	}
	if editor.calls != 0 {
		t.Fatalf("generation must not run for invalid input, got %d calls", editor.calls)
	}
}

func TestPreview_RejectsUnsupportedMediaType(t *testing.T) {
	app := newTestApp(t, &stubEditor{}, nil)
	rr := serve(app.Preview, http.MethodPost, "/preview", map[string]string{"imageBase64": "data:image/gif;base64,R0lGODlh"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status code: got %d, want 400", rr.Code)
	}
	if msg, _ := decodeBody(t, rr)["error"].(string); !strings.Contains(msg, "image/gif") {
		t.Fatalf("expected media type in error, got %q", msg)
	}
}

func TestGenerateHD_MissingInput(t *testing.T) {
	app := newTestApp(t, &stubEditor{}, nil)

	rr := serve(app.GenerateHD, http.MethodPost, "/generate-hd", map[string]string{"style": "urban"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status code: got %d, want 400", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["ok"] != false {
		t.Fatalf("expected ok:false, got %#v", payload["ok"])
	}
	if msg, _ := payload["error"].(string); !strings.Contains(msg, "image input required") {
		t.Fatalf("expected missing input message, got %q", msg)
	}
}

func TestGenerateHD_EmptyBodyIsMissingInput(t *testing.T) {
	app := newTestApp(t, &stubEditor{}, nil)
	rr := serve(app.GenerateHD, http.MethodPost, "/generate-hd", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status code: got %d, want 400", rr.Code)
	}
}

func TestGenerateHD_MalformedJSON(t *testing.T) {
	app := newTestApp(t, &stubEditor{}, nil)
	rr := serve(app.GenerateHD, http.MethodPost, "/generate-hd", `{"imageBase64":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status code: got %d, want 400", rr.Code)
	}
	if msg, _ := decodeBody(t, rr)["error"].(string); msg != "invalid JSON body" {
		t.Fatalf("unexpected error: %q", msg)
	}
}

func TestGenerateHD_BodyTooLarge(t *testing.T) {
	app := newTestApp(t, &stubEditor{}, nil)
	app.MaxBodyBytes = 64
	rr := serve(app.GenerateHD, http.MethodPost, "/generate-hd", map[string]string{"imageData": strings.Repeat("A", 256), "mimeType": "image/png"})
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("unexpected status code: got %d, want 413", rr.Code)
	}
}

func TestGenerateHD_StoresResult(t *testing.T) {
	editor := &stubEditor{res: &image.Result{Bytes: []byte("hd"), MIMEType: "image/png"}}
	app := newTestApp(t, editor, &stubStore{})

	rr := serve(app.GenerateHD, http.MethodPost, "/generate-hd", map[string]string{
		"imageBase64": "data:image/png;base64," + onePixelPNG,
		"draftKey":    "draft-9",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["hdUrl"] != "https://cdn.test/mora2/generated_hd/draft-9.png" {
		t.Fatalf("unexpected hdUrl: %#v", payload["hdUrl"])
	}
	if payload["hdKey"] != "mora2/generated_hd/draft-9.png" {
		t.Fatalf("unexpected hdKey: %#v", payload["hdKey"])
	}
	if _, ok := payload["hdBase64"]; ok {
		t.Fatalf("hdBase64 must be omitted when stored, got %#v", payload["hdBase64"])
	}
}

func TestGenerateHD_StorageFailureFallsBackInline(t *testing.T) {
	editor := &stubEditor{res: &image.Result{Bytes: []byte("hd"), MIMEType: "image/png"}}
	app := newTestApp(t, editor, &stubStore{err: errors.New("cloud down")})

	rr := serve(app.GenerateHD, http.MethodPost, "/generate-hd", map[string]string{
		"imageData": onePixelPNG,
		"mimeType":  "image/png",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["hdBase64"] != imaging.EncodeDataURL("image/png", []byte("hd")) {
		t.Fatalf("unexpected hdBase64: %#v", payload["hdBase64"])
	}
	if _, ok := payload["hdUrl"]; ok {
		t.Fatalf("hdUrl must be omitted on fallback")
	}
}

func TestGenerateHD_NoOutputIs500WithoutRetry(t *testing.T) {
	editor := &stubEditor{res: &image.Result{}}
	app := newTestApp(t, editor, &stubStore{})

	rr := serve(app.GenerateHD, http.MethodPost, "/generate-hd", map[string]string{"imageBase64": "data:image/png;base64," + onePixelPNG})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status code: got %d, want 500", rr.Code)
	}
	if editor.calls != 1 {
		t.Fatalf("expected exactly one generation call, got %d", editor.calls)
	}
}

func TestGenerateHD_UpstreamStatusMirrored(t *testing.T) {
	editor := &stubEditor{err: domain.Upstream(http.StatusBadGateway, "OpenAI: bad gateway", nil)}
	app := newTestApp(t, editor, nil)

	rr := serve(app.GenerateHD, http.MethodPost, "/generate-hd", map[string]string{"imageBase64": "data:image/png;base64," + onePixelPNG})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status code: got %d, want 502", rr.Code)
	}
	if msg, _ := decodeBody(t, rr)["error"].(string); msg != "OpenAI: bad gateway" {
		t.Fatalf("unexpected error: %q", msg)
	}
}

func TestGenerateHD_UntypedErrorIsHidden(t *testing.T) {
	editor := &stubEditor{err: errors.New("dial tcp 10.0.0.1:443: secret detail")}
	app := newTestApp(t, editor, nil)

	rr := serve(app.GenerateHD, http.MethodPost, "/generate-hd", map[string]string{"imageBase64": "data:image/png;base64," + onePixelPNG})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status code: got %d, want 500", rr.Code)
	}
	if msg, _ := decodeBody(t, rr)["error"].(string); msg != "internal error" {
		t.Fatalf("unexpected error: %q", msg)
	}
}
