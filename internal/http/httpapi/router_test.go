package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mora2/cartoonify/internal/http/handlers"
	"github.com/mora2/cartoonify/internal/imaging"
	"github.com/mora2/cartoonify/internal/pipeline"
	image "github.com/mora2/cartoonify/internal/providers/image"
)

type okEditor struct{}

func (okEditor) Edit(context.Context, image.EditRequest) (*image.Result, error) {
	return &image.Result{Bytes: []byte("out"), MIMEType: "image/png"}, nil
}

type panicEditor struct{}

func (panicEditor) Edit(context.Context, image.EditRequest) (*image.Result, error) {
	panic("editor exploded")
}

func newTestRouter(t *testing.T, staticDir string) http.Handler {
	t.Helper()
	return newTestRouterWithEditor(t, okEditor{}, staticDir)
}

func newTestRouterWithEditor(t *testing.T, editor image.Editor, staticDir string) http.Handler {
	t.Helper()
	svc, err := pipeline.New(pipeline.Options{
		Normalizer: imaging.NewNormalizer(imaging.Options{}),
		Editor:     editor,
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	app := handlers.NewApp(svc, zerolog.Nop(), "test", 1<<20)
	return NewRouter(app, Options{
		AllowedOrigins: []string{"https://mora2.com", "http://localhost:5173"},
		MaxBodyBytes:   1 << 20,
		StaticDir:      staticDir,
		Logger:         zerolog.Nop(),
	})
}

func do(h http.Handler, method, target, origin, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterPreflight(t *testing.T) {
	h := newTestRouter(t, "")
	for _, path := range []string{"/generate-hd", "/preview", "/api/generate-hd", "/anything"} {
		rr := do(h, http.MethodOptions, path, "http://localhost:5173", "")
		if rr.Code != http.StatusNoContent {
			t.Fatalf("%s: unexpected status %d", path, rr.Code)
		}
		if rr.Body.Len() != 0 {
			t.Fatalf("%s: expected empty body", path)
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Fatalf("%s: allow origin %q", path, got)
		}
		if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), "POST") {
			t.Fatalf("%s: methods %q", path, rr.Header().Get("Access-Control-Allow-Methods"))
		}
	}
}

func TestRouterErrorsCarryCORSAndRequestID(t *testing.T) {
	h := newTestRouter(t, "")
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "missing input", method: http.MethodPost, path: "/generate-hd", body: `{}`, status: http.StatusBadRequest},
		{name: "bad data url", method: http.MethodPost, path: "/preview", body: `{"imageBase64":"not-a-data-url"}`, status: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodGet, path: "/preview", status: http.StatusMethodNotAllowed},
		{name: "wrong method hd", method: http.MethodPut, path: "/generate-hd", status: http.StatusMethodNotAllowed},
		{name: "unknown route", method: http.MethodGet, path: "/nope", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(h, tt.method, tt.path, "https://mora2.com", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("unexpected status: got %d, want %d (%s)", rr.Code, tt.status, rr.Body.String())
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://mora2.com" {
				t.Fatalf("allow origin %q", got)
			}
			if rr.Header().Get("X-Request-ID") == "" {
				t.Fatal("missing X-Request-ID")
			}
			var payload struct {
				OK    bool   `json:"ok"`
				Error string `json:"error"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if payload.OK || payload.Error == "" {
				t.Fatalf("unexpected envelope: %+v", payload)
			}
		})
	}
}

func TestRouterPanicUsesEnvelope(t *testing.T) {
	h := newTestRouterWithEditor(t, panicEditor{}, "")
	body := `{"imageBase64":"data:image/png;base64,iVBORw0KGgo="}`
	rr := do(h, http.MethodPost, "/generate-hd", "https://mora2.com", body)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://mora2.com" {
		t.Fatalf("allow origin %q", got)
	}
	var payload struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.OK || payload.Error != "internal error" {
		t.Fatalf("unexpected envelope: %+v", payload)
	}
}

func TestRouterMethodNotAllowedMessage(t *testing.T) {
	rr := do(newTestRouter(t, ""), http.MethodGet, "/generate-hd", "", "")
	if !strings.Contains(rr.Body.String(), "Method not allowed") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestRouterPreviewSuccess(t *testing.T) {
	h := newTestRouter(t, "")
	body := `{"imageBase64":"data:image/png;base64,iVBORw0KGgo=","style":"anime"}`
	for _, path := range []string{"/preview", "/api/preview"} {
		rr := do(h, http.MethodPost, path, "https://unknown.test", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: unexpected status %d (%s)", path, rr.Code, rr.Body.String())
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://mora2.com" {
			t.Fatalf("%s: unlisted origin should receive the first allowed origin, got %q", path, got)
		}
		if !strings.Contains(rr.Body.String(), `"previewBase64":"data:image/png;base64,`) {
			t.Fatalf("%s: unexpected body %s", path, rr.Body.String())
		}
	}
}

func TestRouterPing(t *testing.T) {
	rr := do(newTestRouter(t, ""), http.MethodGet, "/ping", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok":true`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestRouterServesStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "mora2"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "mora2", "a.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := newTestRouter(t, dir)

	rr := do(h, http.MethodGet, "/static/mora2/a.png", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if b, _ := io.ReadAll(rr.Body); string(b) != "png" {
		t.Fatalf("unexpected body %q", b)
	}

	rr = do(h, http.MethodGet, "/static/mora2/", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("directory listing must be hidden, got %d", rr.Code)
	}
}
