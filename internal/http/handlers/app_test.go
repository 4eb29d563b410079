package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecoverRendersEnvelope(t *testing.T) {
	app := newTestApp(t, &stubEditor{}, nil)
	h := app.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/preview", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"ok":false,"error":"internal error"}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestRecoverReraisesAbort(t *testing.T) {
	app := newTestApp(t, &stubEditor{}, nil)
	h := app.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	t.Fatal("panic was swallowed")
}
