package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mora2/cartoonify/internal/http/handlers"
	"github.com/mora2/cartoonify/internal/middleware"
)

// Options configures the router beyond the handlers themselves.
type Options struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	// StaticDir is served under /static/ when set (filesystem storage).
	StaticDir string
	Logger    zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	// CORS sits right after the request id so panics, 404s, 405s and
	// preflights all carry the headers.
	r.Use(
		middleware.RequestID,
		middleware.CORS(opts.AllowedOrigins),
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		app.Recover,
	)
	if opts.MaxBodyBytes > 0 {
		r.Use(chimw.RequestSize(opts.MaxBodyBytes))
	}

	r.NotFound(app.NotFound)
	r.MethodNotAllowed(app.MethodNotAllowed)

	r.Get("/ping", app.Ping)
	r.Post("/preview", app.Preview)
	r.Post("/generate-hd", app.GenerateHD)

	// Vercel-style paths used by existing frontends.
	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", app.Ping)
		r.Post("/preview", app.Preview)
		r.Post("/generate-hd", app.GenerateHD)
	})

	if dir := strings.TrimSpace(opts.StaticDir); dir != "" {
		files := http.StripPrefix("/static/", http.FileServer(http.Dir(dir)))
		r.Get("/static/*", func(w http.ResponseWriter, req *http.Request) {
			if strings.HasSuffix(req.URL.Path, "/") {
				app.NotFound(w, req)
				return
			}
			files.ServeHTTP(w, req)
		})
	}

	return r
}
