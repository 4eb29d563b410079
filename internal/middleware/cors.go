package middleware

import (
	"net/http"
	"strings"
)

// CORS sets the cross-origin headers on every response, errors and
// preflights included. An allow-listed Origin is reflected; any other caller
// receives the first allowed origin, which browsers will then refuse. A "*"
// entry makes the policy permissive. OPTIONS requests end here with 204.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allow := make(map[string]struct{}, len(allowedOrigins))
	var fallback string
	permissive := false
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if origin == "*" {
			permissive = true
			continue
		}
		if fallback == "" {
			fallback = origin
		}
		allow[origin] = struct{}{}
	}

	pick := func(origin string) string {
		if permissive {
			if origin != "" {
				return origin
			}
			return "*"
		}
		if _, ok := allow[origin]; ok {
			return origin
		}
		return fallback
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if origin := pick(r.Header.Get("Origin")); origin != "" {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Max-Age", "86400")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
