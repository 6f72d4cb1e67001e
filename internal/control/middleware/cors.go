// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strings"
)

const corsMethods = "GET, POST, OPTIONS"

// CORS returns a middleware that sets Cross-Origin Resource Sharing headers.
// It supports a strict allowed origins list; "*" allows every origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool)
	for _, origin := range allowedOrigins {
		if n, ok := normalizeOrigin(origin); ok {
			allowed[n] = true
		} else if strings.TrimSpace(origin) == "*" {
			allowed["*"] = true
		}
	}
	allowAll := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			// Browsers block the response when no Allow-Origin is set.
			if origin != "" {
				if n, ok := normalizeOrigin(origin); ok && (allowAll || allowed[n]) {
					h.Set("Access-Control-Allow-Origin", origin)
				}
			}

			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, Last-Event-ID")
			h.Set("Access-Control-Expose-Headers", "Retry-After, X-Request-ID")
			h.Set("Access-Control-Max-Age", "600")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Allow", corsMethods)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
