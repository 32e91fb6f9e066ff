// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
)

// CORS sets Cross-Origin Resource Sharing headers against a strict
// allowed-origins list. "*" in the list allows every origin; an empty
// list falls back to common local development origins.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	if len(allowedOrigins) == 0 {
		allowed["http://localhost:3000"] = true
		allowed["http://localhost:8080"] = true
		allowed["http://localhost:5173"] = true
		allowed["http://127.0.0.1:3000"] = true
		allowed["http://127.0.0.1:8080"] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowAll := allowed["*"]

			if origin != "" {
				if allowAll || allowed[origin] {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
				// Disallowed origins get no header; the browser blocks.
			} else {
				// No Origin header: curl, backend-to-backend.
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, Authorization")
			w.Header().Set("Access-Control-Max-Age", "600")
			w.Header().Set("Vary", "Origin, Access-Control-Request-Method, Access-Control-Request-Headers")

			if r.Method == http.MethodOptions {
				w.Header().Set("Allow", "GET, POST, OPTIONS")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
