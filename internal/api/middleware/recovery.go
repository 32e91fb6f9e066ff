// SPDX-License-Identifier: MIT

package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/md2site/md2site/internal/log"
)

// Recoverer keeps panics inside downstream handlers from crashing the
// process. The panic is logged with its stack and the client gets a
// 500 JSON body.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				buf := make([]byte, 8192)
				n := runtime.Stack(buf, false)
				stack := string(buf[:n])

				reqID := log.RequestIDFromContext(r.Context())

				pathLabel := r.URL.Path
				if !utf8.ValidString(pathLabel) {
					pathLabel = strings.ToValidUTF8(pathLabel, "")
				}

				logger := log.WithComponentFromContext(r.Context(), "panic-recovery")
				logger.Error().
					Str("event", "panic.recovered").
					Str("method", r.Method).
					Str("path", pathLabel).
					Str("remote_addr", r.RemoteAddr).
					Str("request_id", reqID).
					Interface("panic_value", rec).
					Str("stack_trace", stack).
					Msg("panic recovered in HTTP handler")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":      "Internal server error",
					"request_id": reqID,
				})
			}
		}()

		next.ServeHTTP(w, r)
	})
}
