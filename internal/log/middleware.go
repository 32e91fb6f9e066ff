// SPDX-License-Identifier: MIT

package log

import (
	"net/http"
	"time"
)

// statusWriter wraps http.ResponseWriter to capture the response status and size.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Middleware returns an HTTP middleware that logs one structured line per
// request, enriched with correlation fields from the request context.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}

			l := WithComponentFromContext(r.Context(), "http")
			evt := l.Info()
			if status >= http.StatusInternalServerError {
				evt = l.Error()
			} else if status >= http.StatusBadRequest {
				evt = l.Warn()
			}
			evt.
				Str(FieldEvent, "http.request").
				Str("method", r.Method).
				Str(FieldPath, r.URL.Path).
				Int("status", status).
				Int("bytes", sw.bytes).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("request completed")
		})
	}
}
