// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/md2site/md2site/internal/telemetry"
)

// Tracing adds an OpenTelemetry server span per request. Incoming W3C
// trace context is honored so traces continue across proxies.
func Tracing(tracerName string) func(http.Handler) http.Handler {
	tracer := telemetry.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			rw := &tracingWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetAttributes(telemetry.HTTPAttributes(
				r.Method,
				r.URL.Path,
				r.URL.String(),
				rw.statusCode,
			)...)

			// 4xx is a client problem, only 5xx marks the span failed.
			if rw.statusCode >= 500 {
				span.SetStatus(codes.Error, http.StatusText(rw.statusCode))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

type tracingWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *tracingWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *tracingWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
