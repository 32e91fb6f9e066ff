// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "md2site_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "md2site_http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "md2site_http_response_size_bytes",
		Help:    "HTTP response sizes in bytes",
		Buckets: prometheus.ExponentialBuckets(100, 10, 8),
	}, []string{"method", "path", "status"})
)

// Metrics records Prometheus metrics per request: latency, in-flight
// count and response size. The chi route pattern labels the path so
// per-page URLs do not explode metric cardinality.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			mw := &metricsWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(mw, r)

			duration := time.Since(start).Seconds()

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			status := strconv.Itoa(mw.statusCode)
			httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)

			if mw.bytesWritten > 0 {
				httpResponseSize.WithLabelValues(r.Method, path, status).Observe(float64(mw.bytesWritten))
			}
		})
	}
}

type metricsWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	written      bool
}

func (mw *metricsWriter) WriteHeader(statusCode int) {
	if !mw.written {
		mw.statusCode = statusCode
		mw.written = true
	}
	mw.ResponseWriter.WriteHeader(statusCode)
}

func (mw *metricsWriter) Write(b []byte) (int, error) {
	if !mw.written {
		mw.WriteHeader(http.StatusOK)
	}
	n, err := mw.ResponseWriter.Write(b)
	mw.bytesWritten += n
	return n, err
}
