// SPDX-License-Identifier: MIT

package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig configures the sliding-window rate limiter.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests per window.
	RequestLimit int
	// WindowSize is the limiting window.
	WindowSize time.Duration
	// KeyFunc extracts the limit key; nil keys by client IP.
	KeyFunc func(r *http.Request) (string, error)
}

// RateLimit limits request rates per key using httprate's sliding
// window counter. Rejected requests get a 429 with Retry-After.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(cfg.WindowSize.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","detail":"Too many requests. Please try again later."}`))
		}),
	)
}

// BuildRateLimit limits the expensive build trigger endpoint.
func BuildRateLimit() func(http.Handler) http.Handler {
	return RateLimit(RateLimitConfig{
		RequestLimit: 10,
		WindowSize:   time.Minute,
	})
}
