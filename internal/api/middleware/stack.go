// SPDX-License-Identifier: MIT

package middleware

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/md2site/md2site/internal/log"
)

// StackConfig configures the canonical HTTP ingress middleware stack.
type StackConfig struct {
	// CORS
	EnableCORS     bool
	AllowedOrigins []string

	// Security headers
	EnableSecurityHeaders bool
	CSP                   string

	// Observability
	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	// Rate limiting (requests per minute per IP, 0 disables)
	RateLimitPerMinute int
}

// NewRouter constructs a chi router with the canonical stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the canonical middleware stack to r. The order is
// fixed: recovery outermost, then correlation, browser concerns,
// observability and finally rate limiting.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	if cfg.EnableCORS {
		r.Use(CORS(cfg.AllowedOrigins))
	}
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders(cfg.CSP))
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(log.Middleware())
	}
	if cfg.RateLimitPerMinute > 0 {
		r.Use(RateLimit(RateLimitConfig{
			RequestLimit: cfg.RateLimitPerMinute,
			WindowSize:   time.Minute,
		}))
	}
}
