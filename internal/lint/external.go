// SPDX-License-Identifier: MIT

package lint

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	xglog "github.com/md2site/md2site/internal/log"
)

// ExternalConfig tunes the external link checker.
type ExternalConfig struct {
	// Timeout bounds a single probe.
	Timeout time.Duration
	// PerHostInterval is the minimum spacing between probes to one host.
	PerHostInterval time.Duration
	// UserAgent identifies the checker to remote servers.
	UserAgent string
}

// ExternalChecker probes external links over HTTP. It is polite: one
// in-flight probe per host at a time with a minimum spacing, and results
// are cached for the checker's lifetime so repeated references to the
// same URL cost one request per build.
type ExternalChecker struct {
	client    *http.Client
	timeout   time.Duration
	interval  time.Duration
	userAgent string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	results  map[string]error
}

// NewExternalChecker creates a checker with sane defaults for zero values.
func NewExternalChecker(cfg ExternalConfig) *ExternalChecker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.PerHostInterval <= 0 {
		cfg.PerHostInterval = 500 * time.Millisecond
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "md2site-linkcheck"
	}
	return &ExternalChecker{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		timeout:   cfg.Timeout,
		interval:  cfg.PerHostInterval,
		userAgent: cfg.UserAgent,
		limiters:  make(map[string]*rate.Limiter),
		results:   make(map[string]error),
	}
}

// Check probes rawURL. It returns nil for any 2xx or 3xx response,
// and an error for transport failures, timeouts, or 4xx/5xx statuses.
func (c *ExternalChecker) Check(ctx context.Context, rawURL string) error {
	c.mu.Lock()
	if result, done := c.results[rawURL]; done {
		c.mu.Unlock()
		return result
	}
	c.mu.Unlock()

	err := c.probe(ctx, rawURL)

	c.mu.Lock()
	c.results[rawURL] = err
	c.mu.Unlock()

	return err
}

func (c *ExternalChecker) probe(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if err := c.limiter(u.Host).Wait(ctx); err != nil {
		return err
	}

	status, err := c.request(ctx, http.MethodHead, rawURL)
	if err == nil && status == http.StatusMethodNotAllowed {
		// Some servers reject HEAD outright; retry with GET.
		status, err = c.request(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("status %d", status)
	}

	xglog.FromContext(ctx).Debug().
		Str(xglog.FieldEvent, "linkcheck.ok").
		Str(xglog.FieldTarget, rawURL).
		Int("status", status).
		Msg("external link reachable")

	return nil
}

func (c *ExternalChecker) request(ctx context.Context, method, rawURL string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	// Body is irrelevant; drain nothing and close immediately.
	_ = resp.Body.Close()

	return resp.StatusCode, nil
}

func (c *ExternalChecker) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(c.interval), 1)
		c.limiters[host] = l
	}
	return l
}
