// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness checks for Docker
// HEALTHCHECK and Kubernetes probes, with per-component status.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/md2site/md2site/internal/log"
)

// Status is the overall or per-component health state.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the readiness payload.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one component health check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs registered checkers and serves the probe endpoints.
type Manager struct {
	version  string
	checkers []Checker
}

// NewManager creates a manager.
func NewManager(version string) *Manager {
	return &Manager{version: version}
}

// RegisterChecker adds a checker.
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// Health is the liveness probe. The process being able to answer is
// what counts; component state only shows up in verbose mode.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
	}

	if verbose && len(m.checkers) > 0 {
		resp.Checks = make(map[string]CheckResult)
		resp.Status = m.runChecks(ctx, resp.Checks)
	}

	return resp
}

// Ready is the readiness probe. Any unhealthy component makes the
// daemon not ready.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}

	if len(m.checkers) == 0 {
		return resp
	}

	resp.Checks = make(map[string]CheckResult)
	resp.Status = m.runChecks(ctx, resp.Checks)
	resp.Ready = resp.Status != StatusUnhealthy

	return resp
}

func (m *Manager) runChecks(ctx context.Context, out map[string]CheckResult) Status {
	status := StatusHealthy
	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		out[checker.Name()] = result

		switch result.Status {
		case StatusUnhealthy:
			status = StatusUnhealthy
		case StatusDegraded:
			if status == StatusHealthy {
				status = StatusDegraded
			}
		}
	}
	return status
}

// ServeHealth handles liveness requests. Always 200.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	v := r.URL.Query().Get("verbose")
	verbose := v == "1" || v == "true"

	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady handles readiness requests. 503 until ready.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")

	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str("event", "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

// DirChecker verifies a directory exists and is readable.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a directory checker.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(_ context.Context) CheckResult {
	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusUnhealthy,
				Error:   "directory not found",
				Message: c.path,
			}
		}
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected directory, got file"}
	}
	return CheckResult{Status: StatusHealthy, Message: "directory exists"}
}

// LastBuildChecker reports the state of the most recent build.
type LastBuildChecker struct {
	staleAfter func() time.Duration
	getLast    func() (time.Time, string)
}

// NewLastBuildChecker creates a checker fed by the daemon's build
// state. staleAfter of 0 disables the staleness check; a daemon that
// rebuilds on file changes only has no natural build cadence.
func NewLastBuildChecker(staleAfter time.Duration, getLast func() (time.Time, string)) *LastBuildChecker {
	return &LastBuildChecker{
		staleAfter: func() time.Duration { return staleAfter },
		getLast:    getLast,
	}
}

func (c *LastBuildChecker) Name() string { return "last_build" }

func (c *LastBuildChecker) Check(_ context.Context) CheckResult {
	last, lastError := c.getLast()

	if last.IsZero() {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   lastError,
			Message: "no successful build yet",
		}
	}
	if lastError != "" {
		return CheckResult{
			Status:  StatusDegraded,
			Error:   lastError,
			Message: "last build failed, previous artifacts still served",
		}
	}
	if stale := c.staleAfter(); stale > 0 && time.Since(last) > stale {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "last successful build is stale",
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "last build successful"}
}

// PingChecker wraps any Ping-style dependency (search index, cache).
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingChecker creates a checker around a ping function.
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
