// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type stubChecker struct {
	name   string
	result CheckResult
}

func (s stubChecker) Name() string                      { return s.name }
func (s stubChecker) Check(context.Context) CheckResult { return s.result }

func TestHealthAlwaysHealthyWithoutVerbose(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(stubChecker{"broken", CheckResult{Status: StatusUnhealthy}})

	resp := m.Health(context.Background(), false)
	if resp.Status != StatusHealthy {
		t.Errorf("Status = %s, want healthy (liveness ignores components)", resp.Status)
	}
	if resp.Checks != nil {
		t.Error("Checks should be omitted without verbose")
	}
}

func TestReadyAggregation(t *testing.T) {
	tests := []struct {
		name       string
		checkers   []Checker
		wantReady  bool
		wantStatus Status
	}{
		{"no checkers", nil, true, StatusHealthy},
		{
			"all healthy",
			[]Checker{stubChecker{"a", CheckResult{Status: StatusHealthy}}},
			true, StatusHealthy,
		},
		{
			"degraded stays ready",
			[]Checker{
				stubChecker{"a", CheckResult{Status: StatusHealthy}},
				stubChecker{"b", CheckResult{Status: StatusDegraded}},
			},
			true, StatusDegraded,
		},
		{
			"unhealthy not ready",
			[]Checker{
				stubChecker{"a", CheckResult{Status: StatusDegraded}},
				stubChecker{"b", CheckResult{Status: StatusUnhealthy}},
			},
			false, StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1")
			for _, c := range tt.checkers {
				m.RegisterChecker(c)
			}

			resp := m.Ready(context.Background())
			if resp.Ready != tt.wantReady {
				t.Errorf("Ready = %v, want %v", resp.Ready, tt.wantReady)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", resp.Status, tt.wantStatus)
			}
		})
	}
}

func TestServeReadyStatusCodes(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(stubChecker{"idx", CheckResult{Status: StatusUnhealthy, Error: "down"}})

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != 503 {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var resp ReadinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Ready {
		t.Error("Ready = true in 503 response")
	}
}

func TestServeHealthVerbose(t *testing.T) {
	m := NewManager("v2")
	m.RegisterChecker(stubChecker{"cache", CheckResult{Status: StatusHealthy}})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest("GET", "/healthz?verbose=true", nil))

	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Version != "v2" {
		t.Errorf("Version = %q", resp.Version)
	}
	if _, ok := resp.Checks["cache"]; !ok {
		t.Error("verbose response missing component check")
	}
}

func TestServeHealthVerboseNumericFlag(t *testing.T) {
	m := NewManager("v2")
	m.RegisterChecker(stubChecker{"cache", CheckResult{Status: StatusUnhealthy, Error: "down"}})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest("GET", "/healthz?verbose=1", nil))

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if _, ok := resp.Checks["cache"]; !ok {
		t.Error("verbose=1 response missing component check")
	}
	if resp.Status != StatusUnhealthy {
		t.Errorf("Status = %s, want unhealthy with verbose=1", resp.Status)
	}
}

func TestDirChecker(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want Status
	}{
		{"exists", dir, StatusHealthy},
		{"missing", filepath.Join(dir, "nope"), StatusUnhealthy},
		{"file not dir", file, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewDirChecker("content", tt.path).Check(context.Background())
			if got.Status != tt.want {
				t.Errorf("Status = %s, want %s", got.Status, tt.want)
			}
		})
	}
}

func TestLastBuildChecker(t *testing.T) {
	tests := []struct {
		name       string
		last       time.Time
		lastError  string
		staleAfter time.Duration
		want       Status
	}{
		{"never built", time.Time{}, "", 0, StatusUnhealthy},
		{"failed before any success", time.Time{}, "lint failed", 0, StatusUnhealthy},
		{"recent success", time.Now(), "", time.Hour, StatusHealthy},
		{"failed build", time.Now(), "lint failed", 0, StatusDegraded},
		{"stale", time.Now().Add(-2 * time.Hour), "", time.Hour, StatusDegraded},
		{"old but staleness disabled", time.Now().Add(-48 * time.Hour), "", 0, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLastBuildChecker(tt.staleAfter, func() (time.Time, string) {
				return tt.last, tt.lastError
			})
			if got := c.Check(context.Background()); got.Status != tt.want {
				t.Errorf("Status = %s, want %s", got.Status, tt.want)
			}
		})
	}
}

func TestPingChecker(t *testing.T) {
	ok := NewPingChecker("index", func(context.Context) error { return nil })
	if got := ok.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("Status = %s, want healthy", got.Status)
	}

	bad := NewPingChecker("index", func(context.Context) error { return errors.New("locked") })
	if got := bad.Check(context.Background()); got.Status != StatusUnhealthy {
		t.Errorf("Status = %s, want unhealthy", got.Status)
	}
}
