// SPDX-License-Identifier: MIT

package lint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestExternalCheckerStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewExternalChecker(ExternalConfig{
		Timeout:         2 * time.Second,
		PerHostInterval: time.Millisecond,
	})

	if err := c.Check(context.Background(), srv.URL+"/ok"); err != nil {
		t.Errorf("Check(/ok) = %v, want nil", err)
	}
	if err := c.Check(context.Background(), srv.URL+"/gone"); err == nil {
		t.Error("Check(/gone) = nil, want error")
	}
	if err := c.Check(context.Background(), srv.URL+"/boom"); err == nil {
		t.Error("Check(/boom) = nil, want error")
	}
}

func TestExternalCheckerHeadFallsBackToGet(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		gets.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewExternalChecker(ExternalConfig{PerHostInterval: time.Millisecond})

	if err := c.Check(context.Background(), srv.URL+"/doc"); err != nil {
		t.Errorf("Check() = %v, want nil after GET fallback", err)
	}
	if gets.Load() != 1 {
		t.Errorf("GET requests = %d, want 1", gets.Load())
	}
}

func TestExternalCheckerCachesResults(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewExternalChecker(ExternalConfig{PerHostInterval: time.Millisecond})

	for i := 0; i < 3; i++ {
		if err := c.Check(context.Background(), srv.URL+"/same"); err != nil {
			t.Fatalf("Check() = %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1 (cached)", hits.Load())
	}
}

func TestExternalCheckerUnreachableHost(t *testing.T) {
	c := NewExternalChecker(ExternalConfig{
		Timeout:         500 * time.Millisecond,
		PerHostInterval: time.Millisecond,
	})

	// Reserved TEST-NET address; nothing listens there.
	if err := c.Check(context.Background(), "http://192.0.2.1:9/x"); err == nil {
		t.Error("Check(unreachable) = nil, want error")
	}
}
