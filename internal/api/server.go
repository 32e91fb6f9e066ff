// SPDX-License-Identifier: MIT

// Package api exposes the daemon over HTTP: build control, the page
// catalog, search, the lint report, health probes, metrics and the
// generated artifacts themselves.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/md2site/md2site/internal/api/middleware"
	"github.com/md2site/md2site/internal/config"
	"github.com/md2site/md2site/internal/health"
	"github.com/md2site/md2site/internal/index"
	"github.com/md2site/md2site/internal/jobs"
	"github.com/md2site/md2site/internal/log"
	"github.com/md2site/md2site/internal/site"
)

// ErrBuildInFlight is returned when a build trigger races an active
// build.
var ErrBuildInFlight = errors.New("a build is already running")

// maxSearchQueryLen bounds user search input before it reaches FTS5.
const maxSearchQueryLen = 200

// Server is the HTTP API.
type Server struct {
	holder  *config.Holder
	builder *jobs.Builder
	healthM *health.Manager
	search  *index.Store // nil when search is disabled

	building atomic.Bool

	mu          sync.RWMutex
	lastStatus  *jobs.Status
	lastSuccess time.Time
	lastError   string
}

// NewServer wires the API. search may be nil.
func NewServer(holder *config.Holder, builder *jobs.Builder, healthM *health.Manager, search *index.Store) *Server {
	return &Server{
		holder:  holder,
		builder: builder,
		healthM: healthM,
		search:  search,
	}
}

// Handler builds the routed HTTP handler with the canonical middleware
// stack applied.
func (s *Server) Handler() http.Handler {
	cfg := s.holder.Get()

	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracingService(cfg),
		EnableLogging:         true,
		RateLimitPerMinute:    cfg.RateLimit.RequestsPerMinute,
	})

	r.Get("/healthz", s.healthM.ServeHealth)
	r.Get("/readyz", s.healthM.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/pages", s.handlePages)
		r.Get("/pages/*", s.handlePage)
		r.Get("/search", s.handleSearch)
		r.Get("/lint", s.handleLint)
		r.Get("/status", s.handleStatus)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.With(middleware.BuildRateLimit()).Post("/build", s.handleBuild)
			r.Post("/reload", s.handleReload)
		})
	})

	r.Mount("/files", http.StripPrefix("/files", s.secureFileServer()))

	return r
}

func tracingService(cfg config.Config) string {
	if cfg.Tracing.Enabled {
		return "md2site-api"
	}
	return ""
}

// RunBuild executes one build, serialized across triggers. A second
// caller during an active build gets ErrBuildInFlight.
func (s *Server) RunBuild(ctx context.Context) (*jobs.Status, error) {
	if !s.building.CompareAndSwap(false, true) {
		return nil, ErrBuildInFlight
	}
	defer s.building.Store(false)

	status, err := s.builder.Build(ctx, s.holder.Get())

	s.mu.Lock()
	s.lastStatus = status
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
		if status != nil {
			s.lastSuccess = status.StartedAt
		}
	}
	s.mu.Unlock()

	return status, err
}

// LastBuild reports the time of the most recent successful build (zero
// until one succeeds) and the error of the most recent attempt, for
// health checks. Readiness must stay down until something has actually
// been published.
func (s *Server) LastBuild() (time.Time, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSuccess, s.lastError
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str("event", "build.triggered").
		Str("remote_ip", s.clientIP(r)).
		Msg("build triggered via API")

	status, err := s.RunBuild(r.Context())
	switch {
	case errors.Is(err, ErrBuildInFlight):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		// The status still describes the failed run.
		writeJSON(w, http.StatusUnprocessableEntity, buildResponse(status, err))
	default:
		writeJSON(w, http.StatusOK, buildResponse(status, nil))
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.holder.Reload(r.Context()); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	status := s.lastStatus
	lastError := s.lastError
	s.mu.RUnlock()

	resp := map[string]any{
		"version":  s.holder.Get().Version,
		"building": s.building.Load(),
	}
	if status != nil {
		resp["last_build"] = buildResponse(status, nil)
	}
	if lastError != "" {
		resp["last_error"] = lastError
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	manifest, err := s.loadManifest()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "no build published yet")
		return
	}

	layout := r.URL.Query().Get("layout")
	tag := r.URL.Query().Get("tag")
	includeDrafts := r.URL.Query().Get("drafts") == "1" && s.tokenValid(r)

	filtered := make([]site.ManifestEntry, 0, len(manifest.Pages))
	for _, entry := range manifest.Pages {
		if entry.Draft && !includeDrafts {
			continue
		}
		if layout != "" && entry.Layout != layout {
			continue
		}
		if tag != "" && !slices.Contains(entry.Tags, tag) {
			continue
		}
		filtered = append(filtered, entry)
	}
	manifest.Pages = filtered
	manifest.PageCount = len(filtered)
	writeJSON(w, http.StatusOK, manifest)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	manifest, err := s.loadManifest()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "no build published yet")
		return
	}

	sitePath := "/" + chi.URLParam(r, "*")
	entry, ok := manifest.PageByPath(sitePath)
	if !ok {
		writeError(w, http.StatusNotFound, "no page at "+sitePath)
		return
	}
	if entry.Draft && !(r.URL.Query().Get("drafts") == "1" && s.tokenValid(r)) {
		// Drafts are indistinguishable from missing pages without a token.
		writeError(w, http.StatusNotFound, "no page at "+sitePath)
		return
	}

	artifact := filepath.Join(s.holder.Get().OutputDir, "pages", entry.Slug+".json")
	// #nosec G304 -- the slug comes from the manifest written by our own builder
	raw, err := os.ReadFile(artifact)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str("event", "page.artifact_missing").
			Str("slug", entry.Slug).
			Msg("manifest references missing page artifact")
		writeError(w, http.StatusInternalServerError, "page artifact unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(raw)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	if len(query) > maxSearchQueryLen {
		writeError(w, http.StatusBadRequest, "query too long")
		return
	}

	if s.search == nil {
		writeError(w, http.StatusNotImplemented, "search index is disabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	results, err := s.search.Search(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []index.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	raw, err := os.ReadFile(filepath.Join(s.holder.Get().OutputDir, "lint.json"))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "no lint report published yet")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(raw)
}

func (s *Server) loadManifest() (*site.Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(s.holder.Get().OutputDir, "manifest.json"))
	if err != nil {
		return nil, err
	}
	var m site.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func buildResponse(status *jobs.Status, err error) map[string]any {
	resp := map[string]any{
		"build_id":     status.BuildID,
		"started_at":   status.StartedAt,
		"duration_ms":  status.Duration.Milliseconds(),
		"pages":        status.Pages,
		"errors":       status.Errors,
		"warnings":     status.Warnings,
		"cache_hits":   status.CacheHits,
		"cache_misses": status.CacheMisses,
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": http.StatusText(status), "detail": detail})
}
