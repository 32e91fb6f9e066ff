// SPDX-License-Identifier: MIT

// Package daemon owns the runtime lifecycle: the HTTP server, content
// and config watchers, reload signals and the rebuild schedule.
package daemon

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/md2site/md2site/internal/log"
)

// ShutdownHook performs cleanup during graceful shutdown. Hooks run in
// reverse registration order.
type ShutdownHook func(ctx context.Context) error

type namedHook struct {
	name string
	hook ShutdownHook
}

// Manager runs the HTTP server and coordinates graceful shutdown.
type Manager struct {
	listen          string
	handler         http.Handler
	shutdownTimeout time.Duration

	mu            sync.Mutex
	server        *http.Server
	started       bool
	shutdownHooks []namedHook

	logger zerolog.Logger
}

// NewManager creates a manager for the given listen address and
// handler.
func NewManager(listen string, handler http.Handler, shutdownTimeout time.Duration) (*Manager, error) {
	if handler == nil {
		return nil, ErrMissingHandler
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	return &Manager{
		listen:          listen,
		handler:         handler,
		shutdownTimeout: shutdownTimeout,
		logger:          log.WithComponent("daemon"),
	}, nil
}

// RegisterShutdownHook adds a cleanup step for shutdown.
func (m *Manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHooks = append(m.shutdownHooks, namedHook{name: name, hook: hook})
}

// Start serves HTTP and blocks until ctx is cancelled or the server
// fails. Cancellation triggers a bounded graceful shutdown.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.server = &http.Server{
		Addr:              m.listen,
		Handler:           m.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	m.mu.Unlock()

	m.logger.Info().
		Str("event", "server.starting").
		Str("listen", m.listen).
		Msg("starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		m.logger.Error().Err(err).Str("event", "server.failed").Msg("HTTP server failed")
		return err
	case <-ctx.Done():
		// Shutdown must outlive the cancelled parent, but stay bounded.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.shutdownTimeout)
		defer cancel()
		return m.Shutdown(shutdownCtx)
	}
}

// Shutdown stops the server and runs the registered hooks in reverse
// order. All hooks run even when some fail; the first error wins.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	server := m.server
	hooks := make([]namedHook, len(m.shutdownHooks))
	copy(hooks, m.shutdownHooks)
	m.mu.Unlock()

	if server == nil {
		return ErrNotStarted
	}

	m.logger.Info().Str("event", "server.shutdown").Msg("shutting down HTTP server")

	var firstErr error
	if err := server.Shutdown(ctx); err != nil {
		firstErr = err
		m.logger.Error().Err(err).Str("event", "server.shutdown_error").Msg("graceful shutdown failed")
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.hook(ctx); err != nil {
			m.logger.Error().
				Err(err).
				Str("event", "shutdown.hook_failed").
				Str("hook", h.name).
				Msg("shutdown hook failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
