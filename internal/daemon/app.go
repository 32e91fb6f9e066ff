// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/md2site/md2site/internal/api"
	"github.com/md2site/md2site/internal/config"
)

// App owns the long-lived runtime: the server manager, config holder
// and rebuild triggers.
type App struct {
	logger       zerolog.Logger
	manager      *Manager
	cfgHolder    *config.Holder
	apiServer    *api.Server
	reloadSignal os.Signal
}

// NewApp creates the orchestrator.
func NewApp(logger zerolog.Logger, manager *Manager, cfgHolder *config.Holder, apiServer *api.Server) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		apiServer:    apiServer,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all background subsystems and blocks until ctx is
// cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	cfg := a.cfgHolder.Get()

	// Config watcher is best-effort: a failed watcher must not keep
	// the daemon from serving.
	if err := a.cfgHolder.StartWatcher(ctx); err != nil {
		a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
	}

	// SIGHUP triggers a manual config reload.
	g.Go(func() error {
		hupChan := make(chan os.Signal, 1)
		signal.Notify(hupChan, a.reloadSignal)
		defer signal.Stop(hupChan)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hupChan:
				a.logger.Info().
					Str("event", "config.reload_signal").
					Str("signal", a.reloadSignal.String()).
					Msg("received reload signal, reloading config")

				if err := a.cfgHolder.Reload(context.Background()); err != nil {
					a.logger.Warn().
						Err(err).
						Str("event", "config.reload_failed").
						Msg("config reload failed")
				}
			}
		}
	})

	// Content watcher rebuilds on markdown changes.
	if cfg.WatchContent {
		watcher := NewContentWatcher(cfg.ContentDir, 500*time.Millisecond, a.rebuild)
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	// Periodic rebuilds pick up changes watchers can miss, like NFS
	// mounts without inotify support.
	if cfg.RebuildInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.RebuildInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					a.rebuild(ctx)
				}
			}
		})
	}

	// Main server lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

// rebuild runs one build, tolerating both in-flight conflicts and lint
// failures: the daemon keeps serving the previous build either way.
func (a *App) rebuild(ctx context.Context) {
	if _, err := a.apiServer.RunBuild(ctx); err != nil {
		a.logger.Warn().
			Err(err).
			Str("event", "build.auto_failed").
			Msg("automatic rebuild failed")
	}
}
