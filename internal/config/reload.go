// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/md2site/md2site/internal/log"
)

// Holder provides thread-safe access to the current configuration and
// supports hot reloading from file, SIGHUP or the API.
type Holder struct {
	mu         sync.RWMutex
	current    Config
	loader     *Loader
	configPath string
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger

	reloadMu        sync.RWMutex
	reloadListeners []chan<- Config
}

// NewHolder creates a holder with an initial, already validated
// configuration.
func NewHolder(initial Config, loader *Loader, configPath string) *Holder {
	return &Holder{
		current:    initial,
		loader:     loader,
		configPath: configPath,
		logger:     log.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload loads and validates a fresh configuration. On any failure the
// old configuration stays installed, so a broken edit never takes the
// daemon down.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("event", "config.reload_failed").
			Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.current
	h.current = newCfg
	h.mu.Unlock()

	h.notifyListeners(newCfg)
	h.logChanges(oldCfg, newCfg)

	h.logger.Info().
		Str("event", "config.reload_success").
		Msg("configuration reloaded successfully")

	return nil
}

// StartWatcher watches the config file and reloads on changes. With no
// config file this is a no-op.
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().
			Str("event", "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	if err := watcher.Add(h.configPath); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config file: %w", err)
	}

	h.logger.Info().
		Str("event", "config.watcher_started").
		Str("path", h.configPath).
		Msg("watching config file for changes")

	go h.watchLoop(ctx)

	return nil
}

func (h *Holder) watchLoop(ctx context.Context) {
	// Editors fire several events per save, debounce them.
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			if h.watcher != nil {
				_ = h.watcher.Close()
			}
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			// Atomic saves replace the file, which drops the watch.
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if err := h.watcher.Add(h.configPath); err != nil {
					h.logger.Warn().
						Err(err).
						Str("event", "config.rewatch_failed").
						Msg("could not re-watch config file after replace")
				}
			}

			// Write and Create cover vim, nano and plain redirects.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Rename) {
				h.logger.Debug().
					Str("event", "config.file_changed").
					Str("op", event.Op.String()).
					Msg("config file changed")

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := h.Reload(ctx); err != nil {
						h.logger.Error().
							Err(err).
							Str("event", "config.auto_reload_failed").
							Msg("automatic config reload failed")
					}
				})
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str("event", "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop stops the config watcher if running.
func (h *Holder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// RegisterListener registers a channel that receives the new config
// after every successful reload. Sends are non-blocking; a full
// channel is skipped.
func (h *Holder) RegisterListener(ch chan<- Config) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

func (h *Holder) notifyListeners(newCfg Config) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()

	for _, ch := range h.reloadListeners {
		select {
		case ch <- newCfg:
		default:
			h.logger.Warn().
				Str("event", "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

func (h *Holder) logChanges(old, newCfg Config) {
	if old.ContentDir != newCfg.ContentDir {
		h.logger.Info().
			Str("old", old.ContentDir).
			Str("new", newCfg.ContentDir).
			Msg("config changed: ContentDir")
	}
	if old.OutputDir != newCfg.OutputDir {
		h.logger.Info().
			Str("old", old.OutputDir).
			Str("new", newCfg.OutputDir).
			Msg("config changed: OutputDir")
	}
	if old.BaseURL != newCfg.BaseURL {
		h.logger.Info().
			Str("old", old.BaseURL).
			Str("new", newCfg.BaseURL).
			Msg("config changed: BaseURL")
	}
	if old.Cache.Backend != newCfg.Cache.Backend {
		h.logger.Info().
			Str("old", old.Cache.Backend).
			Str("new", newCfg.Cache.Backend).
			Msg("config changed: Cache.Backend")
	}
	if old.Lint.CheckExternal != newCfg.Lint.CheckExternal {
		h.logger.Info().
			Bool("old", old.Lint.CheckExternal).
			Bool("new", newCfg.Lint.CheckExternal).
			Msg("config changed: Lint.CheckExternal")
	}
}
