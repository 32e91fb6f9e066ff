// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/md2site/md2site/internal/log"
)

// ContentWatcher rebuilds the site when markdown sources change. All
// directories under the content root are watched recursively; events
// are debounced because editors save in bursts.
type ContentWatcher struct {
	root     string
	debounce time.Duration
	trigger  func(ctx context.Context)
	logger   zerolog.Logger
}

// NewContentWatcher creates a watcher. trigger is invoked after the
// debounce window closes.
func NewContentWatcher(root string, debounce time.Duration, trigger func(ctx context.Context)) *ContentWatcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &ContentWatcher{
		root:     root,
		debounce: debounce,
		trigger:  trigger,
		logger:   log.WithComponent("watcher"),
	}
}

// Run watches until ctx is cancelled.
func (w *ContentWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create content watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := w.addRecursive(watcher, w.root); err != nil {
		return fmt.Errorf("watch content tree: %w", err)
	}

	w.logger.Info().
		Str("event", "watcher.started").
		Str("path", w.root).
		Msg("watching content tree for changes")

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str("event", "watcher.stopped").Msg("content watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// New directories must be added before their files fire.
			if event.Has(fsnotify.Create) {
				if err := w.addRecursive(watcher, event.Name); err == nil {
					w.logger.Debug().
						Str("event", "watcher.dir_added").
						Str("path", event.Name).
						Msg("watching new directory")
				}
			}

			if !relevant(event) {
				continue
			}

			w.logger.Debug().
				Str("event", "watcher.file_changed").
				Str("path", event.Name).
				Str("op", event.Op.String()).
				Msg("content change detected")

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				w.trigger(ctx)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().
				Err(err).
				Str("event", "watcher.error").
				Msg("content watcher error")
		}
	}
}

// addRecursive registers dir and every subdirectory. Hidden and
// underscore-prefixed directories are skipped, matching the scanner.
func (w *ContentWatcher) addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// relevant filters events down to markdown writes, creates, removes
// and renames.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	return ext == ".md" || ext == ".markdown"
}
