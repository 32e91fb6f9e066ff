// SPDX-License-Identifier: MIT

package site

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/md2site/md2site/internal/fsutil"
	xglog "github.com/md2site/md2site/internal/log"
)

// Writer lands build artifacts in the output directory. Every write is
// atomic and durable: content goes to a temp file, is fsynced, and then
// renamed over the destination, so readers never observe a partial file.
type Writer struct {
	outDir string
}

// NewWriter creates a writer for outDir, creating the directory if needed.
func NewWriter(outDir string) (*Writer, error) {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{outDir: abs}, nil
}

// Dir returns the absolute output directory.
func (w *Writer) Dir() string {
	return w.outDir
}

// WriteFile writes one artifact at relPath below the output directory.
// The path is confined first; fill receives the pending file.
func (w *Writer) WriteFile(ctx context.Context, relPath string, fill func(io.Writer) error) error {
	logger := xglog.FromContext(ctx)

	dest, err := fsutil.ConfineRelPath(w.outDir, relPath)
	if err != nil {
		return fmt.Errorf("confine artifact path %q: %w", relPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	pending, err := renameio.NewPendingFile(dest)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		// Cleanup removes the temp file when the write was not committed.
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Str(xglog.FieldPath, dest).Msg("cleanup pending artifact")
		}
	}()

	if err := fill(pending); err != nil {
		return fmt.Errorf("write artifact %s: %w", relPath, err)
	}

	// CloseAtomicallyReplace: fsync + rename.
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", relPath, err)
	}

	logger.Debug().
		Str(xglog.FieldEvent, "artifact.written").
		Str(xglog.FieldPath, relPath).
		Msg("artifact written")

	return nil
}

// WriteJSON writes v as indented JSON at relPath.
func (w *Writer) WriteJSON(ctx context.Context, relPath string, v any) error {
	return w.WriteFile(ctx, relPath, func(out io.Writer) error {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	})
}
