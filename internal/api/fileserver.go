// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/md2site/md2site/internal/log"
	"github.com/md2site/md2site/internal/metrics"
)

// secureFileServer serves generated artifacts from the output
// directory with checks against path traversal, symlink escapes and
// directory listing.
func (s *Server) secureFileServer() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.WithComponentFromContext(r.Context(), "api")

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			logger.Warn().Str("event", "file_req.denied").Str("path", r.URL.Path).Str("reason", "method_not_allowed").Msg("method not allowed")
			metrics.RecordFileRequestDenied("method_not_allowed")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		path := r.URL.Path
		if isPathTraversal(path) {
			logger.Warn().Str("event", "file_req.denied").Str("path", r.URL.Path).Str("reason", "path_escape").Msg("detected traversal sequence")
			metrics.RecordFileRequestDenied("path_escape")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if strings.HasSuffix(path, "/") || path == "" {
			logger.Warn().Str("event", "file_req.denied").Str("path", r.URL.Path).Str("reason", "directory_listing").Msg("directory listing forbidden")
			metrics.RecordFileRequestDenied("directory_listing")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		absOutDir, err := filepath.Abs(s.holder.Get().OutputDir)
		if err != nil {
			logger.Error().Err(err).Str("event", "file_req.internal_error").Msg("could not get absolute output dir")
			metrics.RecordFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		fullPath := filepath.Join(absOutDir, path)

		realPath, err := filepath.EvalSymlinks(fullPath)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Info().Str("event", "file_req.not_found").Str("path", fullPath).Msg("file not found")
				metrics.RecordFileRequestDenied("not_found")
				http.Error(w, "Not found", http.StatusNotFound)
				return
			}
			logger.Error().Err(err).Str("event", "file_req.internal_error").Str("path", fullPath).Msg("could not evaluate symlinks")
			metrics.RecordFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		realOutDir, err := filepath.EvalSymlinks(absOutDir)
		if err != nil {
			logger.Error().Err(err).Str("event", "file_req.internal_error").Msg("could not evaluate symlinks on output dir")
			metrics.RecordFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// Containment check on the resolved path catches symlink
		// escapes that survive the string-level checks above.
		relPath, err := filepath.Rel(realOutDir, realPath)
		if err != nil || strings.HasPrefix(relPath, "..") || filepath.IsAbs(relPath) {
			logger.Warn().
				Str("event", "file_req.denied").
				Str("path", path).
				Str("resolved_path", realPath).
				Str("reason", "path_escape").
				Msg("path escapes output directory")
			metrics.RecordFileRequestDenied("path_escape")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		info, err := os.Stat(realPath)
		if err != nil {
			logger.Error().Err(err).Str("event", "file_req.internal_error").Str("path", realPath).Msg("could not stat real path")
			metrics.RecordFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if info.IsDir() {
			logger.Warn().Str("event", "file_req.denied").Str("path", path).Str("reason", "directory_listing").Msg("resolved path is a directory")
			metrics.RecordFileRequestDenied("directory_listing")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		// #nosec G304 -- realPath is validated to reside inside the output directory
		f, err := os.Open(realPath)
		if err != nil {
			logger.Error().Err(err).Str("event", "file_req.internal_error").Str("path", realPath).Msg("could not open real path for serving")
			metrics.RecordFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.Warn().Err(err).Str("path", realPath).Msg("failed to close file")
			}
		}()

		info, err = f.Stat()
		if err != nil {
			logger.Error().Err(err).Str("event", "file_req.internal_error").Str("path", realPath).Msg("could not stat opened file")
			metrics.RecordFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// Weak ETag from modtime and size; artifacts are replaced
		// atomically so this pair identifies a build's version.
		etag := fmt.Sprintf(`W/"%x-%x"`, info.ModTime().UnixNano(), info.Size())
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "public, max-age=300")

		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		lowerName := strings.ToLower(info.Name())
		switch {
		case strings.HasSuffix(lowerName, ".xml"):
			w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		case strings.HasSuffix(lowerName, ".json"):
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		case strings.HasSuffix(lowerName, ".html"):
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}

		logger.Debug().Str("event", "file_req.allowed").Str("path", path).Msg("serving file")
		metrics.RecordFileRequestAllowed()
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}

// isPathTraversal checks for traversal attempts. The input is decoded
// multiple times to catch double encodings, then Unicode-normalized
// before the dot-dot and NUL checks.
func isPathTraversal(p string) bool {
	decoded := p
	for i := 0; i < 3; i++ {
		prev := decoded
		if d, err := url.PathUnescape(decoded); err == nil {
			decoded = d
		} else if d2, err2 := url.QueryUnescape(decoded); err2 == nil {
			decoded = d2
		}
		if decoded == prev {
			break
		}
	}

	lower := strings.ToLower(decoded)
	dangerSubstrings := []string{
		"..",        // parent traversal
		"..\\",      // windows-style backslash
		"%00",       // encoded NUL
		"%c0%ae",    // overlong UTF-8 for '.'
		"%e0%80%ae", // another overlong variant
	}
	for _, pat := range dangerSubstrings {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	if strings.IndexByte(decoded, 0x00) >= 0 {
		return true
	}

	normalized := strings.ToLower(norm.NFC.String(decoded))
	return strings.Contains(normalized, "..")
}
