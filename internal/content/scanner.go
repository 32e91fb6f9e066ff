// SPDX-License-Identifier: MIT

package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/md2site/md2site/internal/fsutil"
	xglog "github.com/md2site/md2site/internal/log"
)

// Scanner discovers markdown pages below a content root.
type Scanner struct {
	root string
	// skip holds absolute paths never descended into (the output
	// directory, when it nests inside the content root).
	skip map[string]struct{}
}

// NewScanner creates a scanner for the given content root. Additional
// directories in skipDirs are excluded from the walk.
func NewScanner(root string, skipDirs ...string) (*Scanner, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve content root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("content root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content root is not a directory: %s", absRoot)
	}

	skip := make(map[string]struct{}, len(skipDirs))
	for _, d := range skipDirs {
		if d == "" {
			continue
		}
		if abs, err := filepath.Abs(d); err == nil {
			skip[abs] = struct{}{}
		}
	}

	return &Scanner{root: absRoot, skip: skip}, nil
}

// Root returns the absolute content root.
func (s *Scanner) Root() string {
	return s.root
}

// Scan walks the content root and returns all markdown pages in
// deterministic (lexical source path) order. Files that fail front-matter
// parsing are returned with HasFrontMatter unset so the lint stage can
// report them; only I/O level failures abort the scan.
func (s *Scanner) Scan(ctx context.Context) ([]*Page, error) {
	logger := xglog.WithComponentFromContext(ctx, "content")

	var pages []*Page
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if path == s.root {
				return nil
			}
			if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			if _, skipped := s.skip[path]; skipped {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinked files are never followed; the content tree must be
		// self-contained.
		if d.Type()&fs.ModeSymlink != 0 {
			logger.Warn().
				Str("event", "scan.symlink_skipped").
				Str("path", path).
				Msg("skipping symlink in content tree")
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".md" && ext != ".markdown" {
			return nil
		}

		page, err := s.loadPage(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		pages = append(pages, page)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan content: %w", err)
	}

	sort.Slice(pages, func(i, j int) bool {
		return pages[i].SourcePath < pages[j].SourcePath
	})

	logger.Debug().
		Str("event", "scan.complete").
		Int("pages", len(pages)).
		Msg("content scan complete")

	return pages, nil
}

func (s *Scanner) loadPage(path string) (*Page, error) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return nil, err
	}

	// Defense in depth: the walk stays inside the root, but re-verify
	// before opening anything.
	realPath, err := fsutil.ConfineRelPath(s.root, rel)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(realPath)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(realPath) // #nosec G304 -- confined above
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(raw)
	page := &Page{
		SourcePath: filepath.ToSlash(rel),
		Checksum:   hex.EncodeToString(sum[:]),
		ModTime:    info.ModTime(),
	}

	fm, body, bodyLine, found, err := ParseFrontMatter(raw)
	if err != nil {
		// Malformed front-matter is a lint finding, not a scan failure.
		// The body keeps the raw source so the page still renders.
		page.ParseError = err.Error()
		page.Body = string(raw)
		page.BodyLine = 1
		page.Slug = Slugify(strings.TrimSuffix(page.SourcePath, filepath.Ext(page.SourcePath)))
		return page, nil
	}

	page.FrontMatter = fm
	page.HasFrontMatter = found
	page.Body = body
	page.BodyLine = bodyLine

	if normalized := NormalizePath(fm.Path); normalized != "" {
		page.FrontMatter.Path = normalized
		page.Slug = PathSlug(normalized)
	} else {
		// No usable path: fall back to the source location so the page
		// still gets a stable slug. Lint reports the front-matter issue.
		page.Slug = Slugify(strings.ReplaceAll(strings.TrimSuffix(page.SourcePath, filepath.Ext(page.SourcePath)), "/", "-"))
	}

	return page, nil
}
