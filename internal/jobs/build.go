// SPDX-License-Identifier: MIT

// Package jobs runs the build pipeline: scan the content tree, render
// every page, lint the corpus, then publish artifacts and the search
// index. Artifacts are written atomically with the manifest last, so a
// failed build never leaves a partially updated site behind.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/md2site/md2site/internal/cache"
	"github.com/md2site/md2site/internal/config"
	"github.com/md2site/md2site/internal/content"
	"github.com/md2site/md2site/internal/index"
	"github.com/md2site/md2site/internal/lint"
	xglog "github.com/md2site/md2site/internal/log"
	"github.com/md2site/md2site/internal/metrics"
	"github.com/md2site/md2site/internal/render"
	"github.com/md2site/md2site/internal/site"
)

// Status is the result of one build.
type Status struct {
	BuildID     string        `json:"build_id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Pages       int           `json:"pages"`
	Errors      int           `json:"errors"`
	Warnings    int           `json:"warnings"`
	CacheHits   int           `json:"cache_hits"`
	CacheMisses int           `json:"cache_misses"`

	Report *lint.Report `json:"-"`
}

// Builder owns the long-lived pieces of the pipeline. The renderer and
// cache survive across builds; configuration is passed per build so a
// reload takes effect on the next run.
type Builder struct {
	renderer *render.Renderer
	cache    cache.Cache
	index    *index.Store
}

// NewBuilder creates a builder. idx may be nil when search is disabled.
func NewBuilder(c cache.Cache, idx *index.Store) *Builder {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return &Builder{
		renderer: render.New(),
		cache:    c,
		index:    idx,
	}
}

// Build runs the complete pipeline. On lint failure (or any error) no
// artifact is touched and the previous build stays published.
func (b *Builder) Build(ctx context.Context, cfg config.Config) (*Status, error) {
	buildID := uuid.NewString()
	ctx = xglog.ContextWithBuildID(ctx, buildID)
	logger := xglog.WithComponentFromContext(ctx, "jobs")

	status := &Status{
		BuildID:   buildID,
		StartedAt: time.Now().UTC(),
	}
	fail := func(err error) (*Status, error) {
		status.Duration = time.Since(status.StartedAt)
		metrics.RecordBuild("failed", status.Duration, status.Pages)
		return status, err
	}

	logger.Info().
		Str("event", "build.start").
		Str("content_dir", cfg.ContentDir).
		Msg("starting build")

	// The output dir is skipped in case it nests inside the content tree.
	skipDirs := append([]string{cfg.OutputDir}, cfg.SkipDirs...)
	scanner, err := content.NewScanner(cfg.ContentDir, skipDirs...)
	if err != nil {
		return fail(fmt.Errorf("open content dir: %w", err))
	}
	pages, err := scanner.Scan(ctx)
	if err != nil {
		return fail(fmt.Errorf("scan content: %w", err))
	}
	status.Pages = len(pages)

	docs, err := b.renderAll(ctx, pages, cfg.Cache.TTL, status)
	if err != nil {
		return fail(err)
	}

	linter := lint.New(lint.Config{
		Layouts:       cfg.Layouts,
		KnownFiles:    cfg.KnownFiles,
		CheckExternal: cfg.Lint.CheckExternal,
		External: lint.ExternalConfig{
			Timeout:         cfg.Lint.ExternalTimeout,
			PerHostInterval: cfg.Lint.ExternalInterval,
		},
	})
	report := linter.Lint(ctx, pages, docs)
	status.Report = report
	status.Errors = report.Errors
	status.Warnings = report.Warnings

	if !report.OK() || (cfg.Lint.FailOnWarnings && report.Warnings > 0) {
		logger.Error().
			Str("event", "build.lint_failed").
			Int("errors", report.Errors).
			Int("warnings", report.Warnings).
			Msg("lint failed, keeping previous artifacts")
		return fail(fmt.Errorf("lint failed: %d errors, %d warnings", report.Errors, report.Warnings))
	}

	if err := b.writeArtifacts(ctx, cfg, buildID, pages, docs, report); err != nil {
		return fail(fmt.Errorf("write artifacts: %w", err))
	}

	if b.index != nil {
		if err := b.index.Replace(ctx, buildID, indexDocs(pages, docs)); err != nil {
			return fail(fmt.Errorf("update search index: %w", err))
		}
	}

	status.Duration = time.Since(status.StartedAt)
	metrics.RecordBuild("success", status.Duration, status.Pages)

	logger.Info().
		Str("event", "build.success").
		Int("pages", status.Pages).
		Int("warnings", status.Warnings).
		Int("cache_hits", status.CacheHits).
		Dur("duration", status.Duration).
		Msg("build finished")

	return status, nil
}

// renderAll renders every page, reusing cached renders keyed by the
// page checksum and renderer version.
func (b *Builder) renderAll(ctx context.Context, pages []*content.Page, ttl time.Duration, status *Status) (map[string]*render.Doc, error) {
	docs := make(map[string]*render.Doc, len(pages))

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key := cacheKey(page.Checksum)
		if raw, ok := b.cache.Get(key); ok {
			var doc render.Doc
			if err := json.Unmarshal(raw, &doc); err == nil {
				docs[page.Slug] = &doc
				status.CacheHits++
				metrics.RecordCacheHit()
				continue
			}
			// Corrupt entry, drop it and re-render.
			b.cache.Delete(key)
		}

		doc, err := b.renderer.Render(page)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", page.SourcePath, err)
		}
		docs[page.Slug] = doc
		status.CacheMisses++
		metrics.RecordCacheMiss()

		if raw, err := json.Marshal(doc); err == nil {
			b.cache.Set(key, raw, ttl)
		}
	}

	return docs, nil
}

// writeArtifacts publishes page documents, the sitemap, the lint
// report and finally the manifest. Every file lands atomically and the
// manifest goes last, making it the commit point of the build.
func (b *Builder) writeArtifacts(ctx context.Context, cfg config.Config, buildID string, pages []*content.Page, docs map[string]*render.Doc, report *lint.Report) error {
	writer, err := site.NewWriter(cfg.OutputDir)
	if err != nil {
		return err
	}

	for _, page := range pages {
		doc := docs[page.Slug]
		if doc == nil {
			return fmt.Errorf("no rendered doc for %s", page.SourcePath)
		}
		if err := writer.WriteJSON(ctx, "pages/"+page.Slug+".json", site.NewPageDoc(page, doc)); err != nil {
			return err
		}
	}

	manifest := site.BuildManifest(buildID, cfg.Version, pages)

	if cfg.BaseURL != "" {
		err := writer.WriteFile(ctx, "sitemap.xml", func(w io.Writer) error {
			return site.WriteSitemap(w, cfg.BaseURL, manifest)
		})
		if err != nil {
			return err
		}
	}

	if err := writer.WriteJSON(ctx, "lint.json", report); err != nil {
		return err
	}

	return writer.WriteJSON(ctx, "manifest.json", manifest)
}

// indexDocs converts the rendered corpus into search documents. Drafts
// are not indexed.
func indexDocs(pages []*content.Page, docs map[string]*render.Doc) []index.Document {
	out := make([]index.Document, 0, len(pages))
	for _, page := range pages {
		if page.IsDraft() {
			continue
		}
		out = append(out, index.Document{
			Slug:      page.Slug,
			Path:      page.FrontMatter.Path,
			Title:     page.FrontMatter.Title,
			Layout:    page.FrontMatter.Layout,
			Tags:      page.FrontMatter.Tags,
			Body:      page.Body,
			WordCount: page.WordCount(),
			Checksum:  page.Checksum,
			ModTime:   page.ModTime,
		})
	}
	return out
}

func cacheKey(checksum string) string {
	return "render:" + render.Version + ":" + checksum
}
