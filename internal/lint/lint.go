// SPDX-License-Identifier: MIT

// Package lint validates a documentation corpus: front-matter schema,
// markdown structure, and link integrity.
package lint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md2site/md2site/internal/content"
	xglog "github.com/md2site/md2site/internal/log"
	"github.com/md2site/md2site/internal/metrics"
	"github.com/md2site/md2site/internal/render"
)

// Rule identifiers. Stable: they appear in reports, metrics, and CI logs.
const (
	RuleFrontMatterMissing   = "frontmatter/missing"
	RuleFrontMatterInvalid   = "frontmatter/invalid"
	RuleFrontMatterTitle     = "frontmatter/title"
	RuleFrontMatterPath      = "frontmatter/path"
	RuleFrontMatterLayout    = "frontmatter/layout"
	RuleFrontMatterDuplicate = "frontmatter/duplicate-path"
	RuleFrontMatterDupSlug   = "frontmatter/duplicate-slug"
	RuleMarkdownFence        = "markdown/unclosed-fence"
	RuleMarkdownEmpty        = "markdown/empty"
	RuleLinkInternal         = "link/internal"
	RuleLinkAnchor           = "link/anchor"
	RuleLinkExternal         = "link/external"
)

// Config controls which checks run.
type Config struct {
	// Layouts is the set of layout names pages may declare. Empty means
	// any layout is accepted.
	Layouts []string

	// KnownFiles lists site-absolute non-page targets that internal links
	// may point at (generated artifacts, static assets).
	KnownFiles []string

	// CheckExternal enables HTTP reachability checks for external links.
	CheckExternal bool

	// External configures the reachability checker.
	External ExternalConfig
}

// Linter checks a scanned and rendered corpus.
type Linter struct {
	layouts    map[string]struct{}
	knownFiles map[string]struct{}
	external   *ExternalChecker
}

// New creates a linter. When cfg.CheckExternal is set, an external link
// checker with per-host politeness limits is attached.
func New(cfg Config) *Linter {
	l := &Linter{
		layouts:    make(map[string]struct{}, len(cfg.Layouts)),
		knownFiles: make(map[string]struct{}, len(cfg.KnownFiles)),
	}
	for _, layout := range cfg.Layouts {
		l.layouts[layout] = struct{}{}
	}
	for _, f := range cfg.KnownFiles {
		l.knownFiles[f] = struct{}{}
	}
	if cfg.CheckExternal {
		l.external = NewExternalChecker(cfg.External)
	}
	return l
}

// Lint checks every page. docs maps page slug to its rendered form and
// must contain an entry per page.
func (l *Linter) Lint(ctx context.Context, pages []*content.Page, docs map[string]*render.Doc) *Report {
	logger := xglog.WithComponentFromContext(ctx, "lint")
	report := &Report{GeneratedAt: time.Now(), Pages: len(pages)}

	corpus := buildCorpus(pages, docs)

	for _, page := range pages {
		l.lintFrontMatter(page, corpus, report)
		l.lintMarkdown(page, report)
		l.lintLinks(ctx, page, docs[page.Slug], corpus, report)
	}

	report.finish()

	metrics.ResetLintFindings()
	for rule, n := range report.ByRule {
		metrics.RecordLintFindings(rule, n)
	}

	logger.Info().
		Str("event", "lint.complete").
		Int("pages", report.Pages).
		Int("errors", report.Errors).
		Int("warnings", report.Warnings).
		Msg("lint complete")

	return report
}

func (l *Linter) lintFrontMatter(page *content.Page, corpus *corpus, report *Report) {
	if page.ParseError != "" {
		report.add(Finding{
			Rule:     RuleFrontMatterInvalid,
			Severity: SeverityError,
			Page:     page.SourcePath,
			Line:     1,
			Message:  page.ParseError,
		})
		return
	}
	if !page.HasFrontMatter {
		report.add(Finding{
			Rule:     RuleFrontMatterMissing,
			Severity: SeverityError,
			Page:     page.SourcePath,
			Line:     1,
			Message:  "page has no front-matter block",
		})
		return
	}

	fm := page.FrontMatter

	if strings.TrimSpace(fm.Title) == "" {
		report.add(Finding{
			Rule:     RuleFrontMatterTitle,
			Severity: SeverityError,
			Page:     page.SourcePath,
			Line:     1,
			Message:  "title is empty",
		})
	}

	if content.NormalizePath(fm.Path) == "" {
		report.add(Finding{
			Rule:     RuleFrontMatterPath,
			Severity: SeverityError,
			Page:     page.SourcePath,
			Line:     1,
			Message:  fmt.Sprintf("path %q is missing or not site-absolute", fm.Path),
		})
	} else if other := corpus.duplicateOf(page); other != "" {
		report.add(Finding{
			Rule:     RuleFrontMatterDuplicate,
			Severity: SeverityError,
			Page:     page.SourcePath,
			Line:     1,
			Message:  fmt.Sprintf("path %q is also declared by %s", fm.Path, other),
		})
	} else if other := corpus.duplicateSlugOf(page); other != "" {
		report.add(Finding{
			Rule:     RuleFrontMatterDupSlug,
			Severity: SeverityError,
			Page:     page.SourcePath,
			Line:     1,
			Message: fmt.Sprintf("path %q produces artifact slug %q, which %s already uses",
				fm.Path, page.Slug, other),
		})
	}

	if len(l.layouts) > 0 {
		if _, ok := l.layouts[fm.Layout]; !ok {
			report.add(Finding{
				Rule:     RuleFrontMatterLayout,
				Severity: SeverityError,
				Page:     page.SourcePath,
				Line:     1,
				Message:  fmt.Sprintf("unknown layout %q", fm.Layout),
			})
		}
	}
}

func (l *Linter) lintMarkdown(page *content.Page, report *Report) {
	if strings.TrimSpace(page.Body) == "" {
		report.add(Finding{
			Rule:     RuleMarkdownEmpty,
			Severity: SeverityWarning,
			Page:     page.SourcePath,
			Line:     page.BodyLine,
			Message:  "page body is empty",
		})
		return
	}

	if line, open := unclosedFence(page.Body); open {
		report.add(Finding{
			Rule:     RuleMarkdownFence,
			Severity: SeverityError,
			Page:     page.SourcePath,
			Line:     line + page.BodyLine - 1,
			Message:  "fenced code block is never closed",
		})
	}
}

// unclosedFence scans for fence delimiters and reports the body line of
// the last fence left open, if any. Indented fences (up to three spaces)
// count; fences inside a block opened with a longer delimiter do not
// terminate it, matching CommonMark.
func unclosedFence(body string) (line int, open bool) {
	type fence struct {
		marker byte
		length int
		line   int
	}
	var current *fence

	for i, raw := range strings.Split(body, "\n") {
		trimmed := strings.TrimLeft(raw, " ")
		if len(raw)-len(trimmed) > 3 {
			continue
		}
		var marker byte
		if strings.HasPrefix(trimmed, "```") {
			marker = '`'
		} else if strings.HasPrefix(trimmed, "~~~") {
			marker = '~'
		} else {
			continue
		}
		length := 0
		for length < len(trimmed) && trimmed[length] == marker {
			length++
		}

		if current == nil {
			current = &fence{marker: marker, length: length, line: i + 1}
			continue
		}
		// A closing fence must use the same marker, be at least as long,
		// and carry no info string.
		if marker == current.marker && length >= current.length && strings.TrimSpace(trimmed[length:]) == "" {
			current = nil
		}
	}

	if current != nil {
		return current.line, true
	}
	return 0, false
}
