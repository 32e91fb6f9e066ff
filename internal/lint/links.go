// SPDX-License-Identifier: MIT

package lint

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/md2site/md2site/internal/content"
	"github.com/md2site/md2site/internal/render"
)

// corpus is the resolved link universe for one build: every declared page
// path, which page declared it first, and each page's heading anchors.
type corpus struct {
	// pathOwner maps a normalized site path to the source path of the
	// first page that declared it.
	pathOwner map[string]string
	// slugOwner maps a derived artifact slug to the source path of the
	// first page that produced it. Distinct paths can collide on slug
	// ("/a/b" and "/a-b"), which would make their artifacts overwrite
	// each other, so collisions fail the build.
	slugOwner map[string]string
	// anchors maps a normalized site path to the anchor set of its page.
	anchors map[string]map[string]struct{}
}

func buildCorpus(pages []*content.Page, docs map[string]*render.Doc) *corpus {
	c := &corpus{
		pathOwner: make(map[string]string, len(pages)),
		slugOwner: make(map[string]string, len(pages)),
		anchors:   make(map[string]map[string]struct{}, len(pages)),
	}
	for _, page := range pages {
		p := content.NormalizePath(page.FrontMatter.Path)
		if p == "" {
			continue
		}
		if _, taken := c.pathOwner[p]; !taken {
			c.pathOwner[p] = page.SourcePath
		}
		if _, taken := c.slugOwner[page.Slug]; !taken {
			c.slugOwner[page.Slug] = page.SourcePath
		}
		doc := docs[page.Slug]
		if doc == nil {
			continue
		}
		set := make(map[string]struct{}, len(doc.Headings))
		for _, h := range doc.Headings {
			set[h.Anchor] = struct{}{}
		}
		c.anchors[p] = set
	}
	return c
}

// duplicateOf returns the source path of the page that already owns this
// page's site path, or "" when the page is the owner itself.
func (c *corpus) duplicateOf(page *content.Page) string {
	p := content.NormalizePath(page.FrontMatter.Path)
	if p == "" {
		return ""
	}
	owner := c.pathOwner[p]
	if owner == page.SourcePath {
		return ""
	}
	return owner
}

// duplicateSlugOf returns the source path of the page that already owns
// this page's artifact slug, or "" when the page is the owner itself.
func (c *corpus) duplicateSlugOf(page *content.Page) string {
	owner := c.slugOwner[page.Slug]
	if owner == "" || owner == page.SourcePath {
		return ""
	}
	return owner
}

func (c *corpus) hasPath(p string) bool {
	_, ok := c.pathOwner[p]
	return ok
}

func (c *corpus) hasAnchor(p, anchor string) bool {
	set, ok := c.anchors[p]
	if !ok {
		return false
	}
	_, ok = set[anchor]
	return ok
}

func (l *Linter) lintLinks(ctx context.Context, page *content.Page, doc *render.Doc, corpus *corpus, report *Report) {
	if doc == nil {
		return
	}

	pagePath := content.NormalizePath(page.FrontMatter.Path)
	ownAnchors := make(map[string]struct{}, len(doc.Headings))
	for _, h := range doc.Headings {
		ownAnchors[h.Anchor] = struct{}{}
	}

	for _, link := range doc.Links {
		dest := strings.TrimSpace(link.Destination)
		if dest == "" {
			continue
		}

		switch {
		case strings.HasPrefix(dest, "#"):
			anchor := strings.TrimPrefix(dest, "#")
			if _, ok := ownAnchors[anchor]; !ok {
				report.add(Finding{
					Rule:     RuleLinkAnchor,
					Severity: SeverityError,
					Page:     page.SourcePath,
					Line:     link.Line,
					Message:  fmt.Sprintf("no heading with anchor %q on this page", anchor),
				})
			}

		case isExternal(dest):
			if l.external == nil {
				continue
			}
			if err := l.external.Check(ctx, dest); err != nil {
				report.add(Finding{
					Rule:     RuleLinkExternal,
					Severity: SeverityWarning,
					Page:     page.SourcePath,
					Line:     link.Line,
					Message:  fmt.Sprintf("external link %s unreachable: %v", dest, err),
				})
			}

		case hasScheme(dest):
			// mailto:, tel:, ftp: and friends are out of scope.

		default:
			l.checkInternal(page, pagePath, dest, link, corpus, report)
		}
	}
}

func (l *Linter) checkInternal(page *content.Page, pagePath, dest string, link render.Link, corpus *corpus, report *Report) {
	target, fragment := splitFragment(dest)

	// Resolve relative targets against the linking page's site path.
	if !strings.HasPrefix(target, "/") {
		base := pagePath
		if base == "" {
			// The page itself has no valid site path; internal links
			// cannot be resolved from here and the front-matter finding
			// already covers the cause.
			return
		}
		target = path.Join(base, target)
	}
	normalized := content.NormalizePath(target)
	if normalized == "" {
		report.add(Finding{
			Rule:     RuleLinkInternal,
			Severity: SeverityError,
			Page:     page.SourcePath,
			Line:     link.Line,
			Message:  fmt.Sprintf("link target %q does not normalize to a site path", dest),
		})
		return
	}

	if _, ok := l.knownFiles[normalized]; ok {
		return
	}

	if !corpus.hasPath(normalized) {
		report.add(Finding{
			Rule:     RuleLinkInternal,
			Severity: SeverityError,
			Page:     page.SourcePath,
			Line:     link.Line,
			Message:  fmt.Sprintf("link target %q is not a known page", dest),
		})
		return
	}

	if fragment != "" && !corpus.hasAnchor(normalized, fragment) {
		report.add(Finding{
			Rule:     RuleLinkAnchor,
			Severity: SeverityError,
			Page:     page.SourcePath,
			Line:     link.Line,
			Message:  fmt.Sprintf("page %q has no heading with anchor %q", normalized, fragment),
		})
	}
}

func splitFragment(dest string) (target, fragment string) {
	if i := strings.IndexByte(dest, '#'); i >= 0 {
		return dest[:i], dest[i+1:]
	}
	return dest, ""
}

func isExternal(dest string) bool {
	return strings.HasPrefix(dest, "http://") || strings.HasPrefix(dest, "https://")
}

func hasScheme(dest string) bool {
	u, err := url.Parse(dest)
	return err == nil && u.Scheme != ""
}
