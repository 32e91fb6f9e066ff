// SPDX-License-Identifier: MIT

// Package content models documentation pages and discovers them on disk.
package content

import (
	"time"
)

// FrontMatter holds the YAML metadata block at the head of a page.
type FrontMatter struct {
	Layout string   `yaml:"layout" json:"layout"`
	Path   string   `yaml:"path" json:"path"`
	Title  string   `yaml:"title" json:"title"`
	Tags   []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Draft  bool     `yaml:"draft,omitempty" json:"draft,omitempty"`
	Weight int      `yaml:"weight,omitempty" json:"weight,omitempty"`
}

// Page is one markdown source file with its parsed front-matter.
type Page struct {
	// Slug is the stable identifier derived from the front-matter path.
	// It names the per-page artifact and the search index row.
	Slug string

	FrontMatter FrontMatter

	// HasFrontMatter is false when the file carries no leading YAML block.
	// Such pages are still scanned; the lint stage reports them.
	HasFrontMatter bool

	// ParseError records a malformed front-matter block. The scan keeps
	// going so one broken page cannot hide findings on the rest.
	ParseError string

	// Body is the markdown source with the front-matter block stripped.
	Body string

	// BodyLine is the 1-based line in the source file where Body starts.
	// Lint findings add it so reported lines match the file on disk.
	BodyLine int

	// SourcePath is the file path relative to the content root.
	SourcePath string

	// Checksum is the hex sha256 of the raw file contents. Renders are
	// cached by checksum, so unchanged pages skip the renderer entirely.
	Checksum string

	ModTime time.Time
}

// IsDraft reports whether the page is excluded from sitemap and search.
func (p *Page) IsDraft() bool {
	return p.FrontMatter.Draft
}

// WordCount counts whitespace-separated tokens in the body.
func (p *Page) WordCount() int {
	count := 0
	inWord := false
	for _, r := range p.Body {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				count++
			}
			inWord = true
		}
	}
	return count
}

// ReadingTime estimates reading duration at 200 words per minute,
// rounded up to a full minute.
func (p *Page) ReadingTime() time.Duration {
	words := p.WordCount()
	minutes := (words + 199) / 200
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}
