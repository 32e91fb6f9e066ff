// SPDX-License-Identifier: MIT

// Package site assembles and writes the build artifacts: the manifest,
// per-page documents, the sitemap, and the lint report.
package site

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/md2site/md2site/internal/content"
	"github.com/md2site/md2site/internal/render"
)

// ManifestEntry is one page as listed in the manifest.
type ManifestEntry struct {
	Slug       string    `json:"slug"`
	Path       string    `json:"path"`
	Title      string    `json:"title"`
	Layout     string    `json:"layout"`
	Tags       []string  `json:"tags,omitempty"`
	Draft      bool      `json:"draft,omitempty"`
	Weight     int       `json:"weight,omitempty"`
	SourcePath string    `json:"source_path"`
	Checksum   string    `json:"checksum"`
	ModTime    time.Time `json:"mod_time"`
}

// Manifest describes one complete build. It is written last, so its
// presence with a given build ID means every other artifact of that
// build landed.
type Manifest struct {
	BuildID         string          `json:"build_id"`
	GeneratedAt     time.Time       `json:"generated_at"`
	Version         string          `json:"version"`
	ContentChecksum string          `json:"content_checksum"`
	PageCount       int             `json:"page_count"`
	Pages           []ManifestEntry `json:"pages"`
}

// PageDoc is the rendered per-page artifact served by the API.
type PageDoc struct {
	Slug               string              `json:"slug"`
	FrontMatter        content.FrontMatter `json:"front_matter"`
	SourcePath         string              `json:"source_path"`
	Checksum           string              `json:"checksum"`
	ModTime            time.Time           `json:"mod_time"`
	WordCount          int                 `json:"word_count"`
	ReadingTimeMinutes int                 `json:"reading_time_minutes"`
	HTML               string              `json:"html"`
	Headings           []render.Heading    `json:"headings,omitempty"`
	CodeBlocks         []render.CodeBlock  `json:"code_blocks,omitempty"`
}

// NewPageDoc combines a scanned page with its render.
func NewPageDoc(page *content.Page, doc *render.Doc) *PageDoc {
	return &PageDoc{
		Slug:               page.Slug,
		FrontMatter:        page.FrontMatter,
		SourcePath:         page.SourcePath,
		Checksum:           page.Checksum,
		ModTime:            page.ModTime,
		WordCount:          page.WordCount(),
		ReadingTimeMinutes: int(page.ReadingTime().Minutes()),
		HTML:               doc.HTML,
		Headings:           doc.Headings,
		CodeBlocks:         doc.CodeBlocks,
	}
}

// BuildManifest creates the manifest for a set of pages. Pages are
// ordered by weight, then site path, giving clients a stable navigation
// order.
func BuildManifest(buildID, version string, pages []*content.Page) *Manifest {
	entries := make([]ManifestEntry, 0, len(pages))
	for _, p := range pages {
		entries = append(entries, ManifestEntry{
			Slug:       p.Slug,
			Path:       p.FrontMatter.Path,
			Title:      p.FrontMatter.Title,
			Layout:     p.FrontMatter.Layout,
			Tags:       p.FrontMatter.Tags,
			Draft:      p.FrontMatter.Draft,
			Weight:     p.FrontMatter.Weight,
			SourcePath: p.SourcePath,
			Checksum:   p.Checksum,
			ModTime:    p.ModTime,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Weight != entries[j].Weight {
			return entries[i].Weight < entries[j].Weight
		}
		return entries[i].Path < entries[j].Path
	})

	return &Manifest{
		BuildID:         buildID,
		GeneratedAt:     time.Now().UTC(),
		Version:         version,
		ContentChecksum: contentChecksum(pages),
		PageCount:       len(entries),
		Pages:           entries,
	}
}

// contentChecksum hashes the per-page checksums in source order, giving a
// cheap fingerprint for "did anything change" comparisons.
func contentChecksum(pages []*content.Page) string {
	h := sha256.New()
	for _, p := range pages {
		h.Write([]byte(p.SourcePath))
		h.Write([]byte{0})
		h.Write([]byte(p.Checksum))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PageByPath returns the manifest entry for a normalized site path.
func (m *Manifest) PageByPath(path string) (ManifestEntry, bool) {
	for _, e := range m.Pages {
		if e.Path == path {
			return e, true
		}
	}
	return ManifestEntry{}, false
}
