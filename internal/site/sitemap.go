// SPDX-License-Identifier: MIT

package site

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// sitemap XML types follow the sitemaps.org 0.9 schema.
type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

const sitemapXmlns = "http://www.sitemaps.org/schemas/sitemap/0.9"

// WriteSitemap writes the sitemap for a manifest. Draft pages are
// excluded. baseURL must be an absolute http(s) URL; page paths are
// joined onto it.
func WriteSitemap(w io.Writer, baseURL string, m *Manifest) error {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return fmt.Errorf("base URL must be http(s): %s", baseURL)
	}

	set := urlSet{Xmlns: sitemapXmlns}
	for _, e := range m.Pages {
		if e.Draft {
			continue
		}
		loc := *base
		loc.Path = strings.TrimRight(loc.Path, "/") + e.Path
		set.URLs = append(set.URLs, sitemapURL{
			Loc:     loc.String(),
			LastMod: e.ModTime.UTC().Format(time.RFC3339),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return fmt.Errorf("encode sitemap: %w", err)
	}
	// Encoder does not emit a trailing newline.
	_, err = io.WriteString(w, "\n")
	return err
}
