// SPDX-License-Identifier: MIT

package content

import (
	"strconv"
	"strings"
	"unicode"

	unorm "golang.org/x/text/unicode/norm"
)

// Slugify converts an arbitrary string into a URL-safe, human-readable
// slug. Example: "Production Considerations" -> "production-considerations".
func Slugify(s string) string {
	if s == "" {
		return "page"
	}

	s = unorm.NFC.String(strings.ToLower(s))

	replacer := strings.NewReplacer(
		"ä", "ae",
		"ö", "oe",
		"ü", "ue",
		"ß", "ss",
		"à", "a",
		"á", "a",
		"â", "a",
		"è", "e",
		"é", "e",
		"ê", "e",
		"ì", "i",
		"í", "i",
		"î", "i",
		"ò", "o",
		"ó", "o",
		"ô", "o",
		"ù", "u",
		"ú", "u",
		"û", "u",
		"ç", "c",
		"ñ", "n",
	)
	s = replacer.Replace(s)

	var result strings.Builder
	lastWasDash := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			lastWasDash = false
		} else if !lastWasDash {
			result.WriteRune('-')
			lastWasDash = true
		}
	}

	slug := strings.Trim(result.String(), "-")

	// Keep artifact filenames readable.
	if len(slug) > 80 {
		slug = strings.TrimRight(slug[:80], "-")
	}
	if slug == "" {
		return "page"
	}
	return slug
}

// PathSlug derives the page slug from a normalized front-matter path.
// "/postgresql/production/" -> "postgresql-production"; the site root
// becomes "index".
func PathSlug(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "index"
	}
	return Slugify(strings.ReplaceAll(trimmed, "/", "-"))
}

// AnchorSet assigns GitHub-style anchors to heading texts within one page.
// Duplicate headings get "-1", "-2", ... suffixes in document order.
type AnchorSet struct {
	seen map[string]int
}

// NewAnchorSet returns an empty anchor allocator.
func NewAnchorSet() *AnchorSet {
	return &AnchorSet{seen: make(map[string]int)}
}

// Anchor returns the unique anchor for the given heading text.
func (a *AnchorSet) Anchor(text string) string {
	base := Slugify(text)
	n, dup := a.seen[base]
	a.seen[base] = n + 1
	if !dup {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}
