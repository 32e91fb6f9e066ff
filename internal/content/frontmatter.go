// SPDX-License-Identifier: MIT

package content

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// ErrNoFrontMatter is returned when the file does not start with a
// front-matter block. The caller decides whether that is a lint finding.
var errNoFrontMatter = fmt.Errorf("no front-matter block")

// ParseFrontMatter splits raw page source into front-matter and body.
// Only a leading block delimited by "---" lines is recognized. The YAML is
// parsed strictly: unknown keys are an error, as are multiple documents.
//
// When no block is present the full source is returned as body with
// found=false and a nil error.
func ParseFrontMatter(raw []byte) (fm FrontMatter, body string, bodyLine int, found bool, err error) {
	block, rest, restLine, splitErr := splitFrontMatter(raw)
	if splitErr != nil {
		if splitErr == errNoFrontMatter {
			return FrontMatter{}, string(raw), 1, false, nil
		}
		return FrontMatter{}, string(raw), 1, false, splitErr
	}

	dec := yaml.NewDecoder(bytes.NewReader(block))
	dec.KnownFields(true)
	if err := dec.Decode(&fm); err != nil {
		if err == io.EOF {
			// Empty block between the delimiters.
			return FrontMatter{}, rest, restLine, true, nil
		}
		return FrontMatter{}, rest, restLine, true, fmt.Errorf("parse front-matter: %w", err)
	}
	// Reject trailing documents to keep the block unambiguous.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return FrontMatter{}, rest, restLine, true, fmt.Errorf("front-matter contains multiple documents")
	}

	return fm, rest, restLine, true, nil
}

// splitFrontMatter locates the leading delimited block. It returns the raw
// YAML, the remaining body, and the 1-based line the body starts on.
func splitFrontMatter(raw []byte) (block []byte, body string, bodyLine int, err error) {
	s := string(raw)
	// A BOM before the opening delimiter is tolerated.
	s = strings.TrimPrefix(s, "\ufeff")

	if !strings.HasPrefix(s, delimiter+"\n") && !strings.HasPrefix(s, delimiter+"\r\n") && s != delimiter {
		return nil, "", 0, errNoFrontMatter
	}

	lines := strings.SplitAfter(s, "\n")
	for i := 1; i < len(lines); i++ {
		trimmed := strings.TrimRight(lines[i], "\r\n")
		if trimmed == delimiter {
			block = []byte(strings.Join(lines[1:i], ""))
			body = strings.Join(lines[i+1:], "")
			return block, body, i + 2, nil
		}
	}
	return nil, "", 0, fmt.Errorf("unterminated front-matter block")
}

// NormalizePath canonicalizes a front-matter path: it must be
// site-absolute, and a trailing slash (other than the root itself) is
// stripped. An empty result means the path is invalid.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || !strings.HasPrefix(p, "/") {
		return ""
	}
	if strings.Contains(p, "//") || strings.Contains(p, "..") {
		return ""
	}
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
