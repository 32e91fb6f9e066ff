// SPDX-License-Identifier: MIT

package content

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFrontMatter(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantFM    FrontMatter
		wantBody  string
		wantLine  int
		wantFound bool
		wantErr   bool
	}{
		{
			name: "full block",
			raw:  "---\nlayout: page\npath: /production/\ntitle: Production Considerations\n---\n# Heading\n",
			wantFM: FrontMatter{
				Layout: "page",
				Path:   "/production/",
				Title:  "Production Considerations",
			},
			wantBody:  "# Heading\n",
			wantLine:  6,
			wantFound: true,
		},
		{
			name: "tags and draft",
			raw:  "---\nlayout: page\npath: /plugins/\ntitle: Plugins\ntags: [community, plugins]\ndraft: true\n---\nbody\n",
			wantFM: FrontMatter{
				Layout: "page",
				Path:   "/plugins/",
				Title:  "Plugins",
				Tags:   []string{"community", "plugins"},
				Draft:  true,
			},
			wantBody:  "body\n",
			wantLine:  8,
			wantFound: true,
		},
		{
			name:      "no front matter",
			raw:       "# Just markdown\n",
			wantBody:  "# Just markdown\n",
			wantLine:  1,
			wantFound: false,
		},
		{
			name:      "empty block",
			raw:       "---\n---\nbody\n",
			wantBody:  "body\n",
			wantLine:  3,
			wantFound: true,
		},
		{
			name:    "unterminated block",
			raw:     "---\ntitle: Oops\n",
			wantErr: true,
		},
		{
			name:    "unknown key rejected",
			raw:     "---\ntitle: T\npath: /t\nlayout: page\nbanana: yes\n---\nbody\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body, line, found, err := ParseFrontMatter([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFrontMatter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.wantFM, fm); diff != "" {
				t.Errorf("front-matter mismatch (-want +got):\n%s", diff)
			}
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
			if line != tt.wantLine {
				t.Errorf("bodyLine = %d, want %d", line, tt.wantLine)
			}
			if found != tt.wantFound {
				t.Errorf("found = %v, want %v", found, tt.wantFound)
			}
		})
	}
}

func TestParseFrontMatterMultipleDocumentsBody(t *testing.T) {
	// A thematic break later in the body must not terminate parsing early.
	raw := "---\ntitle: T\npath: /t\nlayout: page\n---\nintro\n\n---\n\noutro\n"
	fm, body, _, found, err := ParseFrontMatter([]byte(raw))
	if err != nil {
		t.Fatalf("ParseFrontMatter() error = %v", err)
	}
	if !found {
		t.Fatal("found = false, want true")
	}
	if fm.Title != "T" {
		t.Errorf("title = %q, want %q", fm.Title, "T")
	}
	if body != "intro\n\n---\n\noutro\n" {
		t.Errorf("body = %q", body)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/production/", "/production"},
		{"/", "/"},
		{"/a/b/c", "/a/b/c"},
		{"  /spaced/  ", "/spaced"},
		{"relative", ""},
		{"", ""},
		{"/double//slash", ""},
		{"/dotdot/../escape", ""},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
