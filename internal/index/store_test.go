// SPDX-License-Identifier: MIT

package index

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "index.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testDocs() []Document {
	now := time.Now().UTC()
	return []Document{
		{
			Slug:      "performance",
			Path:      "/performance",
			Title:     "Performance Tuning",
			Layout:    "page",
			Body:      "Connection pooling keeps query latency low under load.",
			WordCount: 8,
			ModTime:   now,
		},
		{
			Slug:      "security",
			Path:      "/security",
			Title:     "Security",
			Layout:    "page",
			Body:      "Restrict access with row level policies and roles.",
			WordCount: 8,
			ModTime:   now,
		},
	}
}

func TestReplaceAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, "build-1", testDocs()))

	results, err := s.Search(ctx, "pooling", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	if results[0].Path != "/performance" {
		t.Errorf("Path = %s, want /performance", results[0].Path)
	}
	if !strings.Contains(results[0].Snippet, "<b>") {
		t.Errorf("Snippet missing highlight: %q", results[0].Snippet)
	}
}

func TestSearchTitleOutranksBody(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docs := testDocs()
	docs[0].Body = "Mentions security once in passing."
	require.NoError(t, s.Replace(ctx, "build-1", docs))

	results, err := s.Search(ctx, "security", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	if results[0].Path != "/security" {
		t.Errorf("top hit = %s, want /security (title match)", results[0].Path)
	}
}

func TestSearchPrefixOnLastToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, "build-1", testDocs()))

	results, err := s.Search(ctx, "perf", 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "prefix match on last token")
}

func TestReplaceSwapsCatalog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, "build-1", testDocs()))
	require.NoError(t, s.Replace(ctx, "build-2", testDocs()[:1]))

	n, err := s.PageCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n, "page count after swap")

	id, err := s.BuildID(ctx)
	require.NoError(t, err)
	require.Equal(t, "build-2", id)
}

func TestBuildIDEmptyBeforeFirstBuild(t *testing.T) {
	s := newTestStore(t)

	id, err := s.BuildID(context.Background())
	require.NoError(t, err)
	require.Empty(t, id)
}

func TestSearchEmptyQuery(t *testing.T) {
	s := newTestStore(t)

	results, err := s.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	require.Nil(t, results)
}

func TestFtsQueryQuotesInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"single term", "pooling", `"pooling"*`},
		{"two terms", "row level", `"row" "level"*`},
		{"operator injection", `NEAR(a b)`, `"NEAR(a" "b)"*`},
		{"embedded quote", `fo"o`, `"fo""o"*`},
		{"empty", "  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ftsQuery(tt.raw); got != tt.want {
				t.Errorf("ftsQuery(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestStoreOpensWithWALAndBusyTimeout(t *testing.T) {
	s := newTestStore(t)

	var mode string
	require.NoError(t, s.db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	require.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, s.db.QueryRow(`PRAGMA busy_timeout`).Scan(&timeout))
	require.Equal(t, 5000, timeout)
}

func TestReplacePersistsCatalogColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docs := testDocs()
	docs[0].Tags = []string{"ops", "tuning"}
	docs[0].Checksum = "abc123"
	require.NoError(t, s.Replace(ctx, "build-1", docs))

	var tags, checksum, updatedAt string
	require.NoError(t, s.db.QueryRow(
		`SELECT tags, checksum, updated_at FROM pages WHERE path = '/performance'`,
	).Scan(&tags, &checksum, &updatedAt))
	require.Equal(t, "ops,tuning", tags)
	require.Equal(t, "abc123", checksum)
	require.NotEmpty(t, updatedAt)
}
