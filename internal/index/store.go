// SPDX-License-Identifier: MIT

// Package index persists the searchable page catalog in SQLite. Each
// build replaces the whole catalog inside a single transaction, so
// readers always see either the previous build or the new one.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	_ "modernc.org/sqlite" // pure Go driver, no CGO
)

// Document is one page as stored in the search index.
type Document struct {
	Slug      string
	Path      string
	Title     string
	Layout    string
	Tags      []string
	Body      string
	WordCount int
	Checksum  string
	ModTime   time.Time
}

// Result is a single search hit. Snippet contains the matched body
// excerpt with <b> markers around query terms.
type Result struct {
	Path    string  `json:"path"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Rank    float64 `json:"rank"`
}

// Store provides SQLite persistence for the page index.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore opens the index database and runs migrations. WAL mode and
// busy_timeout keep concurrent search queries from hitting "database
// locked" during a build swap.
func NewStore(dbPath string, logger zerolog.Logger) (*Store, error) {
	// modernc.org/sqlite takes pragmas in the _pragma=name(value) DSN
	// form; they then apply to every connection in the pool.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping index database: %w", err)
	}

	store := &Store{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate index database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		path TEXT PRIMARY KEY,
		slug TEXT NOT NULL,
		title TEXT NOT NULL,
		layout TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '',
		word_count INTEGER NOT NULL DEFAULT 0,
		checksum TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS pages_fts USING fts5(
		path UNINDEXED,
		title,
		body,
		tokenize = 'porter unicode61'
	);

	CREATE TABLE IF NOT EXISTS index_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Replace swaps the entire catalog for the given build in one
// transaction. On error nothing is committed and the previous catalog
// stays intact.
func (s *Store) Replace(ctx context.Context, buildID string, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{`DELETE FROM pages`, `DELETE FROM pages_fts`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear index: %w", err)
		}
	}

	pageStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (path, slug, title, layout, tags, word_count, checksum, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare page insert: %w", err)
	}
	defer func() { _ = pageStmt.Close() }()

	ftsStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages_fts (path, title, body) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare fts insert: %w", err)
	}
	defer func() { _ = ftsStmt.Close() }()

	for _, doc := range docs {
		if _, err := pageStmt.ExecContext(ctx,
			doc.Path, doc.Slug, doc.Title, doc.Layout,
			strings.Join(doc.Tags, ","), doc.WordCount,
			doc.Checksum, doc.ModTime.Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("insert page %s: %w", doc.Path, err)
		}
		if _, err := ftsStmt.ExecContext(ctx, doc.Path, doc.Title, doc.Body); err != nil {
			return fmt.Errorf("index page %s: %w", doc.Path, err)
		}
	}

	meta := `
	INSERT INTO index_meta (key, value) VALUES ('build_id', ?), ('indexed_at', ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := tx.ExecContext(ctx, meta, buildID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("update index meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}

	s.logger.Info().
		Str("event", "index.replaced").
		Str("build_id", buildID).
		Int("pages", len(docs)).
		Msg("search index replaced")

	return nil
}

// Search runs a full-text query and returns hits ranked by bm25 with
// the title weighted above the body. Limit caps the result count.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT f.path,
	       p.title,
	       snippet(pages_fts, 2, '<b>', '</b>', ' … ', 12),
	       bm25(pages_fts, 0.0, 5.0, 1.0)
	FROM pages_fts f
	JOIN pages p ON p.path = f.path
	WHERE pages_fts MATCH ?
	ORDER BY bm25(pages_fts, 0.0, 5.0, 1.0)
	LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Path, &r.Title, &r.Snippet, &r.Rank); err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// PageCount returns the number of indexed pages.
func (s *Store) PageCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&n)
	return n, err
}

// BuildID returns the build that produced the current index, or ""
// when nothing has been indexed yet.
func (s *Store) BuildID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM index_meta WHERE key = 'build_id'`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// Ping verifies the database connection, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ftsQuery turns free text into an FTS5 match expression. Every token
// is quoted so user input cannot inject FTS operators; the last token
// gets a prefix star for search-as-you-type.
func ftsQuery(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}

	terms := make([]string, 0, len(fields))
	for i, f := range fields {
		quoted := `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		if i == len(fields)-1 {
			quoted += "*"
		}
		terms = append(terms, quoted)
	}
	return strings.Join(terms, " ")
}
