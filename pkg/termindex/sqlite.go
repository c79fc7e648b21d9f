package termindex

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// schemaStatements creates the content table, the external-content FTS5
// table kept in sync by triggers, and the vocabulary table used for
// prefix search and statistics. tokenchars keeps synthetic terms like
// "entity:person" as single tokens.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS index_entries (
		entry_id   TEXT PRIMARY KEY,
		domain_id  TEXT NOT NULL,
		indexed_at INTEGER NOT NULL,
		term_count INTEGER NOT NULL,
		terms      TEXT NOT NULL
	)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS index_terms USING fts5(
		terms,
		content='index_entries',
		content_rowid='rowid',
		tokenize='unicode61 tokenchars '':'''
	)`,
	`CREATE TRIGGER IF NOT EXISTS index_entries_ai AFTER INSERT ON index_entries BEGIN
		INSERT INTO index_terms(rowid, terms) VALUES (new.rowid, new.terms);
	END`,
	`CREATE TRIGGER IF NOT EXISTS index_entries_ad AFTER DELETE ON index_entries BEGIN
		INSERT INTO index_terms(index_terms, rowid, terms) VALUES ('delete', old.rowid, old.terms);
	END`,
	`CREATE TRIGGER IF NOT EXISTS index_entries_au AFTER UPDATE ON index_entries BEGIN
		INSERT INTO index_terms(index_terms, rowid, terms) VALUES ('delete', old.rowid, old.terms);
		INSERT INTO index_terms(rowid, terms) VALUES (new.rowid, new.terms);
	END`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS index_vocab USING fts5vocab('index_terms', 'row')`,
}

// SQLiteIndex is a TermIndex persisted in a SQLite database with FTS5
// scoring. A single connection serializes writers; search latency is
// dominated by bm25 anyway.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

var _ TermIndex = (*SQLiteIndex)(nil)

// NewSQLite opens (or creates) a SQLite-backed term index at path.
// Pass ":memory:" for an ephemeral index.
func NewSQLite(path string) (*SQLiteIndex, error) {
	dsn := path
	if path != ":memory:" {
		// WAL mode for concurrent readers during writes.
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open term index database: %w", err)
	}
	// database/sql pools connections; an in-memory database exists per
	// connection, so cap the pool at one for both backend flavors.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create term index schema: %w", err)
		}
	}

	return &SQLiteIndex{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func (s *SQLiteIndex) AddEntry(ctx context.Context, id string, terms []string, timestamp time.Time, domainID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Replace semantics: the delete trigger clears old FTS rows.
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_entries WHERE entry_id = ?`, id); err != nil {
		return fmt.Errorf("failed to replace indexed entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO index_entries (entry_id, domain_id, indexed_at, term_count, terms) VALUES (?, ?, ?, ?, ?)`,
		id, domainID, timestamp.UnixNano(), len(terms), strings.Join(terms, " "))
	if err != nil {
		return fmt.Errorf("failed to index entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index write: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) RemoveEntry(ctx context.Context, id string, terms []string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM index_entries WHERE entry_id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove indexed entry: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM index_entries`); err != nil {
		return fmt.Errorf("failed to clear term index: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Search(ctx context.Context, terms []string, limit int) ([]TermHit, error) {
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT e.entry_id, bm25(index_terms) AS score
		 FROM index_terms
		 JOIN index_entries e ON e.rowid = index_terms.rowid
		 WHERE index_terms MATCH ?
		 ORDER BY score, e.entry_id
		 LIMIT ?`,
		matchQuery(terms), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search term index: %w", err)
	}
	defer rows.Close()

	var hits []TermHit
	for rows.Next() {
		var hit TermHit
		var bm25Score float64
		if err := rows.Scan(&hit.EntryID, &bm25Score); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		// bm25 assigns lower values to better matches; flip the sign so
		// higher scores rank better.
		hit.Score = -bm25Score
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search hits: %w", err)
	}
	return hits, nil
}

func (s *SQLiteIndex) PrefixSearch(ctx context.Context, prefix string, limit int) ([]string, error) {
	if prefix == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT term FROM index_vocab WHERE term LIKE ? ESCAPE '\' ORDER BY term LIMIT ?`,
		escapeLike(prefix)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search term vocabulary: %w", err)
	}
	defer rows.Close()

	var matched []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, fmt.Errorf("failed to scan term: %w", err)
		}
		matched = append(matched, term)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read terms: %w", err)
	}
	return matched, nil
}

func (s *SQLiteIndex) Statistics(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM index_vocab`).Scan(&stats.TermCount); err != nil {
		return nil, fmt.Errorf("failed to count terms: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(term_count), 0) FROM index_entries`).Scan(&stats.AvgTermsPerEntry); err != nil {
		return nil, fmt.Errorf("failed to average term counts: %w", err)
	}
	return stats, nil
}

func (s *SQLiteIndex) IsHealthy(ctx context.Context) bool {
	if err := s.db.PingContext(ctx); err != nil {
		return false
	}
	// Verifies the FTS table against its content table.
	if _, err := s.db.ExecContext(ctx, `INSERT INTO index_terms(index_terms) VALUES('integrity-check')`); err != nil {
		return false
	}
	return true
}

// matchQuery builds an FTS5 MATCH expression ORing the given terms.
// Terms are double-quoted so tokens containing ':' survive parsing.
func matchQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// escapeLike escapes LIKE wildcards in a user-supplied prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
