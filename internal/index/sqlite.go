package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/pagedex/internal/normalize"
	"github.com/Aman-CERP/pagedex/internal/records"
)

// SQLiteBackend builds a single-file FTS5 database.
// The norm column receives pre-tokenized text so the unicode61 tokenizer
// sees the same tokens as the bleve analyzer.
type SQLiteBackend struct{}

// Name implements Backend.
func (*SQLiteBackend) Name() string { return BackendSQLite }

const sqliteSchema = `CREATE VIRTUAL TABLE pages USING fts5(
	norm,
	doc UNINDEXED,
	page UNINDEXED,
	text UNINDEXED,
	tokenize = 'unicode61'
)`

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// A single self-contained file: no WAL or SHM side files.
	pragmas := []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA synchronous = OFF",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	return db, nil
}

// Build implements Backend.
func (s *SQLiteBackend) Build(ctx context.Context, recs []records.PageRecord, workDir string) ([]byte, error) {
	path := filepath.Join(workDir, "index.db")
	_ = os.Remove(path)

	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create fts5 table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pages(rowid, norm, doc, page, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	for _, rec := range recs {
		norm := strings.Join(Tokenize(rec.Norm), " ")
		if _, err := stmt.ExecContext(ctx, rec.ID, norm, rec.Doc, rec.Page, rec.Text); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return nil, fmt.Errorf("insert record %d: %w", rec.ID, err)
		}
	}
	_ = stmt.Close()
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO pages(pages) VALUES('optimize')`); err != nil {
		return nil, fmt.Errorf("optimize fts5: %w", err)
	}
	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return nil, fmt.Errorf("vacuum: %w", err)
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("close database: %w", err)
	}

	return os.ReadFile(path)
}

// Open implements Backend.
func (s *SQLiteBackend) Open(data []byte, workDir string) (Reader, error) {
	path := filepath.Join(workDir, "index.db")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	var ok string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&ok); err != nil || ok != "ok" {
		_ = db.Close()
		return nil, fmt.Errorf("database corrupted: %v %s", err, ok)
	}
	return &sqliteReader{db: db}, nil
}

type sqliteReader struct {
	db *sql.DB
}

func (r *sqliteReader) DocCount() (uint64, error) {
	var n uint64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM pages`).Scan(&n)
	return n, err
}

func (r *sqliteReader) Search(q string, limit int) ([]Hit, error) {
	tokens := Tokenize(normalize.Text(q))
	if len(tokens) == 0 {
		return []Hit{}, nil
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + tok + `"`
	}

	rows, err := r.db.Query(`SELECT rowid, doc, page, text, -rank FROM pages WHERE pages MATCH ? ORDER BY rank LIMIT ?`,
		"norm: ("+strings.Join(quoted, " ")+")", limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	defer func() { _ = rows.Close() }()

	hits := []Hit{}
	for rows.Next() {
		var (
			id  int64
			hit Hit
		)
		if err := rows.Scan(&id, &hit.Doc, &hit.Page, &hit.Text, &hit.Score); err != nil {
			return nil, err
		}
		hit.ID = fmt.Sprint(id)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (r *sqliteReader) Terms() ([]string, error) {
	if _, err := r.db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS temp.vocab USING fts5vocab(main, pages, row)`); err != nil {
		return nil, fmt.Errorf("create vocab table: %w", err)
	}
	rows, err := r.db.Query(`SELECT term FROM temp.vocab ORDER BY term`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}
