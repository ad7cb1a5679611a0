// Package store owns the SQLite index file: schema, pragmas, the write
// session used by builds, and the read handle used for serving.
package store

import (
	"context"
	"database/sql"
	"strconv"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/docsift/docsift/internal/convert"
	sifterrors "github.com/docsift/docsift/internal/errors"
)

// Meta keys written by every build.
const (
	MetaSchemaVersion = "schema_version"
	MetaDocCount      = "doc_count"
	MetaBuiltAt       = "built_at"
	MetaRepoCommit    = "repo_commit"
)

// SchemaVersion is the current index file schema version.
const SchemaVersion = "1"

const schema = `
CREATE TABLE IF NOT EXISTS docs (
	doc_id      TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	format      TEXT NOT NULL,
	title       TEXT NOT NULL,
	tags        TEXT,
	lang        TEXT,
	updated_at  INTEGER NOT NULL,
	sha1        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key    TEXT PRIMARY KEY,
	value  TEXT NOT NULL
);

-- doc_id is UNINDEXED: stored for the join back to docs, not searchable.
CREATE VIRTUAL TABLE IF NOT EXISTS docs_fts USING fts5(
	doc_id UNINDEXED,
	title,
	body_tokens,
	tokenize='unicode61'
);

CREATE VIEW IF NOT EXISTS v_search AS
	SELECT d.url, d.title, d.format, d.tags, d.lang, d.updated_at, d.doc_id
	FROM docs d;
`

// Write-side pragmas. The index file is rebuilt from scratch into a temp
// file and atomically swapped in, so durability of the work-in-progress
// database is worthless; trade it all for build speed.
var buildPragmas = []string{
	"PRAGMA journal_mode = OFF",
	"PRAGMA synchronous = OFF",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA cache_size = -20000",
	"PRAGMA mmap_size = 268435456",
}

// Store wraps the database handle for one index file.
type Store struct {
	db   *sql.DB
	path string
}

// OpenWrite opens (creating if absent) an index file for a build. An empty
// path opens an in-memory database for testing. Transactions started on
// the returned store take the write lock immediately.
func OpenWrite(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		dsn = path + "?_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreOpen, err)
	}

	// Single writer; the driver serializes, the pool should not fight it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range buildPragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreOpen, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreOpen, err)
	}

	return &Store{db: db, path: path}, nil
}

// OpenRead opens an existing index file read-only for serving. The file
// must carry the expected schema.
func OpenRead(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreOpen, err)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name = 'docs_fts'`).Scan(&count)
	if err != nil {
		_ = db.Close()
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreOpen, err)
	}
	if count == 0 {
		_ = db.Close()
		return nil, sifterrors.Newf(sifterrors.ErrCodeStoreOpen,
			"%s is not a docsift index (docs_fts missing)", path)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the database handle. In-flight queries on other
// goroutines drain before the underlying connections close.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for the query side.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the index file path ("" for in-memory stores).
func (s *Store) Path() string {
	return s.path
}

// Meta is the build provenance recorded in the meta table.
type Meta struct {
	SchemaVersion string
	RepoCommit    string
	BuiltAt       string
	DocCount      int
}

// LoadMeta reads all meta rows. Missing keys stay zero-valued; an
// unparseable doc_count reads as 0.
func (s *Store) LoadMeta(ctx context.Context) (Meta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, sifterrors.Wrap(sifterrors.ErrCodeStoreQuery, err)
	}
	defer rows.Close()

	var meta Meta
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Meta{}, sifterrors.Wrap(sifterrors.ErrCodeStoreQuery, err)
		}
		switch key {
		case MetaSchemaVersion:
			meta.SchemaVersion = value
		case MetaRepoCommit:
			meta.RepoCommit = value
		case MetaBuiltAt:
			meta.BuiltAt = value
		case MetaDocCount:
			if n, err := strconv.Atoi(value); err == nil {
				meta.DocCount = n
			}
		}
	}
	if err := rows.Err(); err != nil {
		return Meta{}, sifterrors.Wrap(sifterrors.ErrCodeStoreQuery, err)
	}
	return meta, nil
}

// WriteSession is one build transaction. The relational table and the
// full-text table are only ever touched together inside it, so a failed
// build leaves the previous contents intact.
type WriteSession struct {
	tx *sql.Tx
}

// Begin starts the build transaction, taking the write lock up front.
func (s *Store) Begin(ctx context.Context) (*WriteSession, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreWrite, err)
	}
	return &WriteSession{tx: tx}, nil
}

// Clear empties both document tables.
func (w *WriteSession) Clear(ctx context.Context) error {
	if _, err := w.tx.ExecContext(ctx, `DELETE FROM docs`); err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreWrite, err)
	}
	if _, err := w.tx.ExecContext(ctx, `DELETE FROM docs_fts`); err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreWrite, err)
	}
	return nil
}

// InsertDocument writes one document row to both tables. The relational
// side upserts; the full-text side deletes then inserts, since FTS5
// virtual tables have no conflict clause.
func (w *WriteSession) InsertDocument(ctx context.Context, row *convert.DocumentRow) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO docs (doc_id, url, format, title, tags, lang, updated_at, sha1)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			url = excluded.url,
			format = excluded.format,
			title = excluded.title,
			tags = excluded.tags,
			lang = excluded.lang,
			updated_at = excluded.updated_at,
			sha1 = excluded.sha1`,
		row.DocID, row.URL, row.Format, row.Title, row.TagsJSON,
		nullable(row.Lang), row.UpdatedAt, row.Digest)
	if err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreWrite, err)
	}

	if _, err := w.tx.ExecContext(ctx,
		`DELETE FROM docs_fts WHERE doc_id = ?`, row.DocID); err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreWrite, err)
	}
	_, err = w.tx.ExecContext(ctx,
		`INSERT INTO docs_fts (doc_id, title, body_tokens) VALUES (?, ?, ?)`,
		row.DocID, row.Title, row.BodyTokens)
	if err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreWrite, err)
	}
	return nil
}

// SetMeta upserts one meta key.
func (w *WriteSession) SetMeta(ctx context.Context, key, value string) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreWrite, err)
	}
	return nil
}

// Commit finalizes the build transaction.
func (w *WriteSession) Commit() error {
	if err := w.tx.Commit(); err != nil {
		return sifterrors.Wrap(sifterrors.ErrCodeStoreWrite, err)
	}
	return nil
}

// Rollback abandons the build transaction. Safe to call after Commit.
func (w *WriteSession) Rollback() error {
	err := w.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

// nullable maps "" to SQL NULL for optional text columns.
func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
