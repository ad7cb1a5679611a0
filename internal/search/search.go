// Package search runs full-text queries against an open index.
package search

import (
	"context"
	"database/sql"

	sifterrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/store"
)

// Hit is one search result row.
type Hit struct {
	URL       string
	Title     string
	Format    string
	Tags      string // JSON array, stored verbatim
	Lang      string
	UpdatedAt int64
	Score     float64 // raw bm25(): negative, lower is better
	Snippet   string
}

// searchSQL joins full-text matches back to the relational row through the
// v_search view. bm25() ascending puts the best match first. The snippet
// highlights column 2 (body_tokens) with <mark> tags, 24 tokens wide.
const searchSQL = `
SELECT v.url, v.title, v.format, v.tags, v.lang, v.updated_at,
       bm25(docs_fts) AS score,
       snippet(docs_fts, 2, '<mark>', '</mark>', '...', 24) AS snippet
FROM docs_fts
JOIN v_search v ON v.doc_id = docs_fts.doc_id
WHERE docs_fts MATCH ?
ORDER BY score
LIMIT ? OFFSET ?`

// Service answers queries against one store handle.
type Service struct {
	store *store.Store
}

// New returns a query service over an open store.
func New(st *store.Store) *Service {
	return &Service{store: st}
}

// Search runs the query through FTS5 and returns up to limit hits starting
// at offset. The query string is handed to MATCH verbatim, so FTS5 query
// syntax (phrases, prefixes) is available to callers.
func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]Hit, error) {
	rows, err := s.store.DB().QueryContext(ctx, searchSQL, query, limit, offset)
	if err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreQuery, err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, limit)
	for rows.Next() {
		var h Hit
		var lang sql.NullString
		if err := rows.Scan(&h.URL, &h.Title, &h.Format, &h.Tags, &lang,
			&h.UpdatedAt, &h.Score, &h.Snippet); err != nil {
			return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreQuery, err)
		}
		h.Lang = lang.String
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreQuery, err)
	}
	return hits, nil
}
