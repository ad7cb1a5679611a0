package server

import (
	"context"

	"github.com/docsift/docsift/internal/search"
	"github.com/docsift/docsift/internal/store"
)

// Runtime bundles one open read-only index: the store handle, a query
// service bound to it, and the meta record loaded at open time. A runtime
// is never mutated; /admin/reopen builds a fresh one and swaps it in
// wholesale.
type Runtime struct {
	store   *store.Store
	queries *search.Service
	meta    store.Meta
}

// OpenRuntime opens the index file read-only and caches its meta record.
func OpenRuntime(ctx context.Context, indexPath string) (*Runtime, error) {
	st, err := store.OpenRead(indexPath)
	if err != nil {
		return nil, err
	}
	meta, err := st.LoadMeta(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &Runtime{
		store:   st,
		queries: search.New(st),
		meta:    meta,
	}, nil
}

// Search delegates to the bound query service.
func (r *Runtime) Search(ctx context.Context, query string, limit, offset int) ([]search.Hit, error) {
	return r.queries.Search(ctx, query, limit, offset)
}

// Meta returns the record cached when the runtime was opened.
func (r *Runtime) Meta() store.Meta {
	return r.meta
}

// Close releases the store handle. In-flight queries on the old runtime
// finish before the pooled connections actually close.
func (r *Runtime) Close() error {
	return r.store.Close()
}
