// Package index provides the generic contract shared by all entity
// collections: a primary index, the secondary indexes sharing its
// identifier space, and the primitive operations every collection
// needs. Entity packages compose Base rather than extending it.
package index

import (
	"context"

	"fleetdex/internal/store"
)

// Base is a named collection bound to one store handle. It carries no
// entity-specific logic; every method is generic over request shape.
type Base struct {
	store     store.Store
	name      string
	secondary []string
}

// New creates a Base over the primary index name and any secondary
// indexes that share its identifier space.
func New(st store.Store, name string, secondary ...string) *Base {
	return &Base{
		store:     st,
		name:      name,
		secondary: secondary,
	}
}

// Name returns the primary index name.
func (b *Base) Name() string {
	return b.name
}

// Indexes returns the primary index followed by the secondary indexes,
// in order. Used by operations that fan out across the identifier
// space, such as bulk deletes.
func (b *Base) Indexes() []string {
	return append([]string{b.name}, b.secondary...)
}

// Insert writes a document with create-only semantics and synchronous
// visibility, so the record is immediately searchable and a concurrent
// creator with the same id deterministically observes ErrConflict.
func (b *Base) Insert(ctx context.Context, id string, doc store.Document) error {
	return b.store.Index(ctx, b.name, id, doc, store.WriteOptions{
		CreateOnly: true,
		Sync:       true,
	})
}

// Fetch is a point lookup by id against the primary index.
func (b *Base) Fetch(ctx context.Context, id string) (store.Document, error) {
	return b.store.Get(ctx, b.name, id)
}

// Merge performs a store-level partial merge of the given fields into
// an existing document. It never does a client-side read-modify-write,
// so fields absent from partial cannot be lost to a concurrent writer.
func (b *Base) Merge(ctx context.Context, id string, partial store.Document) error {
	return b.store.Update(ctx, b.name, id, partial)
}

// DeleteByIDs removes the documents across the primary and all
// secondary indexes with synchronous visibility. Per-document
// conflicts are skipped, not fatal to the batch.
func (b *Base) DeleteByIDs(ctx context.Context, ids []string) error {
	return b.store.DeleteByQuery(ctx, b.Indexes(), ids, store.DeleteOptions{
		ProceedOnConflict: true,
		Sync:              true,
	})
}

// Query executes a search against the primary index.
func (b *Base) Query(ctx context.Context, q store.Query) ([]store.Hit, error) {
	return b.store.Search(ctx, b.name, q)
}

// ApplyScript runs a scripted mutation against every document in the
// primary index matching the filter. The store applies the script
// atomically per document; updates are not synchronously visible.
func (b *Base) ApplyScript(ctx context.Context, filter store.Filter, script store.Script) error {
	return b.store.UpdateByScript(ctx, b.name, filter, script)
}
