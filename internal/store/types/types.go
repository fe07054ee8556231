// Package types defines the document-store capability consumed by the
// index layer. Backends translate the typed filters and scripts here
// into their native operations; callers never see backend error types.
package types

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when a create-only write targets an
	// existing document id.
	ErrConflict = errors.New("document already exists")
	// ErrBadProjection is returned when a search constrains the same
	// projection with both include and exclude lists.
	ErrBadProjection = errors.New("projection cannot both include and exclude fields")
)

// Document is the schema-flexible source of a stored document.
// Nested objects are represented as nested map[string]any values.
type Document map[string]any

// Hit is a single search result.
type Hit struct {
	ID     string
	Source Document
}

// Term matches a field against an exact value.
type Term struct {
	Field string
	Value any
}

// Filter selects documents for search, scripted updates and deletes.
// At most one of the selectors is set; an empty Filter matches all
// documents in the index.
type Filter struct {
	// IDs selects documents by id.
	IDs []string
	// Term selects documents whose field equals a value.
	Term *Term
	// Token selects documents whose comma-joined Field contains
	// Value as an exact token.
	Token *Term
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort orders search results by a field.
type Sort struct {
	Field     string
	Direction Direction
}

// Query describes a search: filter, optional free-text term, field
// projection and pagination. Projection is applied by the store, so
// returned sources may be partially populated.
type Query struct {
	Filter Filter
	// Text is a free-text search term matched against document text
	// fields. Empty means no text matching.
	Text string
	// Include and Exclude are projection field lists. They must not
	// both be set.
	Include []string
	Exclude []string
	// From is the number of results to skip.
	From int
	// Size bounds the number of results. Zero means the backend
	// default.
	Size int
	Sort []Sort
}

// Validate checks query invariants common to all backends.
func (q Query) Validate() error {
	if len(q.Include) > 0 && len(q.Exclude) > 0 {
		return ErrBadProjection
	}
	return nil
}

// ScriptOp identifies a server-side mutation applied atomically to
// each matched document.
type ScriptOp string

const (
	// OpAppendToken sets Field to Param if the field is unset,
	// otherwise appends ","+Param. Repeated application duplicates
	// the token; callers own dedup semantics.
	OpAppendToken ScriptOp = "append_token"
	// OpSetField unconditionally replaces Field with Param.
	OpSetField ScriptOp = "set_field"
	// OpRemoveToken splits Field on comma, drops elements equal to
	// Param and rejoins, preserving order. Removing the last element
	// leaves an empty string, not an unset field.
	OpRemoveToken ScriptOp = "remove_token"
)

// Script is a parameter-bound scripted mutation. Each backend compiles
// it to its native atomic per-document update, so concurrent scripts
// against the same document serialize at the store.
type Script struct {
	Op    ScriptOp
	Field string
	Param string
}

// WriteOptions control visibility and overwrite semantics of Index.
type WriteOptions struct {
	// CreateOnly fails with ErrConflict instead of overwriting.
	CreateOnly bool
	// Sync requests synchronous visibility: the write is observable
	// by an immediately following read.
	Sync bool
}

// DeleteOptions control DeleteByQuery behavior.
type DeleteOptions struct {
	// ProceedOnConflict skips conflicting documents instead of
	// failing the batch.
	ProceedOnConflict bool
	// Sync requests synchronous visibility of the deletions.
	Sync bool
}

// Store is the abstract document-store capability. Implementations are
// safe for concurrent use from arbitrarily many callers sharing one
// connection; cancellation and timeouts ride on the context.
type Store interface {
	// Index writes a document under the given id.
	Index(ctx context.Context, index, id string, doc Document, opts WriteOptions) error

	// Get retrieves the document source by id.
	Get(ctx context.Context, index, id string) (Document, error)

	// Update merges the partial document into an existing one. Only
	// fields present in partial are written; nested objects merge
	// field-wise rather than replacing the whole object.
	Update(ctx context.Context, index, id string, partial Document) error

	// DeleteByQuery removes all documents matching the ids across the
	// given indexes.
	DeleteByQuery(ctx context.Context, indexes []string, ids []string, opts DeleteOptions) error

	// Search executes the query against one index.
	Search(ctx context.Context, index string, q Query) ([]Hit, error)

	// UpdateByScript applies the script to every document matching
	// the filter, atomically per document.
	UpdateByScript(ctx context.Context, index string, filter Filter, script Script) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
