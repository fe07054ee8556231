// Package store wires the document-store backends behind the typed
// capability defined in store/types.
package store

import (
	"context"
	"fmt"

	"fleetdex/internal/store/config"
	"fleetdex/internal/store/memory"
	"fleetdex/internal/store/mongo"
	"fleetdex/internal/store/types"
)

// Re-exported capability types so callers depend on one import path.
type (
	Store         = types.Store
	Document      = types.Document
	Hit           = types.Hit
	Filter        = types.Filter
	Term          = types.Term
	Query         = types.Query
	Sort          = types.Sort
	Direction     = types.Direction
	Script        = types.Script
	ScriptOp      = types.ScriptOp
	WriteOptions  = types.WriteOptions
	DeleteOptions = types.DeleteOptions
)

const (
	Asc  = types.Asc
	Desc = types.Desc

	OpAppendToken = types.OpAppendToken
	OpSetField    = types.OpSetField
	OpRemoveToken = types.OpRemoveToken
)

var (
	ErrNotFound      = types.ErrNotFound
	ErrConflict      = types.ErrConflict
	ErrBadProjection = types.ErrBadProjection
)

// Dependency injection for testing.
var newMongoBackend = func(ctx context.Context, cfg config.MongoConfig) (Store, error) {
	return mongo.New(ctx, cfg)
}

// Preparer is implemented by backends that need per-index setup, such
// as creating the text index backing free-text search.
type Preparer interface {
	EnsureIndexes(ctx context.Context, indexes ...string) error
}

// New builds the backend selected by the configuration and prepares
// the given indexes on backends that need it.
func New(ctx context.Context, cfg config.Config, indexes ...string) (Store, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		st, err := newMongoBackend(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongo backend: %w", err)
		}
		if p, ok := st.(Preparer); ok && len(indexes) > 0 {
			if err := p.EnsureIndexes(ctx, indexes...); err != nil {
				st.Close(ctx)
				return nil, fmt.Errorf("failed to prepare indexes: %w", err)
			}
		}
		return st, nil
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
