// Package agents is the typed index of enrolled agents. It enforces
// the entity invariants (unique id, default group membership, digest-
// only key storage) and translates every operation into store
// primitives through the generic base index.
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fleetdex/internal/events"
	"fleetdex/internal/index"
	"fleetdex/internal/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// IndexName is the primary collection of agent records.
const IndexName = "agents"

var (
	// ErrAlreadyExists is returned when enrolling an id that exists.
	ErrAlreadyExists = errors.New("agent already exists")
	// ErrNotFound is returned when no agent has the given id.
	ErrNotFound = errors.New("agent not found")
	// ErrInvalidID is returned when a caller-supplied id is not a UUID.
	ErrInvalidID = errors.New("invalid agent id")
	// ErrInvalidGroup is returned for empty or comma-containing group
	// names, which cannot be encoded in the membership field.
	ErrInvalidGroup = errors.New("invalid group name")
)

// Config holds the entity-specific index settings.
type Config struct {
	// SecondaryIndexes are additional collections sharing the agent
	// identifier space; bulk deletes fan out across them.
	SecondaryIndexes []string `yaml:"secondary_indexes"`
}

// DefaultConfig returns the default agents index configuration.
func DefaultConfig() Config {
	return Config{}
}

// Index provides typed CRUD, search and group membership operations
// over the agents collection.
type Index struct {
	base    *index.Base
	emitter *events.Emitter
	logger  *slog.Logger
}

// New creates an agents index over the given store. emitter may be
// nil to disable lifecycle event publication.
func New(st store.Store, cfg Config, emitter *events.Emitter, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		base:    index.New(st, IndexName, cfg.SecondaryIndexes...),
		emitter: emitter,
		logger:  logger,
	}
}

// CreateRequest contains the data for enrolling a new agent.
type CreateRequest struct {
	// ID is the agent UUID. Empty means generate one.
	ID string
	// Key is the raw enrollment key; only its digest is stored.
	Key  string
	Name string
	// Groups are appended after the default group.
	Groups []string
	// IPs and OS populate the host descriptor when present.
	IPs []string
	OS  string
}

// Create enrolls a new agent. The write is create-only and
// synchronously visible: a duplicate id yields ErrAlreadyExists and a
// successful create is immediately searchable. The returned agent is
// the constructed record, not a re-read, and carries the raw key.
func (i *Index) Create(ctx context.Context, req CreateRequest) (*Agent, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	} else if err := uuid.Validate(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, req.ID)
	}

	groups := []string{DefaultGroup}
	for _, g := range req.Groups {
		if err := validateGroup(g); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(req.Key), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("digest agent key: %w", err)
	}

	agent := &Agent{
		ID:      id,
		Name:    req.Name,
		RawKey:  req.Key,
		KeyHash: string(digest),
		Groups:  strings.Join(groups, ","),
	}
	if len(req.IPs) > 0 || req.OS != "" {
		agent.Host = &Host{IP: req.IPs}
		if req.OS != "" {
			agent.Host.OS = &OS{Full: req.OS}
		}
	}

	if err := i.base.Insert(ctx, id, agent.document()); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
		}
		return nil, err
	}

	i.logger.Info("Agent enrolled", "id", id, "name", req.Name, "groups", groups)

	if err := i.emitter.AgentEnrolled(ctx, events.AgentEnrolled{
		ID:     id,
		Name:   req.Name,
		Groups: groups,
	}); err != nil {
		i.logger.Warn("Failed to publish enrollment event", "id", id, "error", err)
	}

	return agent, nil
}

// Get retrieves an agent by id.
func (i *Index) Get(ctx context.Context, id string) (*Agent, error) {
	src, err := i.base.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return agentFromSource(id, src), nil
}

// Update merges the fields present on changes into the stored record.
// The merge happens at the store, never as a read-modify-write, so
// untouched fields cannot be lost to a concurrent writer. A non-empty
// RawKey is re-digested before storage.
func (i *Index) Update(ctx context.Context, id string, changes *Agent) error {
	if changes.RawKey != "" {
		digest, err := bcrypt.GenerateFromPassword([]byte(changes.RawKey), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("digest agent key: %w", err)
		}
		changes.KeyHash = string(digest)
	}

	if err := i.base.Merge(ctx, id, changes.document()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	return nil
}

// Delete removes the agents across the primary and all secondary
// indexes. Per-document conflicts are skipped, and the requested id
// list is returned regardless of which ids actually existed; callers
// needing the precise outcome must re-query.
func (i *Index) Delete(ctx context.Context, ids []string) ([]string, error) {
	if err := i.base.DeleteByIDs(ctx, ids); err != nil {
		return nil, err
	}

	i.logger.Info("Agents deleted", "count", len(ids))

	if err := i.emitter.AgentsRemoved(ctx, events.AgentsRemoved{IDs: ids}); err != nil {
		i.logger.Warn("Failed to publish removal event", "error", err)
	}

	return ids, nil
}

// Search executes a filtered, paginated search. Projection and sort
// are delegated to the store; with a narrowed projection the returned
// agents are partially populated.
func (i *Index) Search(ctx context.Context, filter store.Filter, opts index.SearchOptions) ([]*Agent, error) {
	hits, err := i.base.Query(ctx, index.BuildSearch(filter, opts))
	if err != nil {
		return nil, err
	}

	agents := make([]*Agent, 0, len(hits))
	for _, hit := range hits {
		agents = append(agents, agentFromSource(hit.ID, hit.Source))
	}
	return agents, nil
}

func validateGroup(group string) error {
	if group == "" || strings.Contains(group, ",") {
		return fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	}
	return nil
}
