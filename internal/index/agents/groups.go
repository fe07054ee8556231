package agents

import (
	"context"

	"fleetdex/internal/index"
	"fleetdex/internal/store"
)

// Group membership is a comma-joined ordered list mutated by scripted
// updates the store applies atomically per document. Concurrent
// mutations against the same agent serialize at the store; no
// membership change is ever lost to a read-modify-write race.

// addScript appends the group, or sets it when the field is unset.
// Repeated application duplicates the entry; this matches the wire
// format's accepted non-idempotence and is not silently deduplicated.
func addScript(group string) store.Script {
	return store.Script{Op: store.OpAppendToken, Field: FieldGroups, Param: group}
}

// overrideScript replaces all membership with the single group.
func overrideScript(group string) store.Script {
	return store.Script{Op: store.OpSetField, Field: FieldGroups, Param: group}
}

// removeScript drops exactly the elements equal to the group,
// preserving the order of the rest. Removing the only element leaves
// an empty string, not an unset field.
func removeScript(group string) store.Script {
	return store.Script{Op: store.OpRemoveToken, Field: FieldGroups, Param: group}
}

// AddToGroup adds the agents to a group. With override, all prior
// membership is replaced by the single group instead.
func (i *Index) AddToGroup(ctx context.Context, group string, ids []string, override bool) error {
	if err := validateGroup(group); err != nil {
		return err
	}
	return i.updateGroups(ctx, group, ids, false, override)
}

// RemoveFromGroup removes the agents from a group.
func (i *Index) RemoveFromGroup(ctx context.Context, group string, ids []string) error {
	if err := validateGroup(group); err != nil {
		return err
	}
	return i.updateGroups(ctx, group, ids, true, false)
}

// DeleteGroup removes the group from every agent that is a member.
func (i *Index) DeleteGroup(ctx context.Context, group string) error {
	if err := validateGroup(group); err != nil {
		return err
	}

	err := i.base.ApplyScript(ctx, index.ByToken(FieldGroups, group), removeScript(group))
	if err != nil {
		return err
	}

	i.logger.Info("Group deleted", "group", group)
	return nil
}

// GroupAgents returns the agents belonging to a group.
func (i *Index) GroupAgents(ctx context.Context, group string) ([]*Agent, error) {
	if err := validateGroup(group); err != nil {
		return nil, err
	}
	return i.Search(ctx, index.ByToken(FieldGroups, group), index.SearchOptions{})
}

func (i *Index) updateGroups(ctx context.Context, group string, ids []string, remove, override bool) error {
	var script store.Script
	switch {
	case remove:
		script = removeScript(group)
	case override:
		script = overrideScript(group)
	default:
		script = addScript(group)
	}
	return i.base.ApplyScript(ctx, index.ByIDs(ids...), script)
}
