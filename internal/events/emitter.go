package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Emitter serializes lifecycle events and hands them to a Publisher.
// A nil Emitter or a nil Publisher discards events, so callers can
// wire publication in and out without branching.
type Emitter struct {
	pub    Publisher
	logger *slog.Logger
}

// NewEmitter creates an Emitter. pub may be nil to disable publication.
func NewEmitter(pub Publisher, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{pub: pub, logger: logger}
}

// AgentEnrolled publishes an enrollment event.
func (e *Emitter) AgentEnrolled(ctx context.Context, evt AgentEnrolled) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	return e.publish(ctx, SubjectAgentEnrolled, evt)
}

// AgentsRemoved publishes a bulk removal event.
func (e *Emitter) AgentsRemoved(ctx context.Context, evt AgentsRemoved) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	return e.publish(ctx, SubjectAgentsRemoved, evt)
}

func (e *Emitter) publish(ctx context.Context, subject string, evt any) error {
	if e == nil || e.pub == nil {
		return nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	if err := e.pub.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s event: %w", subject, err)
	}
	return nil
}

// Close releases the underlying publisher.
func (e *Emitter) Close() error {
	if e == nil || e.pub == nil {
		return nil
	}
	return e.pub.Close()
}
