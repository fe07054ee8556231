// Package events defines the canonical agent lifecycle event schema
// and the publisher abstraction used to fan it out. Publication is
// best-effort: index operations never depend on publish success.
package events

import (
	"context"
	"time"
)

// Subjects for agent lifecycle events.
const (
	SubjectAgentEnrolled = "agent.enrolled"
	SubjectAgentsRemoved = "agents.removed"
)

// AgentEnrolled is emitted after an agent record is created.
type AgentEnrolled struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Groups    []string  `json:"groups"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentsRemoved is emitted after a bulk delete. IDs is the requested
// id set; consumers needing the precise outcome must re-query.
type AgentsRemoved struct {
	IDs       []string  `json:"ids"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher publishes raw messages to a subject.
type Publisher interface {
	// Publish sends a message to the specified subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close releases resources.
	Close() error
}
