package events

import (
	"context"
	"sync"
)

// PublishedMessage is a message captured by the memory publisher.
type PublishedMessage struct {
	Subject string
	Data    []byte
}

// MemoryPublisher captures published messages in memory. Used in
// tests and single-process deployments with no broker.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []PublishedMessage
	closed   bool
}

// NewMemoryPublisher creates an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish records the message.
func (p *MemoryPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	p.messages = append(p.messages, PublishedMessage{Subject: subject, Data: buf})
	return nil
}

// Messages returns a snapshot of everything published so far.
func (p *MemoryPublisher) Messages() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Close marks the publisher closed.
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
