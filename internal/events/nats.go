package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSConfig holds NATS JetStream publisher settings.
type NATSConfig struct {
	URL string `yaml:"url"`
	// Stream is the JetStream stream receiving lifecycle events.
	Stream string `yaml:"stream"`
	// SubjectPrefix is prepended to every event subject.
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DefaultNATSConfig returns default publisher settings.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Stream:        "FLEETDEX",
		SubjectPrefix: "fleetdex",
	}
}

// jetStreamNew is a variable to allow mocking in tests.
var jetStreamNew = func(nc *nats.Conn) (jetstream.JetStream, error) {
	return jetstream.New(nc)
}

// natsPublisher implements Publisher using NATS JetStream.
type natsPublisher struct {
	nc   *nats.Conn
	js   jetstream.JetStream
	opts NATSConfig
}

// NewNATSPublisher connects to NATS and ensures the stream exists.
func NewNATSPublisher(ctx context.Context, cfg NATSConfig) (Publisher, error) {
	if cfg.Stream == "" {
		return nil, fmt.Errorf("stream name is required")
	}

	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := jetStreamNew(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	subjects := []string{cfg.Stream + ".>"}
	if cfg.SubjectPrefix != "" && cfg.SubjectPrefix != cfg.Stream {
		subjects = []string{cfg.SubjectPrefix + ".>"}
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: subjects,
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	return &natsPublisher{nc: nc, js: js, opts: cfg}, nil
}

// Publish sends a message to the specified subject.
func (p *natsPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	fullSubject := subject
	if p.opts.SubjectPrefix != "" {
		fullSubject = p.opts.SubjectPrefix + "." + subject
	}

	if _, err := p.js.Publish(ctx, fullSubject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", fullSubject, err)
	}
	return nil
}

// Close drains the connection.
func (p *natsPublisher) Close() error {
	p.nc.Close()
	return nil
}
