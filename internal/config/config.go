// Package config composes the per-component configurations and loads
// them from YAML with environment overrides.
package config

import (
	"fmt"
	"os"

	"fleetdex/internal/events"
	"fleetdex/internal/index/agents"
	"fleetdex/internal/logging"
	storecfg "fleetdex/internal/store/config"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Logging logging.Config  `yaml:"logging"`
	Store   storecfg.Config `yaml:"store"`
	Agents  agents.Config   `yaml:"agents"`
	Events  EventsConfig    `yaml:"events"`
}

// EventsConfig enables and configures lifecycle event publication.
type EventsConfig struct {
	Enabled bool              `yaml:"enabled"`
	NATS    events.NATSConfig `yaml:"nats"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		Store:   storecfg.DefaultConfig(),
		Agents:  agents.DefaultConfig(),
		Events: EventsConfig{
			Enabled: false,
			NATS:    events.DefaultNATSConfig(),
		},
	}
}

// Load reads configuration: defaults, then the YAML file when path is
// non-empty, then environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Store.ApplyDefaults()
	cfg.Store.ApplyEnvOverrides()

	if err := cfg.Store.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}
