package config

import (
	"fmt"
	"os"
	"time"
)

// Backend types supported by the factory.
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Config selects and configures the store backend.
type Config struct {
	// Backend is "mongo" or "memory".
	Backend string      `yaml:"backend"`
	Mongo   MongoConfig `yaml:"mongo"`
}

// MongoConfig holds MongoDB connection settings. Retry and timeout
// policy beyond ConnectTimeout belongs to the driver URI options.
type MongoConfig struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "fleetdex",
			ConnectTimeout: 10 * time.Second,
		},
	}
}

// ApplyDefaults fills in missing values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = "mongodb://localhost:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "fleetdex"
	}
	if c.Mongo.ConnectTimeout == 0 {
		c.Mongo.ConnectTimeout = 10 * time.Second
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("FLEETDEX_STORE_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("FLEETDEX_MONGO_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("FLEETDEX_MONGO_DATABASE"); v != "" {
		c.Mongo.Database = v
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMongo, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Backend)
	}
	if c.Backend == BackendMongo && c.Mongo.URI == "" {
		return fmt.Errorf("mongo backend requires a uri")
	}
	return nil
}
