package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	storecfg "fleetdex/internal/store/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, storecfg.BackendMemory, cfg.Store.Backend)
	assert.Empty(t, cfg.Agents.SecondaryIndexes)
	assert.False(t, cfg.Events.Enabled)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
logging:
  level: debug
  format: json
store:
  backend: mongo
  mongo:
    uri: mongodb://db.internal:27017
    database: fleet
agents:
  secondary_indexes:
    - agents-keys
events:
  enabled: true
  nats:
    url: nats://broker:4222
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, storecfg.BackendMongo, cfg.Store.Backend)
	assert.Equal(t, "mongodb://db.internal:27017", cfg.Store.Mongo.URI)
	assert.Equal(t, "fleet", cfg.Store.Mongo.Database)
	assert.Equal(t, 10*time.Second, cfg.Store.Mongo.ConnectTimeout, "unset values fall back to defaults")
	assert.Equal(t, []string{"agents-keys"}, cfg.Agents.SecondaryIndexes)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "nats://broker:4222", cfg.Events.NATS.URL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FLEETDEX_STORE_BACKEND", storecfg.BackendMongo)
	t.Setenv("FLEETDEX_MONGO_URI", "mongodb://override:27017")
	t.Setenv("FLEETDEX_MONGO_DATABASE", "override-db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, storecfg.BackendMongo, cfg.Store.Backend)
	assert.Equal(t, "mongodb://override:27017", cfg.Store.Mongo.URI)
	assert.Equal(t, "override-db", cfg.Store.Mongo.Database)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("FLEETDEX_STORE_BACKEND", "cassandra")

	_, err := Load("")
	assert.Error(t, err)
}
