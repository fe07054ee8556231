package store

import (
	"context"
	"errors"
	"testing"

	"fleetdex/internal/store/config"
	"fleetdex/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MemoryBackend(t *testing.T) {
	cfg := config.DefaultConfig()

	st, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.IsType(t, &memory.Backend{}, st)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.Config{Backend: "cassandra"})
	assert.Error(t, err)
}

func TestNew_MongoBackendPreparesIndexes(t *testing.T) {
	fake := &fakeMongo{}
	orig := newMongoBackend
	newMongoBackend = func(_ context.Context, _ config.MongoConfig) (Store, error) {
		return fake, nil
	}
	defer func() { newMongoBackend = orig }()

	cfg := config.Config{Backend: config.BackendMongo, Mongo: config.DefaultConfig().Mongo}
	st, err := New(context.Background(), cfg, "agents", "agents-keys")
	require.NoError(t, err)
	assert.Same(t, fake, st.(*fakeMongo))
	assert.Equal(t, []string{"agents", "agents-keys"}, fake.prepared)
}

func TestNew_MongoBackendConnectFailure(t *testing.T) {
	orig := newMongoBackend
	newMongoBackend = func(_ context.Context, _ config.MongoConfig) (Store, error) {
		return nil, errors.New("connection refused")
	}
	defer func() { newMongoBackend = orig }()

	cfg := config.Config{Backend: config.BackendMongo, Mongo: config.DefaultConfig().Mongo}
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_MongoBackendPrepareFailureCloses(t *testing.T) {
	fake := &fakeMongo{prepareErr: errors.New("index build failed")}
	orig := newMongoBackend
	newMongoBackend = func(_ context.Context, _ config.MongoConfig) (Store, error) {
		return fake, nil
	}
	defer func() { newMongoBackend = orig }()

	cfg := config.Config{Backend: config.BackendMongo, Mongo: config.DefaultConfig().Mongo}
	_, err := New(context.Background(), cfg, "agents")
	assert.Error(t, err)
	assert.True(t, fake.closed, "a backend that fails preparation is closed")
}

// fakeMongo satisfies Store and Preparer without a live server.
type fakeMongo struct {
	prepared   []string
	prepareErr error
	closed     bool
}

func (f *fakeMongo) Index(context.Context, string, string, Document, WriteOptions) error {
	return nil
}

func (f *fakeMongo) Get(context.Context, string, string) (Document, error) {
	return nil, ErrNotFound
}

func (f *fakeMongo) Update(context.Context, string, string, Document) error {
	return nil
}

func (f *fakeMongo) DeleteByQuery(context.Context, []string, []string, DeleteOptions) error {
	return nil
}

func (f *fakeMongo) Search(context.Context, string, Query) ([]Hit, error) {
	return nil, nil
}

func (f *fakeMongo) UpdateByScript(context.Context, string, Filter, Script) error {
	return nil
}

func (f *fakeMongo) Close(context.Context) error {
	f.closed = true
	return nil
}

func (f *fakeMongo) EnsureIndexes(_ context.Context, indexes ...string) error {
	if f.prepareErr != nil {
		return f.prepareErr
	}
	f.prepared = append(f.prepared, indexes...)
	return nil
}
