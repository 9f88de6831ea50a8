package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-crm/internal/config"
	"github.com/celerix-dev/celerix-crm/internal/engine"
	"github.com/celerix-dev/celerix-crm/internal/logger"
)

func TestOpen_FileBackendRoundTrip(t *testing.T) {
	cfg := &config.Config{StoreBackend: config.BackendFile, DataDir: t.TempDir(), EncryptionKey: "s3cret"}
	key := engine.Key{Kind: "prospects", Partition: "u1"}

	s, err := Open(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Commit([]engine.Entry{{Key: key, Value: []byte(`[{"id":"p1"}]`)}}))
	require.NoError(t, s.Close())

	reopened, err := Open(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	val, err := reopened.Get(key)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"p1"}]`, string(val))
}

func TestOpen_Badger(t *testing.T) {
	cfg := &config.Config{StoreBackend: config.BackendBadger, DataDir: t.TempDir()}
	s, err := Open(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer s.Close()

	keys, err := s.Keys("")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreBackend: "tape"}, logger.Nop())
	assert.Error(t, err)
}
