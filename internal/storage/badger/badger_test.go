package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/celerix-crm/internal/engine"
)

func TestStore_CommitGetDelete(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()

	key := engine.Key{Kind: "prospects", Partition: "u1"}
	require.NoError(t, s.Commit([]engine.Entry{{Key: key, Value: []byte(`[]`)}}))

	val, err := s.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(val))

	require.NoError(t, s.Commit([]engine.Entry{{Key: key}}))
	_, err = s.Get(key)
	assert.ErrorIs(t, err, engine.ErrKeyNotFound)
}

func TestStore_CommitIsAllOrNothing(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()

	err = s.Commit([]engine.Entry{
		{Key: engine.Key{Kind: "prospects", Partition: "u1"}, Value: []byte(`[]`)},
		{Key: engine.Key{}, Value: []byte(`[]`)},
	})
	require.Error(t, err)

	keys, err := s.Keys("")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStore_Keys(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Commit([]engine.Entry{
		{Key: engine.Key{Kind: "prospects", Partition: "u1"}, Value: []byte(`[]`)},
		{Key: engine.Key{Kind: "activities", Partition: "u1"}, Value: []byte(`[]`)},
		{Key: engine.Key{Kind: "profile-index"}, Value: []byte(`[]`)},
	}))

	keys, err := s.Keys("prospects")
	require.NoError(t, err)
	assert.Equal(t, []engine.Key{{Kind: "prospects", Partition: "u1"}}, keys)

	all, err := s.Keys("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.GCInterval = 0

	s, err := Open(cfg)
	require.NoError(t, err)
	key := engine.Key{Kind: "profile", Partition: "u1"}
	require.NoError(t, s.Commit([]engine.Entry{{Key: key, Value: []byte(`{"id":"u1"}`)}}))
	require.NoError(t, s.Close())

	s2, err := Open(cfg)
	require.NoError(t, err)
	defer s2.Close()

	val, err := s2.Get(key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u1"}`, string(val))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestMigrateFromMemStore(t *testing.T) {
	src := engine.NewMemStore(nil, nil)
	require.NoError(t, src.Commit([]engine.Entry{
		{Key: engine.Key{Kind: "prospects", Partition: "u1"}, Value: []byte(`[{"id":"p"}]`)},
	}))

	dst, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer dst.Close()

	n, err := engine.Migrate(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	val, err := dst.Get(engine.Key{Kind: "prospects", Partition: "u1"})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"p"}]`, string(val))
}
