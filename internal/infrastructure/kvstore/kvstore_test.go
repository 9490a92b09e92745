package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/campus-identity/internal/domain/repository"
)

func exerciseStore(t *testing.T, s repository.KeyValueStore) {
	t.Helper()
	ctx := context.Background()

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "k", []byte(`{"id":"u1"}`)))
	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"id":"u1"}`, string(v))

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))
	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json")))
}

func TestFileStore_KeepsOtherKeys(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	require.NoError(t, s.Set(ctx, "b", []byte("2")))
	require.NoError(t, s.Delete(ctx, "a"))

	v, found, err := s.Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2", string(v))
}

func TestFileStore_CorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))
	s := NewFileStore(path)

	_, _, err := s.Get(ctx, "k")
	require.Error(t, err)

	require.NoError(t, s.Delete(ctx, "k"))
	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	exerciseStore(t, NewRedisStore(rdb, "campus:"))

	require.NoError(t, NewRedisStore(rdb, "campus:").Set(context.Background(), "x", []byte("y")))
	got, err := mr.Get("campus:x")
	require.NoError(t, err)
	assert.Equal(t, "y", got)
}
