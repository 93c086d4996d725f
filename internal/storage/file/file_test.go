package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirinyoku/ticksy/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	s, err := New(path)
	require.NoError(t, err)

	_, err = s.Get(ctx, storage.KeyAccessToken)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, storage.KeyAccessToken, "tok-1"))
	require.NoError(t, s.Set(ctx, storage.KeyUser, `{"user_id":"u1"}`))

	v, err := s.Get(ctx, storage.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", v)

	require.NoError(t, s.Delete(ctx, storage.KeyAccessToken, storage.KeyUser))

	_, err = s.Get(ctx, storage.KeyUser)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	first, err := New(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, storage.KeyAccessToken, "persisted"))

	second, err := New(path)
	require.NoError(t, err)

	v, err := second.Get(ctx, storage.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "persisted", v)
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := New(path)
	require.NoError(t, err)

	_, err = s.Get(context.Background(), storage.KeyUser)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}
