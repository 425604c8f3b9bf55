package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransientRepository(t *testing.T, clock *time.Time) *transientRepository {
	t.Helper()

	repo := NewTransientRepository(openTestDB(t)).(*transientRepository)
	repo.now = func() time.Time { return *clock }
	return repo
}

func TestTransient_SetGetDelete(t *testing.T) {
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newTestTransientRepository(t, &clock)
	ctx := context.Background()

	_, ok, err := repo.Get(ctx, "screenshot_abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Set(ctx, "screenshot_abc", []byte("first"), time.Hour))
	require.NoError(t, repo.Set(ctx, "screenshot_abc", []byte("second"), time.Hour))

	value, ok, err := repo.Get(ctx, "screenshot_abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("second"), value)

	require.NoError(t, repo.Delete(ctx, "screenshot_abc"))
	_, ok, err = repo.Get(ctx, "screenshot_abc")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, repo.Delete(ctx, "never-set"))
}

func TestTransient_ExpiryAndPurge(t *testing.T) {
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newTestTransientRepository(t, &clock)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "short", []byte("a"), time.Hour))
	require.NoError(t, repo.Set(ctx, "long", []byte("b"), 48*time.Hour))
	require.NoError(t, repo.Set(ctx, "forever", []byte("c"), 0))

	clock = clock.Add(2 * time.Hour)

	_, ok, err := repo.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok, "expired rows read as misses")

	_, ok, err = repo.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)

	deleted, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	clock = clock.Add(365 * 24 * time.Hour)
	deleted, err = repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	value, ok, err := repo.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("c"), value)
}
