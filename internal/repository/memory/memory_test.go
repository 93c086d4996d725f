package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewIdempotencyStore(time.Hour)
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	ok, err := s.AcquireLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = s.AcquireLock(ctx, "k", time.Minute)
	assert.False(t, ok)

	_, found, _ := s.GetResult(ctx, "k")
	assert.False(t, found)

	require.NoError(t, s.SaveResult(ctx, "k", "payload"))
	got, found, _ := s.GetResult(ctx, "k")
	assert.True(t, found)
	assert.Equal(t, "payload", got)

	clock = clock.Add(2 * time.Hour)
	_, found, _ = s.GetResult(ctx, "k")
	assert.False(t, found)

	ok, _ = s.AcquireLock(ctx, "k", time.Minute)
	assert.True(t, ok)
	require.NoError(t, s.Release(ctx, "k"))
	ok, _ = s.AcquireLock(ctx, "k", time.Minute)
	assert.True(t, ok)
}

func TestSlidingWindowLimiter(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, _, err := l.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	clock = clock.Add(10 * time.Second)
	ok, count, retry, err := l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, 50*time.Second, retry)

	ok, _, _, _ = l.Allow(ctx, "other")
	assert.True(t, ok)

	clock = clock.Add(time.Minute)
	ok, _, _, _ = l.Allow(ctx, "ip")
	assert.True(t, ok)
}
