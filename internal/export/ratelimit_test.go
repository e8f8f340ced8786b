package export

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRateLimit(t *testing.T) {
	d := CheckRateLimit(0, 10)
	assert.True(t, d.Allowed)
	assert.Equal(t, 10, d.Remaining)

	d = CheckRateLimit(9, 10)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	d = CheckRateLimit(10, 10)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d = CheckRateLimit(15, 10)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestLimiterTake(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewLimiter(rdb, 2, func() time.Time { return at })
	ctx := context.Background()

	d, err := limiter.Take(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)

	d, err = limiter.Take(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	d, err = limiter.Take(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	// Separate user, separate counter.
	d, err = limiter.Take(ctx, "u-2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiterWindowRollover(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	at := time.Date(2025, 6, 1, 12, 59, 0, 0, time.UTC)
	limiter := NewLimiter(rdb, 1, func() time.Time { return at })
	ctx := context.Background()

	d, err := limiter.Take(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = limiter.Take(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	at = at.Add(2 * time.Minute)
	d, err = limiter.Take(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
