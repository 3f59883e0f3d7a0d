package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClaims(t *testing.T) (*Claims, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewClaims(rdb, time.Minute), mr
}

func TestClaimsExclusive(t *testing.T) {
	c, _ := newClaims(t)
	ctx := context.Background()

	tok, ok, err := c.Acquire(ctx, "0xABC")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.Acquire(ctx, "0xabc")
	require.NoError(t, err)
	assert.False(t, ok, "hash claims are case-insensitive")

	require.NoError(t, c.Release(ctx, "0xabc", tok))

	_, ok, err = c.Acquire(ctx, "0xabc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClaimsReleaseKeepsForeignOwner(t *testing.T) {
	c, mr := newClaims(t)
	ctx := context.Background()

	_, ok, err := c.Acquire(ctx, "h1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.Release(ctx, "h1", "someone-else"))
	assert.True(t, mr.Exists(claimKey("h1")))
}

func TestClaimsExpire(t *testing.T) {
	c, mr := newClaims(t)
	ctx := context.Background()

	_, ok, err := c.Acquire(ctx, "h2")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	_, ok, err = c.Acquire(ctx, "h2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNilClaimsGrantEverything(t *testing.T) {
	var c *Claims = NewClaims(nil, 0)
	require.Nil(t, c)

	_, ok, err := c.Acquire(context.Background(), "h")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, c.Release(context.Background(), "h", "x"))
}
