package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrSetCachesResult(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewRedisCacheFromClient(client)
	ctx := context.Background()

	calls := 0
	fn := func() ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	first, err := GetOrSet(cache, ctx, "k", time.Minute, fn)
	require.NoError(t, err)
	second, err := GetOrSet(cache, ctx, "k", time.Minute, fn)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	_, err = GetOrSet[[]string](nil, ctx, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestClaimAndRelease(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewRedisCacheFromClient(client)
	ctx := context.Background()

	ok, err := cache.Claim(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("shopsquad:lock"))

	ok, err = cache.Claim(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Release(ctx, "lock"))
	ok, err = cache.Claim(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("shopsquad:lock"))
}
