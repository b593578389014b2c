package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	l := NewRedisLimiter(client, "auth", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "ip:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "ip:10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok, "other keys have their own window")

	s.FastForward(time.Minute + time.Second)
	ok, err = l.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "window expired")
}

func TestRedisLimiterKeyIsHashed(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	_, err = NewRedisLimiter(client, "auth", 1, time.Minute).Allow(context.Background(), "ip:1.2.3.4")
	require.NoError(t, err)

	keys := s.Keys()
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], "1.2.3.4")
	assert.True(t, s.TTL(keys[0]) > 0)
}

func TestRedisLimiterError(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	defer client.Close()
	s.Close()

	_, err = NewRedisLimiter(client, "auth", 1, time.Minute).Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter(3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow(ctx, "a")
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "a")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "b")
	assert.True(t, ok)
}

func TestMemoryLimiterEvictsIdleKeys(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.lastSweep.Store(now.UnixNano())
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		ok, _ := l.Allow(ctx, fmt.Sprintf("ip:10.0.0.%d", i))
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "ip:10.0.0.0")
	assert.False(t, ok)
	assert.Equal(t, 100, l.Len())

	now = now.Add(30 * time.Second)
	ok, _ = l.Allow(ctx, "ip:10.0.0.1")
	assert.False(t, ok, "half a window is not enough to refill")
	assert.Equal(t, 100, l.Len())

	now = now.Add(61 * time.Second)
	ok, _ = l.Allow(ctx, "ip:192.0.2.9")
	assert.True(t, ok)
	assert.Equal(t, 1, l.Len(), "keys idle for a full window are dropped")

	ok, _ = l.Allow(ctx, "ip:10.0.0.0")
	assert.True(t, ok, "an evicted key starts with a full bucket")
}

func TestNewRedisClientBadURL(t *testing.T) {
	_, err := NewRedisClient("not a url")
	assert.Error(t, err)

	c, err := NewRedisClient("redis://localhost:6379/0")
	require.NoError(t, err)
	c.Close()
}
