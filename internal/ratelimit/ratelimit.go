package ratelimit

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key fits the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

func hashKey(key string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}

// NewRedisClient builds a client from a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// RedisLimiter is a fixed window counter shared by every API instance.
type RedisLimiter struct {
	client   *redis.Client
	prefix   string
	requests int
	window   time.Duration
}

func NewRedisLimiter(client *redis.Client, prefix string, requests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, requests: requests, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	k := "rate_limit:" + l.prefix + ":" + hashKey(key)
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}
	return count <= int64(l.requests), nil
}

// MemoryLimiter keeps a token bucket per key in process memory. The bucket
// refills requests tokens per window with a burst of requests, so a key
// idle for a whole window is back at full burst and can be forgotten.
// Idle keys are swept at most once per window.
type MemoryLimiter struct {
	visitors  sync.Map // hashed key -> *visitor
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep atomic.Int64
	now       func() time.Time
}

type visitor struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64
}

func NewMemoryLimiter(requests int, window time.Duration) *MemoryLimiter {
	if requests <= 0 {
		requests = 1
	}
	limit := rate.Inf
	idle := time.Minute
	if window > 0 {
		limit = rate.Limit(float64(requests) / window.Seconds())
		idle = window
	}
	l := &MemoryLimiter{limit: limit, burst: requests, idleTTL: idle, now: time.Now}
	l.lastSweep.Store(l.now().UnixNano())
	return l
}

func (l *MemoryLimiter) lookup(key string, now time.Time) *visitor {
	v, ok := l.visitors.Load(key)
	if !ok {
		v, _ = l.visitors.LoadOrStore(key, &visitor{lim: rate.NewLimiter(l.limit, l.burst)})
	}
	vis := v.(*visitor)
	vis.lastSeen.Store(now.UnixNano())
	return vis
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()
	l.sweep(now)
	return l.lookup(hashKey(key), now).lim.AllowN(now, 1), nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	last := l.lastSweep.Load()
	if now.UnixNano()-last < int64(l.idleTTL) || !l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	cutoff := now.Add(-l.idleTTL).UnixNano()
	l.visitors.Range(func(k, v any) bool {
		if v.(*visitor).lastSeen.Load() <= cutoff {
			l.visitors.Delete(k)
		}
		return true
	})
}

// Len reports how many keys are currently tracked.
func (l *MemoryLimiter) Len() int {
	n := 0
	l.visitors.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
