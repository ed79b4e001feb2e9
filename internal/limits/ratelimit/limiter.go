// Package ratelimit bounds request rates per client identity. The primary
// limiter is a shared Redis counter so limits hold across instances; an
// in-memory sliding window takes over when Redis errors.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter reports whether a request under the given key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter counts requests with INCR, setting the window TTL on the
// first increment.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter constructs a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	val, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if val == 1 {
		_ = l.client.Expire(ctx, key, l.window).Err()
	}
	return val <= int64(l.limit), nil
}

// MemoryLimiter is the in-process fallback: a sliding window of request
// timestamps per key. Only effective within one process.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string][]time.Time
}

// NewMemoryLimiter constructs an in-memory sliding-window limiter.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		entries: make(map[string][]time.Time),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.entries[key][:0]
	for _, ts := range l.entries[key] {
		if now.Sub(ts) < l.window {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.entries[key] = kept
		return false, nil
	}
	l.entries[key] = append(kept, now)
	return true, nil
}
