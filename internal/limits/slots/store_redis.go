package slots

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// acquireScript performs the compare-and-increment atomically server-side,
// eliminating the check-then-act race between concurrent acquirers. The TTL
// is set only when the key has none, i.e. on the first increment from unset.
var acquireScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if (not current) or (tonumber(current) < tonumber(ARGV[1])) then
  local v = redis.call('INCR', KEYS[1])
  if tonumber(redis.call('TTL', KEYS[1])) < 0 then redis.call('EXPIRE', KEYS[1], ARGV[2]) end
  if tonumber(v) <= tonumber(ARGV[1]) then
    return 1
  else
    return 0
  end
end
return 0
`)

// RedisStore is the production slot store for distributed deployments where
// multiple instances share one quota per user.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithLogger attaches a structured logger for degraded-mode visibility.
func WithLogger(logger *slog.Logger) RedisOption {
	return func(s *RedisStore) {
		s.logger = logger
	}
}

// NewRedisStore constructs a Redis-backed slot store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Acquire attempts to take a slot for key. Fails open when Redis is
// unreachable: an outage of the admission store must not take streaming down
// with it.
func (s *RedisStore) Acquire(ctx context.Context, key string, maxSlots int, ttl time.Duration) bool {
	res, err := acquireScript.Run(ctx, s.client, []string{key},
		maxSlots, int(ttl.Seconds())).Int()
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "slot acquire failed open", "key", key, "error", err)
		}
		return true
	}
	return res == 1
}

// Release decrements the slot counter, resetting to zero if a double release
// drove it negative. Errors are swallowed: the session is already over.
func (s *RedisStore) Release(ctx context.Context, key string) {
	val, err := s.client.Decr(ctx, key).Result()
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "slot release failed", "key", key, "error", err)
		}
		return
	}
	if val < 0 {
		_ = s.client.Set(ctx, key, 0, redis.KeepTTL).Err()
	}
}
