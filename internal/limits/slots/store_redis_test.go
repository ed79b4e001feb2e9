package slots

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// Connectivity-dependent behavior lives in the integration tests; this file
// covers the fail-open path, which needs an unreachable Redis.
func TestRedisStoreFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewRedisStore(client, WithLogger(logger))

	ctx := context.Background()

	// Quota enforcement is unavailable, so admission must not block streams.
	for range 10 {
		assert.True(t, store.Acquire(ctx, Key("user-1"), 1, time.Hour))
	}

	// Release against a dead backend must not panic.
	store.Release(ctx, Key("user-1"))
}
