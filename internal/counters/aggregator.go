// Package counters aggregates operational counters in a shared Redis hash so
// numbers hold across instances, with a process-local fallback when Redis is
// unreachable. The two counter spaces are deliberately not reconciled: a
// counter bumped locally during an outage stays local. These counters are
// observational; admission decisions never read them.
package counters

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// hashKey is the Redis hash holding all central counters.
const hashKey = "talent_metrics"

// Well-known counter names.
const (
	ActiveConnections = "active_connections"
	TotalConnections  = "total_connections"
	ConnectionsClosed = "connections_closed"
	DroppedClients    = "dropped_clients"
	EventsSent        = "events_sent"
)

// Aggregator tracks named counters, centrally when Redis is configured.
type Aggregator struct {
	client *redis.Client
	logger *slog.Logger

	mu    sync.Mutex
	local map[string]int64
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithRedis enables the central counter space. Without it every increment
// lands in the local map.
func WithRedis(client *redis.Client) Option {
	return func(a *Aggregator) {
		a.client = client
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// New constructs an Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		local: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Add increments the named counter by delta (negative for decrements). The
// central increment is attempted first; any failure falls back to the local
// counter and is never surfaced to the caller.
func (a *Aggregator) Add(ctx context.Context, name string, delta int64) {
	if a.client != nil {
		val, err := a.client.HIncrBy(ctx, hashKey, name, delta).Result()
		if err == nil {
			if val < 0 && name == ActiveConnections {
				_ = a.client.HSet(ctx, hashKey, name, 0).Err()
			}
			return
		}
		if a.logger != nil {
			a.logger.DebugContext(ctx, "central counter unavailable, using local",
				"counter", name, "error", err)
		}
	}
	a.addLocal(name, delta)
}

// AddUserStream adjusts the observational per-user stream count. Enforcement
// lives in the slots store; this only feeds dashboards.
func (a *Aggregator) AddUserStream(ctx context.Context, subject string, delta int64) {
	if subject == "" {
		return
	}
	a.Add(ctx, "user_streams:"+subject, delta)
}

func (a *Aggregator) addLocal(name string, delta int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	v := a.local[name] + delta
	if v < 0 && name == ActiveConnections {
		v = 0
	}
	a.local[name] = v
}

// Snapshot returns the central counters when reachable, otherwise the local
// ones. Callers should treat the result as approximate during outages.
func (a *Aggregator) Snapshot(ctx context.Context) map[string]int64 {
	if a.client != nil {
		raw, err := a.client.HGetAll(ctx, hashKey).Result()
		if err == nil {
			out := make(map[string]int64, len(raw))
			for name, val := range raw {
				n, err := strconv.ParseInt(val, 10, 64)
				if err != nil {
					continue
				}
				out[name] = n
			}
			return out
		}
		if a.logger != nil {
			a.logger.DebugContext(ctx, "central counter snapshot unavailable", "error", err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int64, len(a.local))
	for name, val := range a.local {
		out[name] = val
	}
	return out
}
