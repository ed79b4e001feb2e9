// Package jwks caches third-party signing keys so token verification survives
// key rotation without refetching the key set on every request.
package jwks

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrUnknownKey is returned when a kid is absent even after a forced refresh.
var ErrUnknownKey = errors.New("jwks: unknown signing key")

// ErrKeysUnavailable is returned when a refresh fails with no cached keys to
// fall back on. With a non-empty cache, refresh failures are swallowed.
var ErrKeysUnavailable = errors.New("jwks: signing keys unavailable")

const defaultTTL = 300 * time.Second

// Cache holds the most recently fetched key set, keyed by kid. Keys are
// refreshed lazily once the TTL elapses, or immediately when verification
// names a kid the cache has never seen (key rotation). A failed refresh keeps
// serving the stale set as long as one exists.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	lastRefresh time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default 300s refresh interval.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache constructs a key cache around the given fetcher.
func NewCache(fetcher Fetcher, opts ...Option) (*Cache, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("jwks fetcher is required")
	}

	c := &Cache{
		fetcher: fetcher,
		ttl:     defaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SigningKey returns the public key for kid. An unrecognized kid triggers
// exactly one forced refresh, bypassing the TTL, before the key is declared
// unknown.
func (c *Cache) SigningKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if err := c.ensureKeys(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	key := c.keys[kid]
	seen := c.lastRefresh
	c.mu.RUnlock()
	if key != nil {
		return key, nil
	}

	// Unknown kid: the set may have rotated since the last refresh.
	if err := c.forceRefresh(ctx, seen); err != nil {
		return nil, err
	}

	c.mu.RLock()
	key = c.keys[kid]
	c.mu.RUnlock()
	if key == nil {
		return nil, fmt.Errorf("%w: kid=%s", ErrUnknownKey, kid)
	}
	return key, nil
}

// ensureKeys refreshes the cache only when stale. Concurrent callers collapse
// into a single fetch: the first to take the write lock refreshes, the rest
// observe the updated timestamp on their double-check and return.
func (c *Cache) ensureKeys(ctx context.Context) error {
	c.mu.RLock()
	fresh := c.isFresh()
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isFresh() {
		return nil
	}
	return c.refreshLocked(ctx)
}

// forceRefresh bypasses the TTL check. Used when a kid is missing. Callers
// pass the refresh timestamp they observed the miss against; if another
// goroutine already refreshed since then, the fetch is skipped so a burst of
// unknown-kid requests costs a single round trip.
func (c *Cache) forceRefresh(ctx context.Context, seen time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastRefresh.After(seen) {
		return nil
	}
	return c.refreshLocked(ctx)
}

// refreshLocked fetches the key set. Fetch failures are swallowed while a
// non-empty set is cached: stale keys keep serving until they rotate out.
func (c *Cache) refreshLocked(ctx context.Context) error {
	set, err := c.fetcher.FetchKeys(ctx)
	if err != nil {
		if len(c.keys) > 0 {
			if c.logger != nil {
				c.logger.WarnContext(ctx, "jwks refresh failed, serving stale keys",
					"error", err,
					"cached_keys", len(c.keys),
				)
			}
			return nil
		}
		return fmt.Errorf("%w: %v", ErrKeysUnavailable, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Kid == "" {
			continue
		}
		pub, err := jwk.PublicKey()
		if err != nil {
			if c.logger != nil {
				c.logger.WarnContext(ctx, "skipping unusable jwk", "kid", jwk.Kid, "error", err)
			}
			continue
		}
		keys[jwk.Kid] = pub
	}

	c.keys = keys
	c.lastRefresh = c.now()
	return nil
}

func (c *Cache) isFresh() bool {
	return len(c.keys) > 0 && c.now().Sub(c.lastRefresh) < c.ttl
}

// Status reports cache state for the health endpoint.
type Status struct {
	CachedKeys  []string  `json:"cached_keys"`
	LastRefresh time.Time `json:"last_refresh"`
	CacheTTL    string    `json:"cache_ttl"`
}

// Status returns a snapshot of the cache contents.
func (c *Cache) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	kids := make([]string, 0, len(c.keys))
	for kid := range c.keys {
		kids = append(kids, kid)
	}
	return Status{
		CachedKeys:  kids,
		LastRefresh: c.lastRefresh,
		CacheTTL:    c.ttl.String(),
	}
}
