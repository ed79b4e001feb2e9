// Package slots enforces the per-identity concurrent stream quota. A slot is
// a time-bounded lease against a named counter; abandoned leases self-expire
// so a crashed session cannot pin a user's quota forever.
package slots

import (
	"context"
	"time"
)

// Store acquires and releases stream slot leases.
//
// Acquire reports whether a slot was granted. Implementations backed by a
// shared store fail open: if the store is unreachable the caller is admitted,
// prioritizing availability over strict enforcement.
//
// Release is best-effort and idempotent with respect to the floor: releasing
// more than was acquired never drives the counter negative.
type Store interface {
	Acquire(ctx context.Context, key string, maxSlots int, ttl time.Duration) bool
	Release(ctx context.Context, key string)
}

// Key names the slot counter for a subject.
func Key(subject string) string {
	return "streams:" + subject
}
