package slots

import (
	"context"
	"sync"
	"time"
)

type lease struct {
	count     int
	expiresAt time.Time
}

// MemoryStore is the in-process slot store used when Redis is not configured
// and in tests. Quotas are only enforced within one process.
type MemoryStore struct {
	mu     sync.Mutex
	leases map[string]*lease
	now    func() time.Time
}

// NewMemoryStore constructs an empty in-memory slot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leases: make(map[string]*lease),
		now:    time.Now,
	}
}

// Acquire takes a slot for key if the quota allows. The lease TTL is set when
// the counter first rises from zero, mirroring the Redis semantics.
func (s *MemoryStore) Acquire(ctx context.Context, key string, maxSlots int, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.leases[key]
	if l != nil && s.now().After(l.expiresAt) {
		delete(s.leases, key)
		l = nil
	}

	if l == nil {
		if maxSlots < 1 {
			return false
		}
		s.leases[key] = &lease{count: 1, expiresAt: s.now().Add(ttl)}
		return true
	}
	if l.count >= maxSlots {
		return false
	}
	l.count++
	return true
}

// Release decrements the counter for key, clamping at zero.
func (s *MemoryStore) Release(ctx context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.leases[key]
	if l == nil {
		return
	}
	l.count--
	if l.count <= 0 {
		delete(s.leases, key)
	}
}

// Count reports the live lease count for key. Test helper.
func (s *MemoryStore) Count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.leases[key]
	if l == nil || s.now().After(l.expiresAt) {
		return 0
	}
	return l.count
}
