package slots

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
}

func (s *MemoryStoreSuite) TestAcquire() {
	ctx := context.Background()
	key := Key("user-1")

	s.Run("grants up to the quota", func() {
		for range 5 {
			s.True(s.store.Acquire(ctx, key, 5, time.Hour))
		}
		s.False(s.store.Acquire(ctx, key, 5, time.Hour))
		s.Equal(5, s.store.Count(key))
	})

	s.Run("keys are independent", func() {
		s.True(s.store.Acquire(ctx, Key("user-2"), 1, time.Hour))
		s.False(s.store.Acquire(ctx, Key("user-2"), 1, time.Hour))
		s.True(s.store.Acquire(ctx, Key("user-3"), 1, time.Hour))
	})

	s.Run("zero quota never grants", func() {
		s.False(s.store.Acquire(ctx, Key("user-4"), 0, time.Hour))
	})
}

func (s *MemoryStoreSuite) TestAcquireConcurrent() {
	// With N goroutines racing for M slots, exactly M must win.
	ctx := context.Background()
	key := Key("user-racy")
	const goroutines = 50
	const quota = 5

	var wg sync.WaitGroup
	granted := make([]bool, goroutines)
	for i := range granted {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted[i] = s.store.Acquire(ctx, key, quota, time.Hour)
		}()
	}
	wg.Wait()

	wins := 0
	for _, ok := range granted {
		if ok {
			wins++
		}
	}
	s.Equal(quota, wins)
	s.Equal(quota, s.store.Count(key))
}

func (s *MemoryStoreSuite) TestRelease() {
	ctx := context.Background()
	key := Key("user-1")

	s.Run("frees a slot", func() {
		s.True(s.store.Acquire(ctx, key, 1, time.Hour))
		s.False(s.store.Acquire(ctx, key, 1, time.Hour))

		s.store.Release(ctx, key)
		s.True(s.store.Acquire(ctx, key, 1, time.Hour))
	})

	s.Run("clamps at zero", func() {
		s.store.Release(ctx, key)
		s.store.Release(ctx, key)
		s.Equal(0, s.store.Count(key))

		s.True(s.store.Acquire(ctx, key, 1, time.Hour))
	})

	s.Run("unknown key is a no-op", func() {
		s.store.Release(ctx, Key("never-acquired"))
		s.Equal(0, s.store.Count(Key("never-acquired")))
	})
}

func (s *MemoryStoreSuite) TestLeaseExpiry() {
	ctx := context.Background()
	key := Key("user-ttl")
	now := time.Now()
	s.store.now = func() time.Time { return now }

	// TTL is fixed when the counter first leaves zero; later grants do not
	// extend it.
	s.True(s.store.Acquire(ctx, key, 3, time.Minute))
	now = now.Add(30 * time.Second)
	s.True(s.store.Acquire(ctx, key, 3, time.Minute))
	s.Equal(2, s.store.Count(key))

	now = now.Add(31 * time.Second)
	s.Equal(0, s.store.Count(key))
	s.True(s.store.Acquire(ctx, key, 3, time.Minute))
	s.Equal(1, s.store.Count(key))
}

func TestKey(t *testing.T) {
	if got := Key("alice"); got != "streams:alice" {
		t.Fatalf("unexpected key %q", got)
	}
}
