//go:build integration

package slots_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"talentstream/internal/limits/slots"
	"talentstream/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *slots.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = slots.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestAcquireEnforcesQuota() {
	ctx := context.Background()
	key := slots.Key("user-1")

	for range 3 {
		s.True(s.store.Acquire(ctx, key, 3, time.Hour))
	}
	s.False(s.store.Acquire(ctx, key, 3, time.Hour))

	// Another subject has its own quota.
	s.True(s.store.Acquire(ctx, slots.Key("user-2"), 3, time.Hour))
}

func (s *RedisStoreSuite) TestAcquireIsAtomicUnderContention() {
	// The compare-and-increment runs server-side, so concurrent acquirers
	// across connections never exceed the cap.
	ctx := context.Background()
	key := slots.Key("user-racy")
	const goroutines = 30
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

	val, err := s.redis.Client.Get(ctx, key).Int()
	s.Require().NoError(err)
	s.GreaterOrEqual(val, quota)
}

func (s *RedisStoreSuite) TestTTLSetOnFirstIncrementOnly() {
	ctx := context.Background()
	key := slots.Key("user-ttl")

	s.True(s.store.Acquire(ctx, key, 5, 100*time.Second))
	first, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.Greater(first, 90*time.Second)

	// A later acquire with a different TTL must not reset the lease.
	s.True(s.store.Acquire(ctx, key, 5, 10000*time.Second))
	second, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.LessOrEqual(second, first)
}

func (s *RedisStoreSuite) TestReleaseFreesSlotAndClampsAtZero() {
	ctx := context.Background()
	key := slots.Key("user-1")

	s.True(s.store.Acquire(ctx, key, 1, time.Hour))
	s.False(s.store.Acquire(ctx, key, 1, time.Hour))

	s.store.Release(ctx, key)
	s.True(s.store.Acquire(ctx, key, 1, time.Hour))

	// Double release drives the counter negative; it must reset to zero so
	// the next acquire still counts correctly.
	s.store.Release(ctx, key)
	s.store.Release(ctx, key)
	val, err := s.redis.Client.Get(ctx, key).Int()
	s.Require().NoError(err)
	s.Equal(0, val)

	s.True(s.store.Acquire(ctx, key, 1, time.Hour))
	s.False(s.store.Acquire(ctx, key, 1, time.Hour))
}
