package counters

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type AggregatorSuite struct {
	suite.Suite
	agg *Aggregator
}

func TestAggregatorSuite(t *testing.T) {
	suite.Run(t, new(AggregatorSuite))
}

func (s *AggregatorSuite) SetupTest() {
	s.agg = New()
}

func (s *AggregatorSuite) TestAddLocal() {
	ctx := context.Background()

	s.Run("accumulates deltas", func() {
		s.agg.Add(ctx, TotalConnections, 1)
		s.agg.Add(ctx, TotalConnections, 1)
		s.agg.Add(ctx, EventsSent, 5)

		snap := s.agg.Snapshot(ctx)
		s.Equal(int64(2), snap[TotalConnections])
		s.Equal(int64(5), snap[EventsSent])
	})

	s.Run("active connections clamp at zero", func() {
		s.agg.Add(ctx, ActiveConnections, 1)
		s.agg.Add(ctx, ActiveConnections, -1)
		s.agg.Add(ctx, ActiveConnections, -1)

		snap := s.agg.Snapshot(ctx)
		s.Equal(int64(0), snap[ActiveConnections])
	})

	s.Run("other counters may go negative", func() {
		s.agg.Add(ctx, "drift", -3)
		s.Equal(int64(-3), s.agg.Snapshot(ctx)["drift"])
	})
}

func (s *AggregatorSuite) TestAddConcurrent() {
	ctx := context.Background()
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.agg.Add(ctx, EventsSent, 1)
		}()
	}
	wg.Wait()

	s.Equal(int64(100), s.agg.Snapshot(ctx)[EventsSent])
}

func (s *AggregatorSuite) TestAddUserStream() {
	ctx := context.Background()

	s.agg.AddUserStream(ctx, "user-1", 1)
	s.agg.AddUserStream(ctx, "user-1", 1)
	s.agg.AddUserStream(ctx, "", 1)

	snap := s.agg.Snapshot(ctx)
	s.Equal(int64(2), snap["user_streams:user-1"])
	s.NotContains(snap, "user_streams:")
}

func (s *AggregatorSuite) TestRedisOutageFallsBackLocally() {
	// Central increments against a dead backend must land in the local map
	// without surfacing an error.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	agg := New(WithRedis(client), WithLogger(logger))

	ctx := context.Background()
	agg.Add(ctx, TotalConnections, 1)
	agg.Add(ctx, ActiveConnections, -1)

	snap := agg.Snapshot(ctx)
	s.Equal(int64(1), snap[TotalConnections])
	s.Equal(int64(0), snap[ActiveConnections])
}

func (s *AggregatorSuite) TestSnapshotIsACopy() {
	ctx := context.Background()
	s.agg.Add(ctx, EventsSent, 1)

	snap := s.agg.Snapshot(ctx)
	snap[EventsSent] = 99

	s.Equal(int64(1), s.agg.Snapshot(ctx)[EventsSent])
}
