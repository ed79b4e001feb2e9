package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type capturingPublisher struct {
	events []Event
}

func (p *capturingPublisher) Publish(event Event) {
	p.events = append(p.events, event)
}

type capturingStore struct {
	events []Event
	err    error
}

func (s *capturingStore) Append(ctx context.Context, event Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *capturingStore) List(ctx context.Context, limit, offset int) ([]Event, error) {
	return s.events, nil
}

type capturingNotifier struct {
	events []Event
}

func (n *capturingNotifier) Notify(event Event) {
	n.events = append(n.events, event)
}

type capturingProducer struct {
	events []Event
}

func (p *capturingProducer) Publish(ctx context.Context, event Event) {
	p.events = append(p.events, event)
}

type LoggerSuite struct {
	suite.Suite
	publisher *capturingPublisher
	store     *capturingStore
	notifier  *capturingNotifier
	producer  *capturingProducer
	audit     *Logger
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerSuite))
}

func (s *LoggerSuite) SetupTest() {
	s.publisher = &capturingPublisher{}
	s.store = &capturingStore{}
	s.notifier = &capturingNotifier{}
	s.producer = &capturingProducer{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var err error
	s.audit, err = NewLogger(
		s.publisher,
		WithStore(s.store),
		WithNotifier(s.notifier),
		WithProducer(s.producer),
		WithLogger(logger),
		WithClock(func() time.Time {
			return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		}),
	)
	s.Require().NoError(err)
}

func (s *LoggerSuite) TestNewLogger() {
	s.Run("nil broadcaster returns error", func() {
		_, err := NewLogger(nil)
		s.Error(err)
		s.Contains(err.Error(), "broadcaster is required")
	})

	s.Run("broadcaster alone suffices", func() {
		l, err := NewLogger(s.publisher)
		s.NoError(err)
		s.NotNil(l)
	})
}

func (s *LoggerSuite) TestLog() {
	ctx := context.Background()

	s.Run("fans out to every sink", func() {
		event := s.audit.Log(ctx, "user.login", "user-1", "session-9", map[string]any{"ip": "10.0.0.1"})

		s.NotEqual("00000000-0000-0000-0000-000000000000", event.ID.String())
		s.Equal("user.login", event.EventType)
		s.Equal("user-1", event.Actor)
		s.Equal("session-9", event.Target)
		s.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), event.Timestamp)

		s.Len(s.publisher.events, 1)
		s.Len(s.store.events, 1)
		s.Len(s.notifier.events, 1)
		s.Len(s.producer.events, 1)
		s.Equal(event.ID, s.publisher.events[0].ID)
	})

	s.Run("nil metadata becomes empty map", func() {
		event := s.audit.Log(ctx, "user.logout", "user-1", "", nil)
		s.NotNil(event.Metadata)
		s.Empty(event.Metadata)
	})

	s.Run("store failure does not stop the broadcast", func() {
		s.store.err = fmt.Errorf("disk full")

		before := len(s.publisher.events)
		event := s.audit.Log(ctx, "user.login", "user-2", "", nil)

		s.Len(s.publisher.events, before+1)
		s.Len(s.notifier.events, before+1)
		s.Equal("user.login", event.EventType)
	})
}

func (s *LoggerSuite) TestLogWithoutOptionalSinks() {
	l, err := NewLogger(s.publisher)
	s.Require().NoError(err)

	event := l.Log(context.Background(), "stream.opened", "user-1", "", nil)

	s.Len(s.publisher.events, 1)
	s.Empty(s.store.events)
	s.False(event.Timestamp.IsZero())
}
