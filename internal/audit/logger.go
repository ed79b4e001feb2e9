package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher delivers an event to live in-process subscribers.
type Publisher interface {
	Publish(event Event)
}

// Notifier delivers an event to an external webhook without blocking.
type Notifier interface {
	Notify(event Event)
}

// Producer delivers an event to a message broker.
type Producer interface {
	Publish(ctx context.Context, event Event)
}

// Logger is the single ingestion point for audit events. Every call fans out
// to durable storage, the webhook, the broker, and the live broadcaster.
// The sinks are independent: a failure in one never prevents the others, and
// only the broadcaster is mandatory.
type Logger struct {
	publisher Publisher
	store     Store
	notifier  Notifier
	producer  Producer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithStore enables durable persistence.
func WithStore(store Store) Option {
	return func(l *Logger) {
		l.store = store
	}
}

// WithNotifier enables webhook delivery.
func WithNotifier(notifier Notifier) Option {
	return func(l *Logger) {
		l.notifier = notifier
	}
}

// WithProducer enables broker delivery.
func WithProducer(producer Producer) Option {
	return func(l *Logger) {
		l.producer = producer
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		l.logger = logger
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// NewLogger constructs the ingestion point. The broadcaster is required;
// everything else is optional.
func NewLogger(publisher Publisher, opts ...Option) (*Logger, error) {
	if publisher == nil {
		return nil, fmt.Errorf("audit broadcaster is required")
	}
	l := &Logger{
		publisher: publisher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Log records one audit event and returns it. Storage and broker failures
// are logged and swallowed; live subscribers still receive the event.
func (l *Logger) Log(ctx context.Context, eventType, actor, target string, metadata map[string]any) Event {
	if metadata == nil {
		metadata = map[string]any{}
	}
	event := Event{
		ID:        uuid.New(),
		EventType: eventType,
		Actor:     actor,
		Target:    target,
		Metadata:  metadata,
		Timestamp: l.now().UTC(),
	}

	if l.logger != nil {
		l.logger.InfoContext(ctx, "audit event",
			"event_type", event.EventType,
			"actor", event.Actor,
			"target", event.Target,
		)
	}

	if l.store != nil {
		if err := l.store.Append(ctx, event); err != nil && l.logger != nil {
			l.logger.WarnContext(ctx, "audit store append failed",
				"event_type", event.EventType, "error", err)
		}
	}

	if l.notifier != nil {
		l.notifier.Notify(event)
	}

	if l.producer != nil {
		l.producer.Publish(ctx, event)
	}

	l.publisher.Publish(event)
	return event
}
