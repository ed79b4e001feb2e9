// Package kafka produces audit events to a Kafka topic for downstream
// consumers (SIEM, warehousing). Like the webhook sink it is best-effort:
// produce errors are logged, never propagated to the ingestion path.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"talentstream/internal/audit"
)

// Publisher sends audit events to one topic.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New connects to the given brokers. Returns an error if no brokers are
// provided or the client cannot be constructed.
func New(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	p := &Publisher{client: client, topic: topic}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish produces the event asynchronously, keyed by actor so per-actor
// ordering survives partitioning.
func (p *Publisher) Publish(ctx context.Context, event audit.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		if p.logger != nil {
			p.logger.WarnContext(ctx, "kafka payload marshal failed",
				"event_type", event.EventType, "error", err)
		}
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Actor),
		Value: body,
	}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil && p.logger != nil {
			p.logger.Warn("kafka produce failed",
				"topic", p.topic, "event_type", event.EventType, "error", err)
		}
	})
}

// Close flushes outstanding records and releases the client.
func (p *Publisher) Close() {
	_ = p.client.Flush(context.Background())
	p.client.Close()
}
