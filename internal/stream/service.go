// Package stream orchestrates one audit-stream connection: authenticate,
// admit under the per-user quota, subscribe to the broadcaster, then emit
// events until a deadline, an upstream close, or the client disconnecting
// ends the session. Teardown releases the slot and decrements counters on
// every exit path, exactly once.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"talentstream/internal/audit"
	"talentstream/internal/auth"
	"talentstream/internal/counters"
	"talentstream/internal/limits/slots"
	"talentstream/internal/platform/metrics"
	dErrors "talentstream/pkg/domain-errors"
)

// Subscriber is the broadcaster surface the session consumes.
type Subscriber interface {
	Subscribe() <-chan audit.Event
	Unsubscribe(ch <-chan audit.Event)
}

// Verifier validates bearer tokens. Nil when authentication is unconfigured.
type Verifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// Config bounds session lifetime and concurrency.
type Config struct {
	// InactivityTTL ends a session that has emitted nothing for this long.
	// Zero disables the inactivity deadline.
	InactivityTTL time.Duration
	// MaxStreamsPerUser caps concurrent authenticated streams per subject.
	MaxStreamsPerUser int
	// SlotTTL bounds a slot lease so crashed sessions free their quota.
	SlotTTL time.Duration
}

// Service opens stream sessions.
type Service struct {
	hub      Subscriber
	slots    slots.Store
	counters *counters.Aggregator
	verifier Verifier
	metrics  *metrics.Metrics
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithVerifier enables token authentication.
func WithVerifier(verifier Verifier) Option {
	return func(s *Service) {
		s.verifier = verifier
	}
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs the session service. The broadcaster, slot store, and
// counter aggregator are required.
func New(hub Subscriber, slotStore slots.Store, agg *counters.Aggregator, cfg Config, opts ...Option) (*Service, error) {
	if hub == nil {
		return nil, fmt.Errorf("broadcaster is required")
	}
	if slotStore == nil {
		return nil, fmt.Errorf("slot store is required")
	}
	if agg == nil {
		return nil, fmt.Errorf("counter aggregator is required")
	}

	s := &Service{
		hub:      hub,
		slots:    slotStore,
		counters: agg,
		cfg:      cfg,
		now:      time.Now,
		tracer:   otel.Tracer("talentstream/stream"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open authenticates and admits one connection. On success the returned
// Session is subscribed to the broadcaster and counters are incremented; the
// caller must Close it. On error nothing is held: a rejected connection never
// consumes a slot or a subscription.
//
// An empty token opens an anonymous session: authentication and admission
// control are skipped, metrics still count it.
func (s *Service) Open(ctx context.Context, token string) (*Session, error) {
	var claims *auth.Claims
	subject := ""

	if token != "" {
		if s.verifier == nil {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication not configured")
		}
		var err error
		claims, err = s.verifier.Verify(ctx, token)
		if err != nil {
			return nil, err
		}
		if claims.Remaining(s.now()) <= 0 {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		subject = claims.Subject
	}

	acquired := false
	if subject != "" {
		acquired = s.slots.Acquire(ctx, slots.Key(subject), s.cfg.MaxStreamsPerUser, s.cfg.SlotTTL)
		if !acquired {
			if s.metrics != nil {
				s.metrics.StreamsDenied.Inc()
			}
			return nil, dErrors.New(dErrors.CodeTooManyStreams, "too many concurrent streams for user")
		}
	}

	s.counters.Add(ctx, counters.ActiveConnections, 1)
	s.counters.Add(ctx, counters.TotalConnections, 1)
	s.counters.AddUserStream(ctx, subject, 1)
	if s.metrics != nil {
		s.metrics.ActiveStreams.Inc()
		s.metrics.StreamsStarted.Inc()
	}

	_, span := s.tracer.Start(ctx, "stream.session",
		trace.WithAttributes(
			attribute.String("stream.subject", subject),
			attribute.Bool("stream.anonymous", subject == ""),
		))

	return &Session{
		svc:      s,
		claims:   claims,
		subject:  subject,
		acquired: acquired,
		events:   s.hub.Subscribe(),
		started:  s.now(),
		span:     span,
	}, nil
}
