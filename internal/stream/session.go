package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"talentstream/internal/audit"
	"talentstream/internal/auth"
	"talentstream/internal/counters"
	"talentstream/internal/limits/slots"
)

// Sink receives serialized frames for one client connection.
type Sink interface {
	Send(frame []byte) error
}

// serializationErrorFrame replaces an event whose payload cannot be encoded.
// One bad event must not end the whole stream.
var serializationErrorFrame = []byte(`{"error":"serialization_error"}`)

// Session is one admitted stream connection.
type Session struct {
	svc      *Service
	claims   *auth.Claims
	subject  string
	acquired bool
	events   <-chan audit.Event
	started  time.Time

	span trace.Span

	closeOnce sync.Once
}

// Run emits events to sink until the earliest deadline elapses, the
// broadcaster closes the subscription, the sink fails, or ctx is canceled
// (client disconnect). It always returns nil for mid-stream endings: by then
// the client-visible session has already started and failures end it
// silently.
func (sess *Session) Run(ctx context.Context, sink Sink) error {
	s := sess.svc

	for {
		// Earliest-deadline computation: one wait primitive races the next
		// event against min(remaining token lifetime, inactivity TTL).
		var wait time.Duration
		bounded := false

		if sess.claims != nil {
			remaining := sess.claims.Remaining(s.now())
			if remaining <= 0 {
				// Token expired mid-stream: end the session. The client
				// already holds an open stream, so this surfaces as the
				// frames simply stopping.
				return nil
			}
			wait = remaining
			bounded = true
		}
		if s.cfg.InactivityTTL > 0 && (!bounded || s.cfg.InactivityTTL < wait) {
			wait = s.cfg.InactivityTTL
			bounded = true
		}

		var timeout <-chan time.Time
		var timer *time.Timer
		if bounded {
			timer = time.NewTimer(wait)
			timeout = timer.C
		}

		select {
		case <-ctx.Done():
			// Clean disconnect, distinguishable from a drop in metrics.
			stopTimer(timer)
			s.counters.Add(ctx, counters.ConnectionsClosed, 1)
			return nil

		case <-timeout:
			s.counters.Add(ctx, counters.DroppedClients, 1)
			if s.metrics != nil {
				s.metrics.DroppedClients.Inc()
			}
			return nil

		case event, ok := <-sess.events:
			stopTimer(timer)
			if !ok {
				return nil
			}
			if err := sink.Send(frame(event)); err != nil {
				s.counters.Add(ctx, counters.ConnectionsClosed, 1)
				return nil
			}
			s.counters.Add(ctx, counters.EventsSent, 1)
			if s.metrics != nil {
				s.metrics.EventsSent.Inc()
			}
		}
	}
}

// Close tears the session down: unsubscribe, release the slot if one was
// acquired, decrement counters. Runs exactly once no matter how many exit
// paths race; all errors inside are best-effort and swallowed.
func (sess *Session) Close() {
	sess.closeOnce.Do(func() {
		s := sess.svc
		ctx := context.Background()

		s.hub.Unsubscribe(sess.events)
		if sess.acquired {
			s.slots.Release(ctx, slots.Key(sess.subject))
		}
		s.counters.Add(ctx, counters.ActiveConnections, -1)
		s.counters.AddUserStream(ctx, sess.subject, -1)
		if s.metrics != nil {
			s.metrics.ActiveStreams.Dec()
			s.metrics.ObserveDuration(s.now().Sub(sess.started))
		}
		sess.span.End()
	})
}

// frame serializes an event into the wire format.
func frame(event audit.Event) []byte {
	payload, err := json.Marshal(event)
	if err != nil {
		payload = serializationErrorFrame
	}
	out := make([]byte, 0, len(payload)+8)
	out = append(out, "event:"...)
	out = append(out, payload...)
	out = append(out, '\n', '\n')
	return out
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
