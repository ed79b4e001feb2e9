// Package webhook delivers audit events to an external endpoint on a
// best-effort basis. Delivery failures are logged and discarded; the
// ingestion path never waits on or learns about them.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"talentstream/internal/audit"
)

// Notifier posts audit events to a webhook URL in the background.
type Notifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) {
		n.client = client
	}
}

// New creates a Notifier for the given URL.
func New(url string, opts ...Option) *Notifier {
	n := &Notifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify dispatches the event in a detached goroutine and returns
// immediately. The POST runs against a fresh context so caller cancellation
// (e.g. the HTTP request finishing) does not abort an in-flight delivery.
func (n *Notifier) Notify(event audit.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		if n.logger != nil {
			n.logger.Warn("webhook payload marshal failed", "event_type", event.EventType, "error", err)
		}
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			if n.logger != nil {
				n.logger.Debug("webhook delivery failed", "event_type", event.EventType, "error", err)
			}
			return
		}
		resp.Body.Close()
	}()
}
