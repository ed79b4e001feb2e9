// Package metrics holds the Prometheus instruments for the streaming path.
// These are observational: admission decisions never consult them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ActiveStreams    prometheus.Gauge
	StreamsStarted   prometheus.Counter
	StreamsDenied    prometheus.Counter
	DroppedClients   prometheus.Counter
	EventsSent       prometheus.Counter
	EventsPublished  prometheus.Counter
	StreamDurationMs prometheus.Histogram
}

// New creates and registers all Prometheus metrics with the given registerer.
// Pass prometheus.NewRegistry() in tests to keep instances isolated.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "talentstream_active_streams",
			Help: "Number of currently open audit stream sessions",
		}),
		StreamsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "talentstream_streams_started_total",
			Help: "Total stream sessions that passed admission",
		}),
		StreamsDenied: factory.NewCounter(prometheus.CounterOpts{
			Name: "talentstream_streams_denied_total",
			Help: "Total stream sessions denied by admission control",
		}),
		DroppedClients: factory.NewCounter(prometheus.CounterOpts{
			Name: "talentstream_dropped_clients_total",
			Help: "Total sessions terminated by inactivity or token expiry",
		}),
		EventsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "talentstream_events_sent_total",
			Help: "Total audit events emitted to stream clients",
		}),
		EventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "talentstream_events_published_total",
			Help: "Total audit events accepted by the ingestion point",
		}),
		StreamDurationMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "talentstream_stream_duration_ms",
			Help:    "Stream session duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 4, 10),
		}),
	}
}

// ObserveDuration records a finished session's lifetime.
func (m *Metrics) ObserveDuration(d time.Duration) {
	m.StreamDurationMs.Observe(float64(d.Milliseconds()))
}
