// Package metrics defines the Prometheus metrics exported on /metrics.
//
// Record methods are safe to call on a nil *Metrics so tests and tools can
// run handlers without a registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Dispatch
	DispatchTotal          *prometheus.CounterVec
	HandlerDurationSeconds *prometheus.HistogramVec
	EventsTotal            *prometheus.CounterVec

	// Completion providers
	LLMRequestsTotal   *prometheus.CounterVec
	LLMDurationSeconds *prometheus.HistogramVec

	// Handler state
	KarmaChangesTotal *prometheus.CounterVec
	FactoidPending    prometheus.Gauge

	// Rate limiter
	RateLimiterDropped *prometheus.CounterVec

	// Slack user directory
	UserLookupsTotal *prometheus.CounterVec

	// Snapshots
	SnapshotTotal           *prometheus.CounterVec
	SnapshotDurationSeconds prometheus.Histogram
}

// New creates and registers every metric on registry.
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		DispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lullabot_dispatch_total",
				Help: "Dispatched events by owning handler and outcome",
			},
			[]string{"handler", "outcome"}, // outcome: handled, fallback, failed, ignored, rate_limited
		),

		HandlerDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lullabot_handler_duration_seconds",
				Help:    "Handler response time in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"handler"},
		),

		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lullabot_events_total",
				Help: "Slack events received by type and disposition",
			},
			[]string{"event_type", "status"}, // status: dispatched, skipped
		),

		LLMRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lullabot_llm_requests_total",
				Help: "Completion requests by provider and status",
			},
			[]string{"provider", "status"}, // status: success, error, fallback
		),

		LLMDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lullabot_llm_duration_seconds",
				Help:    "Completion latency in seconds by provider",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
			},
			[]string{"provider"},
		),

		KarmaChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lullabot_karma_changes_total",
				Help: "Karma mutations by direction",
			},
			[]string{"direction"}, // up, down, rejected
		),

		FactoidPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "lullabot_factoid_pending_requests",
				Help: "Factoid confirmations awaiting YES/NO/APPEND",
			},
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lullabot_rate_limiter_dropped_total",
				Help: "Requests rejected by a rate limiter",
			},
			[]string{"limiter"}, // user, llm
		),

		UserLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lullabot_user_lookups_total",
				Help: "Slack users.info lookups by result",
			},
			[]string{"result"}, // cache_hit, fetched, shared, not_found, error
		),

		SnapshotTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lullabot_snapshot_total",
				Help: "Database snapshot uploads and restores by status",
			},
			[]string{"operation", "status"},
		),

		SnapshotDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lullabot_snapshot_duration_seconds",
				Help:    "Database snapshot upload duration",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
	}
}

// RecordDispatch records one dispatch decision.
func (m *Metrics) RecordDispatch(handler, outcome string, duration float64) {
	if m == nil {
		return
	}
	if handler == "" {
		handler = "none"
	}
	m.DispatchTotal.WithLabelValues(handler, outcome).Inc()
	if duration > 0 {
		m.HandlerDurationSeconds.WithLabelValues(handler).Observe(duration)
	}
}

// RecordEvent records an inbound Slack event.
func (m *Metrics) RecordEvent(eventType, status string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(eventType, status).Inc()
}

// RecordLLMRequest records a completion attempt.
func (m *Metrics) RecordLLMRequest(provider, status string, duration float64) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(provider, status).Inc()
	m.LLMDurationSeconds.WithLabelValues(provider).Observe(duration)
}

// RecordKarmaChange records a karma mutation or a rejected self-karma attempt.
func (m *Metrics) RecordKarmaChange(direction string) {
	if m == nil {
		return
	}
	m.KarmaChangesTotal.WithLabelValues(direction).Inc()
}

// SetFactoidPending publishes the size of the confirmation store.
func (m *Metrics) SetFactoidPending(n int) {
	if m == nil {
		return
	}
	m.FactoidPending.Set(float64(n))
}

// RecordRateLimiterDrop records a rejected request.
func (m *Metrics) RecordRateLimiterDrop(limiter string) {
	if m == nil {
		return
	}
	m.RateLimiterDropped.WithLabelValues(limiter).Inc()
}

// RecordUserLookup records a user directory lookup.
func (m *Metrics) RecordUserLookup(result string) {
	if m == nil {
		return
	}
	m.UserLookupsTotal.WithLabelValues(result).Inc()
}

// RecordSnapshot records a snapshot upload or restore.
func (m *Metrics) RecordSnapshot(operation, status string, duration float64) {
	if m == nil {
		return
	}
	m.SnapshotTotal.WithLabelValues(operation, status).Inc()
	if operation == "upload" && status == "success" {
		m.SnapshotDurationSeconds.Observe(duration)
	}
}
