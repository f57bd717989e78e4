// Package metrics defines the Prometheus instruments ciphersync exports.
//
// Every method is safe on a nil *Metrics, so components can run without a
// registry in tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ciphersync"

// Metrics holds the registered collectors.
type Metrics struct {
	sessions         *prometheus.CounterVec
	listenerPanics   *prometheus.CounterVec
	eventsDelivered  *prometheus.CounterVec
	ingestOutcomes   *prometheus.CounterVec
	queryTransitions *prometheus.CounterVec
	wellKnownLookups *prometheus.CounterVec
	wellKnownFetches *prometheus.CounterVec
	requestCounter   *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "closed_total",
			Help:      "Fetch sessions closed, by result.",
		}, []string{"result"}),
		listenerPanics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "listener_panics_total",
			Help:      "Listener invocations that panicked, by slot.",
		}, []string{"slot"}),
		eventsDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "events_delivered_total",
			Help:      "Events flushed to a registered listener, by slot.",
		}, []string{"slot"}),
		ingestOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inbox",
			Name:      "ingest_total",
			Help:      "Inbox intake calls, by operation and outcome.",
		}, []string{"op", "outcome"}),
		queryTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "transitions_total",
			Help:      "Pending query state transitions, by target state.",
		}, []string{"state"}),
		wellKnownLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wellknown",
			Name:      "lookups_total",
			Help:      "Well-known cache lookups, by tier that answered.",
		}, []string{"tier"}),
		wellKnownFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wellknown",
			Name:      "refreshes_total",
			Help:      "Well-known refresh fetches, by result.",
		}, []string{"result"}),
		requestCounter: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "Relay HTTP requests served.",
		}, []string{"method", "path", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "request_duration_seconds",
			Help:      "Relay HTTP request duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "path"}),
	}
}

// SessionClosed counts a session ending as committed, rolled_back or discarded.
func (m *Metrics) SessionClosed(result string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(result).Inc()
}

// ListenerPanicked counts a recovered listener panic.
func (m *Metrics) ListenerPanicked(slot string) {
	if m == nil {
		return
	}
	m.listenerPanics.WithLabelValues(slot).Inc()
}

// EventDelivered counts an event handed to a listener.
func (m *Metrics) EventDelivered(slot string) {
	if m == nil {
		return
	}
	m.eventsDelivered.WithLabelValues(slot).Inc()
}

// Ingested counts an inbox intake outcome.
func (m *Metrics) Ingested(op, outcome string) {
	if m == nil {
		return
	}
	m.ingestOutcomes.WithLabelValues(op, outcome).Inc()
}

// QueryTransition counts a pending query entering state.
func (m *Metrics) QueryTransition(state string) {
	if m == nil {
		return
	}
	m.queryTransitions.WithLabelValues(state).Inc()
}

// WellKnownLookup counts a cache lookup answered by tier (hot, durable, miss).
func (m *Metrics) WellKnownLookup(tier string) {
	if m == nil {
		return
	}
	m.wellKnownLookups.WithLabelValues(tier).Inc()
}

// WellKnownRefresh counts a refresh fetch by result (ok, error).
func (m *Metrics) WellKnownRefresh(result string) {
	if m == nil {
		return
	}
	m.wellKnownFetches.WithLabelValues(result).Inc()
}

// Middleware records request counts and latency for a gin router.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.requestCounter.WithLabelValues(c.Request.Method, path, status).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
