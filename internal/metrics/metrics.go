// Package metrics provides Prometheus metrics for the watcher.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Oracle metrics
	ReferencePrice   prometheus.Gauge
	OracleUpdates    prometheus.Counter
	OracleInvariants prometheus.Counter

	// Admission metrics
	PairsDiscovered prometheus.Counter
	PairsAdmitted   prometheus.Counter
	PairsRejected   *prometheus.CounterVec
	TrackedPairs    prometheus.Gauge

	// Feed metrics
	EventsProcessed *prometheus.CounterVec
	EventErrors     *prometheus.CounterVec
	EventsSkipped   *prometheus.CounterVec
	Resubscribes    *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance registered on a fresh registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pairscout"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		ReferencePrice: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "reference_price_usd",
			Help:      "Current reference asset USD price estimate",
		}),
		OracleUpdates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "updates_total",
			Help:      "Total number of reference price updates",
		}),
		OracleInvariants: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "invariant_errors_total",
			Help:      "Total number of reference swaps with a zero counter leg",
		}),
		PairsDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "pairs_discovered_total",
			Help:      "Total number of PairCreated events seen",
		}),
		PairsAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "pairs_admitted_total",
			Help:      "Total number of pairs admitted for tracking",
		}),
		PairsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "pairs_rejected_total",
			Help:      "Total number of rejected pairs by reason",
		}, []string{"reason"}),
		TrackedPairs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "tracked_pairs",
			Help:      "Number of pairs with an attached feed",
		}),
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "events_processed_total",
			Help:      "Total number of events handled by kind",
		}, []string{"event_type"}),
		EventErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "event_errors_total",
			Help:      "Total number of event handling errors by kind and class",
		}, []string{"event_type", "error_type"}),
		EventsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "events_skipped_total",
			Help:      "Total number of removed or duplicate logs skipped",
		}, []string{"reason"}),
		Resubscribes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "resubscribes_total",
			Help:      "Total number of log subscription restarts by feed",
		}, []string{"feed"}),
		registry: reg,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SetReferencePrice(price float64) {
	if m == nil {
		return
	}
	m.ReferencePrice.Set(price)
	m.OracleUpdates.Inc()
}

func (m *Metrics) OracleInvariant() {
	if m == nil {
		return
	}
	m.OracleInvariants.Inc()
}

func (m *Metrics) Discovered() {
	if m == nil {
		return
	}
	m.PairsDiscovered.Inc()
}

func (m *Metrics) Admitted() {
	if m == nil {
		return
	}
	m.PairsAdmitted.Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.PairsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetTrackedPairs(n int) {
	if m == nil {
		return
	}
	m.TrackedPairs.Set(float64(n))
}

func (m *Metrics) EventProcessed(eventType string) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(eventType).Inc()
}

func (m *Metrics) EventFailed(eventType, errorType string) {
	if m == nil {
		return
	}
	m.EventErrors.WithLabelValues(eventType, errorType).Inc()
}

func (m *Metrics) EventSkipped(reason string) {
	if m == nil {
		return
	}
	m.EventsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Resubscribed(feed string) {
	if m == nil {
		return
	}
	m.Resubscribes.WithLabelValues(feed).Inc()
}
