// Package metrics holds the Prometheus collectors for the replica engine.
//
// Collectors are registered on the Registerer passed to New rather than on
// the global default registry. Every recording method is safe to call on a
// nil *Metrics, so components can run without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups all engine collectors.
type Metrics struct {
	DeltasApplied     *prometheus.CounterVec
	IngestFailures    *prometheus.CounterVec
	PersistenceErrors *prometheus.CounterVec
	Reconnects        prometheus.Counter
	ConnectionState   *prometheus.GaugeVec
	ReconcileRuns     *prometheus.CounterVec
	ReconcileDuration prometheus.Histogram
	RateLimited       *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg creates
// unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DeltasApplied: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threadkeep_deltas_applied_total",
				Help: "Total sync deltas applied to the entity stores",
			},
			[]string{"kind", "source"}, // source: "push" or "poll"
		),
		IngestFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threadkeep_ingest_failures_total",
				Help: "Total sync deltas dropped as malformed or unappliable",
			},
			[]string{"source"},
		),
		PersistenceErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threadkeep_persistence_errors_total",
				Help: "Total durable store failures",
			},
			[]string{"kind", "op"},
		),
		Reconnects: f.NewCounter(
			prometheus.CounterOpts{
				Name: "threadkeep_push_reconnects_total",
				Help: "Total push connection reconnect attempts",
			},
		),
		ConnectionState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "threadkeep_push_connection_state",
				Help: "1 for the current push connection state, 0 otherwise",
			},
			[]string{"state"},
		),
		ReconcileRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threadkeep_reconcile_runs_total",
				Help: "Total reconciliation pulls",
			},
			[]string{"result"}, // "ok" or "error"
		),
		ReconcileDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "threadkeep_reconcile_duration_seconds",
				Help:    "Reconciliation pull duration",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		RateLimited: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threadkeep_rate_limited_total",
				Help: "Total optimistic transactions rejected by the server quota",
			},
			[]string{"transaction"},
		),
	}
}

func (m *Metrics) DeltaApplied(kind, source string) {
	if m == nil {
		return
	}
	m.DeltasApplied.WithLabelValues(kind, source).Inc()
}

func (m *Metrics) IngestFailed(source string) {
	if m == nil {
		return
	}
	m.IngestFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) PersistenceFailed(kind, op string) {
	if m == nil {
		return
	}
	m.PersistenceErrors.WithLabelValues(kind, op).Inc()
}

func (m *Metrics) Reconnecting() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// SetConnectionState marks state as current and clears the others.
func (m *Metrics) SetConnectionState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnectionState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) Reconciled(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ReconcileRuns.WithLabelValues(result).Inc()
	m.ReconcileDuration.Observe(d.Seconds())
}

func (m *Metrics) RateLimitHit(transaction string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(transaction).Inc()
}
