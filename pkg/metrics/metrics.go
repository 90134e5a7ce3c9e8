// Package metrics exposes Prometheus instrumentation for the ledger.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chipload"

// Metrics is safe to use as a nil pointer; every recorder then does nothing.
type Metrics struct {
	registry            *prometheus.Registry
	transactionsCreated *prometheus.CounterVec
	settlements         *prometheus.CounterVec
	matchAttempts       *prometheus.CounterVec
	feedDuration        *prometheus.HistogramVec
	surchargeCollisions prometheus.Counter
	sweepRuns           *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		transactionsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "transactions_created_total",
				Help:      "Pending transactions created, by type.",
			},
			[]string{"type"},
		),
		settlements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "settlements_total",
				Help:      "Committed settlements by type, decision and source.",
			},
			[]string{"type", "decision", "source"},
		),
		matchAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "matcher",
				Name:      "attempts_total",
				Help:      "Payment match attempts partitioned by result.",
			},
			[]string{"result"},
		),
		feedDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "matcher",
				Name:      "feed_request_duration_seconds",
				Help:      "Latency of payment feed searches.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		surchargeCollisions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "matcher",
				Name:      "surcharge_collisions_total",
				Help:      "Surcharge draws rejected because the expected amount was taken.",
			},
		),
		sweepRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "matcher",
				Name:      "sweep_runs_total",
				Help:      "Background sweep runs partitioned by result.",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) RecordCreated(kind string) {
	if m == nil {
		return
	}
	m.transactionsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordSettlement(kind, decision, source string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(kind, decision, source).Inc()
}

// RecordMatch counts one MatchAndSettle outcome, e.g. "matched", "no_match".
func (m *Metrics) RecordMatch(result string) {
	if m == nil {
		return
	}
	m.matchAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveFeed(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.feedDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) RecordSurchargeCollision() {
	if m == nil {
		return
	}
	m.surchargeCollisions.Inc()
}

func (m *Metrics) RecordSweep(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sweepRuns.WithLabelValues(result).Inc()
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
