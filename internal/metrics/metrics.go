// Package metrics exposes Prometheus counters for runs, NDL lookups and
// stored results.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "divesync"

// Metrics is the set of collectors registered by New
type Metrics struct {
	Runs         *prometheus.CounterVec
	RunErrors    *prometheus.CounterVec
	Steps        prometheus.Counter
	RunDuration  prometheus.Histogram
	NDLLookups   *prometheus.CounterVec
	NDLCacheHits prometheus.Counter
	StoreErrors  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Profile runs completed, by algorithm.",
		}, []string{"algorithm"}),
		RunErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_errors_total",
			Help:      "Profile runs rejected or failed, by algorithm.",
		}, []string{"algorithm"}),
		Steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_steps_total",
			Help:      "Snapshot sets produced across all runs.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time spent computing one run.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		NDLLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ndl_lookups_total",
			Help:      "No-decompression limit lookups, by algorithm.",
		}, []string{"algorithm"}),
		NDLCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ndl_cache_hits_total",
			Help:      "NDL lookups answered from the cache.",
		}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed writes to a result store, by store.",
		}, []string{"store"}),
	}

	reg.MustRegister(m.Runs, m.RunErrors, m.Steps, m.RunDuration, m.NDLLookups, m.NDLCacheHits, m.StoreErrors)
	return m
}

// ObserveRun records a finished run
func (m *Metrics) ObserveRun(algorithm string, steps int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RunErrors.WithLabelValues(algorithm).Inc()
		return
	}
	m.Runs.WithLabelValues(algorithm).Inc()
	m.Steps.Add(float64(steps))
	m.RunDuration.Observe(elapsed.Seconds())
}

// ObserveNDL records one NDL lookup
func (m *Metrics) ObserveNDL(algorithm string, cached bool) {
	if m == nil {
		return
	}
	m.NDLLookups.WithLabelValues(algorithm).Inc()
	if cached {
		m.NDLCacheHits.Inc()
	}
}

func (m *Metrics) ObserveStoreError(store string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(store).Inc()
}
