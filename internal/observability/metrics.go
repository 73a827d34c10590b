// Package observability exposes Prometheus collectors for reconciliation runs.
//
// Collectors are registered on a caller-supplied registry so that tests and
// embedded uses do not collide on the global default registry:
//
//	reg := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(reg)
//	router.GET("/metrics", gin.WrapH(observability.Handler(reg)))
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes used as the "outcome" label
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Metrics holds the reconciliation collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Histogram
	targetsTotal      *prometheus.CounterVec
	combinationsTotal prometheus.Counter
	progressRatio     prometheus.Gauge
}

// NewMetrics creates and registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// runsTotal counts finished runs by outcome
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Total reconciliation runs by outcome",
		}, []string{"outcome"}),

		// runDuration tracks wall time from start to outcome
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reconcile_run_duration_seconds",
			Help:    "Reconciliation run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~43min
		}),

		// targetsTotal counts attempted targets by result
		targetsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_targets_total",
			Help: "Total targets attempted by result",
		}, []string{"result"}),

		combinationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconcile_combinations_total",
			Help: "Total candidate combinations evaluated",
		}),

		progressRatio: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reconcile_progress_ratio",
			Help: "Latest reported progress of the active run, 0 to 1",
		}),
	}
}

// ObserveTarget records one attempted target
func (m *Metrics) ObserveTarget(matched bool, combinations uint64) {
	if m == nil {
		return
	}
	result := "unmatched"
	if matched {
		result = "matched"
	}
	m.targetsTotal.WithLabelValues(result).Inc()
	m.combinationsTotal.Add(float64(combinations))
}

// ObserveRun records a finished run
func (m *Metrics) ObserveRun(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

// SetProgress publishes the latest progress value
func (m *Metrics) SetProgress(fraction float64) {
	if m == nil {
		return
	}
	m.progressRatio.Set(fraction)
}

// Handler serves the collectors gathered from g in the Prometheus text format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
