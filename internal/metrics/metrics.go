// Package metrics exposes Prometheus collectors for the ETL service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	etlRunsTotal          *prometheus.CounterVec
	etlFailuresTotal      *prometheus.CounterVec
	etlFetchAttemptsTotal *prometheus.CounterVec
	etlRowsWritten        prometheus.Counter
	etlRunDurationSeconds *prometheus.HistogramVec
	etlBackfillInflight   prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		etlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_runs_total",
				Help: "Total pipeline runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		etlFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_failures_total",
				Help: "Total failed runs, labeled by error kind.",
			},
			[]string{"kind"},
		)

		etlFetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_fetch_attempts_total",
				Help: "Total document fetch attempts, labeled by result.",
			},
			[]string{"result"},
		)

		etlRowsWritten = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "etl_rows_written_total",
				Help: "Total dataset rows written to the sink.",
			},
		)

		etlRunDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "etl_run_duration_seconds",
				Help:    "Histogram of single-date run durations, labeled by outcome.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		)

		etlBackfillInflight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "etl_backfill_inflight",
				Help: "Number of backfill workers currently processing a date.",
			},
		)
	})
}

// ObserveRun records a completed run.
func ObserveRun(outcome string, d time.Duration) {
	if etlRunsTotal == nil {
		return
	}
	etlRunsTotal.WithLabelValues(outcome).Inc()
	etlRunDurationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveFailure records a failed run under its error classification.
func ObserveFailure(kind string) {
	if etlFailuresTotal == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	etlFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveFetchAttempt records one fetch attempt result.
func ObserveFetchAttempt(result string) {
	if etlFetchAttemptsTotal == nil {
		return
	}
	etlFetchAttemptsTotal.WithLabelValues(result).Inc()
}

// AddRowsWritten records rows persisted to the sink.
func AddRowsWritten(n int) {
	if etlRowsWritten == nil || n <= 0 {
		return
	}
	etlRowsWritten.Add(float64(n))
}

// BackfillWorkerStarted marks a worker picking up a date.
func BackfillWorkerStarted() {
	if etlBackfillInflight != nil {
		etlBackfillInflight.Inc()
	}
}

// BackfillWorkerDone marks a worker finishing a date.
func BackfillWorkerDone() {
	if etlBackfillInflight != nil {
		etlBackfillInflight.Dec()
	}
}
