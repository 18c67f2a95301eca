package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// anomaly analysis service.
type Metrics struct {
	UnitsProcessed prometheus.Counter
	InvalidUnits   prometheus.Counter
	BatchFailures  prometheus.Counter
	StaleRuns      prometheus.Counter
	RunInProgress  prometheus.Gauge

	// Batch processing metrics.
	BatchDuration prometheus.Histogram
	RunDuration   prometheus.Histogram

	// Zonal backend metrics.
	ZonalRequests    *prometheus.CounterVec   // labels: method={forecast,reduce}, outcome={success,error}
	ZonalCache       *prometheus.CounterVec   // labels: result={hit,miss}
	ZonalAPIDuration *prometheus.HistogramVec // labels: method={forecast,reduce}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		UnitsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "anomaly",
			Name:      "units_processed_total",
			Help:      "Total spatial units run through the anomaly pipeline.",
		}),
		InvalidUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "anomaly",
			Name:      "invalid_units_total",
			Help:      "Units skipped because no baseline record matched their name.",
		}),
		BatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "anomaly",
			Name:      "batch_failures_total",
			Help:      "Batches skipped after a zonal backend failure.",
		}),
		StaleRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "anomaly",
			Name:      "stale_runs_total",
			Help:      "Completed runs discarded because a newer run superseded them.",
		}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "anomaly",
			Name:      "run_in_progress",
			Help:      "1 while an analysis run is executing, 0 otherwise.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "anomaly",
			Name:      "batch_duration_seconds",
			Help:      "Duration of one batch dispatch-aggregate-combine cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "anomaly",
			Name:      "run_duration_seconds",
			Help:      "End-to-end duration of a full analysis run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		ZonalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anomaly",
			Name:      "zonal_requests_total",
			Help:      "Zonal backend requests by method and outcome.",
		}, []string{"method", "outcome"}),
		ZonalCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anomaly",
			Name:      "zonal_cache_total",
			Help:      "Monthly reduction cache lookups by result.",
		}, []string{"result"}),
		ZonalAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "anomaly",
			Name:      "zonal_api_duration_seconds",
			Help:      "Zonal backend request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}, []string{"method"}),
	}

	prometheus.MustRegister(
		m.UnitsProcessed,
		m.InvalidUnits,
		m.BatchFailures,
		m.StaleRuns,
		m.RunInProgress,
		m.BatchDuration,
		m.RunDuration,
		m.ZonalRequests,
		m.ZonalCache,
		m.ZonalAPIDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		UnitsProcessed:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "anomaly", Name: "units_processed_total"}),
		InvalidUnits:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "anomaly", Name: "invalid_units_total"}),
		BatchFailures:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "anomaly", Name: "batch_failures_total"}),
		StaleRuns:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "anomaly", Name: "stale_runs_total"}),
		RunInProgress:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "anomaly", Name: "run_in_progress"}),
		BatchDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "anomaly", Name: "batch_duration_seconds"}),
		RunDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "anomaly", Name: "run_duration_seconds"}),
		ZonalRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "anomaly", Name: "zonal_requests_total"}, []string{"method", "outcome"}),
		ZonalCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "anomaly", Name: "zonal_cache_total"}, []string{"result"}),
		ZonalAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "anomaly", Name: "zonal_api_duration_seconds"}, []string{"method"}),
	}
}
