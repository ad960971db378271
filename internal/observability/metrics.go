package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the assembly pipeline.
type Metrics struct {
	RunsCompleted   prometheus.Counter
	RunFailures     prometheus.Counter
	SitesAssembled  prometheus.Counter
	PipelineRunning prometheus.Gauge
	RunDuration     prometheus.Histogram

	// Store access metrics.
	FetchDuration *prometheus.HistogramVec // labels: kind={observation,footprint,flux,boundary_condition}
	FetchErrors   *prometheus.CounterVec   // labels: kind
	StoreCache    *prometheus.CounterVec   // labels: kind, result={hit,miss}

	// Data quality metrics.
	ScaleDivergences prometheus.Counter
	BackfilledValues prometheus.Counter
	PersistFailures  prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghg_merge",
			Name:      "runs_completed_total",
			Help:      "Total assembly runs that produced an output.",
		}),
		RunFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghg_merge",
			Name:      "run_failures_total",
			Help:      "Total assembly runs aborted by an error.",
		}),
		SitesAssembled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghg_merge",
			Name:      "sites_assembled_total",
			Help:      "Total per-site merged datasets produced.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ghg_merge",
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ghg_merge",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete assembly run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ghg_merge",
			Name:      "fetch_duration_seconds",
			Help:      "Store retrieval duration by dataset kind.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"kind"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ghg_merge",
			Name:      "fetch_errors_total",
			Help:      "Store retrieval failures by dataset kind.",
		}, []string{"kind"}),
		StoreCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ghg_merge",
			Name:      "store_cache_total",
			Help:      "Store cache lookups by dataset kind and result.",
		}, []string{"kind", "result"}),
		ScaleDivergences: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghg_merge",
			Name:      "scale_divergences_total",
			Help:      "Sites whose calibration scale differs from the run reference.",
		}),
		BackfilledValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghg_merge",
			Name:      "backfilled_values_total",
			Help:      "Repeatability values filled from variability.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ghg_merge",
			Name:      "persist_failures_total",
			Help:      "Failures writing the merged-data file.",
		}),
	}

	prometheus.MustRegister(
		m.RunsCompleted,
		m.RunFailures,
		m.SitesAssembled,
		m.PipelineRunning,
		m.RunDuration,
		m.FetchDuration,
		m.FetchErrors,
		m.StoreCache,
		m.ScaleDivergences,
		m.BackfilledValues,
		m.PersistFailures,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RunsCompleted:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ghg_merge", Name: "runs_completed_total"}),
		RunFailures:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ghg_merge", Name: "run_failures_total"}),
		SitesAssembled:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ghg_merge", Name: "sites_assembled_total"}),
		PipelineRunning:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "ghg_merge", Name: "pipeline_running"}),
		RunDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "ghg_merge", Name: "run_duration_seconds"}),
		FetchDuration:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "ghg_merge", Name: "fetch_duration_seconds"}, []string{"kind"}),
		FetchErrors:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "ghg_merge", Name: "fetch_errors_total"}, []string{"kind"}),
		StoreCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "ghg_merge", Name: "store_cache_total"}, []string{"kind", "result"}),
		ScaleDivergences: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ghg_merge", Name: "scale_divergences_total"}),
		BackfilledValues: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ghg_merge", Name: "backfilled_values_total"}),
		PersistFailures:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "ghg_merge", Name: "persist_failures_total"}),
	}
}
