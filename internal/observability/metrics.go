package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vaccination_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for one ETL run.
type Metrics struct {
	LocationsProcessed prometheus.Counter
	AggregatesBuilt    prometheus.Counter
	RowsProduced       prometheus.Counter
	PipelineRunning    prometheus.Gauge
	LastSuccess        prometheus.Gauge

	ValidationErrors *prometheus.CounterVec   // labels: kind={schema,population,sanity}
	LoadErrors       *prometheus.CounterVec   // labels: sink
	StageDuration    *prometheus.HistogramVec // labels: stage

	// Remote input fetches.
	FetchRequests *prometheus.CounterVec // labels: outcome={success,not_found,error}
	FetchDuration prometheus.Histogram

	// Coverage of the published dataset.
	CoverageLocations  prometheus.Gauge
	CoverageWorldShare prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.Collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// Collectors returns every metric, for registration or pushing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.LocationsProcessed,
		m.AggregatesBuilt,
		m.RowsProduced,
		m.PipelineRunning,
		m.LastSuccess,
		m.ValidationErrors,
		m.LoadErrors,
		m.StageDuration,
		m.FetchRequests,
		m.FetchDuration,
		m.CoverageLocations,
		m.CoverageWorldShare,
	}
}

func newMetrics() *Metrics {
	return &Metrics{
		LocationsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_processed_total",
			Help:      "Locations whose series were reconstructed.",
		}),
		AggregatesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregates_built_total",
			Help:      "Aggregate series produced (World, EU, continents, custom).",
		}),
		RowsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_produced_total",
			Help:      "Daily rows in the published long table.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that loaded every output.",
		}),
		ValidationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Fatal data problems by kind.",
		}, []string{"kind"}),
		LoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Failed writes by sink.",
		}, []string{"sink"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "HTTP input requests by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "HTTP input request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		CoverageLocations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_locations",
			Help:      "Real national locations with data.",
		}),
		CoverageWorldShare: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_world_population_percent",
			Help:      "Share of world population living in covered locations.",
		}),
	}
}
