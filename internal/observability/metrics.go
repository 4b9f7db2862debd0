package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "egrid"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// normalize/cache pipeline and the presentation shells.
type Metrics struct {
	// Cache metrics.
	CacheLookups  *prometheus.CounterVec // labels: result={hit,miss}
	BuildDuration prometheus.Histogram
	DatasetRows   prometheus.Gauge

	// Normalization metrics.
	RowsNormalized    *prometheus.CounterVec // labels: year
	NormalizeFailures *prometheus.CounterVec // labels: kind
	CellsCoerced      prometheus.Counter

	// Presentation metrics.
	DashboardsRendered prometheus.Counter
	RenderDuration     prometheus.Histogram
	RecordsPublished   prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Unified dataset cache lookups by result.",
		}, []string{"result"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_build_duration_seconds",
			Help:      "Duration of a full normalize-concatenate-persist build.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rows",
			Help:      "Plant records in the loaded unified dataset.",
		}),
		RowsNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_normalized_total",
			Help:      "Plant records produced by the normalizer, by data year.",
		}, []string{"year"}),
		NormalizeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalize_failures_total",
			Help:      "Year normalization failures by error kind.",
		}, []string{"kind"}),
		CellsCoerced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_coerced_total",
			Help:      "Non-numeric cells in numeric columns stored as NULL.",
		}),
		DashboardsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboards_rendered_total",
			Help:      "State dashboards rendered.",
		}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dashboard_render_duration_seconds",
			Help:      "Time spent rendering one dashboard's charts.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Plant records written to the publish topic.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Forward geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when county geocoding is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CacheLookups,
		m.BuildDuration,
		m.DatasetRows,
		m.RowsNormalized,
		m.NormalizeFailures,
		m.CellsCoerced,
		m.DashboardsRendered,
		m.RenderDuration,
		m.RecordsPublished,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
