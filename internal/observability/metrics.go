package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "burnscar"

// Metrics holds the Prometheus counters, histograms, and gauges for a parcel run.
type Metrics struct {
	ParcelsProcessed prometheus.Counter
	ParcelsSkipped   prometheus.Counter
	ParcelErrors     *prometheus.CounterVec // labels: stage
	RecordsPublished prometheus.Counter
	RunActive        prometheus.Gauge

	ParcelDuration prometheus.Histogram
	StageDuration  *prometheus.HistogramVec // labels: stage

	// Source metrics.
	ElevationRequests *prometheus.CounterVec // labels: outcome={success,error}
	ElevationDuration prometheus.Histogram
	ArtifactCache     *prometheus.CounterVec // labels: artifact, result={hit,miss}
	ImageryIndex      *prometheus.CounterVec // labels: result={hit,miss}
	BurnedAcres       *prometheus.CounterVec // labels: severity
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ParcelsProcessed,
		m.ParcelsSkipped,
		m.ParcelErrors,
		m.RecordsPublished,
		m.RunActive,
		m.ParcelDuration,
		m.StageDuration,
		m.ElevationRequests,
		m.ElevationDuration,
		m.ArtifactCache,
		m.ImageryIndex,
		m.BurnedAcres,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ParcelsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parcels_processed_total",
			Help:      "Parcels that produced an acreage record.",
		}),
		ParcelsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parcels_skipped_total",
			Help:      "Parcels skipped because an input raster did not cover them.",
		}),
		ParcelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parcel_errors_total",
			Help:      "Parcel failures by processing stage.",
		}, []string{"stage"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Parcel records written to the record sink.",
		}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_active",
			Help:      "1 while a batch run is in progress.",
		}),
		ParcelDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parcel_duration_seconds",
			Help:      "Wall time to process a single parcel.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time per parcel processing stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		ElevationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elevation_requests_total",
			Help:      "Elevation service block requests by outcome.",
		}, []string{"outcome"}),
		ElevationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "elevation_request_duration_seconds",
			Help:      "Elevation service request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ArtifactCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_cache_total",
			Help:      "Intermediate raster lookups by artifact and result.",
		}, []string{"artifact", "result"}),
		ImageryIndex: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imagery_index_total",
			Help:      "Imagery tile footprint lookups by result.",
		}, []string{"result"}),
		BurnedAcres: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "burned_acres_total",
			Help:      "Classified acres summed over processed parcels, by severity tier.",
		}, []string{"severity"}),
	}
}
