package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// statistics engine.
type Metrics struct {
	GridsRead       *prometheus.CounterVec // labels: hemisphere, source={final,nrt}
	GridsMissing    *prometheus.CounterVec // labels: hemisphere
	DatesFailed     *prometheus.CounterVec // labels: hemisphere, operation
	DatastoreWrites *prometheus.CounterVec // labels: hemisphere, temporality
	RecordsFlagged  *prometheus.CounterVec // labels: hemisphere
	RunActive       prometheus.Gauge

	RunDuration      *prometheus.HistogramVec // labels: operation
	GridReadDuration prometheus.Histogram
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.GridsRead,
		m.GridsMissing,
		m.DatesFailed,
		m.DatastoreWrites,
		m.RecordsFlagged,
		m.RunActive,
		m.RunDuration,
		m.GridReadDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		GridsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seaice",
			Name:      "grids_read_total",
			Help:      "Concentration grids read, by hemisphere and dataset source.",
		}, []string{"hemisphere", "source"}),
		GridsMissing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seaice",
			Name:      "grids_missing_total",
			Help:      "Dates for which no concentration grid was found.",
		}, []string{"hemisphere"}),
		DatesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seaice",
			Name:      "dates_failed_total",
			Help:      "Dates that failed processing, by operation.",
		}, []string{"hemisphere", "operation"}),
		DatastoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seaice",
			Name:      "datastore_writes_total",
			Help:      "Datastore files written, by hemisphere and temporality.",
		}, []string{"hemisphere", "temporality"}),
		RecordsFlagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seaice",
			Name:      "records_flagged_total",
			Help:      "Daily records flagged by quality evaluation.",
		}, []string{"hemisphere"}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "seaice",
			Name:      "run_active",
			Help:      "1 while an engine operation is running, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seaice",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete engine operation.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"operation"}),
		GridReadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "seaice",
			Name:      "grid_read_duration_seconds",
			Help:      "Duration of a single grid file read and decode.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}
