package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records derivation, store and snapshot metrics using Prometheus.
type Recorder struct {
	rowsDerived prometheus.Counter
	rowsDropped prometheus.Counter
	snapshots   *prometheus.CounterVec
	storeOps    *prometheus.HistogramVec
}

// New creates a Recorder whose collectors are registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		rowsDerived: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "seasonal_rows_derived_total",
				Help: "Total number of rows produced by the derivation engine",
			},
		),
		rowsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "seasonal_rows_dropped_total",
				Help: "Total number of input rows dropped for an unparseable date",
			},
		),
		snapshots: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seasonal_snapshots_total",
				Help: "Total number of asset snapshot exports by outcome",
			},
			[]string{"status"},
		),
		storeOps: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seasonal_store_operation_duration_seconds",
				Help:    "Duration of row store operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// ObserveDerivation records one engine run that read in rows and emitted out.
func (r *Recorder) ObserveDerivation(in, out int) {
	r.rowsDerived.Add(float64(out))
	if in > out {
		r.rowsDropped.Add(float64(in - out))
	}
}

// ObserveStore records the latency of a store operation.
func (r *Recorder) ObserveStore(op string, d time.Duration) {
	r.storeOps.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveSnapshot records a snapshot export outcome ("ok" or "error").
func (r *Recorder) ObserveSnapshot(status string) {
	r.snapshots.WithLabelValues(status).Inc()
}
