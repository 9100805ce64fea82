package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	batchRows   prometheus.Histogram
	batchFailed prometheus.Counter
	cache       *prometheus.CounterVec
}

// New creates a recorder registered on reg. Pass prometheus.DefaultRegisterer
// to expose the series on the default /metrics handler.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscore_predictions_total",
				Help: "Total number of scored leads",
			},
			[]string{"source", "tier"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscore_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadscore_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		batchRows: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leadscore_batch_rows",
				Help:    "Rows per batch upload",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		batchFailed: f.NewCounter(
			prometheus.CounterOpts{
				Name: "leadscore_batch_row_failures_total",
				Help: "Batch rows that ended in a row error",
			},
		),
		cache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadscore_cache_lookups_total",
				Help: "Prediction cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// RecordPrediction counts one scored lead.
func (r *Recorder) RecordPrediction(source string, tier models.Tier) {
	r.predictions.WithLabelValues(source, string(tier)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordBatch(rows, failed int) {
	r.batchRows.Observe(float64(rows))
	r.batchFailed.Add(float64(failed))
}

func (r *Recorder) RecordCache(hit bool) {
	if hit {
		r.cache.WithLabelValues("hit").Inc()
		return
	}
	r.cache.WithLabelValues("miss").Inc()
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordPrediction(string, models.Tier) {}
func (Nop) RecordError(string)                   {}
func (Nop) RecordLatency(string, float64)        {}
func (Nop) RecordBatch(int, int)                 {}
func (Nop) RecordCache(bool)                     {}
