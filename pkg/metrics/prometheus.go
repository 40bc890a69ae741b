package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	observations   *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	anomalies      *prometheus.CounterVec
	conflicts      prometheus.Counter
	bucketOutcomes *prometheus.CounterVec
	solveDuration  prometheus.Histogram
	storeLatency   *prometheus.HistogramVec
	errorsTotal    *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		observations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svu_observations_total",
				Help: "Total number of observations accepted into the buffer",
			},
			[]string{"source", "domain"},
		),
		rejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svu_rejections_total",
				Help: "Total number of observations rejected, by reason",
			},
			[]string{"reason"},
		),
		anomalies: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svu_anomalies_total",
				Help: "Total number of points flagged by the anomaly detector",
			},
			[]string{"source"},
		),
		conflicts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "svu_reconciliation_conflicts_total",
				Help: "Total number of multi-source disagreements",
			},
		),
		bucketOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svu_bucket_outcomes_total",
				Help: "Bucket solve outcomes, by state and unsolved reason",
			},
			[]string{"state", "reason"},
		),
		solveDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "svu_solve_duration_seconds",
				Help:    "Duration of per-bucket graph solves in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		storeLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "svu_store_latency_seconds",
				Help:    "Duration of anchor store operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "svu_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordObservation records an accepted observation.
func (r *Recorder) RecordObservation(sourceID string, domain string) {
	r.observations.WithLabelValues(sourceID, domain).Inc()
}

// RecordRejection records a rejected observation by reason.
func (r *Recorder) RecordRejection(reason string) {
	r.rejections.WithLabelValues(reason).Inc()
}

// RecordAnomaly records an anomaly-flagged point.
func (r *Recorder) RecordAnomaly(sourceID string) {
	r.anomalies.WithLabelValues(sourceID).Inc()
}

// RecordConflict records a multi-source disagreement.
func (r *Recorder) RecordConflict() {
	r.conflicts.Inc()
}

// RecordBucketOutcome records the final state of a bucket run.
func (r *Recorder) RecordBucketOutcome(state string, reason string) {
	r.bucketOutcomes.WithLabelValues(state, reason).Inc()
}

// RecordSolveDuration records a per-bucket solve duration in seconds.
func (r *Recorder) RecordSolveDuration(seconds float64) {
	r.solveDuration.Observe(seconds)
}

// RecordStoreLatency records anchor store operation latency in seconds.
func (r *Recorder) RecordStoreLatency(op string, seconds float64) {
	r.storeLatency.WithLabelValues(op).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
