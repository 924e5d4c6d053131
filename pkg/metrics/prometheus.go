package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes Prometheus metrics for the learning pipeline.
// ⭐ SSOT: 메트릭 등록은 이 패키지에서만
type Recorder struct {
	trainingRuns    *prometheus.CounterVec
	modelPromotions prometheus.Counter
	modelRejections prometheus.Counter
	signalsEmitted  *prometheus.CounterVec
	feedRetries     prometheus.Counter
	activeValScore  prometheus.Gauge
	trainDuration   prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		trainingRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgefactory_training_runs_total",
				Help: "Total number of training runs by terminal outcome",
			},
			[]string{"outcome"},
		),
		modelPromotions: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "edgefactory_model_promotions_total",
				Help: "Total number of candidate models promoted to ACTIVE",
			},
		),
		modelRejections: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "edgefactory_model_overfit_rejections_total",
				Help: "Total number of candidates rejected by the overfit guard",
			},
		),
		signalsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgefactory_signals_emitted_total",
				Help: "Total number of emitted signals",
			},
			[]string{"symbol", "side"},
		),
		feedRetries: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "edgefactory_feed_store_retries_total",
				Help: "Total number of feedback store write retries",
			},
		),
		activeValScore: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "edgefactory_active_model_validation_score",
				Help: "Validation score of the currently ACTIVE model",
			},
		),
		trainDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "edgefactory_training_duration_seconds",
				Help:    "Duration of training runs in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
	}
}

// RecordTrainingRun records one completed training run by terminal outcome
// (promoted, rejected, failed, insufficient_data).
func (r *Recorder) RecordTrainingRun(outcome string) {
	r.trainingRuns.WithLabelValues(outcome).Inc()
}

// RecordPromotion records a model promotion.
func (r *Recorder) RecordPromotion(validationScore float64) {
	r.modelPromotions.Inc()
	r.activeValScore.Set(validationScore)
}

// RecordOverfitRejection records a guard rejection.
func (r *Recorder) RecordOverfitRejection() {
	r.modelRejections.Inc()
}

// RecordSignalEmitted records one emitted signal.
func (r *Recorder) RecordSignalEmitted(symbol, side string) {
	r.signalsEmitted.WithLabelValues(symbol, side).Inc()
}

// RecordFeedRetry records a feedback store write retry.
func (r *Recorder) RecordFeedRetry() {
	r.feedRetries.Inc()
}

// RecordTrainingDuration records training run duration in seconds.
func (r *Recorder) RecordTrainingDuration(seconds float64) {
	r.trainDuration.Observe(seconds)
}
