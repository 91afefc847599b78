package metrics

import "github.com/prometheus/client_golang/prometheus"

// Detection pipeline Prometheus metrics.
var (
	DetectionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "percept",
			Name:      "detection_latency_seconds",
			Help:      "Per-layer inference latency in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.075, 0.1, 0.15, 0.25, 0.5, 1},
		},
		[]string{"layer"},
	)

	FrameLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "percept",
			Name:      "frame_latency_seconds",
			Help:      "End-to-end frame processing latency in seconds",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 1},
		},
	)

	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "percept",
			Name:      "frames_total",
			Help:      "Total number of frames processed",
		},
		[]string{"status"}, // "ok" / "error"
	)

	DetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "percept",
			Name:      "detections_total",
			Help:      "Total number of detections emitted",
		},
		[]string{"layer"},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "percept",
			Name:      "alerts_total",
			Help:      "Total number of priority alerts raised",
		},
		[]string{"priority"},
	)

	VocabularyPushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "percept",
			Name:      "vocabulary_push_duration_seconds",
			Help:      "Duration of runtime vocabulary pushes to the learner",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	VocabularySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "percept",
			Name:      "vocabulary_size",
			Help:      "Number of learned vocabulary entries",
		},
	)

	VocabularyLastPush = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "percept",
			Name:      "vocabulary_last_push_timestamp_seconds",
			Help:      "Unix timestamp of the last vocabulary push",
		},
	)

	LearnedTermsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "percept",
			Name:      "learned_terms_total",
			Help:      "Vocabulary admission outcomes per learning source",
		},
		[]string{"source", "result"}, // result: "added" / "duplicate" / "rejected"
	)
)

var detMetricsRegistered bool

// RegisterDetectionMetrics registers Prometheus detection metrics. Must be called once from main.
func RegisterDetectionMetrics() {
	if detMetricsRegistered {
		return
	}
	prometheus.MustRegister(DetectionLatency)
	prometheus.MustRegister(FrameLatency)
	prometheus.MustRegister(FramesTotal)
	prometheus.MustRegister(DetectionsTotal)
	prometheus.MustRegister(AlertsTotal)
	prometheus.MustRegister(VocabularyPushDuration)
	prometheus.MustRegister(VocabularySize)
	prometheus.MustRegister(VocabularyLastPush)
	prometheus.MustRegister(LearnedTermsTotal)
	detMetricsRegistered = true
}
