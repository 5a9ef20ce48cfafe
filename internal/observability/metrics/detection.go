package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectionMetrics tracks pipeline outcomes.
type DetectionMetrics struct {
	DetectionsTotal   *prometheus.CounterVec
	DetectionDuration prometheus.Histogram
	HistoryErrors     prometheus.Counter
	ActiveSessions    prometheus.GaugeFunc
}

// NewDetectionMetrics creates and registers the pipeline collectors.
// sessions, when not nil, reports the number of live chat sessions.
func NewDetectionMetrics(registry *prometheus.Registry, sessions func() int) (*DetectionMetrics, error) {
	if sessions == nil {
		sessions = func() int { return 0 }
	}
	m := &DetectionMetrics{
		DetectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "detections_total",
				Help:      "Total number of detections by outcome (diseased, healthy, unrecognized, error).",
			},
			[]string{"outcome"},
		),
		DetectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "detection_duration_seconds",
			Help:      "End to end time of one detection including image decoding and history.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		HistoryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "history_errors_total",
			Help:      "Total number of detections or transcripts that could not be recorded.",
		}),
		ActiveSessions: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_sessions",
			Help:      "Number of chat sessions held in memory.",
		}, func() float64 { return float64(sessions()) }),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detection metrics: %w", err)
	}
	return m, nil
}

// ObserveDetection records one pipeline run.
func (m *DetectionMetrics) ObserveDetection(outcome string, d time.Duration) {
	m.DetectionsTotal.WithLabelValues(outcome).Inc()
	m.DetectionDuration.Observe(d.Seconds())
}

// ObserveHistoryError counts a failed history write.
func (m *DetectionMetrics) ObserveHistoryError() {
	m.HistoryErrors.Inc()
}

// Describe implements prometheus.Collector.
func (m *DetectionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DetectionsTotal.Describe(ch)
	ch <- m.DetectionDuration.Desc()
	ch <- m.HistoryErrors.Desc()
	ch <- m.ActiveSessions.Desc()
}

// Collect implements prometheus.Collector.
func (m *DetectionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DetectionsTotal.Collect(ch)
	ch <- m.DetectionDuration
	ch <- m.HistoryErrors
	ch <- m.ActiveSessions
}
