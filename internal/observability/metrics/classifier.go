// Package metrics provides the Prometheus collectors for leafscan.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/leafscan/internal/errors"
)

// ClassifierMetrics tracks model loading and inference.
type ClassifierMetrics struct {
	InferenceDuration *prometheus.HistogramVec
	InferenceTotal    *prometheus.CounterVec
	InferenceErrors   *prometheus.CounterVec
	ModelLoaded       *prometheus.GaugeVec
}

// NewClassifierMetrics creates and registers the classifier collectors.
func NewClassifierMetrics(registry *prometheus.Registry) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{
		InferenceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "inference_duration_seconds",
				Help:      "Time taken by one classifier invocation.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
			},
			[]string{"strategy"},
		),
		InferenceTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "inference_total",
				Help:      "Total number of classifier invocations.",
			},
			[]string{"strategy", "status"},
		),
		InferenceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "inference_errors_total",
				Help:      "Total number of failed classifier invocations by error category.",
			},
			[]string{"strategy", "category"},
		),
		ModelLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "model_loaded",
				Help:      "Whether a model is loaded (1) or not (0), by load strategy.",
			},
			[]string{"strategy"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	return m, nil
}

// ObserveInference records one Predict call.
func (m *ClassifierMetrics) ObserveInference(strategy string, d time.Duration, err error) {
	if err != nil {
		m.InferenceTotal.WithLabelValues(strategy, StatusError).Inc()
		m.InferenceErrors.WithLabelValues(strategy, string(errors.CategoryOf(err))).Inc()
		return
	}
	m.InferenceTotal.WithLabelValues(strategy, StatusSuccess).Inc()
	m.InferenceDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// SetModelLoaded records which strategy, if any, supplied the model.
func (m *ClassifierMetrics) SetModelLoaded(strategy string, loaded bool) {
	v := 0.0
	if loaded {
		v = 1
	}
	m.ModelLoaded.WithLabelValues(strategy).Set(v)
}

// Describe implements prometheus.Collector.
func (m *ClassifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.InferenceDuration.Describe(ch)
	m.InferenceTotal.Describe(ch)
	m.InferenceErrors.Describe(ch)
	m.ModelLoaded.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *ClassifierMetrics) Collect(ch chan<- prometheus.Metric) {
	m.InferenceDuration.Collect(ch)
	m.InferenceTotal.Collect(ch)
	m.InferenceErrors.Collect(ch)
	m.ModelLoaded.Collect(ch)
}
