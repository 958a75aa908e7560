// Package metrics collects capture and comparison counters for a single run
// and dumps them in the Prometheus text format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Capture statuses.
const (
	StatusSaved     = "saved"
	StatusFailed    = "failed"
	StatusDuplicate = "duplicate"
)

// Metrics holds all Prometheus metrics for a run. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	CapturesTotal   *prometheus.CounterVec
	CaptureDuration prometheus.Histogram
	ComparisonTotal *prometheus.CounterVec
	ComparisonScore prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CapturesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagediff_captures_total",
			Help: "Total number of URLs processed by the capture pipeline.",
		}, []string{"status"}),
		CaptureDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pagediff_capture_duration_seconds",
			Help:    "Duration of a single page capture.",
			Buckets: []float64{1, 2, 5, 10, 15, 30, 60},
		}),
		ComparisonTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagediff_comparisons_total",
			Help: "Total number of compared capture pairs.",
		}, []string{"verdict"}),
		ComparisonScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pagediff_comparison_score",
			Help:    "Structural dissimilarity score of compared pairs.",
			Buckets: []float64{0, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveCapture records one finished capture.
func (m *Metrics) ObserveCapture(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.CapturesTotal.WithLabelValues(status).Inc()
	if status != StatusFailed {
		m.CaptureDuration.Observe(d.Seconds())
	}
}

// ObserveComparison records the verdict and score of one pair.
func (m *Metrics) ObserveComparison(verdict string, score float64) {
	if m == nil {
		return
	}
	m.ComparisonTotal.WithLabelValues(verdict).Inc()
	m.ComparisonScore.Observe(score)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteFile writes all metrics to path, suitable for the node exporter
// textfile collector.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
