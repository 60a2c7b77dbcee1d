// Package metrics exposes Prometheus counters for a training session.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	// Recording
	RecordingsTotal   prometheus.Counter
	RecordingSeconds  prometheus.Histogram
	LowLevelTotal     prometheus.Counter
	AttemptsSaved     prometheus.Counter
	PlaybacksTotal    *prometheus.CounterVec
	DeviceErrorsTotal prometheus.Counter

	// Analysis
	AnalysesTotal    prometheus.Counter
	AnalysisDuration prometheus.Histogram
	PlotsRendered    prometheus.Counter

	registry *prometheus.Registry
}

// New registers the metrics on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		RecordingsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "mimic_recordings_total",
			Help: "Total number of finished recordings",
		}),
		RecordingSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mimic_recording_seconds",
			Help:    "Length of finished recordings in seconds",
			Buckets: []float64{0.5, 1, 2, 3, 5, 10, 20, 60},
		}),
		LowLevelTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "mimic_recordings_low_level_total",
			Help: "Recordings whose peak level was below the warning threshold",
		}),
		AttemptsSaved: f.NewCounter(prometheus.CounterOpts{
			Name: "mimic_attempts_saved_total",
			Help: "Attempts written to the recordings directory",
		}),
		PlaybacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mimic_playbacks_total",
			Help: "Playbacks started, by source",
		}, []string{"source"}),
		DeviceErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "mimic_device_errors_total",
			Help: "Audio device open or stream failures",
		}),
		AnalysesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "mimic_analyses_total",
			Help: "Reference/attempt comparisons computed",
		}),
		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mimic_analysis_duration_seconds",
			Help:    "Time spent extracting features for a comparison",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		PlotsRendered: f.NewCounter(prometheus.CounterOpts{
			Name: "mimic_plots_rendered_total",
			Help: "Comparison plots written",
		}),
		registry: reg,
	}
}

// ObserveRecording records one finished recording of length d.
func (m *Metrics) ObserveRecording(d time.Duration, lowLevel bool) {
	m.RecordingsTotal.Inc()
	m.RecordingSeconds.Observe(d.Seconds())
	if lowLevel {
		m.LowLevelTotal.Inc()
	}
}

// ObserveAnalysis records one comparison that took d.
func (m *Metrics) ObserveAnalysis(d time.Duration) {
	m.AnalysesTotal.Inc()
	m.AnalysisDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
