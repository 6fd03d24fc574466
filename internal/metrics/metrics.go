// Package metrics exposes Prometheus instruments for the annotation pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	detectorExit *prometheus.CounterVec
	queueDepth   prometheus.Gauge
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "annotator",
			Name:      "runs_total",
			Help:      "Pipeline runs by terminal state and reason.",
		}, []string{"state", "reason"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "annotator",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of pipeline runs.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		detectorExit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "annotator",
			Name:      "detector_exit_total",
			Help:      "Detector process exits by exit code.",
		}, []string{"code"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "annotator",
			Name:      "queue_depth",
			Help:      "Runs waiting in the local worker queue.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.runs, m.runDuration, m.detectorExit, m.queueDepth)
	}
	return m
}

// ObserveRun records one terminal transition
func (m *Metrics) ObserveRun(state, reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(state, reason).Inc()
	m.runDuration.Observe(d.Seconds())
}

// ObserveDetectorExit records a detector exit code
func (m *Metrics) ObserveDetectorExit(code int) {
	if m == nil {
		return
	}
	m.detectorExit.WithLabelValues(strconv.Itoa(code)).Inc()
}

// SetQueueDepth reports the local queue depth
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
