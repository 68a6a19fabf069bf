// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Job end reasons used as the "reason" label on roomcount_jobs_finished_total.
const (
	ReasonEndOfStream         = "end_of_stream"
	ReasonOpenFailed          = "open_failed"
	ReasonReadError           = "read_error"
	ReasonDetectorUnavailable = "detector_unavailable"
	ReasonCancelled           = "cancelled"
)

// Metrics holds all pipeline metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// Frame counters
	FramesProcessed atomic.Uint64
	FramesSkipped   atomic.Uint64

	// Job counters
	JobsStarted  atomic.Uint64
	JobsRejected atomic.Uint64

	// Confirmed occupants across all jobs
	Confirmations atomic.Uint64

	// Last published job state
	CurrentCount atomic.Int64
	Processing   atomic.Bool

	jobsFinished *prometheus.CounterVec
	frameSeconds prometheus.Histogram
	registry     *prometheus.Registry
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

// registerPrometheusMetrics registers all collectors with the registry.
func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "roomcount_frames_processed_total",
			Help: "Total frames run through detection and tracking",
		},
		func() float64 { return float64(m.FramesProcessed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "roomcount_frames_skipped_total",
			Help: "Total frames skipped after a detector failure",
		},
		func() float64 { return float64(m.FramesSkipped.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "roomcount_jobs_started_total",
			Help: "Total analysis jobs accepted",
		},
		func() float64 { return float64(m.JobsStarted.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "roomcount_jobs_rejected_total",
			Help: "Total start requests rejected because a job was running",
		},
		func() float64 { return float64(m.JobsRejected.Load()) },
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "roomcount_confirmations_total",
			Help: "Total track identities confirmed as occupants",
		},
		func() float64 { return float64(m.Confirmations.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "roomcount_current_count",
			Help: "Confirmed occupant count of the current or last job",
		},
		func() float64 { return float64(m.CurrentCount.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "roomcount_processing",
			Help: "Job running (0=idle, 1=processing)",
		},
		func() float64 {
			if m.Processing.Load() {
				return 1
			}
			return 0
		},
	))

	m.jobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomcount_jobs_finished_total",
			Help: "Total analysis jobs finished, by reason",
		},
		[]string{"reason"},
	)
	m.registry.MustRegister(m.jobsFinished)

	m.frameSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "roomcount_frame_seconds",
		Help:    "Per-frame detection, tracking and confirmation latency",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	})
	m.registry.MustRegister(m.frameSeconds)
}

// JobStarted records an accepted job.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsStarted.Add(1)
	m.Processing.Store(true)
}

// JobRejected records a start request refused by the single-flight guard.
func (m *Metrics) JobRejected() {
	if m == nil {
		return
	}
	m.JobsRejected.Add(1)
}

// JobFinished records the end of a job.
func (m *Metrics) JobFinished(reason string) {
	if m == nil {
		return
	}
	m.Processing.Store(false)
	m.jobsFinished.WithLabelValues(reason).Inc()
}

// FrameProcessed records a frame that reached the confirmation step.
func (m *Metrics) FrameProcessed(d time.Duration, count int) {
	if m == nil {
		return
	}
	m.FramesProcessed.Add(1)
	m.CurrentCount.Store(int64(count))
	m.frameSeconds.Observe(d.Seconds())
}

// FrameSkipped records a frame dropped after a detector failure.
func (m *Metrics) FrameSkipped() {
	if m == nil {
		return
	}
	m.FramesSkipped.Add(1)
}

// Confirmed records newly confirmed occupants.
func (m *Metrics) Confirmed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Confirmations.Add(uint64(n))
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
