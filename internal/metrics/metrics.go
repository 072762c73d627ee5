package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors for the job pipeline. Construct it
// once per process (or once per test registry).
type Metrics struct {
	JobsStarted   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter

	StageDuration *prometheus.HistogramVec // label: stage
	Chunks        *prometheus.CounterVec   // label: outcome (ok, failed, empty)
	Callbacks     *prometheus.CounterVec   // label: outcome (delivered, exhausted)
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_jobs_started_total",
			Help: "Jobs picked up by the pipeline",
		}),
		JobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_jobs_completed_total",
			Help: "Jobs that reached complete status",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_jobs_failed_total",
			Help: "Jobs that reached failed status",
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transcribe_stage_duration_seconds",
			Help:    "Wall-clock duration of each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"stage"}),
		Chunks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transcribe_chunks_total",
			Help: "Per-chunk transcription outcomes",
		}, []string{"outcome"}),
		Callbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "transcribe_callbacks_total",
			Help: "Webhook delivery outcomes",
		}, []string{"outcome"}),
	}
}

// RegisterQueueDepth exposes the worker queue depth as a gauge so operators
// can see backpressure building up.
func RegisterQueueDepth(reg prometheus.Registerer, depth func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "transcribe_queue_depth",
		Help: "Jobs waiting in the worker queue",
	}, func() float64 { return float64(depth()) }))
}
