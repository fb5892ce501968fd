package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	jobTotal    *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobInFlight prometheus.Gauge
	queueLag    *prometheus.HistogramVec

	sweptTotal     prometheus.Counter
	embedCacheHits *prometheus.CounterVec
}

func NewWorkerMetrics() *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "worker",
			Name:      "job_total",
			Help:      "Total processed jobs by job name and status.",
		},
		[]string{"job", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vault",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Job processing duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job", "status"},
	)
	jobInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vault",
			Subsystem: "worker",
			Name:      "jobs_in_flight",
			Help:      "Number of in-flight jobs.",
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vault",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between enqueue and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"job"},
	)
	sweptTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "worker",
			Name:      "stale_documents_swept_total",
			Help:      "Documents transitioned to failed by the stale sweeper.",
		},
	)
	embedCacheHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vault",
			Subsystem: "worker",
			Name:      "tag_embed_cache_total",
			Help:      "Tag embedding cache lookups by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(jobTotal, jobDuration, jobInFlight, queueLag, sweptTotal, embedCacheHits)

	return &WorkerMetrics{
		registry:       registry,
		jobTotal:       jobTotal,
		jobDuration:    jobDuration,
		jobInFlight:    jobInFlight,
		queueLag:       queueLag,
		sweptTotal:     sweptTotal,
		embedCacheHits: embedCacheHits,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(job string, duration time.Duration, err error) {
	m.jobInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.jobTotal.WithLabelValues(job, status).Inc()
	m.jobDuration.WithLabelValues(job, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(job string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(job).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObserveSweep(marked int64) {
	if marked > 0 {
		m.sweptTotal.Add(float64(marked))
	}
}

func (m *WorkerMetrics) EmbedCacheHit(n int) {
	if n > 0 {
		m.embedCacheHits.WithLabelValues("hit").Add(float64(n))
	}
}

func (m *WorkerMetrics) EmbedCacheMiss(n int) {
	if n > 0 {
		m.embedCacheHits.WithLabelValues("miss").Add(float64(n))
	}
}
