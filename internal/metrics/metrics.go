// Package metrics exposes run telemetry as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JonMunkholm/crmimport/internal/core"
)

const namespace = "crmimport"

// Collector implements core.Observer.
type Collector struct {
	runs            *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	lastRun         *prometheus.GaugeVec
	records         *prometheus.CounterVec
	chunks          *prometheus.CounterVec
	chunkDuration   *prometheus.HistogramVec
	referenceMisses *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

var _ core.Observer = (*Collector)(nil)

// New registers the collector's metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by entity and status.",
		}, []string{"entity", "status"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a run from load to artifacts.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"entity"}),
		lastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run of an entity finished.",
		}, []string{"entity"}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records by entity and outcome.",
		}, []string{"entity", "outcome"}),
		chunks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Submitted chunks by entity and result.",
		}, []string{"entity", "result"}),
		chunkDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_duration_seconds",
			Help:      "Remote upsert latency per chunk.",
			Buckets: []float64{
				0.1, 0.25, 0.5,
				1, 2.5, 5,
				10, 30, 60, 120,
			},
		}, []string{"entity"}),
		referenceMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_misses_total",
			Help:      "Records whose foreign key found no match.",
		}, []string{"entity", "reference"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP API requests by route and status class.",
		}, []string{"route", "result"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency distribution for HTTP API requests.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5,
			},
		}, []string{"route", "result"}),
	}
}

// ChunkSubmitted records one chunk outcome.
func (c *Collector) ChunkSubmitted(entity string, chunk core.ChunkReport) {
	result := "ok"
	if chunk.Err != "" {
		result = "error"
	}
	c.chunks.WithLabelValues(entity, result).Inc()
	c.chunkDuration.WithLabelValues(entity).Observe(chunk.Duration.Seconds())
}

// ReferenceMisses counts n unmatched foreign keys.
func (c *Collector) ReferenceMisses(entity, reference string, n int) {
	if n <= 0 {
		return
	}
	c.referenceMisses.WithLabelValues(entity, reference).Add(float64(n))
}

// RunFinished records the run's status, duration and record outcomes.
func (c *Collector) RunFinished(entity string, s core.Summary, elapsed time.Duration, err error) {
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	c.runs.WithLabelValues(entity, status).Inc()
	c.runDuration.WithLabelValues(entity).Observe(elapsed.Seconds())
	c.lastRun.WithLabelValues(entity).SetToCurrentTime()

	for outcome, n := range map[string]int{
		"created":       s.Succeeded - s.Updated,
		"updated":       s.Updated,
		"failed":        s.Failed,
		"invalid":       s.Invalid,
		"duplicate":     s.Duplicates,
		"dropped":       s.Dropped,
		"not_submitted": s.NotSubmitted,
	} {
		if n > 0 {
			c.records.WithLabelValues(entity, outcome).Add(float64(n))
		}
	}
}
