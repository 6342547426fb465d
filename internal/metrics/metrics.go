// Package metrics defines the platform's Prometheus collectors: job
// throughput, queue depth, match classification counts, and embedding
// latency, grounded on the counter/histogram-with-labels shape seen in
// jordigilh-kubernaut's gateway metrics
// (test/unit/gateway/metrics/error_recovery_test.go's
// prometheus.NewCounterVec + registry.MustRegister pattern), generalized
// from a single ad-hoc registry to the global prometheus.DefaultRegisterer
// so /metrics can serve every collector with one promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts completed jobs by kind and terminal status.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_jobs_total",
		Help: "Total number of jobs reaching a terminal status, by kind and status.",
	}, []string{"kind", "status"})

	// JobDuration observes wall-clock job duration in seconds, by kind.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingestion_job_duration_seconds",
		Help:    "Job duration in seconds from started_at to completed_at, by kind.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"kind"})

	// QueueDepth reports the current length of a named work queue.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingestion_queue_depth",
		Help: "Current number of jobs waiting in a named queue.",
	}, []string{"queue"})

	// DLQDepth reports the current size of a named dead letter set.
	DLQDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingestion_dlq_depth",
		Help: "Current number of job ids recorded in a named dead letter set.",
	}, []string{"queue"})

	// MatchClassifications counts matcher outcomes by classification
	// (auto_matched, potential_match, verified_match, unmatched).
	MatchClassifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_match_classifications_total",
		Help: "Total number of matcher decisions, by resulting classification.",
	}, []string{"classification"})

	// EmbeddingLatency observes embedding HTTP call latency in seconds.
	EmbeddingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingestion_embedding_latency_seconds",
		Help:    "Latency of embedding generation HTTP calls in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// LLMLatency observes structured-output LLM call latency in seconds,
	// by CompletionRequest.Kind ("extraction", "rerank", or "unspecified").
	LLMLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingestion_llm_latency_seconds",
		Help:    "Latency of structured-output LLM calls in seconds, by extraction kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// ReviewQueueSize reports the current count of pending review items.
	ReviewQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingestion_review_queue_pending",
		Help: "Current number of pending match_review_queue entries.",
	})
)
