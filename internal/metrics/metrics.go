// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsProcessed counts import rows by outcome.
	RowsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_processed_total",
		Help: "Total number of import rows processed by outcome",
	}, []string{"outcome"}) // outcome: created, updated, rejected, error

	// ChunksProcessed counts chunk submissions, replays included.
	ChunksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_chunks_processed_total",
		Help: "Total number of import chunks processed",
	}, []string{"result"}) // result: committed, replayed, failed

	// ChunkDuration tracks how long one chunk takes end to end.
	ChunkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "import_chunk_duration_seconds",
		Help:    "Time taken to process one import chunk",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	// JobsCompleted counts finished import jobs by final status.
	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_jobs_completed_total",
		Help: "Total number of import jobs reaching a terminal status",
	}, []string{"status"}) // status: completed, failed

	// MatchesLinked counts product links by match method.
	MatchesLinked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matcher_links_created_total",
		Help: "Total number of product links created by match method",
	}, []string{"method"}) // method: exact_identifier, fuzzy_name

	// MatchesMissed counts products that went through a matching pass unlinked.
	MatchesMissed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matcher_unmatched_total",
		Help: "Total number of supplier products left unmatched after a pass",
	})

	// QueueRepairs counts coordinator repairs by trigger.
	QueueRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_queue_repairs_total",
		Help: "Total number of enrichment queue repairs by trigger",
	}, []string{"trigger"}) // trigger: orphan, stuck

	// DeadLettered counts chunks escalated to the dead letter queue.
	DeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_dead_letters_total",
		Help: "Total number of chunks escalated to the dead letter queue",
	}, []string{"source"}) // source: upload, api_feed

	// AlertsRaised counts coordinator alerts by severity.
	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_alerts_total",
		Help: "Total number of alerts raised by severity",
	}, []string{"severity"})
)
