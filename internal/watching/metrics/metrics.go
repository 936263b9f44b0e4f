package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostsProcessed tracks total posts examined by the pipeline
	PostsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "postwatch_posts_processed_total",
			Help: "Total number of posts examined by the classification pipeline",
		},
	)

	// EventsDetected tracks verdicts that cleared the confidence threshold
	EventsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "postwatch_events_detected_total",
			Help: "Total number of posts classified as events above the threshold",
		},
	)

	// EventsPersisted tracks events written to the store
	EventsPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "postwatch_events_persisted_total",
			Help: "Total number of accepted events persisted",
		},
	)

	// Classifications tracks classification service calls by outcome
	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postwatch_classifications_total",
			Help: "Total number of classification calls",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	// AccountFetchFailures tracks accounts skipped due to source failures
	AccountFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "postwatch_account_fetch_failures_total",
			Help: "Total number of accounts skipped because their posts could not be fetched",
		},
	)

	// CacheHits and CacheMisses mirror the verdict cache counters
	CacheHits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "postwatch_cache_hits",
			Help: "Cumulative verdict cache hits",
		},
	)
	CacheMisses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "postwatch_cache_misses",
			Help: "Cumulative verdict cache misses",
		},
	)

	// Runs tracks completed job runs by job and status
	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postwatch_runs_total",
			Help: "Total number of scheduled job runs",
		},
		[]string{"job", "status"}, // job: "pipeline"|"refresh", status: "ok"|"error"
	)

	// NextRun exposes the next scheduled run time per job as a unix timestamp
	NextRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "postwatch_next_run_timestamp_seconds",
			Help: "Unix timestamp of the next scheduled run",
		},
		[]string{"job"},
	)
)
