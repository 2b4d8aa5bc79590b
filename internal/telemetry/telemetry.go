// Package telemetry registers the service's Prometheus collectors. The
// metrics land on the default registry and are served by the HTTP server's
// /metrics endpoint.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClusteringRuns counts pipeline invocations by outcome
	// ("cache_hit" or "computed").
	ClusteringRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recollect",
		Subsystem: "clustering",
		Name:      "runs_total",
		Help:      "Clustering pipeline invocations by outcome.",
	}, []string{"outcome"})

	// PipelineDuration observes end-to-end latency of computed runs.
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "recollect",
		Subsystem: "clustering",
		Name:      "pipeline_duration_seconds",
		Help:      "End-to-end latency of computed clustering runs.",
		Buckets:   prometheus.DefBuckets,
	})

	// PersistFailures counts swallowed result-store write failures.
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "recollect",
		Subsystem: "clustering",
		Name:      "persist_failures_total",
		Help:      "Result persistence failures that were logged and swallowed.",
	})

	// ProviderRequests counts outbound provider calls by port and status.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recollect",
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Outbound LLM provider requests by port (complete|embed) and status (ok|error).",
	}, []string{"port", "status"})
)
