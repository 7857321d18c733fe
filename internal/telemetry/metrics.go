package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency. It is recorded by the
// httpserver.Metrics middleware on the collector's router; the webhook
// listener does not record it.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "sentrynode",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// ConnectionsIngestedTotal counts connection reports accepted into the store.
var ConnectionsIngestedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentrynode",
		Subsystem: "connections",
		Name:      "ingested_total",
		Help:      "Total number of connection reports ingested by node.",
	},
	[]string{"node_uuid"},
)

// ConnectionsErrorsTotal counts per-connection processing errors (unknown user etc).
var ConnectionsErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentrynode",
		Subsystem: "connections",
		Name:      "errors_total",
		Help:      "Total number of connection reports that failed processing, by reason.",
	},
	[]string{"reason"},
)

// ConnectionsClosedStaleTotal counts rows closed by the stale-closure sweep.
var ConnectionsClosedStaleTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "sentrynode",
		Subsystem: "connections",
		Name:      "closed_stale_total",
		Help:      "Total number of connection rows closed by the stale-closure sweep.",
	},
)

// ViolationScoresTotal counts scored users by recommended action.
var ViolationScoresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentrynode",
		Subsystem: "violation",
		Name:      "scores_total",
		Help:      "Total number of violation scores produced, by recommended action.",
	},
	[]string{"action"},
)

// ViolationScoreDuration tracks scoring latency.
var ViolationScoreDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "sentrynode",
		Subsystem: "violation",
		Name:      "score_duration_seconds",
		Help:      "Violation scoring duration in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	},
)

// EnrichCacheHitsTotal / EnrichCacheMissesTotal / EnrichUpstreamCallsTotal
// track the IP-metadata cache and upstream calls.
var (
	EnrichCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentrynode",
			Subsystem: "enrich",
			Name:      "cache_hits_total",
			Help:      "Total number of IP-metadata cache hits.",
		},
	)
	EnrichCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentrynode",
			Subsystem: "enrich",
			Name:      "cache_misses_total",
			Help:      "Total number of IP-metadata cache misses.",
		},
	)
	EnrichUpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentrynode",
			Subsystem: "enrich",
			Name:      "upstream_calls_total",
			Help:      "Total number of upstream GeoIP/ASN calls, by outcome.",
		},
		[]string{"outcome"},
	)
)

// ReporterBatchesTotal / ReporterReportsDroppedTotal track the node-agent
// batch reporter's delivery outcomes.
var (
	ReporterBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentrynode",
			Subsystem: "reporter",
			Name:      "batches_total",
			Help:      "Total number of connection report batches posted to the collector, by outcome.",
		},
		[]string{"outcome"},
	)
	ReporterReportsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentrynode",
			Subsystem: "reporter",
			Name:      "reports_dropped_total",
			Help:      "Total number of connection reports dropped by a full queue, a permanently rejected batch, or a batch whose retries ran out.",
		},
	)
)

// SyncRecordsTotal counts records mirrored per entity class.
var SyncRecordsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "sentrynode",
		Subsystem: "sync",
		Name:      "records_total",
		Help:      "Total number of records synced from the control plane, by entity class and outcome.",
	},
	[]string{"entity_class", "outcome"},
)

// NotificationsSentTotal / NotificationsThrottledTotal track dispatch.
var (
	NotificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentrynode",
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Total number of notifications dispatched, by topic.",
		},
		[]string{"topic"},
	)
	NotificationsThrottledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentrynode",
			Subsystem: "notify",
			Name:      "throttled_total",
			Help:      "Total number of violation notifications suppressed by the throttle.",
		},
	)
)

// All returns every sentrynode-specific collector for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		ConnectionsIngestedTotal,
		ConnectionsErrorsTotal,
		ConnectionsClosedStaleTotal,
		ViolationScoresTotal,
		ViolationScoreDuration,
		EnrichCacheHitsTotal,
		EnrichCacheMissesTotal,
		EnrichUpstreamCallsTotal,
		SyncRecordsTotal,
		NotificationsSentTotal,
		NotificationsThrottledTotal,
		ReporterBatchesTotal,
		ReporterReportsDroppedTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors,
// the shared HTTPRequestDuration metric, and any additional collectors.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
