// Package metrics provides Prometheus metrics collection for the cache
// engine. It tracks lookups by source, store latencies, invalidations,
// memory tier movement, and rate limiting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "cachemux"
)

// LatencyBuckets defines histogram buckets for latency metrics (in seconds).
var LatencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
	0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0,
}

// =============================================================================
// Cache Metrics
// =============================================================================

var (
	// CacheLookups counts lookups by outcome source: exact, semantic, miss.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Total cache lookups by outcome source",
		},
		[]string{"source"},
	)

	// CacheSets counts cache writes by target: exact, semantic.
	CacheSets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_sets_total",
			Help:      "Total cache writes by target",
		},
		[]string{"target"},
	)

	// CachePurged counts entries removed by invalidation.
	CachePurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_purged_total",
			Help:      "Total entries removed by invalidation",
		},
		[]string{"trigger"}, // api, listener
	)

	// LookupLatency tracks end-to-end lookup latency by outcome source.
	LookupLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_latency_seconds",
			Help:      "Cache lookup latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"source"},
	)

	// StoreErrors counts backend failures by backend and operation.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Backend failures by backend and operation",
		},
		[]string{"backend", "op"},
	)
)

// =============================================================================
// Memory Tier Metrics
// =============================================================================

var (
	// TierItems tracks current item counts per memory tier.
	TierItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_tier_items",
			Help:      "Current item count per memory tier",
		},
		[]string{"tier"},
	)

	// TierDemotions counts items moved down a tier.
	TierDemotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_tier_demotions_total",
			Help:      "Items demoted between memory tiers",
		},
		[]string{"from", "to"},
	)

	// AdmissionDecisions counts validator outcomes for L3 admission.
	AdmissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_decisions_total",
			Help:      "Validator decisions for long-term memory admission",
		},
		[]string{"decision", "reason"},
	)
)

// =============================================================================
// HTTP / Rate Limit Metrics
// =============================================================================

var (
	// HTTPRequests counts HTTP requests by route and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route and status code",
		},
		[]string{"route", "status_code"},
	)

	// HTTPLatency tracks HTTP request latency by route.
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_latency_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"route"},
	)

	// RateLimitDenials counts requests blocked by the rate limiter.
	RateLimitDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_denials_total",
			Help:      "Requests blocked by the fixed-window rate limiter",
		},
		[]string{"scope"}, // local, distributed
	)

	// ListenerOps counts listener registry operations.
	ListenerOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_ops_total",
			Help:      "Listener registry operations",
		},
		[]string{"op"}, // register, unregister
	)
)
