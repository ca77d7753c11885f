// Package metrics exposes Prometheus counters for cache activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Phase labels for StrategyErrors
const (
	PhaseRequest  = "request"
	PhaseResponse = "response"
)

var (
	// CacheHits tracks responses served from the store, by strategy
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchy_cache_hits_total",
			Help: "Total number of requests answered from the cache",
		},
		[]string{"strategy"},
	)

	// CacheMisses tracks handled requests sent on to the origin, by strategy
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchy_cache_misses_total",
			Help: "Total number of handled requests forwarded to the origin",
		},
		[]string{"strategy"},
	)

	// CacheStores tracks captured responses, by strategy
	CacheStores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchy_cache_stores_total",
			Help: "Total number of origin responses captured into the cache",
		},
		[]string{"strategy"},
	)

	// StrategyErrors tracks failed caching attempts, by strategy and phase
	StrategyErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catchy_strategy_errors_total",
			Help: "Total number of caching attempts that failed",
		},
		[]string{"strategy", "phase"}, // "request", "response"
	)

	// CacheEvictions tracks entries dropped by the store's size or TTL policy
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catchy_cache_evictions_total",
			Help: "Total number of cache entries evicted",
		},
	)
)

// RecordEviction is a cache eviction callback
func RecordEviction(string) {
	CacheEvictions.Inc()
}
