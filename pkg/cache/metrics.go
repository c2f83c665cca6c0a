package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits by namespace
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	// cacheMisses tracks cache misses by namespace
	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"namespace"},
	)

	// cacheErrors tracks cache operation errors
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "scan"
	)

	// cacheFills tracks factory invocations from GetOrSet
	cacheFills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_cache_fills_total",
			Help: "Total number of cache fills performed by GetOrSet factories",
		},
		[]string{"namespace"},
	)

	// cacheInvalidations tracks bulk invalidations by kind
	cacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachekit_cache_invalidations_total",
			Help: "Total number of entries removed by bulk invalidation",
		},
		[]string{"kind"}, // "tag", "pattern", "clear"
	)
)
