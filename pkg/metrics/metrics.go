// Package metrics provides the centralized Prometheus metrics registry for
// cachekit. All metrics are defined in their respective packages (cache,
// lock, ratelimit) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by cachekit.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - cachekit_cache_hits_total{namespace} (Counter): Cache hits
//   - cachekit_cache_misses_total{namespace} (Counter): Cache misses
//   - cachekit_cache_errors_total{operation} (Counter): Backend/codec errors by operation
//   - cachekit_cache_fills_total{namespace} (Counter): Factory invocations from GetOrSet
//   - cachekit_cache_invalidations_total{kind} (Counter): Entries removed by tag/pattern/clear
//
// Lock Metrics (pkg/lock):
//   - cachekit_lock_acquisitions_total (Counter): Successful acquisitions
//   - cachekit_lock_contentions_total (Counter): Attempts that found the lock held
//   - cachekit_lock_releases_total (Counter): Successful releases
//   - cachekit_lock_stale_releases_total (Counter): Releases with missing/mismatched token
//
// Rate Limit Metrics (pkg/ratelimit):
//   - cachekit_ratelimit_allowed_total (Counter): Checks within the limit
//   - cachekit_ratelimit_denied_total (Counter): Checks over the limit
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(cachekit_cache_hits_total[5m])) /
//   (sum(rate(cachekit_cache_hits_total[5m])) + sum(rate(cachekit_cache_misses_total[5m])))
//
//   # Lock Contention Ratio
//   rate(cachekit_lock_contentions_total[5m]) /
//   (rate(cachekit_lock_acquisitions_total[5m]) + rate(cachekit_lock_contentions_total[5m]))
//
//   # Rate Limit Denial Rate
//   rate(cachekit_ratelimit_denied_total[5m])
//
//   # Backend Error Rate by Operation
//   rate(cachekit_cache_errors_total[5m])
