// Package ratelimit implements fixed-window rate limiting on a shared
// key-value backend. Counters are per key and shared across all process
// instances talking to the same backend.
//
// The limiter only reports; enforcement (e.g. returning HTTP 429) is the
// caller's responsibility. Fixed windows allow up to 2x the limit in a
// burst straddling a window boundary; that approximation is accepted in
// exchange for a single atomic backend operation per check.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/commercekit/cachekit/pkg/kv"
)

// Prometheus metrics for rate limit decisions.
var (
	rateLimitAllowedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cachekit_ratelimit_allowed_total",
		Help: "Total number of rate limit checks that were allowed",
	})

	rateLimitDeniedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cachekit_ratelimit_denied_total",
		Help: "Total number of rate limit checks that exceeded the limit",
	})
)

// DefaultNamespace prefixes rate-limit counter keys in the backend.
const DefaultNamespace = "ratelimit"

// Result is the outcome of a rate limit check.
type Result struct {
	// Allowed is false once the window's count exceeds the limit.
	// Exceeding the limit is an expected outcome, not an error.
	Allowed bool

	// Remaining is the quota left in the current window, never negative.
	Remaining int64
}

// Limiter checks fixed-window rate limits against a kv.Store.
type Limiter struct {
	kv     kv.Store
	ns     string
	logger zerolog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithNamespace sets the backend key prefix. Defaults to DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(l *Limiter) { l.ns = ns }
}

// WithLogger sets the logger. Defaults to a disabled logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// NewLimiter creates a rate limiter on top of the given backend.
func NewLimiter(store kv.Store, opts ...Option) *Limiter {
	if store == nil {
		panic("kv store cannot be nil")
	}
	l := &Limiter{
		kv:     store,
		ns:     DefaultNamespace,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check consumes one unit of quota for key and reports whether the call
// is within limit for the current window. The expiry check and increment
// happen in one atomic backend step, so concurrent callers can never both
// observe a stale low count. Never blocks.
func (l *Limiter) Check(ctx context.Context, key string, limit int64, window time.Duration) (Result, error) {
	if limit <= 0 {
		return Result{}, fmt.Errorf("ratelimit: limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return Result{}, fmt.Errorf("ratelimit: window must be positive, got %v", window)
	}

	count, err := l.kv.IncrementWithExpiry(ctx, l.ns+":"+key, window)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check %s: %w", key, err)
	}

	result := Result{
		Allowed:   count <= limit,
		Remaining: limit - count,
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}

	if result.Allowed {
		rateLimitAllowedTotal.Inc()
	} else {
		rateLimitDeniedTotal.Inc()
		l.logger.Debug().
			Str("key", key).
			Int64("count", count).
			Int64("limit", limit).
			Msg("Rate limit exceeded")
	}

	return result, nil
}
