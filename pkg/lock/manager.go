// Package lock implements short-lived, TTL-bounded exclusive locks for
// cross-request coordination, such as suppressing duplicate order creation
// when a payment webhook is retried.
//
// Acquisition is a non-blocking probe: a held lock yields an empty token
// and the caller decides whether to retry, back off or give up. A lock
// past its TTL is not live, so a crashed holder never wedges the resource.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/commercekit/cachekit/pkg/kv"
)

// Prometheus metrics for lock operations.
var (
	lockAcquisitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cachekit_lock_acquisitions_total",
		Help: "Total number of successful lock acquisitions",
	})

	lockContentionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cachekit_lock_contentions_total",
		Help: "Total number of acquisition attempts that found the lock held",
	})

	lockReleasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cachekit_lock_releases_total",
		Help: "Total number of successful lock releases",
	})

	lockStaleReleasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cachekit_lock_stale_releases_total",
		Help: "Total number of release attempts with a missing or mismatched token",
	})
)

// DefaultNamespace prefixes lock keys in the backend.
const DefaultNamespace = "lock"

// Manager manages named exclusive locks on top of a kv.Store.
type Manager struct {
	kv     kv.Store
	ns     string
	logger zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace sets the backend key prefix. Defaults to DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) { m.ns = ns }
}

// WithLogger sets the logger. Defaults to a disabled logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a lock manager on top of the given backend.
func NewManager(store kv.Store, opts ...Option) *Manager {
	if store == nil {
		panic("kv store cannot be nil")
	}
	m := &Manager{
		kv:     store,
		ns:     DefaultNamespace,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) lockKey(resource string) string {
	return m.ns + ":" + resource
}

// Acquire attempts to take the lock for resource. On success it returns a
// freshly generated owner token; if the lock is already held it returns
// an empty token and no error. It never blocks or retries; retry and
// backoff policy belongs to the caller.
//
// The create-if-absent check runs as a single atomic backend operation.
func (m *Manager) Acquire(ctx context.Context, resource string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("lock: ttl must be positive, got %v", ttl)
	}

	token := uuid.NewString()
	acquired, err := m.kv.CreateIfAbsent(ctx, m.lockKey(resource), []byte(token), ttl)
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", resource, err)
	}
	if !acquired {
		lockContentionsTotal.Inc()
		m.logger.Debug().Str("resource", resource).Msg("Lock held by another owner")
		return "", nil
	}

	lockAcquisitionsTotal.Inc()
	m.logger.Debug().Str("resource", resource).Dur("ttl", ttl).Msg("Lock acquired")
	return token, nil
}

// Release removes the lock for resource only if the supplied token still
// owns it. Returns false when the lock does not exist, has expired, or is
// now held by someone else — an expected outcome, not a fault. A caller
// whose lock expired can therefore never release a successor's lock.
//
// The compare-and-delete runs as a single atomic backend operation.
func (m *Manager) Release(ctx context.Context, resource, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	released, err := m.kv.DeleteIfEquals(ctx, m.lockKey(resource), []byte(token))
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", resource, err)
	}
	if !released {
		lockStaleReleasesTotal.Inc()
		m.logger.Debug().Str("resource", resource).Msg("Release skipped: lock not owned")
		return false, nil
	}

	lockReleasesTotal.Inc()
	m.logger.Debug().Str("resource", resource).Msg("Lock released")
	return true, nil
}

// IsHeld reports whether a live lock currently exists for resource,
// regardless of owner.
func (m *Manager) IsHeld(ctx context.Context, resource string) (bool, error) {
	_, err := m.kv.Get(ctx, m.lockKey(resource))
	if err == kv.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect lock %s: %w", resource, err)
	}
	return true, nil
}
