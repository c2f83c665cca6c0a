package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/commercekit/cachekit/pkg/codec"
	"github.com/commercekit/cachekit/pkg/kv"
)

// DefaultNamespace prefixes all backend keys when no namespace is configured.
const DefaultNamespace = "cache"

// Locker provides short-lived exclusive locks for cross-process
// single-flight in GetOrSet. Satisfied by lock.Manager.
type Locker interface {
	Acquire(ctx context.Context, resource string, ttl time.Duration) (string, error)
	Release(ctx context.Context, resource, token string) (bool, error)
}

// Store is the cache store. Safe for concurrent use; construct one per
// process and share it.
type Store struct {
	kv     kv.Store
	codec  codec.Codec
	ns     string
	logger zerolog.Logger

	locker   Locker
	lockTTL  time.Duration
	lockWait time.Duration
	lockPoll time.Duration

	flight singleflight.Group
	hits   atomic.Uint64
	misses atomic.Uint64
}

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the value codec. Defaults to codec.JSON.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithNamespace sets the backend key prefix. Defaults to DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(s *Store) { s.ns = ns }
}

// WithLogger sets the logger. Defaults to a disabled logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithLocker enables distributed single-flight for GetOrSet: the factory
// call is guarded by a lock so callers in other processes deduplicate too.
func WithLocker(l Locker) Option {
	return func(s *Store) { s.locker = l }
}

// New creates a cache store on top of the given backend.
func New(store kv.Store, opts ...Option) *Store {
	if store == nil {
		panic("kv store cannot be nil")
	}
	s := &Store{
		kv:       store,
		codec:    codec.JSON{},
		ns:       DefaultNamespace,
		logger:   zerolog.Nop(),
		lockTTL:  30 * time.Second,
		lockWait: 2 * time.Second,
		lockPoll: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) entryKey(key string) string { return s.ns + ":entry:" + key }
func (s *Store) entryPrefix() string        { return s.ns + ":entry:" }
func (s *Store) tagKey(tag, key string) string {
	return s.ns + ":tag:" + tag + ":" + key
}
func (s *Store) tagPrefix(tag string) string { return s.ns + ":tag:" + tag + ":" }

func (s *Store) hit() {
	s.hits.Add(1)
	cacheHits.WithLabelValues(s.ns).Inc()
}

func (s *Store) miss() {
	s.misses.Add(1)
	cacheMisses.WithLabelValues(s.ns).Inc()
}

// loadEntry fetches and decodes the entry for key without touching the
// hit/miss statistics. Missing keys, expired entries and backend failures
// all come back as (nil, nil); only decode failures are errors. Expired
// entries are removed opportunistically.
func (s *Store) loadEntry(ctx context.Context, key string) (*Entry, error) {
	data, err := s.kv.Get(ctx, s.entryKey(key))
	if err != nil {
		if err == kv.ErrNotFound {
			return nil, nil
		}
		// Fail open: a backend outage degrades to a miss.
		cacheErrors.WithLabelValues("get").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache backend read failed, treating as miss")
		return nil, nil
	}

	var entry Entry
	if err := s.codec.Unmarshal(data, &entry); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("decode cache entry %s: %w", key, err)
	}

	if entry.IsExpired() {
		if _, err := s.removeEntry(ctx, key, &entry); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to remove expired entry")
		}
		return nil, nil
	}

	return &entry, nil
}

// removeEntry deletes the entry and all its tag memberships. Tag pruning
// is best effort; the entry delete decides the return value.
func (s *Store) removeEntry(ctx context.Context, key string, entry *Entry) (bool, error) {
	for _, tag := range entry.Tags {
		if _, err := s.kv.Delete(ctx, s.tagKey(tag, key)); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Str("tag", tag).Msg("Failed to prune tag membership")
		}
	}
	removed, err := s.kv.Delete(ctx, s.entryKey(key))
	if err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("cache delete %s: %w", key, err)
	}
	return removed, nil
}

// Get retrieves the value cached under key into dest. Returns false for
// missing or expired entries and on backend failure (fail open). Hits and
// misses are counted; decode failures are propagated.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	entry, err := s.loadEntry(ctx, key)
	if err != nil {
		return false, err
	}
	if entry == nil {
		s.miss()
		return false, nil
	}

	if dest != nil {
		if err := s.codec.Unmarshal(entry.Value, dest); err != nil {
			cacheErrors.WithLabelValues("get").Inc()
			return false, fmt.Errorf("decode cached value %s: %w", key, err)
		}
	}

	s.hit()
	return true, nil
}

// Set stores value under key, replacing any prior entry and its tag
// memberships. Backend failures are propagated: a silent cache-write
// failure would leave callers believing the value is retrievable.
func (s *Store) Set(ctx context.Context, key string, value any, opts ...SetOption) error {
	cfg := applySetOptions(opts)

	data, err := s.codec.Marshal(value)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("encode cached value %s: %w", key, err)
	}

	now := time.Now()
	entry := Entry{
		Value:    data,
		Tags:     cfg.tags,
		CachedAt: now,
	}
	if cfg.ttl > 0 {
		expires := now.Add(cfg.ttl)
		entry.ExpiresAt = &expires
	}

	// Old tags not in the new set must be pruned. Best effort: if the old
	// entry can't be read, stale memberships are caught lazily later.
	var oldTags []string
	if old, err := s.loadEntry(ctx, key); err == nil && old != nil {
		oldTags = old.Tags
	}

	blob, err := s.codec.Marshal(&entry)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	if err := s.kv.Set(ctx, s.entryKey(key), blob, cfg.ttl); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("cache set %s: %w", key, err)
	}

	for _, tag := range oldTags {
		if entry.HasTag(tag) {
			continue
		}
		if _, err := s.kv.Delete(ctx, s.tagKey(tag, key)); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Str("tag", tag).Msg("Failed to prune replaced tag membership")
		}
	}
	for _, tag := range cfg.tags {
		// Membership entries share the value's TTL so they self-expire
		// alongside it.
		if err := s.kv.Set(ctx, s.tagKey(tag, key), []byte("1"), cfg.ttl); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Str("tag", tag).Msg("Failed to index tag membership")
		}
	}

	return nil
}

// Has reports whether a live entry exists under key. Does not affect
// hit/miss statistics.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	entry, err := s.loadEntry(ctx, key)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// Delete removes the entry under key and all its tag memberships. Returns
// whether a live entry was removed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	entry, err := s.loadEntry(ctx, key)
	if err != nil {
		// Undecodable entry: remove it physically, nothing to prune.
		removed, derr := s.kv.Delete(ctx, s.entryKey(key))
		if derr != nil {
			cacheErrors.WithLabelValues("delete").Inc()
			return false, fmt.Errorf("cache delete %s: %w", key, derr)
		}
		return removed, nil
	}
	if entry == nil {
		return false, nil
	}
	return s.removeEntry(ctx, key, entry)
}

// Clear removes all entries and tag memberships in this store's namespace
// and resets the hit/miss statistics.
func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.kv.ScanPrefix(ctx, s.ns+":")
	if err != nil {
		cacheErrors.WithLabelValues("scan").Inc()
		return fmt.Errorf("cache clear: %w", err)
	}

	for _, key := range keys {
		if _, err := s.kv.Delete(ctx, key); err != nil {
			cacheErrors.WithLabelValues("delete").Inc()
			return fmt.Errorf("cache clear %s: %w", key, err)
		}
	}

	cacheInvalidations.WithLabelValues("clear").Add(float64(len(keys)))
	s.hits.Store(0)
	s.misses.Store(0)

	s.logger.Debug().Int("removed", len(keys)).Msg("Cache cleared")
	return nil
}
