package cache

import (
	"context"
	"fmt"
	"time"
)

// Factory produces the value for a missing key.
type Factory func(ctx context.Context) (any, error)

// GetOrSet returns the value cached under key, populating it with factory
// on a miss. On a hit the factory is not invoked. Concurrent calls for the
// same missing key within this process share one factory invocation; with
// WithLocker configured the invocation is additionally guarded by a
// distributed lock, so callers in other processes deduplicate as well.
func (s *Store) GetOrSet(ctx context.Context, key string, dest any, factory Factory, opts ...SetOption) error {
	found, err := s.Get(ctx, key, dest)
	if err != nil || found {
		return err
	}

	// The flight runs with the first caller's context; detach it so a
	// cancelled first caller doesn't fail everyone who joined the flight.
	flightCtx := context.WithoutCancel(ctx)
	raw, err, _ := s.flight.Do(key, func() (any, error) {
		return s.fill(flightCtx, key, factory, opts)
	})
	if err != nil {
		return err
	}

	if dest != nil {
		if err := s.codec.Unmarshal(raw.([]byte), dest); err != nil {
			return fmt.Errorf("decode cached value %s: %w", key, err)
		}
	}
	return nil
}

// fill produces the encoded value for key, re-checking the cache first in
// case another caller populated it while this one queued on the flight.
func (s *Store) fill(ctx context.Context, key string, factory Factory, opts []SetOption) ([]byte, error) {
	if entry, err := s.loadEntry(ctx, key); err == nil && entry != nil {
		return entry.Value, nil
	}

	if s.locker != nil {
		return s.fillLocked(ctx, key, factory, opts)
	}
	return s.invokeFactory(ctx, key, factory, opts)
}

// fillLocked guards the factory call with a distributed lock. While
// another process holds the lock, the cache is polled for the value it is
// computing. If the lock can't be obtained within the wait budget the
// factory runs anyway: duplicated work is preferable to failing the
// request.
func (s *Store) fillLocked(ctx context.Context, key string, factory Factory, opts []SetOption) ([]byte, error) {
	resource := "cache-fill:" + key
	deadline := time.Now().Add(s.lockWait)

	for {
		token, err := s.locker.Acquire(ctx, resource, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if token != "" {
			defer func() {
				if _, err := s.locker.Release(context.WithoutCancel(ctx), resource, token); err != nil {
					s.logger.Warn().Err(err).Str("resource", resource).Msg("Failed to release fill lock")
				}
			}()

			// Another process may have filled the key before we got the
			// lock.
			if entry, err := s.loadEntry(ctx, key); err == nil && entry != nil {
				return entry.Value, nil
			}
			return s.invokeFactory(ctx, key, factory, opts)
		}

		if time.Now().After(deadline) {
			s.logger.Debug().Str("key", key).Msg("Fill lock wait exhausted, computing locally")
			return s.invokeFactory(ctx, key, factory, opts)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.lockPoll):
		}

		if entry, err := s.loadEntry(ctx, key); err == nil && entry != nil {
			return entry.Value, nil
		}
	}
}

// invokeFactory runs the factory, stores the result and returns its
// encoded form.
func (s *Store) invokeFactory(ctx context.Context, key string, factory Factory, opts []SetOption) ([]byte, error) {
	value, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache factory %s: %w", key, err)
	}

	if err := s.Set(ctx, key, value, opts...); err != nil {
		return nil, err
	}

	cacheFills.WithLabelValues(s.ns).Inc()

	data, err := s.codec.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode cached value %s: %w", key, err)
	}
	return data, nil
}
