// Package kv defines the key-value backend adapter used by every other
// cachekit component. The cache store, lock manager and rate limiter are
// built exclusively on these primitives; this package is the only place
// that talks to the backing store.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested key does not exist in the store.
var ErrNotFound = errors.New("kv: key not found")

// Store is the minimal set of primitives required by the caching and
// coordination layers. Implementations must be safe for concurrent use.
//
// The three compound operations (CreateIfAbsent, DeleteIfEquals,
// IncrementWithExpiry) must each execute as a single atomic step against
// the backend. Emulating them with separate read and write calls opens a
// race window and is not an acceptable implementation.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// ScanPrefix returns all keys starting with prefix.
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)

	// CreateIfAbsent stores value under key only if the key does not
	// currently exist. Returns true if the value was stored.
	CreateIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// DeleteIfEquals removes key only if its current value equals expected.
	// Returns true if the key was removed.
	DeleteIfEquals(ctx context.Context, key string, expected []byte) (bool, error)

	// IncrementWithExpiry increments the counter stored under key and
	// returns the post-increment count. The first increment of a fresh
	// counter starts a window of the given length; when the window
	// elapses the counter resets and the next increment returns 1.
	IncrementWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error)
}
