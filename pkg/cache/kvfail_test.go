package cache

import (
	"context"
	"errors"
	"time"

	"github.com/commercekit/cachekit/pkg/kv"
)

var errBackendDown = errors.New("backend unavailable")

// failingStore wraps a kv.Store and fails selected operations, simulating
// a backend outage.
type failingStore struct {
	kv.Store
	failGet bool
	failSet bool
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet {
		return nil, errBackendDown
	}
	return f.Store.Get(ctx, key)
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.failSet {
		return errBackendDown
	}
	return f.Store.Set(ctx, key, value, ttl)
}
