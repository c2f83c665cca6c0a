package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultOpTimeout bounds every Redis round-trip. Callers can still pass a
// tighter deadline through the context.
const DefaultOpTimeout = 5 * time.Second

// scanBatchSize is the COUNT hint passed to SCAN.
const scanBatchSize = 100

// deleteIfEqualsScript removes a key only when its value matches the
// supplied token. GET and DEL run in one server-side step, so a holder
// whose value was replaced between calls can never delete the new value.
var deleteIfEqualsScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// incrementWithExpiryScript increments a counter and, when the increment
// created the key, starts its expiry window. INCR and PEXPIRE run in one
// server-side step so two concurrent callers cannot both observe a fresh
// window.
var incrementWithExpiryScript = redis.NewScript(`
local count = redis.call("incr", KEYS[1])
if count == 1 then
	redis.call("pexpire", KEYS[1], ARGV[1])
end
return count
`)

// Redis implements Store on top of a Redis connection.
type Redis struct {
	client    *redis.Client
	opTimeout time.Duration
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithOpTimeout sets the per-operation timeout. Defaults to DefaultOpTimeout.
func WithOpTimeout(d time.Duration) RedisOption {
	return func(r *Redis) { r.opTimeout = d }
}

// NewRedis creates a Redis-backed Store. The caller owns the client's
// lifecycle.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	if client == nil {
		panic("redis client cannot be nil")
	}
	r := &Redis{
		client:    client,
		opTimeout: DefaultOpTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) opCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, r.opTimeout)
}

// Get returns the value stored under key, or ErrNotFound.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set stores value under key with an optional TTL.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key and reports whether it existed.
func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	removed, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return removed > 0, nil
}

// ScanPrefix returns all keys starting with prefix. Uses SCAN with a MATCH
// pattern, never KEYS, so large keyspaces don't block the server.
func (r *Redis) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

// CreateIfAbsent stores value under key only if the key does not exist.
func (r *Redis) CreateIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	created, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return created, nil
}

// DeleteIfEquals removes key only if its current value equals expected.
func (r *Redis) DeleteIfEquals(ctx context.Context, key string, expected []byte) (bool, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	res, err := deleteIfEqualsScript.Run(ctx, r.client, []string{key}, expected).Int64()
	if err != nil {
		return false, fmt.Errorf("redis delete-if-equals: %w", err)
	}
	return res > 0, nil
}

// IncrementWithExpiry increments the counter under key, starting its expiry
// window on the first increment.
func (r *Redis) IncrementWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	count, err := incrementWithExpiryScript.Run(ctx, r.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis increment-with-expiry: %w", err)
	}
	return count, nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

var _ Store = (*Redis)(nil)
