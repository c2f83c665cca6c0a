package kv

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value    []byte
	deadline time.Time // zero = no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.deadline.IsZero() && now.After(e.deadline)
}

// Memory is an in-process Store backed by a mutex-guarded map. It is used
// in unit tests and in single-process deployments that don't need a shared
// backend. Expired entries are dropped lazily on access.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
	}
}

// live returns the entry for key if it exists and has not expired,
// pruning it otherwise. Caller must hold mu.
func (m *Memory) live(key string, now time.Time) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(now) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func deadlineFor(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// Get returns the value stored under key, or ErrNotFound.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key, time.Now())
	if !ok {
		return nil, ErrNotFound
	}
	// Copy so callers can't mutate the stored slice.
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores value under key with an optional TTL.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = memoryEntry{
		value:    stored,
		deadline: deadlineFor(time.Now(), ttl),
	}
	return nil
}

// Delete removes key and reports whether a live entry existed.
func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.live(key, time.Now())
	if !ok {
		return false, nil
	}
	delete(m.entries, key)
	return true, nil
}

// ScanPrefix returns all live keys starting with prefix.
func (m *Memory) ScanPrefix(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var keys []string
	for key, e := range m.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if e.expired(now) {
			delete(m.entries, key)
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// CreateIfAbsent stores value under key only if no live entry exists.
func (m *Memory) CreateIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if _, ok := m.live(key, now); ok {
		return false, nil
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = memoryEntry{
		value:    stored,
		deadline: deadlineFor(now, ttl),
	}
	return true, nil
}

// DeleteIfEquals removes key only if its live value equals expected.
func (m *Memory) DeleteIfEquals(_ context.Context, key string, expected []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key, time.Now())
	if !ok {
		return false, nil
	}
	if string(e.value) != string(expected) {
		return false, nil
	}
	delete(m.entries, key)
	return true, nil
}

// IncrementWithExpiry increments the counter under key, starting its
// expiry window on the first increment of a fresh counter.
func (m *Memory) IncrementWithExpiry(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	e, ok := m.live(key, now)
	if !ok {
		m.entries[key] = memoryEntry{
			value:    []byte("1"),
			deadline: deadlineFor(now, window),
		}
		return 1, nil
	}

	count, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		// Key held a non-counter value; restart the counter.
		count = 0
	}
	count++
	e.value = []byte(strconv.FormatInt(count, 10))
	m.entries[key] = e
	return count, nil
}

// Len returns the number of live entries. Test helper.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	n := 0
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
			continue
		}
		n++
	}
	return n
}

var _ Store = (*Memory)(nil)
