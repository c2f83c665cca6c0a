package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Stats is a snapshot of the store's counters. Hits and misses accumulate
// since process start or the last Clear; Keys and Memory reflect the
// backend at the time of the call. Memory is an estimate of stored value
// bytes, informational only.
type Stats struct {
	Hits    uint64
	Misses  uint64
	HitRate float64
	Keys    int
	Memory  string
}

// Stats returns the current cache statistics. Keys and memory are
// computed with a prefix scan, so the call is not free on large caches.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	hits := s.hits.Load()
	misses := s.misses.Load()

	stats := Stats{
		Hits:   hits,
		Misses: misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}

	stored, err := s.kv.ScanPrefix(ctx, s.entryPrefix())
	if err != nil {
		cacheErrors.WithLabelValues("scan").Inc()
		return stats, fmt.Errorf("cache stats scan: %w", err)
	}

	var bytes uint64
	for _, storedKey := range stored {
		key := strings.TrimPrefix(storedKey, s.entryPrefix())
		entry, err := s.loadEntry(ctx, key)
		if err != nil || entry == nil {
			continue
		}
		stats.Keys++
		bytes += uint64(len(entry.Value))
	}
	stats.Memory = humanize.Bytes(bytes)

	return stats, nil
}
