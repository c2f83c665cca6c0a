package cache

import (
	"context"
	"fmt"
	"strings"
)

// DeleteByPattern removes every live entry whose key matches the pattern.
// Only a single trailing wildcard is supported ("products:*"). Returns the
// number of live entries actually removed.
func (s *Store) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	if !strings.HasSuffix(pattern, "*") {
		return 0, fmt.Errorf("cache: pattern must end with '*': %q", pattern)
	}
	prefix := strings.TrimSuffix(pattern, "*")

	stored, err := s.kv.ScanPrefix(ctx, s.entryKey(prefix))
	if err != nil {
		cacheErrors.WithLabelValues("scan").Inc()
		return 0, fmt.Errorf("cache pattern scan %q: %w", pattern, err)
	}

	count := 0
	for _, storedKey := range stored {
		key := strings.TrimPrefix(storedKey, s.entryPrefix())
		removed, err := s.Delete(ctx, key)
		if err != nil {
			return count, err
		}
		if removed {
			count++
		}
	}

	cacheInvalidations.WithLabelValues("pattern").Add(float64(count))
	s.logger.Debug().Str("pattern", pattern).Int("removed", count).Msg("Pattern invalidation")
	return count, nil
}

// DeleteByTag removes every entry currently indexed under tag, including
// their memberships in other tags. Stale index references (entries already
// gone or expired) are pruned and not counted. Returns the number of live
// entries actually removed.
func (s *Store) DeleteByTag(ctx context.Context, tag string) (int, error) {
	refs, err := s.kv.ScanPrefix(ctx, s.tagPrefix(tag))
	if err != nil {
		cacheErrors.WithLabelValues("scan").Inc()
		return 0, fmt.Errorf("cache tag scan %q: %w", tag, err)
	}

	count := 0
	for _, ref := range refs {
		key := strings.TrimPrefix(ref, s.tagPrefix(tag))
		removed, err := s.Delete(ctx, key)
		if err != nil {
			return count, err
		}
		if removed {
			count++
			continue
		}
		// The index pointed at a key that no longer exists; prune the
		// stale reference rather than trusting the index.
		if _, err := s.kv.Delete(ctx, ref); err != nil {
			s.logger.Warn().Err(err).Str("tag", tag).Str("key", key).Msg("Failed to prune stale tag reference")
		}
	}

	cacheInvalidations.WithLabelValues("tag").Add(float64(count))
	s.logger.Debug().Str("tag", tag).Int("removed", count).Msg("Tag invalidation")
	return count, nil
}

// KeysByTag returns the keys currently indexed under tag, pruning stale
// references along the way.
func (s *Store) KeysByTag(ctx context.Context, tag string) ([]string, error) {
	refs, err := s.kv.ScanPrefix(ctx, s.tagPrefix(tag))
	if err != nil {
		cacheErrors.WithLabelValues("scan").Inc()
		return nil, fmt.Errorf("cache tag scan %q: %w", tag, err)
	}

	var keys []string
	for _, ref := range refs {
		key := strings.TrimPrefix(ref, s.tagPrefix(tag))
		live, err := s.Has(ctx, key)
		if err != nil {
			return keys, err
		}
		if !live {
			if _, err := s.kv.Delete(ctx, ref); err != nil {
				s.logger.Warn().Err(err).Str("tag", tag).Str("key", key).Msg("Failed to prune stale tag reference")
			}
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
