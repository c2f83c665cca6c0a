package cache

import "time"

// SetOption configures a single Set or GetOrSet call.
type SetOption func(*setConfig)

type setConfig struct {
	ttl  time.Duration
	tags []string
}

func applySetOptions(opts []SetOption) setConfig {
	var cfg setConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithTTL sets the entry's time to live. Without it the entry never
// expires.
func WithTTL(d time.Duration) SetOption {
	return func(c *setConfig) { c.ttl = d }
}

// WithTags attaches tags to the entry for bulk invalidation. Tags must
// not contain ':'.
func WithTags(tags ...string) SetOption {
	return func(c *setConfig) { c.tags = tags }
}
