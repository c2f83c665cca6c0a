package cache

import (
	"time"
)

// Entry is the stored envelope around a cached value. The value itself is
// kept as codec-encoded bytes so the envelope can be decoded without
// knowing the value's type.
type Entry struct {
	// Value is the codec-encoded cached value.
	Value []byte `json:"value" msgpack:"value"`

	// Tags are the labels this entry is indexed under.
	Tags []string `json:"tags,omitempty" msgpack:"tags,omitempty"`

	// ExpiresAt is when the entry becomes logically absent. Nil means no
	// expiry.
	ExpiresAt *time.Time `json:"expires_at,omitempty" msgpack:"expires_at,omitempty"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at" msgpack:"cached_at"`
}

// IsExpired returns true if the entry is past its expiry. Entries without
// an expiry never expire.
func (e *Entry) IsExpired() bool {
	return e.ExpiresAt != nil && time.Now().After(*e.ExpiresAt)
}

// TTL returns the time until expiration. Returns 0 if the entry has no
// expiry or is already expired.
func (e *Entry) TTL() time.Duration {
	if e.ExpiresAt == nil {
		return 0
	}
	ttl := time.Until(*e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// HasTag reports whether the entry carries the given tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
