package cache

import "time"

// Policy sets the TTL envelope for a cache instance.
type Policy struct {
	// DefaultTTL applies when the caller passes no TTL. Zero disables
	// caching by default.
	DefaultTTL time.Duration

	// MaxTTL clamps caller-supplied TTLs. Zero means unclamped.
	MaxTTL time.Duration
}

// DefaultPolicy suits short-lived derived data such as validation
// results: 5 minutes by default, capped at an hour.
func DefaultPolicy() Policy {
	return Policy{DefaultTTL: 5 * time.Minute, MaxTTL: time.Hour}
}

// Enabled reports whether this policy caches anything at all.
func (p Policy) Enabled() bool { return p.DefaultTTL > 0 }

// EffectiveTTL resolves an override against the policy: non-positive
// overrides fall back to DefaultTTL, and the result is clamped to
// MaxTTL when one is set.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
