package cache

import "time"

// Policy configures snapshot lifetimes.
type Policy struct {
	// DefaultTTL applies when no override is given. Zero disables caching.
	DefaultTTL time.Duration

	// MaxTTL clamps overrides. Zero means no maximum.
	MaxTTL time.Duration
}

// DefaultPolicy caches for 5 seconds, at most 1 minute.
func DefaultPolicy() Policy {
	return Policy{DefaultTTL: 5 * time.Second, MaxTTL: time.Minute}
}

// NoCachePolicy disables caching.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache reports whether caching is enabled.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL returns override, or DefaultTTL when override is not
// positive, clamped to MaxTTL.
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
