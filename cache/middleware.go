package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// LoadFunc renders a snapshot on a miss.
type LoadFunc func(ctx context.Context) ([]byte, error)

// Middleware serves API snapshots from a Cache. Concurrent misses for one
// key share a single load. Errors are not cached.
type Middleware struct {
	cache  Cache
	keyer  Keyer
	policy Policy
	group  singleflight.Group
}

// NewMiddleware creates the middleware. A nil keyer means DefaultKeyer.
func NewMiddleware(cache Cache, keyer Keyer, policy Policy) *Middleware {
	if keyer == nil {
		keyer = DefaultKeyer{}
	}
	return &Middleware{cache: cache, keyer: keyer, policy: policy}
}

// Execute returns the cached snapshot for route and params or loads it.
func (m *Middleware) Execute(ctx context.Context, route string, params any, load LoadFunc) ([]byte, error) {
	if !m.policy.ShouldCache() {
		return load(ctx)
	}
	key, err := m.keyer.Key(route, params)
	if err != nil {
		return load(ctx)
	}
	if b, ok := m.cache.Get(ctx, key); ok {
		return b, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		b, err := load(ctx)
		if err != nil {
			return nil, err
		}
		_ = m.cache.Set(ctx, key, b, m.policy.EffectiveTTL(0))
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate drops the snapshot for route and params.
func (m *Middleware) Invalidate(ctx context.Context, route string, params any) error {
	key, err := m.keyer.Key(route, params)
	if err != nil {
		return err
	}
	return m.cache.Delete(ctx, key)
}
