package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryCache is a process-local Cache. Expired entries are dropped on read.
type MemoryCache struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates an empty cache. A nil clock means the real clock.
func NewMemoryCache(clock clockwork.Clock) *MemoryCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryCache{clock: clock, entries: make(map[string]entry)}
}

// Get returns a live entry.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !c.clock.Now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores a copy of value.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	c.entries[key] = entry{
		value:     append([]byte(nil), value...),
		expiresAt: c.clock.Now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// read.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ Cache = (*MemoryCache)(nil)
