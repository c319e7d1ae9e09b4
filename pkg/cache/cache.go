// Package cache is a small keyed TTL store. No fetchable third-party cache
// client appears anywhere in the pack (DimaJoyti's yield_aggregator.go
// embeds a project-internal redis.Client field, not an importable package),
// so this is implemented on stdlib sync.RWMutex + map rather than wired to
// an ungrounded dependency — see DESIGN.md. REDIS_URL is still accepted as
// a config knob per spec §6; its absence simply means this in-memory
// implementation is the only backend.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// TTL is a generic keyed cache with per-entry expiry.
type TTL struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func New() *TTL {
	return &TTL{entries: make(map[string]entry)}
}

// Get returns the cached value and true if present and unexpired.
func (c *TTL) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given TTL. Writers always rebuild
// the full value under a key, so no finer-grained locking is required
// (matching the "no locking beyond atomic set/delete" policy in spec §5).
func (c *TTL) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes a key unconditionally.
func (c *TTL) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
