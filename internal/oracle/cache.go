// Package oracle provides the USD price client: a validated boundary around
// the external price service with an owned in-memory cache. Price fetch
// failure is never fatal; it degrades to price 0, which callers must treat
// as "unknown", not "worthless".
package oracle

import (
	"sync"
	"time"
)

// DefaultTTL is the freshness window for cached prices.
const DefaultTTL = 10 * time.Minute

type cacheEntry struct {
	price     float64
	fetchedAt time.Time
}

// PriceCache is a TTL cache of USD prices keyed by mint. It is owned by one
// Client instance and shared by reference, not through package state.
type PriceCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// NewPriceCache creates a cache with the given freshness window. A
// non-positive ttl falls back to DefaultTTL.
func NewPriceCache(ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PriceCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get returns the cached price for mint and whether a fresh entry existed.
func (c *PriceCache) Get(mint string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[mint]
	if !ok || time.Since(e.fetchedAt) > c.ttl {
		return 0, false
	}
	return e.price, true
}

// Set stores a price for mint with the current time as fetch time.
func (c *PriceCache) Set(mint string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[mint] = cacheEntry{price: price, fetchedAt: time.Now()}
}

// Clear removes all entries.
func (c *PriceCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Cleanup removes entries older than the freshness window and returns how
// many were evicted.
func (c *PriceCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for mint, e := range c.entries {
		if time.Since(e.fetchedAt) > c.ttl {
			delete(c.entries, mint)
			evicted++
		}
	}
	return evicted
}

// CacheStats summarizes cache occupancy.
type CacheStats struct {
	Entries int           `json:"entries"`
	Fresh   int           `json:"fresh"`
	Oldest  time.Duration `json:"oldestAge"`
}

// Stats returns current occupancy counters.
func (c *PriceCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := CacheStats{Entries: len(c.entries)}
	for _, e := range c.entries {
		age := time.Since(e.fetchedAt)
		if age <= c.ttl {
			stats.Fresh++
		}
		if age > stats.Oldest {
			stats.Oldest = age
		}
	}
	return stats
}
