package store

import (
	"sync"
	"time"

	"github.com/i474232898/snow-status-aggregation/internal/resort"
)

// LiveCache is a concurrency-safe, process-wide map of last-known-good records.
// Entries are replaced, never expired: degraded-stale data is preferred over
// an empty result. It lives for the lifetime of the process.
type LiveCache struct {
	mu sync.RWMutex

	// key: resort id, value: last successful record
	data map[string]resort.CacheEntry

	now func() time.Time
}

// NewLiveCache creates an empty LiveCache.
func NewLiveCache() *LiveCache {
	return &LiveCache{
		data: make(map[string]resort.CacheEntry),
		now:  time.Now,
	}
}

// Put overwrites the entry for a resort. Error records are ignored so a
// failed parse can never evict good data. Last writer wins per key.
func (c *LiveCache) Put(resortID string, rec resort.Record) {
	if rec.IsError() {
		return
	}

	entry := resort.CacheEntry{
		Record:   rec,
		CachedAt: c.now().UTC(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[resortID] = entry
}

// Get returns the cached entry for a resort.
func (c *LiveCache) Get(resortID string) (resort.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[resortID]
	return entry, ok
}
