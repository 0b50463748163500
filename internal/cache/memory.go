package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sells-group/enrich-cli/internal/model"
)

// MemoryCache is an in-process Cache backed by a map. Expiry is lazy: an
// expired entry is evicted on the Get that observes it, trading a little
// peak memory for not running a sweeper.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	nowFunc func() time.Time
}

type memoryEntry struct {
	result    model.RawModelResult
	expiresAt time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*model.RawModelResult, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.nowFunc().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have renewed it.
		if cur, ok := c.entries[key]; ok && c.nowFunc().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	result := e.result
	return &result, true
}

func (c *MemoryCache) Set(_ context.Context, key string, result *model.RawModelResult, ttl time.Duration) {
	if result == nil || ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{
		result:    *result,
		expiresAt: c.nowFunc().Add(ttl),
	}
}

func (c *MemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *MemoryCache) Clear(_ context.Context, pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pattern == "" {
		c.entries = make(map[string]memoryEntry)
		return
	}
	for k := range c.entries {
		if strings.Contains(k, pattern) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of live-or-expired entries held. Observability only.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
