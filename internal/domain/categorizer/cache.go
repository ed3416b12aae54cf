package categorizer

import (
	"sync"
)

// MemoryCache remembers merchant to category answers within a process so
// repeated sync runs do not re-ask the model for the same merchant.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[string]string
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		store: make(map[string]string),
	}
}

// Get retrieves a cached category for a merchant
func (c *MemoryCache) Get(merchant string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	category, found := c.store[merchant]
	return category, found
}

// Set stores a category for a merchant
func (c *MemoryCache) Set(merchant, category string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store[merchant] = category
}

// Size returns the number of cached merchants
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.store)
}
