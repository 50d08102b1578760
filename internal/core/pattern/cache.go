package pattern

import "sync"

// DefaultCacheSize bounds the number of compiled patterns kept by a Cache.
const DefaultCacheSize = 4096

var defaultCache = NewCache(DefaultCacheSize)

// Cache keeps compiled patterns keyed by binding key. A changed binding key
// is a different cache key, so entries never go stale.
type Cache struct {
	mu      sync.RWMutex
	size    int
	entries map[string]*Pattern
}

// NewCache creates a cache holding at most size patterns. When full the
// cache is dropped and refilled on demand.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		size:    size,
		entries: make(map[string]*Pattern),
	}
}

// Get returns the compiled pattern for bindingKey, compiling it on first use.
func (c *Cache) Get(bindingKey string) *Pattern {
	c.mu.RLock()
	p, ok := c.entries[bindingKey]
	c.mu.RUnlock()
	if ok {
		return p
	}

	p = Compile(bindingKey)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[bindingKey]; ok {
		return existing
	}
	if len(c.entries) >= c.size {
		c.entries = make(map[string]*Pattern)
	}
	c.entries[bindingKey] = p
	return p
}

// Len returns the number of cached patterns.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Match compiles bindingKey through the shared cache and tests topic.
func Match(bindingKey, topic string) bool {
	return defaultCache.Get(bindingKey).Match(topic)
}
