package cache

import (
	"strings"
	"sync"

	"github.com/hazardmap/mapservice/pkg/core"
)

// NormalizeAddress builds the cache key for a free-text address: trimmed,
// inner whitespace collapsed, lower-cased.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// AddressCache maps normalized addresses to geocoded locations. When full,
// the oldest entry is evicted.
type AddressCache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string]core.Location
	order    []string
}

// NewAddressCache creates an AddressCache. A capacity <= 0 means unbounded.
func NewAddressCache(capacity int) *AddressCache {
	return &AddressCache{
		capacity: capacity,
		entries:  make(map[string]core.Location),
	}
}

// Get retrieves a location by address
func (c *AddressCache) Get(address string) (core.Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, ok := c.entries[NormalizeAddress(address)]
	return loc, ok
}

// Set stores a location by address
func (c *AddressCache) Set(address string, loc core.Location) {
	key := NormalizeAddress(address)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = loc

	for c.capacity > 0 && len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Delete removes an address
func (c *AddressCache) Delete(address string) {
	key := NormalizeAddress(address)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of cached addresses.
func (c *AddressCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset clears all entries from the cache
func (c *AddressCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]core.Location)
	c.order = nil
}
