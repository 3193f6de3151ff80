package nibe

import (
	"sync"
	"time"
)

// Cache holds the last known scaled value of each coil. All methods are
// safe for concurrent use; each is a single read-modify-write of one entry.
type Cache struct {
	mu      sync.Mutex
	entries map[uint16]*cacheEntry

	now func() time.Time
}

type cacheEntry struct {
	value    float64
	updated  time.Time
	known    bool
	inFlight bool
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[uint16]*cacheEntry),
		now:     time.Now,
	}
}

func (c *Cache) entry(coil uint16) *cacheEntry {
	e, ok := c.entries[coil]
	if !ok {
		e = &cacheEntry{}
		c.entries[coil] = e
	}
	return e
}

// Update stores value for coil and reports whether it differs from the
// cached one. The timestamp is refreshed even if the value is unchanged.
func (c *Cache) Update(coil uint16, value float64) (changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(coil)
	changed = !e.known || e.value != value
	e.value = value
	e.known = true
	e.updated = c.now()
	return changed
}

// Get returns the cached value of coil.
func (c *Cache) Get(coil uint16) (value float64, updated time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[coil]
	if !found || !e.known {
		return 0, time.Time{}, false
	}
	return e.value, e.updated, true
}

// Clear marks coil unknown so that the next poll queries it regardless of
// its age.
func (c *Cache) Clear(coil uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[coil]; ok {
		e.known = false
		e.updated = time.Time{}
	}
}

// ClearAll drops every entry.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[uint16]*cacheEntry)
}

// Claim reports whether coil is unknown or older than refresh and not being
// queried already. A successful claim marks the coil in flight until
// Release.
func (c *Cache) Claim(coil uint16, refresh time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(coil)
	if e.inFlight {
		return false
	}
	if e.known && c.now().Sub(e.updated) < refresh {
		return false
	}
	e.inFlight = true
	return true
}

// Release ends a query started by Claim.
func (c *Cache) Release(coil uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[coil]; ok {
		e.inFlight = false
	}
}
