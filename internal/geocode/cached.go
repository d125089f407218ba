package geocode

import (
	"context"
	"fmt"
	"sync"

	"github.com/mwesner/msn-weather-service/internal/models"
)

// CachedGeocoder wraps a Geocoder with a small in-memory LRU cache keyed by
// rounded coordinates. Callers tend to repeat the same points (map pins,
// retried requests), and reverse geocoding for a fixed point is stable.
type CachedGeocoder struct {
	inner Geocoder
	cache *lruCache
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner Geocoder, maxEntries int) *CachedGeocoder {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &CachedGeocoder{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

// Reverse serves from cache when the rounded point was resolved before.
// Failures are not cached so transient geocoder problems can be retried.
func (c *CachedGeocoder) Reverse(ctx context.Context, lat, lon float64) (models.Location, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)
	if loc, ok := c.cache.get(key); ok {
		return loc, nil
	}
	loc, err := c.inner.Reverse(ctx, lat, lon)
	if err != nil {
		return models.Location{}, err
	}
	c.cache.put(key, loc)
	return loc, nil
}

// lruCache is a simple thread-safe LRU cache for resolved locations.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value models.Location
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (models.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return models.Location{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value models.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
