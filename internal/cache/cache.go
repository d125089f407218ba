package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mwesner/msn-weather-service/internal/models"
)

// BucketMinutes is the coarse time-bucket width. A new bucket index is a
// guaranteed cache miss, so entries go stale within one bucket width with no
// eviction thread.
const BucketMinutes = 5

// Key identifies a cached pipeline outcome: the validated city/country pair
// (trimmed upstream, case preserved) plus the absolute 5-minute bucket index.
type Key struct {
	City    string
	Country string
	Bucket  int64
}

// NewKey builds the key for a location at time t. The bucket is absolute
// epoch minutes divided by the bucket width, so rollover happens on
// wall-clock boundaries.
func NewKey(city, country string, t time.Time) Key {
	return Key{
		City:    city,
		Country: country,
		Bucket:  t.Unix() / 60 / BucketMinutes,
	}
}

// String renders the key for the key-value backends.
func (k Key) String() string {
	return fmt.Sprintf("%s,%s@%d", k.City, k.Country, k.Bucket)
}

// Entry is a point-in-time snapshot of a pipeline outcome: exactly one of
// Reading or Failure is set. Failures are stored as {kind, message} strings,
// not the original fault object, and are replayed for the rest of the bucket.
type Entry struct {
	Reading *models.WeatherReading `json:"reading,omitempty"`
	Failure *models.Failure        `json:"failure,omitempty"`
}

// SuccessEntry snapshots a successful reading.
func SuccessEntry(r models.WeatherReading) Entry {
	return Entry{Reading: &r}
}

// FailureEntry snapshots a typed failure. ok is false when err falls outside
// the taxonomy (for example caller cancellation), in which case the outcome
// must not be cached.
func FailureEntry(err error) (Entry, bool) {
	kind, ok := models.KindOf(err)
	if !ok {
		return Entry{}, false
	}
	return Entry{Failure: &models.Failure{Kind: kind, Message: err.Error()}}, true
}

// Outcome replays the snapshot: the stored reading, or the stored failure
// reconstructed as an error that still matches its sentinel.
func (e Entry) Outcome() (models.WeatherReading, error) {
	if e.Failure != nil {
		return models.WeatherReading{}, e.Failure
	}
	if e.Reading != nil {
		return *e.Reading, nil
	}
	return models.WeatherReading{}, fmt.Errorf("empty cache entry")
}

// Cache stores pipeline outcome snapshots. Get returns ok=false on a miss;
// Set stores the entry with the given TTL.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
}

// MemoryCache is a mutex-guarded in-memory backend with a fixed entry cap and
// least-recently-used eviction. Eviction and insert hold the same lock, so an
// eviction decision cannot race a concurrent insert of the same key.
type MemoryCache struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	maxEntries int
	entries    map[string]*memoryEntry
	head       *memoryEntry // most recently used
	tail       *memoryEntry // least recently used
}

type memoryEntry struct {
	key       string
	value     Entry
	expiresAt time.Time
	prev      *memoryEntry
	next      *memoryEntry
}

// NewMemoryCache creates an in-memory cache holding at most maxEntries
// snapshots. The clock is injected so bucket and TTL expiry are testable.
func NewMemoryCache(maxEntries int, clock clockwork.Clock) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryCache{
		clock:      clock,
		maxEntries: maxEntries,
		entries:    make(map[string]*memoryEntry),
	}
}

// Get returns the stored snapshot if present and not expired. Expired entries
// are removed on access.
func (c *MemoryCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	if c.clock.Now().After(e.expiresAt) {
		c.removeLocked(e)
		delete(c.entries, key)
		return Entry{}, false, nil
	}
	c.moveToFrontLocked(e)
	return e.value, true, nil
}

// Set stores the snapshot, evicting the least-recently-used entry when the
// cap is reached.
func (c *MemoryCache) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(ttl)
	if e, ok := c.entries[key]; ok {
		e.value = entry
		e.expiresAt = expiresAt
		c.moveToFrontLocked(e)
		return nil
	}

	e := &memoryEntry{key: key, value: entry, expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFrontLocked(e)

	if len(c.entries) > c.maxEntries {
		c.evictTailLocked()
	}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) moveToFrontLocked(e *memoryEntry) {
	if e == c.head {
		return
	}
	c.removeLocked(e)
	c.addToFrontLocked(e)
}

func (c *MemoryCache) addToFrontLocked(e *memoryEntry) {
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

func (c *MemoryCache) removeLocked(e *memoryEntry) {
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
	e.prev, e.next = nil, nil
}

func (c *MemoryCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.removeLocked(c.tail)
}
