package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// keyPrefix namespaces service entries in shared memcached/redis deployments.
const keyPrefix = "weather:"

// escapeKey makes a snapshot key safe for memcached, which rejects keys
// containing spaces or control characters. City names routinely have spaces.
func escapeKey(key string) string {
	return keyPrefix + url.QueryEscape(key)
}

// MemcachedCache stores snapshots in memcached with server-side TTL expiry.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache connects to the given memcached servers.
func NewMemcachedCache(addrs []string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no memcached servers configured")
	}

	client := memcache.New(addrs...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}

	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("memcached ping: %w", err)
	}
	return &MemcachedCache{client: client}, nil
}

// Get fetches and decodes the snapshot for key. A missing key is a plain
// miss, not an error.
func (c *MemcachedCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	item, err := c.client.Get(escapeKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("memcached get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(item.Value, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, true, nil
}

// Set stores the snapshot with the given TTL, rounded up to whole seconds.
func (c *MemcachedCache) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	expiration := int32((ttl + time.Second - 1) / time.Second)
	if err := c.client.Set(&memcache.Item{
		Key:        escapeKey(key),
		Value:      data,
		Expiration: expiration,
	}); err != nil {
		return fmt.Errorf("memcached set: %w", err)
	}
	return nil
}

// Ping verifies at least one configured server responds.
func (c *MemcachedCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(); err != nil {
		return fmt.Errorf("memcached ping: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
