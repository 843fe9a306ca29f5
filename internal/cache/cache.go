package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/weatherdash/weather-api-handler/internal/models"
)

// Cache is a read cache for merged location+reading views, keyed by city
// name. It only shortcuts the query endpoints; the fetch pipeline always
// writes through to the relational store, and refreshes the cached view
// for a city whenever a newer reading is persisted.
type Cache interface {
	Get(ctx context.Context, key string) (models.Snapshot, bool, error)
	Set(ctx context.Context, key string, value models.Snapshot, ttl time.Duration) error
}

// Key normalizes a city name into its cache key. Every reader and writer
// must key through here so a fresh reading for "London" replaces the view
// cached for " london ".
func Key(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// InMemoryCache implements Cache with a mutex-guarded map and TTL-based
// expiration. Expired entries are removed on access.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     models.Snapshot
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves the cached view for the key if present and not expired.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.Snapshot{}, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.Snapshot{}, false, nil
	}

	return entry.value, true, nil
}

// Set stores a view with the specified TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.Snapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
