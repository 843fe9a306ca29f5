package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/weatherdash/weather-api-handler/internal/models"
)

const keyPrefix = "weatherview:"

// Memcached rejects keys with spaces or control characters and caps them
// at 250 bytes. Our keys derive from city names ("new york"), so they are
// sanitized before hitting the wire.
const maxKeyLen = 250

// Relative expirations above 30 days are treated by memcached as absolute
// unix timestamps; clamp well below that.
const maxExpirySeconds = 24 * 60 * 60

// MemcachedCache implements Cache on memcached, for deployments where
// several replicas should serve the same merged views.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// wireKey prefixes and sanitizes a view key into a valid memcached key.
func wireKey(k string) string {
	k = keyPrefix + strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return '_'
		}
		return r
	}, k)
	if len(k) > maxKeyLen {
		k = k[:maxKeyLen]
	}
	return k
}

// Get implements Cache.Get. Returns false, nil on cache miss; false, err on error.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.Snapshot, bool, error) {
	if ctx.Err() != nil {
		return models.Snapshot{}, false, ctx.Err()
	}
	item, err := c.client.Get(wireKey(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return models.Snapshot{}, false, nil
		}
		return models.Snapshot{}, false, err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(item.Value, &snap); err != nil {
		return models.Snapshot{}, false, err
	}
	return snap, true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache) Set(ctx context.Context, key string, value models.Snapshot, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	expSec := int32(ttl.Seconds())
	if expSec <= 0 || expSec > maxExpirySeconds {
		expSec = 60 // views go stale fast; err on the short side
	}
	return c.client.Set(&memcache.Item{
		Key:        wireKey(key),
		Value:      raw,
		Expiration: expSec,
	})
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
