package tiers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phishguard/phishguard/pkg/verdict"
)

// Cache stores reputation sub-results keyed by URL. Lookups are
// read-through: a miss triggers the network call, the answer is written
// back with the service's TTL.
type Cache interface {
	Get(ctx context.Context, key string) (*verdict.SubResult, bool)
	Set(ctx context.Context, key string, value *verdict.SubResult, ttl time.Duration)
}

// MemoryCache is the default in-process cache. Entries expire lazily on
// read; writes overwrite unconditionally.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     *verdict.SubResult
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the cached value for key, deleting and missing on entries
// past their TTL.
func (c *MemoryCache) Get(_ context.Context, key string) (*verdict.SubResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl. Last write wins.
func (c *MemoryCache) Set(_ context.Context, key string, value *verdict.SubResult, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
}

// Len returns the number of live and expired entries still held.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache shares reputation results across gateway instances. Expiry is
// native Redis TTL; values are JSON documents.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a cache backed by the Redis instance at addr.
// prefix namespaces keys per service ("threatlist", "scanreport").
func NewRedisCache(addr, prefix string) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
	}
}

// NewRedisCacheFromClient wraps an existing client, shared across caches.
func NewRedisCacheFromClient(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	return fmt.Sprintf("phishguard:%s:%s", c.prefix, k)
}

// Get fetches and decodes the cached sub-result. Backend errors degrade to
// a cache miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*verdict.SubResult, bool) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var sr verdict.SubResult
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, false
	}
	return &sr, true
}

// Set encodes and stores value with a native TTL. Failures are silent; the
// cache is an optimization, not a source of truth.
func (c *RedisCache) Set(ctx context.Context, key string, value *verdict.SubResult, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.key(key), data, ttl)
}
