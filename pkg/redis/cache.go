package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache provides typed caching utilities
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Enabled reports whether the backing client is enabled
func (c *Cache) Enabled() bool {
	return c.client.Enabled()
}

// Key returns the namespaced key: <prefix>:cache:<key>
func (c *Cache) Key(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// GetMany retrieves several keys in one round trip.
// decode is called for every hit with the raw JSON payload.
func (c *Cache) GetMany(ctx context.Context, keys []string, decode func(key string, data []byte) error) error {
	if !c.client.Enabled() || len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.Key(k)
	}

	values, err := c.client.Redis().MGet(ctx, full...).Result()
	if err != nil {
		return fmt.Errorf("cache mget failed: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // miss
		}
		if err := decode(keys[i], []byte(s)); err != nil {
			return fmt.Errorf("cache decode %s: %w", keys[i], err)
		}
	}
	return nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.Key(key), data, ttl).Err()
}

// TTLLong is the default latest-bar TTL
const TTLLong = 1 * time.Hour

// LatestBarKey is the cache key of a symbol's latest bar
func LatestBarKey(symbol string) string {
	return fmt.Sprintf("latest:%s", symbol)
}
