// Package cache provides an optional Redis read-through cache for canonical
// frame entries. The cache is never authoritative: misses and errors fall
// back to the store, and a stale hit simply re-normalizes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 5 * time.Minute

// EntryCache caches canonical entry JSON keyed by (region, sub).
type EntryCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(redisURL string, ttl time.Duration) (*EntryCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, ttl), nil
}

// NewWithClient builds a cache from an existing Redis client.
func NewWithClient(client *redis.Client, ttl time.Duration) *EntryCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &EntryCache{client: client, prefix: "entry:", ttl: ttl}
}

func (c *EntryCache) key(region, sub string) string {
	return c.prefix + region + "/" + sub
}

// Get returns the cached canonical entry payload, reporting a miss for both
// absent keys and Redis failures.
func (c *EntryCache) Get(ctx context.Context, region, sub string) ([]byte, bool) {
	payload, err := c.client.Get(ctx, c.key(region, sub)).Bytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

// Set stores the canonical entry payload with the cache TTL.
func (c *EntryCache) Set(ctx context.Context, region, sub string, payload []byte) error {
	if err := c.client.Set(ctx, c.key(region, sub), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache entry: %w", err)
	}
	return nil
}

// Invalidate removes a cached entry after a write or delete.
func (c *EntryCache) Invalidate(ctx context.Context, region, sub string) error {
	if err := c.client.Del(ctx, c.key(region, sub)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("invalidate entry: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *EntryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *EntryCache) Close() error {
	return c.client.Close()
}
