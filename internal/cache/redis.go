// Package cache is the Redis layer: the resolved-session cache, token
// bucket rate limits and short-lived locks for sync runs.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is safe for concurrent use.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL (redis:// or rediss://) and pings it.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	// The API holds few connections per request; a small warm pool is enough.
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	c := &Cache{client: redis.NewClient(opt)}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the raw client for test cleanup.
func (c *Cache) Client() *redis.Client {
	return c.client
}
