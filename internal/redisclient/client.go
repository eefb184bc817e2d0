package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireIntentLock takes a short-lived lock on a payment intent id so that
// concurrent webhook deliveries for the same intent serialize before they
// contend on the database row lock. Returns false when another delivery
// holds the lock.
func (c *Client) AcquireIntentLock(ctx context.Context, intentID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:intent:%s", intentID), "1", ttl).Result()
}

// ReleaseIntentLock releases a payment intent lock.
func (c *Client) ReleaseIntentLock(ctx context.Context, intentID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:intent:%s", intentID)).Err()
}

// CacheJSON stores a JSON-serialized value with a TTL.
func (c *Client) CacheJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.rdb.Set(ctx, fmt.Sprintf("cache:%s", key), data, ttl).Err()
}

// GetJSON loads a cached JSON value into dest. Returns false on a cache miss.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("cache:%s", key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// InvalidateCache drops a cached key.
func (c *Client) InvalidateCache(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("cache:%s", key)).Err()
}
