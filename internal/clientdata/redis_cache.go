package clientdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces every key this service writes
const redisKeyPrefix = "dealeval:"

// RedisStepCache stores step results in redis so several instances share them
type RedisStepCache struct {
	client *redis.Client
}

// NewRedisStepCache creates a redis-backed step result cache
func NewRedisStepCache(client *redis.Client) *RedisStepCache {
	return &RedisStepCache{client: client}
}

// NewRedisClient opens a client with the pool settings the cache needs
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
	})
}

// Get returns the cached value. A missing key is a miss, not an error.
func (c *RedisStepCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores value with ttl; redis expires it on its own
func (c *RedisStepCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection
func (c *RedisStepCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
