// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisCache shares the render cache between daemon instances.
type RedisCache struct {
	client *redis.Client
	logger zerolog.Logger
	stats  struct {
		hits      atomic.Int64
		misses    atomic.Int64
		sets      atomic.Int64
		evictions atomic.Int64
	}
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
}

// NewRedisCache connects to Redis and verifies the connection. Callers
// fall back to the in-memory cache when this fails.
func NewRedisCache(cfg RedisConfig, logger zerolog.Logger) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis render cache")

	return &RedisCache{client: client, logger: logger}, nil
}

// Get retrieves a value from Redis.
func (c *RedisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.stats.misses.Add(1)
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		c.stats.misses.Add(1)
		return nil, false
	}

	c.stats.hits.Add(1)
	return val, true
}

// Set stores a value in Redis with TTL.
func (c *RedisCache) Set(key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
		return
	}
	c.stats.sets.Add(1)
}

// Delete removes a value.
func (c *RedisCache) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis delete failed")
	}
}

// Clear flushes the configured database.
func (c *RedisCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.FlushDB(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis flush failed")
		return
	}
	c.stats.evictions.Add(1)
}

// Stats returns cache statistics.
func (c *RedisCache) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var size int
	if n, err := c.client.DBSize(ctx).Result(); err == nil {
		size = int(n)
	}

	return Stats{
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		Sets:        c.stats.sets.Load(),
		Evictions:   c.stats.evictions.Load(),
		CurrentSize: size,
	}
}

// Close releases the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
