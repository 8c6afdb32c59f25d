package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ziadkadry99/clinrag/internal/config"
	"github.com/ziadkadry99/clinrag/internal/logger"
)

const redisKeyPrefix = "clinrag:assistant:reply:"

// RedisCache shares replies across processes. Redis expires entries itself.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, log: log.With("component", "reply-cache")}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		c.log.Warn("redis get failed", "error", err)
		return "", false
	}
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, redisKeyPrefix+key, value, c.ttl).Err(); err != nil {
		c.log.Warn("redis set failed", "error", err)
	}
}

// ClearExpired is a no-op: keys carry their own TTL.
func (c *RedisCache) ClearExpired(context.Context) int { return 0 }

// Close releases the client.
func (c *RedisCache) Close() error { return c.client.Close() }

// NewCache builds the configured reply cache. The redis backend reads its
// address from REDIS_ADDR and is pinged before use.
func NewCache(ctx context.Context, cfg config.AssistantConfig, log *logger.Logger) (Cache, error) {
	switch cfg.CacheBackend {
	case "", "memory":
		return NewMemoryCache(cfg.CacheTTL, nil), nil
	case "redis":
		addr, err := config.RequireEnv("REDIS_ADDR")
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(&redis.Options{Addr: addr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
		}
		return NewRedisCache(client, cfg.CacheTTL, log), nil
	default:
		return nil, &config.ConfigurationError{Field: "assistant.cache_backend", Reason: "must be memory or redis"}
	}
}
