package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/model"
)

// RedisCache is a Cache backed by a shared Redis instance. Values are JSON;
// expiry is server-side via SET EX. Single-key operations need no locking
// beyond what Redis guarantees.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis-backed cache. All keys are namespaced under
// prefix to coexist with other users of the instance.
func NewRedis(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "enrich"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*model.RawModelResult, bool) {
	raw, err := c.client.Get(ctx, c.prefix+":"+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("cache: redis get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var result model.RawModelResult
	if err := json.Unmarshal(raw, &result); err != nil {
		zap.L().Warn("cache: redis entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &result, true
}

func (c *RedisCache) Set(ctx context.Context, key string, result *model.RawModelResult, ttl time.Duration) {
	if result == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		zap.L().Warn("cache: marshal result", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.prefix+":"+key, raw, ttl).Err(); err != nil {
		zap.L().Warn("cache: redis set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+":"+key).Err(); err != nil {
		zap.L().Warn("cache: redis delete failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCache) Clear(ctx context.Context, pattern string) {
	match := c.prefix + ":*"
	if pattern != "" {
		match = c.prefix + ":*" + pattern + "*"
	}

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, 200).Result()
		if err != nil {
			zap.L().Warn("cache: redis scan failed", zap.String("pattern", pattern), zap.Error(err))
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				zap.L().Warn("cache: redis clear failed", zap.String("pattern", pattern), zap.Error(err))
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
