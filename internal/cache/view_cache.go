package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// View keys of the rendered pages that depend on listing data.
const (
	ViewAllListings = "view:listings"
	ViewSearch      = "view:search"
)

// ViewListingDetail is the view key of one listing's detail page.
func ViewListingDetail(listingID string) string {
	return "view:listing:" + listingID
}

// ErrCacheMiss is returned by Get when the key holds nothing.
var ErrCacheMiss = errors.New("cache miss")

// IViewCache stores serialized views.
type IViewCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisViewCache keeps views in Redis and drops them on invalidation.
type RedisViewCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisViewCache(client *redis.Client, logger *zap.Logger) *RedisViewCache {
	return &RedisViewCache{client: client, logger: logger}
}

func (r *RedisViewCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (r *RedisViewCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes the cached views so the next read recomputes them.
func (r *RedisViewCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del %v: %w", keys, err)
	}
	r.logger.Debug("Views invalidated", zap.Strings("keys", keys))
	return nil
}
