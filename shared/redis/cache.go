package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ViewCache is a generic JSON-backed Redis cache for read model projections.
// Bind it to a specific view type T; pass ttl 0 for keys that should not expire.
type ViewCache[T any] struct {
	client *goredis.Client
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

func NewViewCache[T any](client *goredis.Client, prefix string, ttl time.Duration, log *zap.Logger) *ViewCache[T] {
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl, log: log}
}

// Get returns (nil, false) on any miss or deserialisation error.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("view cache read failed", zap.String("key", c.prefix+key), zap.Error(err))
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.log.Warn("view cache entry is corrupt", zap.String("key", c.prefix+key), zap.Error(err))
		return nil, false
	}
	return &v, true
}

// Set errors are logged rather than returned; a cache write miss is non-fatal.
func (c *ViewCache[T]) Set(ctx context.Context, key string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Error("view cache marshal failed", zap.String("key", c.prefix+key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.log.Warn("view cache write failed", zap.String("key", c.prefix+key), zap.Error(err))
	}
}

func (c *ViewCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.log.Warn("view cache delete failed", zap.String("key", c.prefix+key), zap.Error(err))
	}
}
