package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type entry struct {
	Balance string `json:"balance"`
}

func newTestCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *ViewCache[entry]) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewViewCache[entry](client, "view:", ttl, zap.NewNop())
}

func TestViewCacheEntriesExpire(t *testing.T) {
	mr, cache := newTestCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, "01000001", &entry{Balance: "100.00"})
	assert.Equal(t, time.Minute, mr.TTL("view:01000001"))

	got, ok := cache.Get(ctx, "01000001")
	require.True(t, ok)
	assert.Equal(t, "100.00", got.Balance)

	mr.FastForward(time.Minute + time.Second)
	_, ok = cache.Get(ctx, "01000001")
	assert.False(t, ok)
}

func TestViewCacheDeleteAndCorruptEntry(t *testing.T) {
	mr, cache := newTestCache(t, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, "01000001", &entry{Balance: "100.00"})
	cache.Delete(ctx, "01000001")
	_, ok := cache.Get(ctx, "01000001")
	assert.False(t, ok)

	require.NoError(t, mr.Set("view:01000002", "{not json"))
	_, ok = cache.Get(ctx, "01000002")
	assert.False(t, ok)
}
