package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements the handful of commands CacheService issues.
type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttls map[string]time.Duration
	down bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.down {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	if f.down {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	return redis.NewStatusResult("PONG", nil)
}

type entry struct {
	Hash  string `json:"hash"`
	Pages int    `json:"pages"`
}

func TestCacheService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	svc := NewCacheService(rdb, time.Hour)

	key := svc.GenerateKey("batch", "shopify", "m-1")
	assert.Equal(t, "batch:shopify:m-1", key)

	var got entry
	found, err := svc.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, svc.Set(ctx, key, entry{Hash: "0xabc", Pages: 3}))
	assert.Equal(t, time.Hour, rdb.ttls[key])

	found, err = svc.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, entry{Hash: "0xabc", Pages: 3}, got)

	require.NoError(t, svc.SetWithTTL(ctx, key, entry{}, time.Minute))
	assert.Equal(t, time.Minute, rdb.ttls[key])

	require.NoError(t, svc.Delete(ctx, key))
	found, err = svc.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheService_Errors(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	svc := NewCacheService(rdb, time.Hour)

	rdb.data["bad"] = "{not json"
	var got entry
	_, err := svc.Get(ctx, "bad", &got)
	assert.ErrorContains(t, err, "unmarshal")

	assert.ErrorContains(t, svc.Set(ctx, "k", make(chan int)), "marshal")

	rdb.down = true
	_, err = svc.Get(ctx, "k", &got)
	assert.ErrorContains(t, err, "failed to get cache value")
	assert.Error(t, svc.HealthCheck(ctx))
}
