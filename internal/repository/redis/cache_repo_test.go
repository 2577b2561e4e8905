package redis

import (
	"context"
	"testing"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/repository/redis/converter"
	"github.com/DRSN-tech/go-recommender/pkg/clients"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*CacheRepo, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	redisCfg := &cfg.RedisCfg{
		Enabled:           true,
		Addr:              srv.Addr(),
		DialTimeout:       time.Second,
		Timeout:           time.Second,
		RecommendationTTL: time.Minute,
	}

	client := clients.NewRedisClient(redisCfg)
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheRepo(client, &converter.ScoredConverterImpl{}, redisCfg, logger.NewNop()), srv
}

func TestCacheRepoRoundTrip(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()
	key := "recommend:v1:u1:3"
	items := []domain.Scored{{ID: "p1", Score: 0.9}, {ID: "p4", Score: 0.5}}

	_, ok, err := cache.GetScored(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetScored(ctx, key, items))
	assert.Equal(t, time.Minute, srv.TTL(key))

	got, ok, err := cache.GetScored(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, items, got)
}

func TestCacheRepoDropsCorruptedValue(t *testing.T) {
	cache, srv := newTestCache(t)
	key := "related:v1:p1:3"
	require.NoError(t, srv.Set(key, "{not json"))

	_, ok, err := cache.GetScored(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, srv.Exists(key))
}

func TestCacheRepoDropsForeignVersion(t *testing.T) {
	cache, srv := newTestCache(t)
	key := "related:v2:p1:3"
	require.NoError(t, srv.Set(key, `{"version":"v1","items":[{"id":"p2","score":1}]}`))

	_, ok, err := cache.GetScored(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, srv.Exists(key))
}

func TestCacheRepoPurgeOnlyTouchesVersion(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()
	items := []domain.Scored{{ID: "p1", Score: 1}}

	for _, key := range []string{"recommend:v1:u1:3", "recommend:v1:u2:3", "related:v1:p1:5", "recommend:v2:u1:3"} {
		require.NoError(t, cache.SetScored(ctx, key, items))
	}

	require.NoError(t, cache.Purge(ctx, "v1"))

	assert.Equal(t, []string{"recommend:v2:u1:3"}, srv.Keys())
}

func TestCacheRepoPurgeRejectsPatternVersions(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()
	items := []domain.Scored{{ID: "p1", Score: 1}}

	require.NoError(t, cache.SetScored(ctx, "recommend:v1:u1:3", items))

	for _, version := range []string{"*", "v?", "[v]1", "v1:u1", ""} {
		assert.ErrorIs(t, cache.Purge(ctx, version), e.ErrInvalidVersion, version)
	}
	assert.Equal(t, []string{"recommend:v1:u1:3"}, srv.Keys())
}

func TestPurgePatterns(t *testing.T) {
	assert.Equal(t, []string{"recommend:v7:*", "related:v7:*"}, PurgePatterns("v7"))
	assert.Equal(t, "v7", versionFromKey("related:v7:p1:3"))
	assert.Empty(t, versionFromKey("garbage"))
}

func TestNoopCache(t *testing.T) {
	var c NoopCache
	items, ok, err := c.GetScored(context.Background(), "recommend:v1:u1:3")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, items)
	assert.NoError(t, c.SetScored(context.Background(), "k", nil))
	assert.NoError(t, c.Purge(context.Background(), "v1"))
}
