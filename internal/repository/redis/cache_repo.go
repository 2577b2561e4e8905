package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/repository/redis/converter"
	"github.com/DRSN-tech/go-recommender/pkg/clients"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// Префиксы ключей совпадают с ключами, которые строит usecase: <prefix>:<version>:<id>:<k>
var cachePrefixes = []string{"recommend", "related"}

const scanBatch = 500

type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.ScoredConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, conv converter.ScoredConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
	}
}

// GetScored возвращает закэшированную выдачу. Промах и повреждённое значение дают ok=false.
func (c *CacheRepo) GetScored(ctx context.Context, key string) ([]domain.Scored, bool, error) {
	data, err := c.client.Client.Get(ctx, key).Bytes()
	if errors.Is(err, r.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, e.Wrap(whereami.WhereAmI(), err)
	}

	model, err := unmarshalScored(data)
	if err != nil {
		c.logger.Warnf("Redis unmarshal failed for %s: %v", key, e.Wrap(whereami.WhereAmI(), err))
		c.drop(key)
		return nil, false, nil
	}

	if version := versionFromKey(key); version != "" && model.Version != version {
		c.logger.Warnf("Cache version mismatch: key: %s, model_version: %s", key, model.Version)
		c.drop(key)
		return nil, false, nil
	}

	return c.conv.ToDomain(model), true, nil
}

// SetScored кэширует выдачу на RecommendationTTL.
func (c *CacheRepo) SetScored(ctx context.Context, key string, items []domain.Scored) error {
	data, err := json.Marshal(c.conv.ToRedisModel(versionFromKey(key), items))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := c.client.Client.Set(ctx, key, data, c.cfg.RecommendationTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Purge удаляет все ключи версии. SCAN вместо KEYS, чтобы не блокировать Redis.
func (c *CacheRepo) Purge(ctx context.Context, version string) error {
	if err := domain.ValidateVersion(version); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	var deleted int64

	for _, pattern := range PurgePatterns(version) {
		iter := c.client.Client.Scan(ctx, 0, pattern, scanBatch).Iterator()

		batch := make([]string, 0, scanBatch)
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == scanBatch {
				n, err := c.client.Client.Unlink(ctx, batch...).Result()
				if err != nil {
					return e.Wrap(whereami.WhereAmI(), err)
				}
				deleted += n
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}

		if len(batch) > 0 {
			n, err := c.client.Client.Unlink(ctx, batch...).Result()
			if err != nil {
				return e.Wrap(whereami.WhereAmI(), err)
			}
			deleted += n
		}
	}

	c.logger.Debugf("purged %d cache keys of version %s", deleted, version)
	return nil
}

func (c *CacheRepo) drop(key string) {
	if err := c.client.Client.Del(context.Background(), key).Err(); err != nil {
		c.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}
}

// PurgePatterns возвращает шаблоны SCAN для всех ключей версии.
func PurgePatterns(version string) []string {
	patterns := make([]string, len(cachePrefixes))
	for i, prefix := range cachePrefixes {
		patterns[i] = fmt.Sprintf("%s:%s:*", prefix, version)
	}

	return patterns
}

// versionFromKey достаёт версию из ключа вида prefix:version:id:k.
func versionFromKey(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 {
		return ""
	}

	return parts[1]
}

func unmarshalScored(data []byte) (*converter.ScoredListRedisModel, error) {
	var model converter.ScoredListRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, err
	}

	return &model, nil
}

// NoopCache используется, когда REDIS_ADDR не задан: всегда промах.
type NoopCache struct{}

func (NoopCache) GetScored(context.Context, string) ([]domain.Scored, bool, error) {
	return nil, false, nil
}

func (NoopCache) SetScored(context.Context, string, []domain.Scored) error { return nil }

func (NoopCache) Purge(context.Context, string) error { return nil }
