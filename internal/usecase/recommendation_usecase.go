package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/metrics"
	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
)

const cacheWriteTimeout = 500 * time.Millisecond

// RecommendationOptions - параметры RecommendationUseCase из конфигурации.
type RecommendationOptions struct {
	DefaultManifestKey string
	MaxCount           int
	LoadTimeout        time.Duration
}

// snapshot - обслуживаемая модель и ключ манифеста, из которого она собрана.
type snapshot struct {
	model       *retrieval.Model
	manifestKey string
}

// RecommendationUseCase обслуживает оба пути ранжирования поверх текущего снимка модели.
// Чтение снимка не блокируется, перезагрузки выполняются по одной.
type RecommendationUseCase struct {
	loader   ModelLoader
	registry ArtifactVersionRepository
	cache    CacheRepository
	opts     RecommendationOptions
	logger   logger.Logger

	current atomic.Pointer[snapshot]
	reload  chan struct{}
	bg      sync.WaitGroup
}

// NewRecommendationUC создаёт usecase. registry может быть nil, если реестр версий не настроен.
func NewRecommendationUC(
	loader ModelLoader,
	registry ArtifactVersionRepository,
	cache CacheRepository,
	opts RecommendationOptions,
	logger logger.Logger,
) *RecommendationUseCase {
	return &RecommendationUseCase{
		loader:   loader,
		registry: registry,
		cache:    cache,
		opts:     opts,
		logger:   logger,
		reload:   make(chan struct{}, 1),
	}
}

// Recommend возвращает продукты с наибольшим скалярным произведением для пользователя.
func (u *RecommendationUseCase) Recommend(ctx context.Context, req *RecommendReq) (*RecommendRes, error) {
	const op = "RecommendationUseCase.Recommend"

	if req.UserID == "" {
		return nil, e.Wrap(op, e.ErrUserIDRequired)
	}
	k, err := u.count(req.Count)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	snap := u.current.Load()
	if snap == nil {
		return nil, e.Wrap(op, e.ErrModelNotLoaded)
	}
	version := snap.model.Version()

	key := RecommendCacheKey(version, req.UserID, k)
	if items, ok := u.fromCache(ctx, metrics.PathRecommend, key); ok {
		return &RecommendRes{UserID: req.UserID, Version: version, Items: items, Cached: true}, nil
	}

	start := time.Now()
	items, err := snap.model.Recommend(req.UserID, k)
	metrics.RecordRetrieval(metrics.PathRecommend, time.Since(start))
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			metrics.RetrievalNotFound.WithLabelValues(metrics.PathRecommend).Inc()
		}
		return nil, e.Wrap(op, err)
	}

	u.cacheInBackground(key, items)

	return &RecommendRes{UserID: req.UserID, Version: version, Items: items}, nil
}

// RelatedProducts возвращает продукты, ближайшие по косинусу, без самого продукта.
func (u *RecommendationUseCase) RelatedProducts(ctx context.Context, req *RelatedProductsReq) (*RelatedProductsRes, error) {
	const op = "RecommendationUseCase.RelatedProducts"

	if req.ProductID == "" {
		return nil, e.Wrap(op, e.ErrProductIDRequired)
	}
	k, err := u.count(req.TopK)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	snap := u.current.Load()
	if snap == nil {
		return nil, e.Wrap(op, e.ErrModelNotLoaded)
	}
	version := snap.model.Version()

	key := RelatedCacheKey(version, req.ProductID, k)
	if items, ok := u.fromCache(ctx, metrics.PathRelated, key); ok {
		return &RelatedProductsRes{
			ProductID: req.ProductID,
			Version:   version,
			Items:     items,
			Products:  productsOf(snap.model, items),
			Cached:    true,
		}, nil
	}

	start := time.Now()
	items, err := snap.model.Similar(req.ProductID, k)
	metrics.RecordRetrieval(metrics.PathRelated, time.Since(start))
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			metrics.RetrievalNotFound.WithLabelValues(metrics.PathRelated).Inc()
		}
		return nil, e.Wrap(op, err)
	}

	u.cacheInBackground(key, items)

	return &RelatedProductsRes{
		ProductID: req.ProductID,
		Version:   version,
		Items:     items,
		Products:  productsOf(snap.model, items),
	}, nil
}

// productsOf подбирает метаданные к выдаче; элемент, которого нет в таблице, получает пустые атрибуты.
func productsOf(model *retrieval.Model, items []domain.Scored) []domain.Product {
	out := make([]domain.Product, len(items))
	for i, it := range items {
		p, ok := model.Similarity().Product(it.ID)
		if !ok {
			p = domain.NewProduct(it.ID, nil)
		}
		out[i] = p
	}

	return out
}

// Reload собирает новую модель целиком и только затем подменяет снимок.
// При ошибке продолжает работать прежняя модель.
func (u *RecommendationUseCase) Reload(ctx context.Context, req *ReloadReq) (*ReloadRes, error) {
	const op = "RecommendationUseCase.Reload"

	select {
	case u.reload <- struct{}{}:
	case <-ctx.Done():
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrReloadInFlight, ctx.Err()))
	}
	defer func() { <-u.reload }()

	manifestKey, err := u.resolveManifestKey(ctx, req.ManifestKey)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	loadCtx := ctx
	if u.opts.LoadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, u.opts.LoadTimeout)
		defer cancel()
	}

	start := time.Now()
	model, err := u.loader.Load(loadCtx, manifestKey)
	elapsed := time.Since(start)
	metrics.RecordReload(elapsed, err)
	if err != nil {
		if prev := u.current.Load(); prev != nil {
			u.logger.Errorf(err, "reload from %s failed, still serving version %s", manifestKey, prev.model.Version())
		} else {
			u.logger.Errorf(err, "reload from %s failed, no model loaded", manifestKey)
		}
		return nil, e.Wrap(op, err)
	}

	prev := u.current.Swap(&snapshot{model: model, manifestKey: manifestKey})

	stats := model.Stats()
	metrics.SetModel(stats.LoadedAt, stats.Users, stats.Products, stats.SimilarityProducts)

	res := &ReloadRes{
		Version:     stats.Version,
		ManifestKey: manifestKey,
		Users:       stats.Users,
		Products:    stats.Products,
		Duration:    elapsed,
	}
	if prev != nil {
		res.PreviousVersion = prev.model.Version()
		u.purgeInBackground(res.PreviousVersion)
	}

	u.logger.Infof("model %s is serving (previous: %q, manifest: %s, took %s)",
		res.Version, res.PreviousVersion, manifestKey, elapsed)

	return res, nil
}

func (u *RecommendationUseCase) Status(_ context.Context) (*StatusRes, error) {
	snap := u.current.Load()
	if snap == nil {
		return &StatusRes{Loaded: false}, nil
	}

	return &StatusRes{
		Loaded:      true,
		ManifestKey: snap.manifestKey,
		Stats:       snap.model.Stats(),
	}, nil
}

// Ready сообщает, загружена ли модель.
func (u *RecommendationUseCase) Ready() bool {
	return u.current.Load() != nil
}

// Wait дожидается фоновых записей в кэш.
func (u *RecommendationUseCase) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		u.bg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background cache writes: %w", ctx.Err())
	}
}

// RecommendCacheKey - ключ кэша рекомендаций. Версия в ключе отделяет результаты разных моделей.
func RecommendCacheKey(version, userID string, k int) string {
	return fmt.Sprintf("recommend:%s:%s:%d", version, userID, k)
}

func RelatedCacheKey(version, productID string, k int) string {
	return fmt.Sprintf("related:%s:%s:%d", version, productID, k)
}

func (u *RecommendationUseCase) count(n int) (int, error) {
	if n <= 0 {
		return 0, e.ErrInvalidCount
	}
	if u.opts.MaxCount > 0 && n > u.opts.MaxCount {
		return u.opts.MaxCount, nil
	}

	return n, nil
}

func (u *RecommendationUseCase) resolveManifestKey(ctx context.Context, key string) (string, error) {
	if key != "" {
		return key, nil
	}

	if u.registry != nil {
		active, err := u.registry.GetActive(ctx)
		switch {
		case err == nil:
			return active.ManifestKey, nil
		case errors.Is(err, e.ErrNoActiveArtifact):
			u.logger.Warnf("no active artifact version in registry, using %s", u.opts.DefaultManifestKey)
		default:
			return "", err
		}
	}

	if u.opts.DefaultManifestKey == "" {
		return "", fmt.Errorf("%w: no manifest key", e.ErrInvalidManifest)
	}

	return u.opts.DefaultManifestKey, nil
}

func (u *RecommendationUseCase) fromCache(ctx context.Context, path, key string) ([]domain.Scored, bool) {
	items, ok, err := u.cache.GetScored(ctx, key)
	if err != nil {
		u.logger.Warnf("cache get %s failed: %v", key, err)
		ok = false
	}
	metrics.RecordCache(path, ok)

	return items, ok
}

// cacheInBackground записывает результат в кэш, не задерживая ответ.
func (u *RecommendationUseCase) cacheInBackground(key string, items []domain.Scored) {
	u.bg.Add(1)
	go func() {
		defer u.bg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()

		if err := u.cache.SetScored(ctx, key, items); err != nil {
			u.logger.Warnf("failed to cache %s in background: %v", key, err)
		}
	}()
}

func (u *RecommendationUseCase) purgeInBackground(version string) {
	u.bg.Add(1)
	go func() {
		defer u.bg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := u.cache.Purge(ctx, version); err != nil {
			u.logger.Warnf("failed to purge cache of version %s: %v", version, err)
		}
	}()
}
