package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecommendationUC(t *testing.T, registry ArtifactVersionRepository) (*RecommendationUseCase, *fakeLoader, *fakeCache) {
	t.Helper()

	loader := &fakeLoader{models: map[string]*retrieval.Model{
		"v1/manifest.json": testModel(t, "v1"),
		"v2/manifest.json": testModel(t, "v2"),
	}}
	cache := newFakeCache()
	uc := NewRecommendationUC(loader, registry, cache, RecommendationOptions{
		DefaultManifestKey: "v1/manifest.json",
		MaxCount:           2,
		LoadTimeout:        time.Second,
	}, logger.NewNop())

	return uc, loader, cache
}

func TestRecommendWithoutModel(t *testing.T) {
	uc, _, _ := newRecommendationUC(t, nil)

	_, err := uc.Recommend(context.Background(), &RecommendReq{UserID: "u1", Count: 1})
	assert.ErrorIs(t, err, e.ErrModelNotLoaded)

	status, err := uc.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Loaded)
	assert.False(t, uc.Ready())
}

func TestRecommendValidation(t *testing.T) {
	uc, loader, _ := newRecommendationUC(t, nil)
	ctx := context.Background()

	_, err := uc.Recommend(ctx, &RecommendReq{Count: 3})
	assert.ErrorIs(t, err, e.ErrUserIDRequired)

	_, err = uc.Recommend(ctx, &RecommendReq{UserID: "u1", Count: 0})
	assert.ErrorIs(t, err, e.ErrInvalidCount)

	_, err = uc.RelatedProducts(ctx, &RelatedProductsReq{TopK: 3})
	assert.ErrorIs(t, err, e.ErrProductIDRequired)

	_, err = uc.RelatedProducts(ctx, &RelatedProductsReq{ProductID: "A", TopK: -1})
	assert.ErrorIs(t, err, e.ErrInvalidCount)

	// проверка входа не должна даже пытаться загрузить модель
	assert.Empty(t, loader.loads)
}

func TestRecommendCachesByVersion(t *testing.T) {
	uc, _, cache := newRecommendationUC(t, nil)
	ctx := context.Background()

	_, err := uc.Reload(ctx, &ReloadReq{})
	require.NoError(t, err)

	res, err := uc.Recommend(ctx, &RecommendReq{UserID: "u1", Count: 10})
	require.NoError(t, err)
	assert.Equal(t, "v1", res.Version)
	assert.False(t, res.Cached)
	// count обрезан до MaxCount
	assert.Equal(t, []string{"p1", "p3"}, domain.IDs(res.Items))

	require.NoError(t, uc.Wait(ctx))
	assert.True(t, cache.has("recommend:v1:u1:2"))

	res, err = uc.Recommend(ctx, &RecommendReq{UserID: "u1", Count: 2})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, []string{"p1", "p3"}, domain.IDs(res.Items))
}

func TestRecommendCacheErrorFallsBackToModel(t *testing.T) {
	uc, _, cache := newRecommendationUC(t, nil)
	cache.getErr = errors.New("redis down")

	_, err := uc.Reload(context.Background(), &ReloadReq{})
	require.NoError(t, err)

	res, err := uc.Recommend(context.Background(), &RecommendReq{UserID: "u2", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, domain.IDs(res.Items))
}

func TestRecommendUnknownUser(t *testing.T) {
	uc, _, _ := newRecommendationUC(t, nil)
	_, err := uc.Reload(context.Background(), &ReloadReq{})
	require.NoError(t, err)

	_, err = uc.Recommend(context.Background(), &RecommendReq{UserID: "ghost", Count: 1})
	nf, ok := e.AsNotFound(err)
	require.True(t, ok)
	assert.Equal(t, "User", nf.Entity)
}

func TestRelatedProducts(t *testing.T) {
	uc, _, cache := newRecommendationUC(t, nil)
	ctx := context.Background()
	_, err := uc.Reload(ctx, &ReloadReq{})
	require.NoError(t, err)

	res, err := uc.RelatedProducts(ctx, &RelatedProductsReq{ProductID: "A", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, domain.IDs(res.Items))
	require.Len(t, res.Products, 2)
	assert.Equal(t, "B", res.Products[0].ID)

	_, err = uc.RelatedProducts(ctx, &RelatedProductsReq{ProductID: "Z", TopK: 2})
	assert.EqualError(t, errors.Unwrap(err), "Product ID Z not found")
	assert.ErrorIs(t, err, e.ErrNotFound)

	require.NoError(t, uc.Wait(ctx))
	assert.True(t, cache.has("related:v1:A:2"))
}

func TestReloadSwapsAndPurges(t *testing.T) {
	uc, _, cache := newRecommendationUC(t, nil)
	ctx := context.Background()

	first, err := uc.Reload(ctx, &ReloadReq{})
	require.NoError(t, err)
	assert.Equal(t, "v1", first.Version)
	assert.Empty(t, first.PreviousVersion)

	second, err := uc.Reload(ctx, &ReloadReq{ManifestKey: "v2/manifest.json"})
	require.NoError(t, err)
	assert.Equal(t, "v2", second.Version)
	assert.Equal(t, "v1", second.PreviousVersion)
	assert.Equal(t, 2, second.Users)
	assert.Equal(t, 3, second.Products)

	require.NoError(t, uc.Wait(ctx))
	assert.Equal(t, []string{"v1"}, cache.purgedVersions())

	status, err := uc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Loaded)
	assert.Equal(t, "v2/manifest.json", status.ManifestKey)
	assert.Equal(t, "v2", status.Stats.Version)
}

func TestReloadFailureKeepsServingModel(t *testing.T) {
	uc, _, _ := newRecommendationUC(t, nil)
	ctx := context.Background()

	_, err := uc.Reload(ctx, &ReloadReq{})
	require.NoError(t, err)

	_, err = uc.Reload(ctx, &ReloadReq{ManifestKey: "broken/manifest.json"})
	assert.ErrorIs(t, err, e.ErrArtifactNotFound)

	res, err := uc.Recommend(ctx, &RecommendReq{UserID: "u1", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, "v1", res.Version)
}

func TestReloadUsesRegistry(t *testing.T) {
	registry := &fakeRegistry{active: &domain.ArtifactVersion{Version: "v2", ManifestKey: "v2/manifest.json"}}
	uc, loader, _ := newRecommendationUC(t, registry)

	res, err := uc.Reload(context.Background(), &ReloadReq{})
	require.NoError(t, err)
	assert.Equal(t, "v2", res.Version)

	registry.activeErr = e.ErrNoActiveArtifact
	res, err = uc.Reload(context.Background(), &ReloadReq{})
	require.NoError(t, err)
	assert.Equal(t, "v1", res.Version)
	assert.Equal(t, []string{"v2/manifest.json", "v1/manifest.json"}, loader.loads)

	registry.activeErr = errors.New("db down")
	_, err = uc.Reload(context.Background(), &ReloadReq{})
	assert.Error(t, err)
}

func TestReloadInFlight(t *testing.T) {
	uc, _, _ := newRecommendationUC(t, nil)

	uc.reload <- struct{}{}
	defer func() { <-uc.reload }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := uc.Reload(ctx, &ReloadReq{})
	assert.ErrorIs(t, err, e.ErrReloadInFlight)
}

func TestReadsDuringReload(t *testing.T) {
	uc, _, _ := newRecommendationUC(t, nil)
	ctx := context.Background()
	_, err := uc.Reload(ctx, &ReloadReq{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 4)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				res, err := uc.Recommend(ctx, &RecommendReq{UserID: "u1", Count: 1})
				if err != nil {
					errs <- err
					return
				}
				if res.Version != "v1" && res.Version != "v2" {
					errs <- errors.New("unexpected version " + res.Version)
					return
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		key := "v1/manifest.json"
		if i%2 == 0 {
			key = "v2/manifest.json"
		}
		_, err := uc.Reload(ctx, &ReloadReq{ManifestKey: key})
		require.NoError(t, err)
	}

	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	require.NoError(t, uc.Wait(ctx))
}
