package qdrant

import (
	"context"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/clients"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// VectorIndexRepo зеркалирует нормированные векторы продуктов в Qdrant.
type VectorIndexRepo struct {
	client *clients.QdrantClient
	cfg    *cfg.QdrantCfg
}

func NewVectorIndexRepo(client *clients.QdrantClient, cfg *cfg.QdrantCfg) *VectorIndexRepo {
	return &VectorIndexRepo{
		client: client,
		cfg:    cfg,
	}
}

func (q *VectorIndexRepo) EnsureCollection(ctx context.Context, dimension int) error {
	if err := clients.EnsureCollection(ctx, q.client, uint64(dimension)); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// UpsertProducts пишет точки пачками по BatchSize. Повторная публикация той же версии перезаписывает точки.
func (q *VectorIndexRepo) UpsertProducts(ctx context.Context, version string, items []usecase.ProductVector) error {
	wait := true
	for _, batch := range chunk(items, q.cfg.BatchSize) {
		if _, err := q.client.Client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.cfg.QdrantCollectionName,
			Wait:           &wait,
			Points:         toPoints(version, batch),
		}); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}

// PointID детерминированно отображает идентификатор продукта в UUID точки.
func PointID(productID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(productID)).String()
}

func toPoints(version string, items []usecase.ProductVector) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, 0, len(items))
	for _, item := range items {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(item.ProductID)),
			Vectors: qdrant.NewVectors(item.Vector...),
			Payload: qdrant.NewValueMap(payload(version, item)),
		})
	}

	return points
}

func payload(version string, item usecase.ProductVector) map[string]any {
	attrs := make(map[string]any, len(item.Attributes))
	for k, v := range item.Attributes {
		attrs[k] = v
	}

	return map[string]any{
		"product_id":       item.ProductID,
		"artifact_version": version,
		"attributes":       attrs,
	}
}

func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}

	var out [][]T
	for start := 0; start < len(items); start += size {
		out = append(out, items[start:min(start+size, len(items))])
	}

	return out
}
