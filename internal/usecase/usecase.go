package usecase

import "context"

type RecommendationUC interface {
	Recommend(ctx context.Context, req *RecommendReq) (*RecommendRes, error)
	RelatedProducts(ctx context.Context, req *RelatedProductsReq) (*RelatedProductsRes, error)
	Reload(ctx context.Context, req *ReloadReq) (*ReloadRes, error)
	Status(ctx context.Context) (*StatusRes, error)
}

type ArtifactUC interface {
	Publish(ctx context.Context, req *PublishReq) (*PublishRes, error)
}

// Reloader - то, что нужно слушателю событий артефактов.
type Reloader interface {
	Reload(ctx context.Context, req *ReloadReq) (*ReloadRes, error)
}
