package converter

import "github.com/DRSN-tech/go-recommender/internal/domain"

type ScoredConverter interface {
	ToRedisModel(version string, items []domain.Scored) *ScoredListRedisModel
	ToDomain(model *ScoredListRedisModel) []domain.Scored
}

type ScoredConverterImpl struct{}

func (c *ScoredConverterImpl) ToRedisModel(version string, items []domain.Scored) *ScoredListRedisModel {
	models := make([]ScoredRedisModel, len(items))
	for i, it := range items {
		models[i] = ScoredRedisModel{ID: it.ID, Score: it.Score}
	}

	return &ScoredListRedisModel{
		Version: version,
		Items:   models,
	}
}

func (c *ScoredConverterImpl) ToDomain(model *ScoredListRedisModel) []domain.Scored {
	if model == nil {
		return nil
	}

	items := make([]domain.Scored, len(model.Items))
	for i, m := range model.Items {
		items[i] = domain.Scored{ID: m.ID, Score: m.Score}
	}

	return items
}
