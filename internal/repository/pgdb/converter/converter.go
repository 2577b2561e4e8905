package converter

import (
	"time"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
)

// ArtifactVersionConverter преобразует ArtifactVersion между domain и моделью PostgreSQL.
type ArtifactVersionConverter interface {
	ToModel(entity *domain.ArtifactVersion) *ArtifactVersionModel
	ToEntity(model *ArtifactVersionModel) *domain.ArtifactVersion
}

// OutboxEventConverter преобразует OutboxEvent между usecase и моделью PostgreSQL.
type OutboxEventConverter interface {
	ToModel(entity *usecase.OutboxEvent) *OutboxEventModel
	ToEntity(model *OutboxEventModel) *usecase.OutboxEvent
	ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent
}

type ArtifactVersionConverterImpl struct{}

func (ArtifactVersionConverterImpl) ToModel(entity *domain.ArtifactVersion) *ArtifactVersionModel {
	if entity == nil {
		return nil
	}

	return &ArtifactVersionModel{
		ID:          entity.ID,
		Version:     entity.Version,
		ManifestKey: entity.ManifestKey,
		Dimension:   entity.Dimension,
		Products:    entity.Products,
		Users:       entity.Users,
		Status:      string(entity.Status),
		CreatedAt:   entity.CreatedAt,
		ActivatedAt: ConvertPointerTime(entity.ActivatedAt),
	}
}

func (ArtifactVersionConverterImpl) ToEntity(model *ArtifactVersionModel) *domain.ArtifactVersion {
	if model == nil {
		return nil
	}

	return &domain.ArtifactVersion{
		ID:          model.ID,
		Version:     model.Version,
		ManifestKey: model.ManifestKey,
		Dimension:   model.Dimension,
		Products:    model.Products,
		Users:       model.Users,
		Status:      domain.ArtifactStatus(model.Status),
		CreatedAt:   model.CreatedAt,
		ActivatedAt: ConvertPointerTime(model.ActivatedAt),
	}
}

type OutboxEventConverterImpl struct{}

func (OutboxEventConverterImpl) ToModel(entity *usecase.OutboxEvent) *OutboxEventModel {
	if entity == nil {
		return nil
	}

	return &OutboxEventModel{
		ID:           entity.ID,
		EventID:      entity.EventID,
		EventType:    string(entity.EventType),
		AggregateKey: entity.AggregateKey,
		Payload:      entity.Payload,
		Status:       string(entity.Status),
		CreatedAt:    entity.CreatedAt,
		ProcessedAt:  ConvertPointerTime(entity.ProcessedAt),
	}
}

func (OutboxEventConverterImpl) ToEntity(model *OutboxEventModel) *usecase.OutboxEvent {
	if model == nil {
		return nil
	}

	return &usecase.OutboxEvent{
		ID:           model.ID,
		EventID:      model.EventID,
		EventType:    domain.ArtifactEventType(model.EventType),
		AggregateKey: model.AggregateKey,
		Payload:      model.Payload,
		Status:       usecase.OutboxStatus(model.Status),
		CreatedAt:    model.CreatedAt,
		ProcessedAt:  ConvertPointerTime(model.ProcessedAt),
	}
}

func (c OutboxEventConverterImpl) ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent {
	result := make([]*usecase.OutboxEvent, 0, len(models))
	for _, m := range models {
		result = append(result, c.ToEntity(m))
	}

	return result
}

// ConvertPointerTime копирует момент времени, чтобы entity и модель не делили указатель.
func ConvertPointerTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t

	return &v
}
