package usecase

import (
	"context"
	"io"

	"github.com/DRSN-tech/go-recommender/internal/domain"
)

// ArtifactStore - хранилище объектов артефакта (файловая система или MinIO).
type ArtifactStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

type ArtifactVersionRepository interface {
	Create(ctx context.Context, version *domain.ArtifactVersion) (*domain.ArtifactVersion, error)
	Activate(ctx context.Context, version string) (*domain.ArtifactVersion, error)
	GetActive(ctx context.Context) (*domain.ArtifactVersion, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
}

type CacheRepository interface {
	GetScored(ctx context.Context, key string) ([]domain.Scored, bool, error)
	SetScored(ctx context.Context, key string, items []domain.Scored) error
	Purge(ctx context.Context, version string) error
}

type VectorIndexRepository interface {
	EnsureCollection(ctx context.Context, dimension int) error
	UpsertProducts(ctx context.Context, version string, items []ProductVector) error
}

// TxManager выполняет fn в одной транзакции; транзакция передаётся через контекст.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
