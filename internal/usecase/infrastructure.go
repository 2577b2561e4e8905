package usecase

import (
	"context"
	"io"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/retrieval"
)

type ModelLoader interface {
	Load(ctx context.Context, manifestKey string) (*retrieval.Model, error)
	LoadManifest(ctx context.Context, manifestKey string) (*domain.Manifest, error)
}

// ArtifactSource - локальный каталог с артефактом, из которого идёт публикация.
type ArtifactSource interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
}

// LocalArtifacts открывает каталог артефакта для проверки и загрузки.
type LocalArtifacts interface {
	Open(dir string) (ModelLoader, ArtifactSource, error)
}

type ArtifactUploader interface {
	UploadArtifact(ctx context.Context, req *UploadArtifactReq) (*UploadArtifactRes, error)
	CleanupArtifact(keys []string)
}

type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}
