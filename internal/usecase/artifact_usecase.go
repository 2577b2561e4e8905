package usecase

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/google/uuid"
)

// ArtifactUseCase публикует проверенный артефакт: хранилище, реестр версий, outbox и зеркало в Qdrant.
type ArtifactUseCase struct {
	local    LocalArtifacts
	uploader ArtifactUploader
	store    ArtifactStore
	registry ArtifactVersionRepository
	outbox   OutboxRepository
	tx       TxManager
	vectors  VectorIndexRepository
	logger   logger.Logger
}

// NewArtifactUC создаёт usecase. registry, outbox и tx задаются вместе или все nil; vectors может быть nil.
func NewArtifactUC(
	local LocalArtifacts,
	uploader ArtifactUploader,
	store ArtifactStore,
	registry ArtifactVersionRepository,
	outbox OutboxRepository,
	tx TxManager,
	vectors VectorIndexRepository,
	logger logger.Logger,
) *ArtifactUseCase {
	return &ArtifactUseCase{
		local:    local,
		uploader: uploader,
		store:    store,
		registry: registry,
		outbox:   outbox,
		tx:       tx,
		vectors:  vectors,
		logger:   logger,
	}
}

// Publish проверяет каталог полной загрузкой модели и публикует его под <version>/.
func (a *ArtifactUseCase) Publish(ctx context.Context, req *PublishReq) (*PublishRes, error) {
	const op = "ArtifactUseCase.Publish"

	if strings.TrimSpace(req.Dir) == "" {
		return nil, e.Wrap(op, e.ErrInvalidArtifactPath)
	}

	loader, source, err := a.local.Open(req.Dir)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	manifest, err := loader.LoadManifest(ctx, domain.ManifestFile)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	version := req.Version
	if version == "" {
		version = manifest.Version
	}
	if version != manifest.Version {
		return nil, e.Wrap(op, fmt.Errorf("%w: requested version %q, manifest has %q", e.ErrInvalidManifest, version, manifest.Version))
	}

	// Полная загрузка проверяет все формы и размерности до записи куда-либо.
	model, err := loader.Load(ctx, domain.ManifestFile)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	manifestKey := path.Join(version, domain.ManifestFile)
	exists, err := a.store.Exists(ctx, manifestKey)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if exists {
		return nil, e.Wrap(op, fmt.Errorf("%w: %s", e.ErrArtifactVersionExists, version))
	}

	keys, err := source.List(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if !slices.Contains(keys, domain.ManifestFile) {
		return nil, e.Wrap(op, fmt.Errorf("%w: %s is not in %s", e.ErrArtifactNotFound, domain.ManifestFile, req.Dir))
	}
	data := slices.DeleteFunc(slices.Clone(keys), func(k string) bool { return k == domain.ManifestFile })

	uploaded, err := a.upload(ctx, source, data, version)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	stats := model.Stats()
	res := &PublishRes{
		Version:     version,
		ManifestKey: manifestKey,
		Keys:        uploaded,
	}

	if a.registry != nil {
		if err := a.register(ctx, manifest, manifestKey, stats, req.Activate); err != nil {
			a.logger.Warnf("cleaning up uploaded artifact %s after registry failure: %v", version, e.Wrap(op, err))
			a.uploader.CleanupArtifact(uploaded)
			return nil, e.Wrap(op, err)
		}
		res.Registered = true
		res.Activated = req.Activate
	} else if req.Activate {
		a.logger.Warnf("registry is not configured, version %s is published but not activated", version)
	}

	if req.Mirror {
		res.Mirrored = a.mirror(ctx, version, model)
	}

	a.logger.Infof("artifact %s published: %d objects, manifest %s", version, len(uploaded), manifestKey)

	return res, nil
}

// upload загружает данные, а манифест последним: читатель не увидит манифест без файлов.
func (a *ArtifactUseCase) upload(ctx context.Context, source ArtifactSource, data []string, version string) ([]string, error) {
	dataRes, err := a.uploader.UploadArtifact(ctx, NewUploadArtifactReq(source, data, version))
	if err != nil {
		return nil, err
	}

	manifestRes, err := a.uploader.UploadArtifact(ctx, NewUploadArtifactReq(source, []string{domain.ManifestFile}, version))
	if err != nil {
		a.uploader.CleanupArtifact(dataRes.Keys)
		return nil, err
	}

	return append(dataRes.Keys, manifestRes.Keys...), nil
}

// register записывает версию и события outbox в одной транзакции.
func (a *ArtifactUseCase) register(ctx context.Context, manifest *domain.Manifest, manifestKey string, stats retrieval.Stats, activate bool) error {
	return a.tx.Do(ctx, func(ctx context.Context) error {
		version := domain.NewArtifactVersion(manifest.Version, manifestKey, stats.Dimension, stats.Products, stats.Users)
		if _, err := a.registry.Create(ctx, version); err != nil {
			return err
		}

		if err := a.enqueue(ctx, domain.ArtifactPublished, manifest.Version, manifestKey); err != nil {
			return err
		}

		if !activate {
			return nil
		}

		if _, err := a.registry.Activate(ctx, manifest.Version); err != nil {
			return err
		}

		return a.enqueue(ctx, domain.ArtifactActivated, manifest.Version, manifestKey)
	})
}

func (a *ArtifactUseCase) enqueue(ctx context.Context, eventType domain.ArtifactEventType, version, manifestKey string) error {
	event, err := NewOutboxEvent(domain.NewArtifactEvent(uuid.NewString(), eventType, version, manifestKey))
	if err != nil {
		return err
	}

	_, err = a.outbox.Create(ctx, event)
	return err
}

// mirror копирует нормированные векторы продуктов в Qdrant. Ошибка зеркала не отменяет публикацию.
func (a *ArtifactUseCase) mirror(ctx context.Context, version string, model *retrieval.Model) int {
	const op = "ArtifactUseCase.mirror"

	if a.vectors == nil {
		a.logger.Warnf("qdrant is not configured, skipping vector mirror of %s", version)
		return 0
	}

	index := model.Similarity()
	products := index.Products()
	items := make([]ProductVector, 0, len(products))
	for _, p := range products {
		vec, _ := index.Vector(p.ID)
		items = append(items, NewProductVector(p.ID, vec, p.Attributes))
	}

	if err := a.vectors.EnsureCollection(ctx, index.Dim()); err != nil {
		a.logger.Errorf(e.Wrap(op, err), "qdrant collection check failed")
		return 0
	}

	if err := a.vectors.UpsertProducts(ctx, version, items); err != nil {
		a.logger.Errorf(e.Wrap(op, err), "qdrant mirror of %s failed", version)
		return 0
	}

	return len(items)
}
