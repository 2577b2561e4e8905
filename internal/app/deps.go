package app

import (
	"context"
	"time"

	config "github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/infrastructure/artifact"
	minioInfra "github.com/DRSN-tech/go-recommender/internal/infrastructure/minio"
	"github.com/DRSN-tech/go-recommender/internal/repository/file"
	s3Repo "github.com/DRSN-tech/go-recommender/internal/repository/minio"
	"github.com/DRSN-tech/go-recommender/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/go-recommender/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/go-recommender/internal/repository/qdrant"
	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/clients"
	"github.com/DRSN-tech/go-recommender/pkg/closer"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/DRSN-tech/go-recommender/pkg/postgres"
	"github.com/DRSN-tech/go-recommender/pkg/tr"
	"github.com/jimlawless/whereami"
)

const initTimeout = 10 * time.Second

// registry - реестр версий и outbox поверх одной базы.
type registry struct {
	db       *postgres.PgDatabase
	versions *pgdb.ArtifactVersionRepo
	outbox   *pgdb.OutboxEventRepo
	tx       *tr.Manager
}

// openArtifactStore выбирает хранилище артефактов по ARTIFACT_SOURCE.
func openArtifactStore(ctx context.Context, cfg *config.Config, logger logger.Logger) (usecase.ArtifactStore, error) {
	if cfg.Artifact.Source != config.ArtifactSourceMinio {
		logger.Infof("artifacts are read from directory %s", cfg.Artifact.Dir)
		store, err := file.NewArtifactStore(cfg.Artifact.Dir)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		return store, nil
	}

	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()
	if err := clients.EnsureBucket(ctx, minioClient, cfg.Minio.BucketName); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	logger.Infof("artifacts are read from bucket %s at %s", cfg.Minio.BucketName, cfg.Minio.MinioEndpoint)
	return s3Repo.NewArtifactStore(minioClient, cfg.Minio), nil
}

// openRegistry подключает PostgreSQL, если он настроен. Без него возвращает nil.
func openRegistry(ctx context.Context, cfg *config.Config, logger logger.Logger, c *closer.Closer) (*registry, error) {
	if !cfg.Db.Enabled {
		logger.Infof("artifact registry disabled: POSTGRES_DB is not set")
		return nil, nil
	}

	db, err := postgres.Connect(ctx, cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	c.AddSimple("postgres", func() error {
		db.Close()
		return nil
	})

	if err := db.RunMigrations(logger, ""); err != nil {
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &registry{
		db:       db,
		versions: pgdb.NewArtifactVersionRepo(db.Pool, &pgdbConv.ArtifactVersionConverterImpl{}),
		outbox:   pgdb.NewOutboxEventRepo(db.Pool, &pgdbConv.OutboxEventConverterImpl{}),
		tx:       tr.NewManager(db.Pool),
	}, nil
}

// openVectorIndex подключает Qdrant, если QDRANT_HOST задан.
func openVectorIndex(cfg *config.Config, logger logger.Logger, c *closer.Closer) (usecase.VectorIndexRepository, error) {
	if !cfg.Qdrant.Enabled {
		return nil, nil
	}

	qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
	if err != nil {
		logger.Errorf(err, "failed to initialize qdrant")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	c.AddSimple("qdrant", qdrantClient.Close)

	return qdrantRepo.NewVectorIndexRepo(qdrantClient, cfg.Qdrant), nil
}

// Publisher - всё, что нужно artifactctl publish.
type Publisher struct {
	UseCase *usecase.ArtifactUseCase
	Closer  *closer.Closer
}

// NewPublisher собирает ArtifactUseCase из той же конфигурации, что и сервер.
func NewPublisher(ctx context.Context, cfg *config.Config, logger logger.Logger) (*Publisher, error) {
	policy, err := retrieval.ParseOOVPolicy(cfg.Recommend.OOVPolicy)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	c := closer.NewCloser(0)
	fail := func(err error) (*Publisher, error) {
		_ = c.Close(context.Background())
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	store, err := openArtifactStore(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}

	reg, err := openRegistry(ctx, cfg, logger, c)
	if err != nil {
		return fail(err)
	}

	vectors, err := openVectorIndex(cfg, logger, c)
	if err != nil {
		return fail(err)
	}

	uploadLimit := 4
	if cfg.Minio.Enabled {
		uploadLimit = cfg.Minio.UploadLimit
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	uploader := minioInfra.NewArtifactUploader(store, uploadLimit, logger, shutdownCtx)
	c.Add("artifact uploader", func(ctx context.Context) error {
		defer cancel()
		return uploader.WaitForCleanup(ctx)
	})

	var uc *usecase.ArtifactUseCase
	local := artifact.NewDirOpener(policy, logger)
	if reg != nil {
		uc = usecase.NewArtifactUC(local, uploader, store, reg.versions, reg.outbox, reg.tx, vectors, logger)
	} else {
		uc = usecase.NewArtifactUC(local, uploader, store, nil, nil, nil, vectors, logger)
	}

	return &Publisher{UseCase: uc, Closer: c}, nil
}
