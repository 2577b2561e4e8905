package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/go-recommender/internal/cfg"
	v1Grpc "github.com/DRSN-tech/go-recommender/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/go-recommender/internal/delivery/v1/http"
	"github.com/DRSN-tech/go-recommender/internal/infrastructure/artifact"
	"github.com/DRSN-tech/go-recommender/internal/infrastructure/kafka"
	"github.com/DRSN-tech/go-recommender/internal/repository/redis"
	redisConv "github.com/DRSN-tech/go-recommender/internal/repository/redis/converter"
	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/clients"
	"github.com/DRSN-tech/go-recommender/pkg/closer"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/jitter"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/DRSN-tech/go-recommender/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const (
	shutdownTimeout   = 10 * time.Second
	topicTimeout      = 10 * time.Second
	initialRetryBase  = 2 * time.Second
	initialRetryLimit = time.Minute
)

// App - обслуживающий процесс: HTTP, gRPC, outbox worker и слушатель событий артефактов.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	recUC    *usecase.RecommendationUseCase
	httpSrv  *v1Http.Server
	grpcSrv  *v1Grpc.GRPCServer
	outbox   *kafka.OutboxWorker
	consumer *kafka.ReloadConsumer
}

func NewApp(cfg *config.Config, logger logger.Logger) (*App, error) {
	ctx := context.Background()
	c := closer.NewCloser(0)

	a, err := build(ctx, cfg, logger, c)
	if err != nil {
		if closeErr := c.Close(ctx); closeErr != nil {
			logger.Warnf("cleanup after failed start: %v", closeErr)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return a, nil
}

func build(ctx context.Context, cfg *config.Config, logger logger.Logger, c *closer.Closer) (*App, error) {
	policy, err := retrieval.ParseOOVPolicy(cfg.Recommend.OOVPolicy)
	if err != nil {
		return nil, err
	}

	store, err := openArtifactStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	reg, err := openRegistry(ctx, cfg, logger, c)
	if err != nil {
		return nil, err
	}

	cache, err := openCache(ctx, cfg, logger, c)
	if err != nil {
		return nil, err
	}

	var versions usecase.ArtifactVersionRepository
	if reg != nil {
		versions = reg.versions
	}

	recUC := usecase.NewRecommendationUC(
		artifact.NewLoader(store, policy, logger),
		versions,
		cache,
		usecase.RecommendationOptions{
			DefaultManifestKey: cfg.Artifact.ManifestKey,
			MaxCount:           cfg.Recommend.MaxCount,
			LoadTimeout:        cfg.Artifact.LoadTimeout,
		},
		logger,
	)

	a := &App{
		cfg:    cfg,
		logger: logger,
		closer: c,
		recUC:  recUC,
	}

	if err := a.initMessaging(reg); err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	v1Http.NewRouter(r, logger).Init(recUC, v1Http.Defaults{
		NumRecommendations: cfg.Recommend.DefaultCount,
		TopK:               cfg.Recommend.DefaultTopK,
	}, cfg.Http.CORSOrigins)
	a.httpSrv = v1Http.NewServer(r, cfg.Http)

	a.grpcSrv = v1Grpc.NewGRPCServer(cfg.Grpc, logger)
	a.grpcSrv.RegisterServices(recUC, v1Grpc.Defaults{
		NumRecommendations: cfg.Recommend.DefaultCount,
		TopK:               cfg.Recommend.DefaultTopK,
	})

	// фоновые записи в кэш дожидаемся до закрытия Redis
	c.Add("cache writes", recUC.Wait)

	return a, nil
}

func openCache(ctx context.Context, cfg *config.Config, logger logger.Logger, c *closer.Closer) (usecase.CacheRepository, error) {
	if !cfg.Redis.Enabled {
		logger.Infof("recommendation cache disabled: REDIS_ADDR is not set")
		return redis.NoopCache{}, nil
	}

	redisClient := clients.NewRedisClient(cfg.Redis)
	c.AddSimple("redis", redisClient.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx); err != nil {
		logger.Errorf(err, "failed to connect to redis")
		return nil, err
	}

	return redis.NewCacheRepo(redisClient, &redisConv.ScoredConverterImpl{}, cfg.Redis, logger), nil
}

// initMessaging поднимает outbox worker (нужен реестр) и слушатель событий активации.
func (a *App) initMessaging(reg *registry) error {
	if !a.cfg.Kafka.Enabled {
		a.logger.Infof("kafka disabled: KAFKA_BROKERS is not set")
		return nil
	}

	if reg != nil {
		producer, err := kafka.NewProducer(a.logger, a.cfg.Kafka)
		if err != nil {
			a.logger.Errorf(err, "failed to initialize kafka producer")
			return err
		}
		a.closer.AddSimple("kafka producer", producer.Close)

		if err := producer.EnsureTopic(topicTimeout); err != nil {
			a.logger.Warnf("failed to ensure kafka topic: %v", err)
		}

		a.outbox = kafka.NewOutboxWorker(reg.outbox, a.logger, producer, postgres.DSN(a.cfg.Db))
	}

	a.consumer = kafka.NewReloadConsumer(a.cfg.Kafka, a.recUC, a.cfg.Artifact.LoadTimeout, a.logger)
	a.closer.AddSimple("kafka consumer", a.consumer.Close)

	return nil
}

// loadInitial пытается загрузить модель до успеха. Пока модели нет, API отвечает 503.
func (a *App) loadInitial(ctx context.Context) {
	for attempt := 0; ; attempt++ {
		res, err := a.recUC.Reload(ctx, &usecase.ReloadReq{})
		if err == nil {
			a.logger.Infof("initial model %s loaded: %d users, %d products", res.Version, res.Users, res.Products)
			return
		}

		delay := jitter.ExponentialBackoff(initialRetryBase, initialRetryLimit, attempt, jitter.DefaultJitter)
		a.logger.Errorf(err, "initial model load failed, retrying in %s", delay)
		if jitter.Sleep(ctx, delay) != nil {
			return
		}
	}
}

func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.loadInitial(ctx)

	if a.outbox != nil {
		a.outbox.Start(ctx)
	}
	if a.consumer != nil {
		go a.consumer.Run(ctx)
	}

	grpcErrCh := make(chan error, 1)
	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			a.logger.Errorf(err, "gRPC server failed")
			grpcErrCh <- err
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf(err, "HTTP server failed: %v", err)
			errCh <- err
		}
	}()

	// === Ожидание сигнала или ошибки ===
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case appErr = <-grpcErrCh:
		a.logger.Errorf(appErr, "gRPC server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	// === Graceful shutdown ===
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := a.httpSrv.Stop(shutdownCtx); err != nil {
		a.logger.Errorf(err, "HTTP server shutdown error")
	} else {
		a.logger.Infof("HTTP server stopped")
	}

	if err := a.grpcSrv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		a.logger.Errorf(err, "gRPC server shutdown error")
	}

	// останавливаем фоновые циклы до закрытия ресурсов, которыми они пользуются
	cancel()
	if a.outbox != nil {
		a.outbox.Stop()
	}

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Warnf("%v", err)
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}
