package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/metrics"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/jitter"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
)

const (
	outcomeReloaded = "reloaded"
	outcomeSkipped  = "skipped"
	outcomeFailed   = "failed"
	outcomeInvalid  = "invalid"
)

// messageReader - часть kafka.Reader, нужная слушателю.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ReloadConsumer перезагружает модель по событию artifact.activated.
// У каждого экземпляра своя consumer group, чтобы событие получили все реплики.
type ReloadConsumer struct {
	reader   messageReader
	reloader usecase.Reloader
	logger   logger.Logger
	timeout  time.Duration
}

func NewReloadConsumer(cfg *cfg.KafkaCfg, reloader usecase.Reloader, loadTimeout time.Duration, logger logger.Logger) *ReloadConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     fmt.Sprintf("%s-%s", cfg.ConsumerGroup, uuid.NewString()),
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     time.Second,
	})

	return newReloadConsumer(reader, reloader, loadTimeout, logger)
}

func newReloadConsumer(reader messageReader, reloader usecase.Reloader, loadTimeout time.Duration, logger logger.Logger) *ReloadConsumer {
	return &ReloadConsumer{
		reader:   reader,
		reloader: reloader,
		logger:   logger,
		timeout:  loadTimeout,
	}
}

// Run читает сообщения до отмены контекста.
func (c *ReloadConsumer) Run(ctx context.Context) {
	c.logger.Infof("listening for artifact events")

	for attempt := 0; ; {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			c.logger.Warnf("kafka read failed: %v", err)
			if jitter.Sleep(ctx, jitter.ExponentialBackoff(time.Second, 30*time.Second, attempt, jitter.DefaultJitter)) != nil {
				return
			}
			attempt++
			continue
		}
		attempt = 0

		outcome := c.Handle(ctx, msg.Value)
		metrics.ArtifactEventsConsumed.WithLabelValues(outcome).Inc()
	}
}

// Handle обрабатывает одно сообщение и возвращает исход для метрик.
// Битые сообщения пропускаются: повтор их не исправит.
func (c *ReloadConsumer) Handle(ctx context.Context, value []byte) string {
	event, err := DecodeArtifactEvent(value)
	if err != nil {
		c.logger.Warnf("skipping malformed artifact event: %v", err)
		return outcomeInvalid
	}

	if event.Type != domain.ArtifactActivated {
		c.logger.Debugf("ignoring %s event for version %s", event.Type, event.Version)
		return outcomeSkipped
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	res, err := c.reloader.Reload(ctx, &usecase.ReloadReq{ManifestKey: event.ManifestKey})
	if err != nil {
		c.logger.Errorf(err, "reload on activation of %s failed", event.Version)
		return outcomeFailed
	}

	c.logger.Infof("reloaded model %s after activation event %s", res.Version, event.EventID)
	return outcomeReloaded
}

func (c *ReloadConsumer) Close() error {
	return c.reader.Close()
}

// DecodeArtifactEvent разбирает и проверяет событие артефакта.
func DecodeArtifactEvent(value []byte) (*domain.ArtifactEvent, error) {
	var event domain.ArtifactEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	switch event.Type {
	case domain.ArtifactPublished, domain.ArtifactActivated:
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}

	if event.ManifestKey == "" {
		return nil, errors.New("manifest_key is empty")
	}

	return &event, nil
}
