package kafka

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/metrics"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/jitter"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/jackc/pgx/v5"
)

const (
	outboxBatchSize = 10
	sendAttempts    = 3
	retryBase       = 200 * time.Millisecond
	retryMax        = 5 * time.Second
	stuckAfter      = 60 // секунд в processing, после которых событие возвращается в очередь
	sweepInterval   = 30 * time.Second
)

// stuckReleaser возвращает в очередь события, чья отправка прервалась.
type stuckReleaser interface {
	ReleaseStuck(ctx context.Context, olderThanSeconds int) (int64, error)
}

// OutboxWorker переносит события из outbox_events в Kafka по сигналу NOTIFY.
type OutboxWorker struct {
	repo      usecase.OutboxRepository
	logger    logger.Logger
	producer  usecase.MessageProducer
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	dbConnStr string
}

func NewOutboxWorker(
	repo usecase.OutboxRepository,
	logger logger.Logger,
	producer usecase.MessageProducer,
	dbConnStr string,
) *OutboxWorker {
	return &OutboxWorker{
		repo:      repo,
		logger:    logger,
		producer:  producer,
		stop:      make(chan struct{}),
		dbConnStr: dbConnStr,
	}
}

func (w *OutboxWorker) Start(ctx context.Context) {
	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	go func() {
		defer w.wg.Done()
		w.listenOutboxNotifications(ctx)
	}()
}

func (w *OutboxWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *OutboxWorker) run(ctx context.Context) {
	// Обрабатываем "остатки" при старте
	w.logger.Infof("Draining pending outbox events on startup...")
	w.Drain(ctx)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Infof("Outbox worker stopped by context cancellation")
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep подбирает зависшие события и всё, что могло прийти без уведомления.
func (w *OutboxWorker) sweep(ctx context.Context) {
	if releaser, ok := w.repo.(stuckReleaser); ok {
		n, err := releaser.ReleaseStuck(ctx, stuckAfter)
		if err != nil {
			w.logger.Warnf("release stuck outbox events failed: %v", err)
		} else if n > 0 {
			w.logger.Warnf("returned %d stuck outbox events to pending", n)
		}
	}

	w.Drain(ctx)
}

// Drain обрабатывает пачки, пока в outbox есть pending-события.
func (w *OutboxWorker) Drain(ctx context.Context) {
	for {
		hasMore, err := w.processBatch(ctx)
		if err != nil {
			w.logger.Warnf("Batch processing failed: %v", err)
			return
		}
		if !hasMore {
			return
		}
	}
}

func (w *OutboxWorker) listenOutboxNotifications(ctx context.Context) {
	var conn *pgx.Conn

	connect := func() error {
		c, err := pgx.Connect(ctx, w.dbConnStr)
		if err != nil {
			return e.Wrap("failed to connect for LISTEN", err)
		}

		if _, err = c.Exec(ctx, "LISTEN "+usecase.OutboxChannel); err != nil {
			_ = c.Close(ctx)
			return e.Wrap("failed to LISTEN", err)
		}

		conn = c
		w.logger.Infof("Subscribed to '%s' channel", usecase.OutboxChannel)
		return nil
	}

	if err := connect(); err != nil {
		w.logger.Warnf("Initial connect failed: %v", err)
		return
	}
	defer func() {
		if conn != nil {
			_ = conn.Close(context.Background())
		}
	}()

	for attempt := 0; ; {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		if conn == nil {
			if err := jitter.Sleep(ctx, jitter.ExponentialBackoff(time.Second, 30*time.Second, attempt, jitter.DefaultJitter)); err != nil {
				return
			}
			if err := connect(); err != nil {
				w.logger.Warnf("Reconnect failed: %v", err)
				attempt++
				continue
			}
			attempt = 0
		}

		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		notif, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Warnf("Connection lost: %v. Reconnecting...", err)
			_ = conn.Close(context.Background())
			conn = nil
			continue
		}

		if notif != nil && notif.Channel == usecase.OutboxChannel {
			w.logger.Debugf("Received outbox notification for %s, draining outbox events", notif.Payload)
			w.Drain(ctx)
		}
	}
}

func (w *OutboxWorker) processBatch(ctx context.Context) (bool, error) {
	events, err := w.repo.GetAndMarkAsProcessing(ctx, outboxBatchSize)
	if err != nil {
		return false, err
	}

	if len(events) == 0 {
		return false, nil
	}

	for _, event := range events {
		if err := w.processEvent(ctx, event); err != nil {
			w.logger.Errorf(err, "outbox event %s (%s) not published", event.EventID, event.EventType)
			continue
		}
		if err := w.repo.MarkAsProcessed(ctx, event.ID); err != nil {
			w.logger.Warnf("mark processed failed: %v", err)
		}
	}

	return len(events) == outboxBatchSize, nil
}

// processEvent повторяет временные ошибки брокера с экспоненциальной задержкой.
func (w *OutboxWorker) processEvent(ctx context.Context, event *usecase.OutboxEvent) error {
	req := usecase.NewWriteRawMessageReq(event.AggregateKey, event.Payload)

	var err error
	for attempt := 0; attempt < sendAttempts; attempt++ {
		if err = w.producer.WriteRawMessage(ctx, req); err == nil {
			metrics.OutboxPublished.Inc()
			return nil
		}

		if !isRetryableError(err) {
			metrics.OutboxFailures.WithLabelValues("permanent").Inc()
			return e.Wrap("Permanent Kafka failure", err)
		}

		metrics.OutboxFailures.WithLabelValues("retryable").Inc()
		if sleepErr := jitter.Sleep(ctx, jitter.ExponentialBackoff(retryBase, retryMax, attempt, jitter.DefaultJitter)); sleepErr != nil {
			break
		}
	}

	return e.Wrap("Temporary Kafka failure, will retry", err)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"i/o timeout",
		"network is unreachable",
		"broker not available",
		"leader not available",
		"connection reset",
		"broken pipe",
		"no such host",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(errStr, phrase) {
			return true
		}
	}
	return false
}
