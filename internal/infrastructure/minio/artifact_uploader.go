package minio

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/infrastructure"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/jitter"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
)

const (
	cleanupAttempts = 3
	cleanupTimeout  = 30 * time.Second
)

// ArtifactUploader загружает файлы артефакта в хранилище и убирает частично загруженные версии.
type ArtifactUploader struct {
	store       usecase.ArtifactStore
	logger      logger.Logger
	shutdownCtx context.Context
	wg          sync.WaitGroup
	uploadLimit int
}

func NewArtifactUploader(store usecase.ArtifactStore, uploadLimit int, logger logger.Logger, shutdownCtx context.Context) *ArtifactUploader {
	if uploadLimit <= 0 {
		uploadLimit = 1
	}

	return &ArtifactUploader{
		store:       store,
		logger:      logger,
		shutdownCtx: shutdownCtx,
		uploadLimit: uploadLimit,
	}
}

// UploadArtifact загружает файлы параллельно с ограничением одновременных операций.
// При первой ошибке отменяет остальные загрузки и запускает очистку уже загруженных объектов.
func (u *ArtifactUploader) UploadArtifact(ctx context.Context, req *usecase.UploadArtifactReq) (*usecase.UploadArtifactRes, error) {
	const op = "ArtifactUploader.UploadArtifact"
	// Отмена остальных загрузок при первой ошибке
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keyCh := make(chan string, len(req.Keys))
	errCh := make(chan error, len(req.Keys))
	sem := make(chan struct{}, u.uploadLimit)

	var uploadWg sync.WaitGroup
	for _, key := range req.Keys {
		uploadWg.Add(1)
		go func() {
			defer uploadWg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := u.uploadOne(ctx, req.Source, key, path.Join(req.Prefix, key)); err != nil {
				errCh <- fmt.Errorf("upload %s failed: %w", key, err)
				return
			}

			keyCh <- path.Join(req.Prefix, key)
		}()
	}

	go func() {
		uploadWg.Wait()
		close(errCh)
		close(keyCh)
	}()

	keys := make([]string, 0, len(req.Keys))
	ok := false
	defer func() {
		if !ok && len(keys) > 0 {
			u.CleanupArtifact(keys)
		}
	}()

	for completed := 0; completed < len(req.Keys); {
		select {
		case key, open := <-keyCh:
			if open {
				keys = append(keys, key)
				completed++
			}
		case err, open := <-errCh:
			if open {
				cancel()
				// дочитываем успешные загрузки, чтобы их тоже убрать
				uploadWg.Wait()
				for key := range keyCh {
					keys = append(keys, key)
				}
				return nil, e.Wrap(op, err)
			}
		case <-ctx.Done():
			cancel()
			return nil, e.Wrap(op, ctx.Err())
		}
	}

	ok = true
	return usecase.NewUploadArtifactRes(keys), nil
}

func (u *ArtifactUploader) uploadOne(ctx context.Context, source usecase.ArtifactSource, key, dst string) error {
	rc, size, err := source.Open(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	return u.store.Put(ctx, dst, rc, size, infrastructure.ContentTypeByKey(key))
}

// CleanupArtifact запускает фоновую очистку указанных ключей.
func (u *ArtifactUploader) CleanupArtifact(keys []string) {
	if len(keys) == 0 {
		return
	}
	u.wg.Add(1)
	go u.cleanupUploadedKeys(append([]string(nil), keys...))
}

// cleanupUploadedKeys удаляет объекты с экспоненциальной задержкой и jitter.
func (u *ArtifactUploader) cleanupUploadedKeys(keys []string) {
	defer u.wg.Done() // сигнализируем завершение компенсации
	const op = "ArtifactUploader.cleanupUploadedKeys"
	u.logger.Infof("%s: cleaning up %d uploaded keys", op, len(keys))

	ctx, cancel := context.WithTimeout(u.shutdownCtx, cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		for attempt := 0; attempt < cleanupAttempts; attempt++ {
			err := u.store.Delete(ctx, key)
			if err == nil {
				break
			}

			if ctx.Err() != nil {
				u.logger.Warnf("cleanup interrupted by shutdown, key=%v", key)
				return
			}

			if attempt == cleanupAttempts-1 {
				u.logger.Errorf(e.Wrap(op, err), "giving up on orphaned object, key=%v", key)
				break
			}

			if err := jitter.Sleep(ctx, jitter.ExponentialBackoff(time.Second, 8*time.Second, attempt, jitter.DefaultJitter)); err != nil {
				u.logger.Warnf("cleanup interrupted by shutdown during backoff, key=%v", key)
				return
			}
		}
	}
}

// WaitForCleanup ожидает завершения фоновых очисток с учётом таймаута завершения приложения.
func (u *ArtifactUploader) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("artifact cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}
