package minio

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

const noSuchKey = "NoSuchKey"

// ArtifactStore реализует хранилище артефактов поверх бакета MinIO с префиксом.
type ArtifactStore struct {
	mc  *minio.Client
	cfg *cfg.MinIOCfg
}

func NewArtifactStore(mc *minio.Client, cfg *cfg.MinIOCfg) *ArtifactStore {
	return &ArtifactStore{
		mc:  mc,
		cfg: cfg,
	}
}

// Get возвращает объект. Отсутствующий ключ даёт e.ErrArtifactNotFound.
func (s *ArtifactStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.mc.GetObject(ctx, s.cfg.BucketName, s.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapErr(key, err)
	}

	// GetObject ленивый: ошибка доступа проявляется только при чтении или Stat.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, s.mapErr(key, err)
	}

	return obj, nil
}

// Put загружает объект в MinIO.
func (s *ArtifactStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.mc.PutObject(ctx, s.cfg.BucketName, s.objectKey(key), r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (s *ArtifactStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.mc.StatObject(ctx, s.cfg.BucketName, s.objectKey(key), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == noSuchKey {
		return false, nil
	}

	return false, e.Wrap(whereami.WhereAmI(), err)
}

// Delete удаляет объект из MinIO по указанному ключу.
func (s *ArtifactStore) Delete(ctx context.Context, key string) error {
	if err := s.mc.RemoveObject(ctx, s.cfg.BucketName, s.objectKey(key), minio.RemoveObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (s *ArtifactStore) objectKey(key string) string {
	if s.cfg.Prefix == "" {
		return key
	}

	return path.Join(s.cfg.Prefix, key)
}

func (s *ArtifactStore) mapErr(key string, err error) error {
	if minio.ToErrorResponse(err).Code == noSuchKey {
		return fmt.Errorf("%s/%s: %w", s.cfg.BucketName, s.objectKey(key), e.ErrArtifactNotFound)
	}

	return e.Wrap(whereami.WhereAmI(), err)
}
