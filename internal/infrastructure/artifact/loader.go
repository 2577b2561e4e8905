package artifact

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// ObjectGetter - источник объектов артефакта (файловая система или MinIO).
type ObjectGetter interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Loader собирает retrieval.Model из манифеста и файлов артефакта.
type Loader struct {
	store  ObjectGetter
	policy retrieval.OOVPolicy
	logger logger.Logger
	now    func() time.Time
}

func NewLoader(store ObjectGetter, policy retrieval.OOVPolicy, logger logger.Logger) *Loader {
	return &Loader{
		store:  store,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// LoadManifest читает только манифест.
func (l *Loader) LoadManifest(ctx context.Context, manifestKey string) (*domain.Manifest, error) {
	const op = "Loader.LoadManifest"

	rc, err := l.store.Get(ctx, manifestKey)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer rc.Close()

	m, err := DecodeManifest(rc)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%s: %w", manifestKey, err))
	}

	return m, nil
}

// Load читает манифест, параллельно загружает файлы и строит модель.
// Модель не собирается частично: любая ошибка возвращается целиком.
func (l *Loader) Load(ctx context.Context, manifestKey string) (*retrieval.Model, error) {
	const op = "Loader.Load"

	m, err := l.LoadManifest(ctx, manifestKey)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var (
		userIDs     []string
		productIDs  []string
		userVecs    *retrieval.Matrix
		productEmb  *retrieval.Matrix
		productVecs *retrieval.Matrix
		products    []domain.Product
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(l.fetch(gctx, manifestKey, m.UserIDs, func(r io.Reader) (err error) {
		userIDs, err = ReadIDs(r)
		return err
	}))
	g.Go(l.fetch(gctx, manifestKey, m.ProductIDs, func(r io.Reader) (err error) {
		productIDs, err = ReadIDs(r)
		return err
	}))
	g.Go(l.fetch(gctx, manifestKey, m.UserEmbeddings, func(r io.Reader) (err error) {
		userVecs, err = DecodeVectors(m.UserEmbeddings, r)
		return err
	}))
	g.Go(l.fetch(gctx, manifestKey, m.ProductEmbeddings, func(r io.Reader) (err error) {
		productEmb, err = DecodeVectors(m.ProductEmbeddings, r)
		return err
	}))
	g.Go(l.fetch(gctx, manifestKey, m.ProductVectors, func(r io.Reader) (err error) {
		productVecs, err = DecodeVectors(m.ProductVectors, r)
		return err
	}))
	g.Go(l.fetch(gctx, manifestKey, m.ProductMetadata, func(r io.Reader) (err error) {
		products, err = ReadProducts(r)
		return err
	}))

	if err := g.Wait(); err != nil {
		return nil, e.Wrap(op, err)
	}

	for name, mat := range map[string]*retrieval.Matrix{
		m.UserEmbeddings:    userVecs,
		m.ProductEmbeddings: productEmb,
		m.ProductVectors:    productVecs,
	} {
		if mat.Dim() != m.Dimension {
			return nil, e.Wrap(op, fmt.Errorf("%s: dim %d, manifest says %d: %w", name, mat.Dim(), m.Dimension, e.ErrDimensionMismatch))
		}
	}

	users, err := buildTable(m.UserIDs, userIDs, userVecs)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	productTable, err := buildTable(m.ProductIDs, productIDs, productEmb)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	retriever, err := retrieval.NewUserRetriever(users, productTable, l.policy)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	index, err := retrieval.NewSimilarityIndex(products, productVecs)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%s/%s: %w", m.ProductMetadata, m.ProductVectors, err))
	}
	if zero := index.ZeroVectors(); zero > 0 {
		l.logger.Warnf("artifact %s: %d product vectors have zero norm, their similarity is 0", m.Version, zero)
	}

	model, err := retrieval.NewModel(m.Version, retriever, index, l.now())
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	l.logger.Infof("artifact %s loaded: users=%d products=%d similarity_products=%d dim=%d",
		m.Version, users.Len(), productTable.Len(), index.Len(), m.Dimension)

	return model, nil
}

func (l *Loader) fetch(ctx context.Context, manifestKey, key string, decode func(io.Reader) error) func() error {
	return func() error {
		full := domain.Resolve(manifestKey, key)

		rc, err := l.store.Get(ctx, full)
		if err != nil {
			return fmt.Errorf("%s: %w", full, err)
		}
		defer rc.Close()

		if err := decode(rc); err != nil {
			return fmt.Errorf("%s: %w", full, err)
		}

		return nil
	}
}

func buildTable(name string, ids []string, vectors *retrieval.Matrix) (*retrieval.EmbeddingTable, error) {
	vocab, err := retrieval.NewVocabulary(ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	table, err := retrieval.NewEmbeddingTable(vocab, vectors)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return table, nil
}
