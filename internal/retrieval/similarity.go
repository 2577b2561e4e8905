package retrieval

import (
	"fmt"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/pkg/e"
)

// SimilarityIndex ищет похожие продукты по косинусному сходству.
// Векторы нормируются при построении, поэтому сходство считается скалярным произведением.
type SimilarityIndex struct {
	products []domain.Product
	vocab    *Vocabulary
	vectors  *Matrix
	zero     int
}

// NewSimilarityIndex строит индекс. i-я строка vectors соответствует products[i].
func NewSimilarityIndex(products []domain.Product, vectors *Matrix) (*SimilarityIndex, error) {
	if len(products) != vectors.Rows() {
		return nil, fmt.Errorf("%d products, %d vectors: %w", len(products), vectors.Rows(), e.ErrRowCountMismatch)
	}

	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	vocab, err := NewVocabulary(ids)
	if err != nil {
		return nil, err
	}

	normalized, zero := NormalizeRows(vectors)

	return &SimilarityIndex{
		products: append([]domain.Product(nil), products...),
		vocab:    vocab,
		vectors:  normalized,
		zero:     zero,
	}, nil
}

// Similar возвращает k ближайших к productID продуктов. Сам productID в выдачу не попадает.
func (s *SimilarityIndex) Similar(productID string, k int) ([]domain.Scored, error) {
	if productID == "" {
		return nil, e.ErrProductIDRequired
	}
	if k <= 0 {
		return nil, e.ErrInvalidCount
	}

	qi, ok := s.vocab.Lookup(productID).Index()
	if !ok {
		return nil, e.NewNotFoundError("Product", productID)
	}

	scores, err := s.vectors.MulVec(s.vectors.Row(qi))
	if err != nil {
		return nil, err
	}

	top := TopKExcluding(scores, k, qi)
	out := make([]domain.Scored, len(top))
	for i, idx := range top {
		out[i] = domain.Scored{ID: s.vocab.ID(idx), Score: scores[idx]}
	}

	return out, nil
}

// Product возвращает метаданные продукта.
func (s *SimilarityIndex) Product(productID string) (domain.Product, bool) {
	i, ok := s.vocab.Lookup(productID).Index()
	if !ok {
		return domain.Product{}, false
	}

	return s.products[i], true
}

// Vector возвращает нормированный вектор продукта.
func (s *SimilarityIndex) Vector(productID string) ([]float32, bool) {
	i, ok := s.vocab.Lookup(productID).Index()
	if !ok {
		return nil, false
	}

	return s.vectors.Row(i), true
}

// Products возвращает продукты в порядке строк индекса.
func (s *SimilarityIndex) Products() []domain.Product {
	return append([]domain.Product(nil), s.products...)
}

func (s *SimilarityIndex) Len() int { return len(s.products) }

func (s *SimilarityIndex) Dim() int { return s.vectors.Dim() }

// ZeroVectors - число продуктов с нулевым вектором, их сходство со всеми равно 0.
func (s *SimilarityIndex) ZeroVectors() int { return s.zero }
