package retrieval

import (
	"fmt"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/pkg/e"
)

// Model - неизменяемый снимок загруженных артефактов одной версии.
type Model struct {
	version  string
	loadedAt time.Time
	users    *UserRetriever
	similar  *SimilarityIndex
}

// Stats - сводка по загруженной модели.
type Stats struct {
	Version            string    `json:"version"`
	Dimension          int       `json:"dimension"`
	Users              int       `json:"users"`
	Products           int       `json:"products"`
	SimilarityProducts int       `json:"similarity_products"`
	ZeroVectors        int       `json:"zero_vectors"`
	OOVPolicy          string    `json:"oov_policy"`
	LoadedAt           time.Time `json:"loaded_at"`
}

func NewModel(version string, users *UserRetriever, similar *SimilarityIndex, loadedAt time.Time) (*Model, error) {
	if users.Dim() != similar.Dim() {
		return nil, fmt.Errorf("retrieval dim %d != similarity dim %d: %w", users.Dim(), similar.Dim(), e.ErrDimensionMismatch)
	}

	return &Model{
		version:  version,
		loadedAt: loadedAt,
		users:    users,
		similar:  similar,
	}, nil
}

func (m *Model) Version() string { return m.version }

func (m *Model) Recommend(userID string, k int) ([]domain.Scored, error) {
	return m.users.Recommend(userID, k)
}

func (m *Model) Similar(productID string, k int) ([]domain.Scored, error) {
	return m.similar.Similar(productID, k)
}

func (m *Model) Similarity() *SimilarityIndex { return m.similar }

func (m *Model) Stats() Stats {
	return Stats{
		Version:            m.version,
		Dimension:          m.users.Dim(),
		Users:              m.users.Users(),
		Products:           m.users.Products(),
		SimilarityProducts: m.similar.Len(),
		ZeroVectors:        m.similar.ZeroVectors(),
		OOVPolicy:          m.users.Policy().String(),
		LoadedAt:           m.loadedAt,
	}
}
