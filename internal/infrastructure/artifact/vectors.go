package artifact

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/goccy/go-json"
)

// DecodeVectors выбирает формат по расширению ключа: .npy или .json.
func DecodeVectors(key string, r io.Reader) (*retrieval.Matrix, error) {
	switch strings.ToLower(path.Ext(key)) {
	case ".npy":
		return DecodeNPY(r)
	case ".json":
		return DecodeJSONVectors(r)
	default:
		return nil, fmt.Errorf("%w: %s", e.ErrUnsupportedVectorFormat, key)
	}
}

// DecodeJSONVectors читает матрицу в виде [][]float32.
func DecodeJSONVectors(r io.Reader) (*retrieval.Matrix, error) {
	var rows [][]float32
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrMalformedVectors, err)
	}

	m, err := retrieval.FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrMalformedVectors, err)
	}

	return m, nil
}
