package artifact

import (
	"fmt"
	"io"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/goccy/go-json"
)

// DecodeManifest читает и валидирует manifest.json.
func DecodeManifest(r io.Reader) (*domain.Manifest, error) {
	var m domain.Manifest

	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrInvalidManifest, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", e.ErrInvalidManifest, err)
	}

	return &m, nil
}

// EncodeManifest пишет манифест с отступами, как его читает человек.
func EncodeManifest(w io.Writer, m *domain.Manifest) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %w", e.ErrInvalidManifest, err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(m)
}
