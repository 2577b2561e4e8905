package domain

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/DRSN-tech/go-recommender/pkg/e"
)

// ManifestFile - имя манифеста внутри каталога версии
const ManifestFile = "manifest.json"

// Версия входит в ключи кэша (разделитель ":", шаблоны SCAN) и в префикс объектов MinIO.
var versionPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateVersion допускает только латиницу, цифры и ".", "_", "-".
func ValidateVersion(version string) error {
	if !versionPattern.MatchString(version) || version == "." || version == ".." {
		return fmt.Errorf("%q: %w", version, e.ErrInvalidVersion)
	}

	return nil
}

// Manifest описывает состав артефакта модели. Ключи объектов задаются относительно каталога манифеста.
type Manifest struct {
	Version           string    `json:"version"`
	Dimension         int       `json:"dimension"`
	CreatedAt         time.Time `json:"created_at"`
	UserIDs           string    `json:"user_ids"`
	UserEmbeddings    string    `json:"user_embeddings"`
	ProductIDs        string    `json:"product_ids"`
	ProductEmbeddings string    `json:"product_embeddings"`
	ProductVectors    string    `json:"product_vectors"`
	ProductMetadata   string    `json:"product_metadata"`
}

// Validate проверяет, что заполнены все ключи и размерность.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Version) == "" {
		return fmt.Errorf("version is empty")
	}
	if err := ValidateVersion(m.Version); err != nil {
		return err
	}
	if m.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", m.Dimension)
	}

	for name, key := range m.Files() {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("%s is empty", name)
		}
	}

	return nil
}

// Files возвращает именованные ключи объектов артефакта.
func (m *Manifest) Files() map[string]string {
	return map[string]string{
		"user_ids":           m.UserIDs,
		"user_embeddings":    m.UserEmbeddings,
		"product_ids":        m.ProductIDs,
		"product_embeddings": m.ProductEmbeddings,
		"product_vectors":    m.ProductVectors,
		"product_metadata":   m.ProductMetadata,
	}
}

// Resolve возвращает ключ объекта относительно ключа манифеста.
func Resolve(manifestKey, objectKey string) string {
	dir := path.Dir(manifestKey)
	if dir == "." || dir == "/" {
		return objectKey
	}

	return path.Join(dir, objectKey)
}
