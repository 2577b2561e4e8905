package domain

import "time"

// ArtifactStatus - состояние версии артефакта в реестре
type ArtifactStatus string

const (
	ArtifactPending ArtifactStatus = "pending"
	ArtifactActive  ArtifactStatus = "active"
	ArtifactRetired ArtifactStatus = "retired"
)

// ArtifactVersion описывает опубликованную версию эмбеддингов модели
type ArtifactVersion struct {
	ID          int64
	Version     string
	ManifestKey string
	Dimension   int
	Products    int
	Users       int
	Status      ArtifactStatus
	CreatedAt   time.Time
	ActivatedAt *time.Time
}

func NewArtifactVersion(version, manifestKey string, dimension, products, users int) *ArtifactVersion {
	return &ArtifactVersion{
		Version:     version,
		ManifestKey: manifestKey,
		Dimension:   dimension,
		Products:    products,
		Users:       users,
		Status:      ArtifactPending,
	}
}
