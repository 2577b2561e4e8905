package domain

import "time"

// ArtifactEventType - тип события об артефакте
type ArtifactEventType string

const (
	ArtifactPublished ArtifactEventType = "artifact.published"
	ArtifactActivated ArtifactEventType = "artifact.activated"
)

// ArtifactEvent отправляется в Kafka после публикации или активации версии
type ArtifactEvent struct {
	EventID     string            `json:"event_id"`
	Type        ArtifactEventType `json:"type"`
	Version     string            `json:"version"`
	ManifestKey string            `json:"manifest_key"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

func NewArtifactEvent(eventID string, eventType ArtifactEventType, version, manifestKey string) *ArtifactEvent {
	return &ArtifactEvent{
		EventID:     eventID,
		Type:        eventType,
		Version:     version,
		ManifestKey: manifestKey,
		OccurredAt:  time.Now().UTC(),
	}
}
