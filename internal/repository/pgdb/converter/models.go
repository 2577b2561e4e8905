package converter

import "time"

// ArtifactVersionModel представляет запись таблицы artifact_versions в PostgreSQL.
type ArtifactVersionModel struct {
	ID          int64      `db:"id"`
	Version     string     `db:"version"`
	ManifestKey string     `db:"manifest_key"`
	Dimension   int        `db:"dimension"`
	Products    int        `db:"products"`
	Users       int        `db:"users"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ActivatedAt *time.Time `db:"activated_at"`
}

// OutboxEventModel представляет запись таблицы outbox_events в PostgreSQL.
type OutboxEventModel struct {
	ID           int64      `db:"id"`
	EventID      string     `db:"event_id"`
	EventType    string     `db:"event_type"`
	AggregateKey string     `db:"aggregate_key"`
	Payload      []byte     `db:"payload"`
	Status       string     `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
	ProcessedAt  *time.Time `db:"processed_at"`
}
