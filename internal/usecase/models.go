package usecase

import (
	"time"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/goccy/go-json"
)

// RECOMMENDATION USECASE

// RecommendReq - запрос рекомендаций для пользователя.
type RecommendReq struct {
	UserID string
	Count  int
}

type RecommendRes struct {
	UserID  string
	Version string
	Items   []domain.Scored
	Cached  bool
}

// RelatedProductsReq - запрос похожих продуктов.
type RelatedProductsReq struct {
	ProductID string
	TopK      int
}

type RelatedProductsRes struct {
	ProductID string
	Version   string
	Items     []domain.Scored
	Products  []domain.Product // метаданные Items в том же порядке
	Cached    bool
}

// ReloadReq - пустой ManifestKey означает активную версию из реестра или ключ по умолчанию.
type ReloadReq struct {
	ManifestKey string
}

type ReloadRes struct {
	Version         string
	PreviousVersion string
	ManifestKey     string
	Users           int
	Products        int
	Duration        time.Duration
}

type StatusRes struct {
	Loaded      bool
	ManifestKey string
	Stats       retrieval.Stats
}

// ARTIFACT USECASE

// PublishReq - публикация локального каталога артефакта.
type PublishReq struct {
	Dir      string
	Version  string
	Activate bool
	Mirror   bool
}

type PublishRes struct {
	Version     string
	ManifestKey string
	Keys        []string
	Registered  bool
	Activated   bool
	Mirrored    int
}

// INFRASTRUCTURE

// UploadArtifactReq - загрузка ключей из Source под префикс Prefix.
type UploadArtifactReq struct {
	Source ArtifactSource
	Keys   []string
	Prefix string
}

type UploadArtifactRes struct {
	Keys []string
}

type WriteRawMessageReq struct {
	Key     string
	Payload []byte
}

// ProductVector - нормированный вектор продукта для зеркала в Qdrant.
type ProductVector struct {
	ProductID  string
	Vector     []float32
	Attributes map[string]string
}

// OUTBOX

// OutboxChannel - канал LISTEN/NOTIFY, которым репозиторий будит outbox worker.
const OutboxChannel = "outbox_pending"

type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
)

type OutboxEvent struct {
	ID           int64
	EventID      string
	EventType    domain.ArtifactEventType
	AggregateKey string // версия артефакта, ключ сообщения Kafka
	Payload      []byte
	Status       OutboxStatus
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// MAPPERS

func NewOutboxEvent(event *domain.ArtifactEvent) (*OutboxEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		EventID:      event.EventID,
		EventType:    event.Type,
		AggregateKey: event.Version,
		Payload:      payload,
		Status:       Pending,
		CreatedAt:    event.OccurredAt,
	}, nil
}

func NewUploadArtifactReq(source ArtifactSource, keys []string, prefix string) *UploadArtifactReq {
	return &UploadArtifactReq{
		Source: source,
		Keys:   keys,
		Prefix: prefix,
	}
}

func NewUploadArtifactRes(keys []string) *UploadArtifactRes {
	return &UploadArtifactRes{Keys: keys}
}

func NewWriteRawMessageReq(key string, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		Key:     key,
		Payload: payload,
	}
}

func NewProductVector(productID string, vector []float32, attributes map[string]string) ProductVector {
	return ProductVector{
		ProductID:  productID,
		Vector:     vector,
		Attributes: attributes,
	}
}
