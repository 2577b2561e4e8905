package e

import (
	"errors"
	"fmt"
)

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Ошибки конфигурации
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
	ErrMissingEnvVariable   = fmt.Errorf("missing required environment variable")

	// Ошибки артефактов модели
	ErrArtifactNotFound        = fmt.Errorf("artifact not found")
	ErrInvalidManifest         = fmt.Errorf("invalid artifact manifest")
	ErrUnsupportedVectorFormat = fmt.Errorf("unsupported vector file format")
	ErrMalformedVectors        = fmt.Errorf("malformed vector file")
	ErrMalformedTable          = fmt.Errorf("malformed tabular file")
	ErrDimensionMismatch       = fmt.Errorf("vector dimension mismatch")
	ErrRowCountMismatch        = fmt.Errorf("row count mismatch")
	ErrDuplicateID             = fmt.Errorf("duplicate identifier")
	ErrEmptyID                 = fmt.Errorf("empty identifier")
	ErrEmptyVocabulary         = fmt.Errorf("empty vocabulary")
	ErrInvalidArtifactPath     = fmt.Errorf("invalid artifact path")
	ErrNoActiveArtifact        = fmt.Errorf("no active artifact version")
	ErrArtifactVersionExists   = fmt.Errorf("artifact version already exists")
	ErrInvalidVersion          = fmt.Errorf("artifact version may contain only letters, digits, '.', '_' and '-'")

	// 400 Bad Request
	ErrStatusBadRequest   = fmt.Errorf("bad request")
	ErrUserIDRequired     = fmt.Errorf("user_id is required")
	ErrProductIDRequired  = fmt.Errorf("product_id is required")
	ErrInvalidCount       = fmt.Errorf("count must be a positive integer")
	ErrVersionRequired    = fmt.Errorf("artifact version is required")
	ErrUnsupportedContent = fmt.Errorf("unsupported content type")

	// 404 Not Found
	ErrNotFound = fmt.Errorf("not found")

	// 503 Service Unavailable
	ErrModelNotLoaded = fmt.Errorf("model is not loaded")
	ErrReloadInFlight = fmt.Errorf("reload already in progress")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// NotFoundError - типизированный результат «не найдено» для пользователя или продукта.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (n *NotFoundError) Error() string {
	return fmt.Sprintf("%s ID %s not found", n.Entity, n.ID)
}

func (n *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AsNotFound извлекает NotFoundError из цепочки ошибок.
func AsNotFound(err error) (*NotFoundError, bool) {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf, true
	}

	return nil, false
}

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
