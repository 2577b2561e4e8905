package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/goccy/go-json"
)

// ErrorResponse - тело ответа с ошибкой: {"error": "..."}.
type ErrorResponse struct {
	Error string `json:"error"`
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{Error: message}
}

// ToHTTPResponse переводит ошибку usecase в HTTP-статус и безопасное для клиента сообщение.
func ToHTTPResponse(err error) (int, string) {
	if nf, ok := e.AsNotFound(err); ok {
		return http.StatusNotFound, nf.Error()
	}

	switch {
	case errors.Is(err, e.ErrUserIDRequired):
		return http.StatusBadRequest, e.ErrUserIDRequired.Error()
	case errors.Is(err, e.ErrProductIDRequired):
		return http.StatusBadRequest, e.ErrProductIDRequired.Error()
	case errors.Is(err, e.ErrInvalidCount):
		return http.StatusBadRequest, e.ErrInvalidCount.Error()
	case errors.Is(err, e.ErrUnsupportedContent):
		return http.StatusUnsupportedMediaType, e.ErrUnsupportedContent.Error()
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, e.ErrStatusBadRequest.Error()
	case errors.Is(err, e.ErrArtifactNotFound):
		return http.StatusNotFound, e.ErrArtifactNotFound.Error()
	case errors.Is(err, e.ErrInvalidManifest),
		errors.Is(err, e.ErrMalformedVectors),
		errors.Is(err, e.ErrMalformedTable),
		errors.Is(err, e.ErrDimensionMismatch),
		errors.Is(err, e.ErrRowCountMismatch),
		errors.Is(err, e.ErrDuplicateID),
		errors.Is(err, e.ErrUnsupportedVectorFormat):
		return http.StatusUnprocessableEntity, e.ErrInvalidManifest.Error()
	case errors.Is(err, e.ErrModelNotLoaded):
		return http.StatusServiceUnavailable, e.ErrModelNotLoaded.Error()
	case errors.Is(err, e.ErrReloadInFlight):
		return http.StatusServiceUnavailable, e.ErrReloadInFlight.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	WriteSuccess(w, code, NewErrorResponse(msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// parseCount читает положительное целое из query-параметра; пустое значение даёт def.
func parseCount(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s=%q: %w", name, raw, e.ErrInvalidCount)
	}

	return n, nil
}
