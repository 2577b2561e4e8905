package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/goccy/go-json"
)

const maxReloadBody = 1 << 16

type AdminHandler struct {
	recUC  usecase.RecommendationUC
	logger logger.Logger
}

func NewAdminHandler(recUC usecase.RecommendationUC, logger logger.Logger) *AdminHandler {
	return &AdminHandler{recUC: recUC, logger: logger}
}

type ReloadRequest struct {
	ManifestKey string `json:"manifest_key"`
}

type ReloadResponse struct {
	Version         string `json:"version"`
	PreviousVersion string `json:"previous_version,omitempty"`
	ManifestKey     string `json:"manifest_key"`
	Users           int    `json:"users"`
	Products        int    `json:"products"`
	DurationMs      int64  `json:"duration_ms"`
}

type StatusResponse struct {
	Loaded      bool             `json:"loaded"`
	ManifestKey string           `json:"manifest_key,omitempty"`
	Model       *retrieval.Stats `json:"model,omitempty"`
}

// reload
//
//	@Summary		Перезагрузка модели
//	@Description	Загружает артефакт целиком и атомарно подменяет обслуживаемую модель. Пустое тело означает активную версию
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ReloadRequest	false	"Ключ манифеста"
//	@Success		200		{object}	ReloadResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse	"Артефакт не найден"
//	@Failure		422		{object}	ErrorResponse	"Артефакт не прошёл проверку"
//	@Failure		503		{object}	ErrorResponse	"Перезагрузка уже идёт"
//	@Router			/api/v1/admin/reload [post]
func (h *AdminHandler) reload(w http.ResponseWriter, r *http.Request) {
	req, err := decodeReloadRequest(r)
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	res, err := h.recUC.Reload(r.Context(), &usecase.ReloadReq{ManifestKey: req.ManifestKey})
	if err != nil {
		h.logger.Errorf(err, "reload requested over HTTP failed")
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, &ReloadResponse{
		Version:         res.Version,
		PreviousVersion: res.PreviousVersion,
		ManifestKey:     res.ManifestKey,
		Users:           res.Users,
		Products:        res.Products,
		DurationMs:      res.Duration.Milliseconds(),
	})
}

// status
//
//	@Summary	Состояние модели
//	@Tags		admin
//	@Produce	json
//	@Success	200	{object}	StatusResponse
//	@Router		/api/v1/admin/status [get]
func (h *AdminHandler) status(w http.ResponseWriter, r *http.Request) {
	res, err := h.recUC.Status(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	out := &StatusResponse{Loaded: res.Loaded, ManifestKey: res.ManifestKey}
	if res.Loaded {
		stats := res.Stats
		out.Model = &stats
	}

	WriteSuccess(w, http.StatusOK, out)
}

// healthz отвечает 200, пока процесс жив, и 503, пока модель не загружена.
func (h *AdminHandler) healthz(w http.ResponseWriter, r *http.Request) {
	res, err := h.recUC.Status(r.Context())
	if err != nil || !res.Loaded {
		WriteSuccess(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}

	WriteSuccess(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"version":   res.Stats.Version,
		"loaded_at": res.Stats.LoadedAt.Format(time.RFC3339),
	})
}

func decodeReloadRequest(r *http.Request) (*ReloadRequest, error) {
	var req ReloadRequest

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return nil, e.Wrap(ct, e.ErrUnsupportedContent)
		}
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxReloadBody))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, e.Wrap(err.Error(), e.ErrStatusBadRequest)
	}

	return &req, nil
}
