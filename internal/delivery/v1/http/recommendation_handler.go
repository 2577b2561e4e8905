package http

import (
	"net/http"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
)

// Defaults - значения count, когда клиент их не передал.
type Defaults struct {
	NumRecommendations int
	TopK               int
}

type RecommendationHandler struct {
	recUC    usecase.RecommendationUC
	defaults Defaults
	logger   logger.Logger
}

func NewRecommendationHandler(recUC usecase.RecommendationUC, defaults Defaults, logger logger.Logger) *RecommendationHandler {
	return &RecommendationHandler{recUC: recUC, defaults: defaults, logger: logger}
}

type RecommendResponse struct {
	UserID          string   `json:"user_id"`
	Recommendations []string `json:"recommendations"`
}

type RelatedProduct struct {
	ProductID string `json:"productId"`
}

// recommend
//
//	@Summary		Рекомендации для пользователя
//	@Description	Продукты с наибольшим скалярным произведением эмбеддингов пользователя и продукта
//	@Tags			recommendations
//	@Produce		json
//	@Param			user_id				query		string	true	"Идентификатор пользователя"
//	@Param			num_recommendations	query		int		false	"Количество рекомендаций"	default(10)
//	@Success		200					{object}	RecommendResponse
//	@Failure		400					{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		404					{object}	ErrorResponse	"Пользователь не найден"
//	@Failure		500					{object}	ErrorResponse
//	@Failure		503					{object}	ErrorResponse	"Модель не загружена"
//	@Router			/recommend [get]
func (h *RecommendationHandler) recommend(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		WriteError(w, e.ErrUserIDRequired)
		return
	}

	count, err := parseCount(r, "num_recommendations", h.defaults.NumRecommendations)
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	res, err := h.recUC.Recommend(r.Context(), &usecase.RecommendReq{UserID: userID, Count: count})
	if err != nil {
		h.logError(err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, &RecommendResponse{
		UserID:          res.UserID,
		Recommendations: domain.IDs(res.Items),
	})
}

// relatedProducts
//
//	@Summary		Похожие продукты
//	@Description	Ближайшие по косинусу продукты, сам продукт в выдачу не входит
//	@Tags			recommendations
//	@Produce		json
//	@Param			product_id	query		string	true	"Идентификатор продукта"
//	@Param			top_k		query		int		false	"Количество продуктов"	default(3)
//	@Success		200			{array}		RelatedProduct
//	@Failure		400			{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		404			{object}	ErrorResponse	"Продукт не найден"
//	@Failure		500			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse	"Модель не загружена"
//	@Router			/related-products [get]
func (h *RecommendationHandler) relatedProducts(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		WriteError(w, e.ErrProductIDRequired)
		return
	}

	topK, err := parseCount(r, "top_k", h.defaults.TopK)
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	res, err := h.recUC.RelatedProducts(r.Context(), &usecase.RelatedProductsReq{ProductID: productID, TopK: topK})
	if err != nil {
		h.logError(err)
		WriteError(w, err)
		return
	}

	out := make([]RelatedProduct, len(res.Items))
	for i, it := range res.Items {
		out[i] = RelatedProduct{ProductID: it.ID}
	}

	WriteSuccess(w, http.StatusOK, out)
}

func (h *RecommendationHandler) logError(err error) {
	if code, _ := ToHTTPResponse(err); code >= http.StatusInternalServerError {
		h.logger.Errorf(err, "request failed")
		return
	}

	h.logger.Debugf("%s", err.Error())
}
