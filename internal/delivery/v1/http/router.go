package http

import (
	_ "github.com/DRSN-tech/go-recommender/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(recUC usecase.RecommendationUC, defaults Defaults, corsOrigins []string) {
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RealIP)
	r.router.Use(middleware.Recoverer)
	r.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.router.Use(Metrics)

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // ссылка на JSON
	))
	r.router.Handle("/metrics", promhttp.Handler())

	recHandler := NewRecommendationHandler(recUC, defaults, r.logger)
	registerRecommendationRoutes(r.router, recHandler)

	adminHandler := NewAdminHandler(recUC, r.logger)
	r.router.Get("/healthz", adminHandler.healthz)

	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerRecommendationRoutes(v1, recHandler)
		registerAdminRoutes(v1, adminHandler)
	})
}

// Пути без префикса совпадают с исходным API, /api/v1 - с остальными сервисами.
func registerRecommendationRoutes(router chi.Router, h *RecommendationHandler) {
	router.Get("/recommend", h.recommend)
	router.Get("/related-products", h.relatedProducts)
}

func registerAdminRoutes(router chi.Router, h *AdminHandler) {
	router.Route("/admin", func(admin chi.Router) {
		admin.Post("/reload", h.reload)
		admin.Get("/status", h.status)
	})
}
