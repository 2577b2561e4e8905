// Package metrics содержит Prometheus-метрики сервиса рекомендаций.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Пути ранжирования
const (
	PathRecommend = "recommend"
	PathRelated   = "related"
)

var (
	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "route"},
	)

	// Ранжирование
	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommender_retrieval_duration_seconds",
			Help:    "Time spent scoring and selecting top-k candidates",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"path"},
	)

	RetrievalNotFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_retrieval_not_found_total",
			Help: "Requests for unknown users or products",
		},
		[]string{"path"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_cache_hits_total",
			Help: "Total number of recommendation cache hits",
		},
		[]string{"path"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_cache_misses_total",
			Help: "Total number of recommendation cache misses",
		},
		[]string{"path"},
	)

	// Артефакты модели
	ModelReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_model_reloads_total",
			Help: "Model reload attempts by result",
		},
		[]string{"result"},
	)

	ModelLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommender_model_load_duration_seconds",
			Help:    "Duration of a full artifact load",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	ModelLoadedAt = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_model_loaded_timestamp_seconds",
			Help: "Unix time of the currently serving model load",
		},
	)

	ModelProducts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recommender_model_products",
			Help: "Number of products in the serving model",
		},
		[]string{"path"},
	)

	ModelUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_model_users",
			Help: "Number of known users in the serving model",
		},
	)

	// Outbox и Kafka
	OutboxPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_outbox_published_total",
			Help: "Outbox events published to Kafka",
		},
	)

	OutboxFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_outbox_failures_total",
			Help: "Outbox publish failures by kind",
		},
		[]string{"kind"},
	)

	ArtifactEventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_artifact_events_consumed_total",
			Help: "Artifact events read from Kafka by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordAPIRequest записывает метрику HTTP-запроса.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordRetrieval(path string, duration time.Duration) {
	RetrievalDuration.WithLabelValues(path).Observe(duration.Seconds())
}

func RecordCache(path string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(path).Inc()
		return
	}
	CacheMisses.WithLabelValues(path).Inc()
}

// RecordReload записывает итог перезагрузки модели.
func RecordReload(duration time.Duration, err error) {
	if err != nil {
		ModelReloads.WithLabelValues("error").Inc()
		return
	}

	ModelReloads.WithLabelValues("success").Inc()
	ModelLoadDuration.Observe(duration.Seconds())
}

// SetModel обновляет gauge'и текущей модели.
func SetModel(loadedAt time.Time, users, products, similarityProducts int) {
	ModelLoadedAt.Set(float64(loadedAt.Unix()))
	ModelUsers.Set(float64(users))
	ModelProducts.WithLabelValues(PathRecommend).Set(float64(products))
	ModelProducts.WithLabelValues(PathRelated).Set(float64(similarityProducts))
}
