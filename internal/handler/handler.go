package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"verdict-engine/internal/bayes"
	"verdict-engine/internal/calibration"
	"verdict-engine/internal/domain"
	"verdict-engine/internal/inference"
)

// InferenceService is the serving facade the HTTP layer fronts.
type InferenceService interface {
	Predict(ctx context.Context, symbol string, features map[string]float64) (domain.Decision, error)
	Calibrate(ctx context.Context, engine domain.EngineKind, raw float64) (calibration.Result, error)
	CalibrateBatch(ctx context.Context, raws map[domain.EngineKind]float64) (map[domain.EngineKind]calibration.Result, error)
	EnsembleWeights(ctx context.Context, features map[string]float64) (map[domain.EngineKind]float64, error)
	Health() inference.Health
	ModelInfo() inference.ModelInfo
}

// StrategyEngine is the posterior side of the API.
type StrategyEngine interface {
	Update(name string, outcome int, pnl *float64) domain.StrategyPosterior
	Weights(normalize bool) map[string]float64
	ThompsonSample(candidates []string, n int) []string
	CredibleIntervals(credibility float64) map[string][2]float64
	Recommendation(name string) bayes.Recommendation
}

// ModelReloader re-resolves the ACTIVE artifact pointer, picking up
// promotions made since startup.
type ModelReloader interface {
	Reload() error
}

type Handler struct {
	tracer    trace.Tracer
	inference InferenceService
	bayes     StrategyEngine
	reloader  ModelReloader
}

func New(tracer trace.Tracer, inf InferenceService, strategies StrategyEngine, reloader ModelReloader) *Handler {
	return &Handler{
		tracer:    tracer,
		inference: inf,
		bayes:     strategies,
		reloader:  reloader,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1", APIKeyAuth(apiKey))
	api.POST("/predict", h.Predict)
	api.POST("/calibrate", h.Calibrate)
	api.POST("/calibrate/batch", h.CalibrateBatch)
	api.POST("/weights", h.Weights)
	api.POST("/bayesian/update", h.BayesianUpdate)
	api.GET("/bayesian/weights", h.BayesianWeights)
	api.POST("/bayesian/sample", h.ThompsonSample)
	api.GET("/bayesian/intervals", h.CredibleIntervals)
	api.GET("/bayesian/recommendation/:strategy", h.StrategyRecommendation)
	api.GET("/models", h.Models)
	api.POST("/models/reload", h.ReloadModels)
}
