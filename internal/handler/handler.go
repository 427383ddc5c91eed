package handler

import (
	"context"
	"net/http"

	"newsdroid/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type LatestReader interface {
	Latest(ctx context.Context, coin string) (domain.Report, bool, error)
}

type Runner interface {
	RunNow(ctx context.Context, coin string) (domain.Report, error)
	Coins() []string
}

type Handler struct {
	tracer  trace.Tracer
	latest  LatestReader
	runner  Runner
	metrics http.Handler
}

func New(tracer trace.Tracer, latest LatestReader, runner Runner, metrics http.Handler) *Handler {
	return &Handler{
		tracer:  tracer,
		latest:  latest,
		runner:  runner,
		metrics: metrics,
	}
}

// RegisterRoutes mounts the public routes and the X-API-Key protected signal API.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.GET("/signals", h.ListCoins)
	api.GET("/signals/:coin", h.GetSignal)
	api.POST("/signals/:coin/run", h.RunSignal)
}
