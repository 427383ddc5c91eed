package handler

import (
	"errors"
	"net/http"
	"strings"

	"newsdroid/internal/job"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ListCoins godoc
// @Summary      Tracked coins
// @Tags         signals
// @Produce      json
// @Success      200  {object}  map[string][]string
// @Router       /api/signals [get]
func (h *Handler) ListCoins(c *gin.Context) {
	coins := []string{}
	if h.runner != nil {
		coins = h.runner.Coins()
	}
	c.JSON(http.StatusOK, gin.H{"coins": coins})
}

// GetSignal godoc
// @Summary      Latest signal for a coin
// @Description  Returns the most recent cached report. Reports expire after the cache TTL.
// @Tags         signals
// @Produce      json
// @Param        coin  path  string  true  "Coin name, e.g. Bitcoin"
// @Success      200  {object}  domain.Report
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/signals/{coin} [get]
func (h *Handler) GetSignal(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-signal")
	defer span.End()

	coin := strings.TrimSpace(c.Param("coin"))
	span.SetAttributes(attribute.String("signal.coin", coin))

	if h.latest == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal cache unavailable"})
		return
	}
	report, ok, err := h.latest.Latest(ctx, coin)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal cache unavailable"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no recent signal for " + coin})
		return
	}
	c.JSON(http.StatusOK, report)
}

// RunSignal godoc
// @Summary      Evaluate a coin now
// @Description  Runs the pipeline synchronously and publishes the report.
// @Tags         signals
// @Produce      json
// @Param        coin  path  string  true  "Coin name"
// @Success      200  {object}  domain.Report
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/signals/{coin}/run [post]
func (h *Handler) RunSignal(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.run-signal")
	defer span.End()

	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal runner unavailable"})
		return
	}
	coin := strings.TrimSpace(c.Param("coin"))
	span.SetAttributes(attribute.String("signal.coin", coin))

	report, err := h.runner.RunNow(ctx, coin)
	switch {
	case errors.Is(err, job.ErrUnknownCoin):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, job.ErrInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, report)
	}
}
