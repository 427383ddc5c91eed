package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Returns the health status of the service
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	coins := 0
	if h.runner != nil {
		coins = len(h.runner.Coins())
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "coins": coins})
}
