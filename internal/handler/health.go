package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Serving health
// @Description  Always 200 while the process lives; a missing or partial artifact bundle reports status degraded
// @Tags         health
// @Produce      json
// @Success      200  {object}  inference.Health
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.inference.Health())
}

// Models godoc
// @Summary      Active model inventory
// @Description  Per-component loaded/fallback state of the active artifact bundle with its training date
// @Tags         models
// @Produce      json
// @Success      200  {object}  inference.ModelInfo
// @Security     ApiKeyAuth
// @Router       /api/v1/models [get]
func (h *Handler) Models(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.models")
	defer span.End()

	c.JSON(http.StatusOK, h.inference.ModelInfo())
}

// ReloadModels godoc
// @Summary      Reload the active artifact bundle
// @Description  Re-resolves the ACTIVE pointer and swaps the bundle in atomically, picking up trainer promotions without a restart
// @Tags         models
// @Produce      json
// @Success      200  {object}  inference.ModelInfo
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/v1/models/reload [post]
func (h *Handler) ReloadModels(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.reload-models")
	defer span.End()

	if h.reloader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model registry unavailable"})
		return
	}
	if err := h.reloader.Reload(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.inference.ModelInfo())
}
