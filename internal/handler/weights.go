package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"verdict-engine/internal/domain"
)

type weightsRequest struct {
	Features map[string]float64 `json:"features"`
}

// Weights godoc
// @Summary      Compute per-engine ensemble weights
// @Description  Evaluates the weight optimizer over one feature map; the four weights are non-negative and sum to 1
// @Tags         inference
// @Accept       json
// @Produce      json
// @Param        request  body      weightsRequest  true  "feature map"
// @Success      200      {object}  map[string]float64
// @Failure      400      {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/v1/weights [post]
func (h *Handler) Weights(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.weights")
	defer span.End()

	var req weightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	weights, err := h.inference.EnsembleWeights(ctx, req.Features)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownFeature) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make(map[string]float64, len(weights))
	for engine, w := range weights {
		out[string(engine)] = w
	}
	c.JSON(http.StatusOK, out)
}
