package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"verdict-engine/internal/domain"
)

type predictRequest struct {
	Symbol   string             `json:"symbol"`
	Features map[string]float64 `json:"features"`
}

// Predict godoc
// @Summary      Predict trade profitability
// @Description  Evaluates the meta-model over one named feature map and returns the calibrated decision
// @Tags         inference
// @Accept       json
// @Produce      json
// @Param        request  body      predictRequest  true  "feature map, missing names take their neutral default"
// @Success      200      {object}  domain.Decision
// @Failure      400      {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/v1/predict [post]
func (h *Handler) Predict(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.predict")
	defer span.End()

	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	decision, err := h.inference.Predict(ctx, req.Symbol, req.Features)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownFeature) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decision)
}
