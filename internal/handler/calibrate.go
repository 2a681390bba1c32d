package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"verdict-engine/internal/domain"
)

type calibrateRequest struct {
	Engine        string  `json:"engine"`
	RawConfidence float64 `json:"raw_confidence"`
	// Accepted for interface compatibility with the analysis producer;
	// the fitted curves condition on raw confidence only.
	SignalStrength *float64 `json:"signal_strength,omitempty"`
	MarketRegime   string   `json:"market_regime,omitempty"`
}

type calibrateResponse struct {
	Engine               string                 `json:"engine"`
	CalibratedConfidence float64                `json:"calibrated_confidence"`
	ReliabilityTier      domain.ReliabilityTier `json:"reliability_tier"`
}

// Calibrate godoc
// @Summary      Calibrate one engine confidence
// @Description  Maps a raw engine confidence through the fitted monotonic curve; engines without a curve answer identity
// @Tags         inference
// @Accept       json
// @Produce      json
// @Param        request  body      calibrateRequest  true  "engine name and raw confidence"
// @Success      200      {object}  calibrateResponse
// @Failure      400      {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/v1/calibrate [post]
func (h *Handler) Calibrate(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.calibrate")
	defer span.End()

	var req calibrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	res, err := h.inference.Calibrate(ctx, domain.EngineKind(req.Engine), req.RawConfidence)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEngine) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, calibrateResponse{
		Engine:               req.Engine,
		CalibratedConfidence: res.Calibrated,
		ReliabilityTier:      res.Tier,
	})
}

type batchCalibrateRequest struct {
	Confidences  map[string]float64 `json:"confidences"`
	MarketRegime string             `json:"market_regime,omitempty"`
}

// CalibrateBatch godoc
// @Summary      Calibrate several engine confidences at once
// @Description  Calibrates each engine's raw confidence independently; one unknown engine name fails the whole batch
// @Tags         inference
// @Accept       json
// @Produce      json
// @Param        request  body      batchCalibrateRequest  true  "engine to raw confidence map"
// @Success      200      {object}  map[string]calibrateResponse
// @Failure      400      {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/v1/calibrate/batch [post]
func (h *Handler) CalibrateBatch(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.calibrate-batch")
	defer span.End()

	var req batchCalibrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Confidences) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confidences map is empty"})
		return
	}

	raws := make(map[domain.EngineKind]float64, len(req.Confidences))
	for name, raw := range req.Confidences {
		raws[domain.EngineKind(name)] = raw
	}

	results, err := h.inference.CalibrateBatch(ctx, raws)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEngine) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make(map[string]calibrateResponse, len(results))
	for engine, res := range results {
		out[string(engine)] = calibrateResponse{
			Engine:               string(engine),
			CalibratedConfidence: res.Calibrated,
			ReliabilityTier:      res.Tier,
		}
	}
	c.JSON(http.StatusOK, out)
}
