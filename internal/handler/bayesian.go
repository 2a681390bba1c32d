package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type bayesianUpdateRequest struct {
	Strategy string   `json:"strategy"`
	Outcome  *int     `json:"outcome"`
	PnL      *float64 `json:"pnl,omitempty"`
}

// BayesianUpdate godoc
// @Summary      Record one strategy outcome
// @Description  Decays the strategy posterior toward the prior and folds in the win or loss, returning the updated snapshot
// @Tags         bayesian
// @Accept       json
// @Produce      json
// @Param        request  body      bayesianUpdateRequest  true  "strategy name, outcome 0 or 1, optional pnl"
// @Success      200      {object}  domain.StrategyPosterior
// @Failure      400      {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/v1/bayesian/update [post]
func (h *Handler) BayesianUpdate(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.bayesian-update")
	defer span.End()

	var req bayesianUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Strategy) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "strategy is required"})
		return
	}
	if req.Outcome == nil || (*req.Outcome != 0 && *req.Outcome != 1) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "outcome must be 0 or 1"})
		return
	}

	posterior := h.bayes.Update(strings.TrimSpace(req.Strategy), *req.Outcome, req.PnL)
	c.JSON(http.StatusOK, posterior)
}

// BayesianWeights godoc
// @Summary      Strategy trust weights
// @Description  Win rate per strategy, neutral 0.5 below the sample minimum; normalize=true rescales to sum to 1
// @Tags         bayesian
// @Produce      json
// @Param        normalize  query     bool  false  "rescale weights to sum to 1"
// @Success      200        {object}  map[string]float64
// @Security     ApiKeyAuth
// @Router       /api/v1/bayesian/weights [get]
func (h *Handler) BayesianWeights(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.bayesian-weights")
	defer span.End()

	normalize, _ := strconv.ParseBool(c.DefaultQuery("normalize", "false"))
	c.JSON(http.StatusOK, h.bayes.Weights(normalize))
}

type thompsonRequest struct {
	Strategies []string `json:"strategies"`
	N          int      `json:"n"`
}

// ThompsonSample godoc
// @Summary      Thompson-sampling strategy selection
// @Description  Draws once from each candidate posterior and returns the top n; an exploration draw returns uniform picks instead
// @Tags         bayesian
// @Accept       json
// @Produce      json
// @Param        request  body      thompsonRequest  true  "candidate strategies and selection count"
// @Success      200      {object}  map[string][]string
// @Failure      400      {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/v1/bayesian/sample [post]
func (h *Handler) ThompsonSample(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.thompson-sample")
	defer span.End()

	var req thompsonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Strategies) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "strategies list is empty"})
		return
	}
	if req.N <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "n must be positive"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"selected": h.bayes.ThompsonSample(req.Strategies, req.N)})
}

// CredibleIntervals godoc
// @Summary      Per-strategy credible intervals
// @Description  Central credible interval per known strategy at the requested credibility (default 0.95)
// @Tags         bayesian
// @Produce      json
// @Param        credibility  query     number  false  "interval mass in (0,1)"
// @Success      200          {object}  map[string][]float64
// @Security     ApiKeyAuth
// @Router       /api/v1/bayesian/intervals [get]
func (h *Handler) CredibleIntervals(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.credible-intervals")
	defer span.End()

	credibility := 0.95
	if v := c.Query("credibility"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 || parsed >= 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "credibility must be in (0,1)"})
			return
		}
		credibility = parsed
	}

	intervals := h.bayes.CredibleIntervals(credibility)
	out := make(map[string][2]float64, len(intervals))
	for name, bounds := range intervals {
		out[name] = bounds
	}
	c.JSON(http.StatusOK, out)
}

// StrategyRecommendation godoc
// @Summary      Use-or-skip verdict for one strategy
// @Description  Bootstrap strategies stay usable with low confidence; established ones require the lower 95% bound to clear 0.5
// @Tags         bayesian
// @Produce      json
// @Param        strategy  path      string  true  "strategy name"
// @Success      200       {object}  bayes.Recommendation
// @Security     ApiKeyAuth
// @Router       /api/v1/bayesian/recommendation/{strategy} [get]
func (h *Handler) StrategyRecommendation(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.strategy-recommendation")
	defer span.End()

	name := strings.TrimSpace(c.Param("strategy"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "strategy is required"})
		return
	}
	c.JSON(http.StatusOK, h.bayes.Recommendation(name))
}
