package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"verdict-engine/internal/bayes"
	"verdict-engine/internal/domain"
)

func TestBayesianUpdate(t *testing.T) {
	sb := &stubBayes{posterior: domain.StrategyPosterior{
		Name:         "momentum",
		Alpha:        3,
		Beta:         2,
		TotalSamples: 3,
		WinRate:      0.6,
		LastUpdated:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
	r := newTestRouter(&stubInference{}, sb, nil, "")

	outcome := 1
	pnl := 2.5
	w := doJSON(t, r, http.MethodPost, "/api/v1/bayesian/update", bayesianUpdateRequest{
		Strategy: "momentum",
		Outcome:  &outcome,
		PnL:      &pnl,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var posterior domain.StrategyPosterior
	if err := json.Unmarshal(w.Body.Bytes(), &posterior); err != nil {
		t.Fatalf("decode posterior: %v", err)
	}
	if posterior.Name != "momentum" || posterior.WinRate != 0.6 {
		t.Fatalf("unexpected posterior: %+v", posterior)
	}
	if sb.lastStrategy != "momentum" || sb.lastOutcome != 1 || sb.lastPnL == nil || *sb.lastPnL != 2.5 {
		t.Fatalf("update not forwarded: %q %d %v", sb.lastStrategy, sb.lastOutcome, sb.lastPnL)
	}
}

func TestBayesianUpdateValidation(t *testing.T) {
	r := newTestRouter(&stubInference{}, &stubBayes{}, nil, "")

	two := 2
	cases := []struct {
		name string
		req  bayesianUpdateRequest
	}{
		{"missing strategy", bayesianUpdateRequest{Outcome: &two}},
		{"missing outcome", bayesianUpdateRequest{Strategy: "momentum"}},
		{"outcome out of range", bayesianUpdateRequest{Strategy: "momentum", Outcome: &two}},
	}
	for _, tc := range cases {
		w := doJSON(t, r, http.MethodPost, "/api/v1/bayesian/update", tc.req, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}
}

func TestBayesianWeightsNormalizeFlag(t *testing.T) {
	sb := &stubBayes{weights: map[string]float64{"a": 0.5, "b": 0.5}}
	r := newTestRouter(&stubInference{}, sb, nil, "")

	w := doJSON(t, r, http.MethodGet, "/api/v1/bayesian/weights?normalize=true", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !sb.lastNorm {
		t.Fatal("expected normalize flag forwarded")
	}

	var out map[string]float64
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode weights: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("unexpected weights: %v", out)
	}
}

func TestThompsonSample(t *testing.T) {
	sb := &stubBayes{selected: []string{"momentum", "meanrev"}}
	r := newTestRouter(&stubInference{}, sb, nil, "")

	w := doJSON(t, r, http.MethodPost, "/api/v1/bayesian/sample", thompsonRequest{
		Strategies: []string{"momentum", "meanrev", "breakout"},
		N:          2,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var out struct {
		Selected []string `json:"selected"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode selection: %v", err)
	}
	if len(out.Selected) != 2 || sb.lastN != 2 {
		t.Fatalf("unexpected selection: %v (n=%d)", out.Selected, sb.lastN)
	}
}

func TestThompsonSampleValidation(t *testing.T) {
	r := newTestRouter(&stubInference{}, &stubBayes{}, nil, "")

	w := doJSON(t, r, http.MethodPost, "/api/v1/bayesian/sample", thompsonRequest{N: 2}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty strategies, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, "/api/v1/bayesian/sample", thompsonRequest{
		Strategies: []string{"momentum"},
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-positive n, got %d", w.Code)
	}
}

func TestCredibleIntervals(t *testing.T) {
	sb := &stubBayes{intervals: map[string][2]float64{"momentum": {0.4, 0.8}}}
	r := newTestRouter(&stubInference{}, sb, nil, "")

	w := doJSON(t, r, http.MethodGet, "/api/v1/bayesian/intervals?credibility=0.9", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var out map[string][2]float64
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode intervals: %v", err)
	}
	if got := out["momentum"]; got[0] != 0.4 || got[1] != 0.8 {
		t.Fatalf("unexpected interval: %v", got)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/bayesian/intervals?credibility=1.5", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range credibility, got %d", w.Code)
	}
}

func TestStrategyRecommendation(t *testing.T) {
	sb := &stubBayes{rec: bayes.Recommendation{
		Strategy:   "momentum",
		Use:        true,
		Confidence: 0.7,
		Reason:     "win rate 0.640, 95% credible interval [0.520, 0.740]",
	}}
	r := newTestRouter(&stubInference{}, sb, nil, "")

	w := doJSON(t, r, http.MethodGet, "/api/v1/bayesian/recommendation/momentum", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var rec bayes.Recommendation
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode recommendation: %v", err)
	}
	if !rec.Use || rec.Strategy != "momentum" || sb.lastStrategy != "momentum" {
		t.Fatalf("unexpected recommendation: %+v", rec)
	}
}
