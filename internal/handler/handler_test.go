package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace/noop"

	"verdict-engine/internal/bayes"
	"verdict-engine/internal/calibration"
	"verdict-engine/internal/domain"
	"verdict-engine/internal/inference"
)

type stubInference struct {
	decision    domain.Decision
	predictErr  error
	calResult   calibration.Result
	calErr      error
	weights     map[domain.EngineKind]float64
	weightsErr  error
	health      inference.Health
	info        inference.ModelInfo
	lastSymbol  string
	lastFeats   map[string]float64
	lastEngine  domain.EngineKind
	lastRaw     float64
	lastBatch   map[domain.EngineKind]float64
}

func (s *stubInference) Predict(_ context.Context, symbol string, features map[string]float64) (domain.Decision, error) {
	s.lastSymbol = symbol
	s.lastFeats = features
	return s.decision, s.predictErr
}

func (s *stubInference) Calibrate(_ context.Context, engine domain.EngineKind, raw float64) (calibration.Result, error) {
	s.lastEngine = engine
	s.lastRaw = raw
	return s.calResult, s.calErr
}

func (s *stubInference) CalibrateBatch(_ context.Context, raws map[domain.EngineKind]float64) (map[domain.EngineKind]calibration.Result, error) {
	s.lastBatch = raws
	if s.calErr != nil {
		return nil, s.calErr
	}
	out := make(map[domain.EngineKind]calibration.Result, len(raws))
	for engine := range raws {
		out[engine] = s.calResult
	}
	return out, nil
}

func (s *stubInference) EnsembleWeights(_ context.Context, features map[string]float64) (map[domain.EngineKind]float64, error) {
	s.lastFeats = features
	return s.weights, s.weightsErr
}

func (s *stubInference) Health() inference.Health       { return s.health }
func (s *stubInference) ModelInfo() inference.ModelInfo { return s.info }

type stubBayes struct {
	posterior    domain.StrategyPosterior
	weights      map[string]float64
	selected     []string
	intervals    map[string][2]float64
	rec          bayes.Recommendation
	lastStrategy string
	lastOutcome  int
	lastPnL      *float64
	lastNorm     bool
	lastN        int
}

func (s *stubBayes) Update(name string, outcome int, pnl *float64) domain.StrategyPosterior {
	s.lastStrategy = name
	s.lastOutcome = outcome
	s.lastPnL = pnl
	return s.posterior
}

func (s *stubBayes) Weights(normalize bool) map[string]float64 {
	s.lastNorm = normalize
	return s.weights
}

func (s *stubBayes) ThompsonSample(candidates []string, n int) []string {
	s.lastN = n
	return s.selected
}

func (s *stubBayes) CredibleIntervals(float64) map[string][2]float64 { return s.intervals }
func (s *stubBayes) Recommendation(name string) bayes.Recommendation {
	s.lastStrategy = name
	return s.rec
}

type stubReloader struct {
	err   error
	calls int
}

func (s *stubReloader) Reload() error {
	s.calls++
	return s.err
}

func newTestRouter(inf *stubInference, strategies *stubBayes, reloader ModelReloader, apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(noop.NewTracerProvider().Tracer("handler-test"), inf, strategies, reloader)
	r := gin.New()
	h.RegisterRoutes(r, apiKey)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAPIKeyMiddleware(t *testing.T) {
	inf := &stubInference{weights: map[domain.EngineKind]float64{domain.EngineTechnical: 1}}
	r := newTestRouter(inf, &stubBayes{}, nil, "sekrit")

	w := doJSON(t, r, http.MethodPost, "/api/v1/weights", weightsRequest{}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/weights", weightsRequest{}, map[string]string{"X-API-Key": "wrong"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong key, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/weights", weightsRequest{}, map[string]string{"X-API-Key": "sekrit"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct key, got %d", w.Code)
	}
}

func TestHealthSkipsAuth(t *testing.T) {
	inf := &stubInference{health: inference.Health{Status: "degraded"}}
	r := newTestRouter(inf, &stubBayes{}, nil, "sekrit")

	w := doJSON(t, r, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body inference.Health
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "degraded" {
		t.Fatalf("expected degraded status, got %q", body.Status)
	}
}

func TestModelsReportsInventory(t *testing.T) {
	trained := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	inf := &stubInference{info: inference.ModelInfo{
		Version:   7,
		TrainedAt: trained,
		Models:    []inference.ModelStatus{{Name: "classifier", Loaded: true}},
	}}
	r := newTestRouter(inf, &stubBayes{}, nil, "")

	w := doJSON(t, r, http.MethodGet, "/api/v1/models", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var info inference.ModelInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode model info: %v", err)
	}
	if info.Version != 7 || !info.TrainedAt.Equal(trained) || len(info.Models) != 1 {
		t.Fatalf("unexpected model info: %+v", info)
	}
}

func TestReloadModels(t *testing.T) {
	reloader := &stubReloader{}
	r := newTestRouter(&stubInference{}, &stubBayes{}, reloader, "")

	w := doJSON(t, r, http.MethodPost, "/api/v1/models/reload", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if reloader.calls != 1 {
		t.Fatalf("expected one reload call, got %d", reloader.calls)
	}
}

func TestReloadModelsWithoutRegistry(t *testing.T) {
	r := newTestRouter(&stubInference{}, &stubBayes{}, nil, "")

	w := doJSON(t, r, http.MethodPost, "/api/v1/models/reload", nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
