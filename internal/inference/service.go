package inference

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"verdict-engine/internal/calibration"
	"verdict-engine/internal/domain"
	"verdict-engine/internal/registry"
	"verdict-engine/internal/weights"
)

type bundleReader interface {
	Current() *registry.Loaded
}

type predictionLog interface {
	Enqueue(rec domain.PredictionRecord)
}

type featureWindow interface {
	Push(ctx context.Context, fv domain.FeatureVector) error
	StoreDecision(ctx context.Context, decision any) error
}

type recorder interface {
	RecordPrediction(action domain.Action)
	RecordCalibration(engine domain.EngineKind, calibrated float64)
	SetFallback(component string, fallback bool)
}

// Service is the serving facade behind the HTTP surface. It only reads the
// registry bundle; all persistence is asynchronous and best-effort, so a
// prediction response never waits on postgres or redis.
type Service struct {
	tracer   trace.Tracer
	registry bundleReader
	log      predictionLog
	window   featureWindow
	metrics  recorder
	now      func() time.Time
}

func NewService(tracer trace.Tracer, reg bundleReader, log predictionLog, window featureWindow, rec recorder, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		tracer:   tracer,
		registry: reg,
		log:      log,
		window:   window,
		metrics:  rec,
		now:      now,
	}
}

// Predict builds the vector, evaluates the meta model and fires the side
// effects: rolling window push, decision snapshot, async prediction log.
// With no bundle loaded it serves the neutral fallback decision.
func (s *Service) Predict(ctx context.Context, symbol string, raw map[string]float64) (domain.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "inference.predict")
	defer span.End()

	fv, err := domain.FeaturesFromMap(raw)
	if err != nil {
		return domain.Decision{}, err
	}

	cur := s.registry.Current()
	version := 0
	var decision domain.Decision
	if cur == nil {
		decision = domain.Decision{Probability: 0.5, ExpectedReturn: 0, Recommendation: domain.ActionSkip}
		s.metrics.SetFallback("meta", true)
	} else {
		version = cur.Version
		decision = cur.Meta.Predict(fv)
		s.metrics.SetFallback("meta", !cur.Meta.Fitted())
	}
	s.metrics.RecordPrediction(decision.Recommendation)

	if s.window != nil {
		if err := s.window.Push(ctx, fv); err == nil {
			_ = s.window.StoreDecision(ctx, decision)
		}
	}
	if s.log != nil {
		s.log.Enqueue(domain.PredictionRecord{
			Symbol:         symbol,
			Features:       fv,
			Probability:    decision.Probability,
			ExpectedReturn: decision.ExpectedReturn,
			Recommendation: decision.Recommendation,
			ModelVersion:   version,
			CreatedAt:      s.now().UTC(),
		})
	}
	return decision, nil
}

// Calibrate maps one raw engine confidence through the fitted curve.
// Engines without a curve answer identity, flagged as fallback.
func (s *Service) Calibrate(ctx context.Context, engine domain.EngineKind, raw float64) (calibration.Result, error) {
	_, span := s.tracer.Start(ctx, "inference.calibrate")
	defer span.End()

	res, err := s.calibrator().Calibrate(engine, raw)
	if err != nil {
		return calibration.Result{}, err
	}
	s.metrics.RecordCalibration(engine, res.Calibrated)
	s.metrics.SetFallback("calibrator_"+string(engine), !res.Curved)
	return res, nil
}

func (s *Service) CalibrateBatch(ctx context.Context, raws map[domain.EngineKind]float64) (map[domain.EngineKind]calibration.Result, error) {
	_, span := s.tracer.Start(ctx, "inference.calibrate-batch")
	defer span.End()

	out, err := s.calibrator().CalibrateBatch(raws)
	if err != nil {
		return nil, err
	}
	for engine, res := range out {
		s.metrics.RecordCalibration(engine, res.Calibrated)
		s.metrics.SetFallback("calibrator_"+string(engine), !res.Curved)
	}
	return out, nil
}

// EnsembleWeights answers the per-engine blend for one feature vector.
func (s *Service) EnsembleWeights(ctx context.Context, raw map[string]float64) (map[domain.EngineKind]float64, error) {
	_, span := s.tracer.Start(ctx, "inference.weights")
	defer span.End()

	fv, err := domain.FeaturesFromMap(raw)
	if err != nil {
		return nil, err
	}
	cur := s.registry.Current()
	if cur == nil || cur.Optimizer == nil {
		s.metrics.SetFallback("weights", true)
		return weights.Fallback(), nil
	}
	s.metrics.SetFallback("weights", !cur.Optimizer.Fitted())
	return cur.Optimizer.Weights(fv), nil
}

func (s *Service) calibrator() *calibration.Calibrator {
	if cur := s.registry.Current(); cur != nil {
		return cur.Calibrator
	}
	return nil
}

// Health reports the serving readiness. Serving is never "down" while the
// process lives; a missing or partial bundle degrades instead.
type Health struct {
	Status       string    `json:"status"`
	ModelVersion int       `json:"model_version"`
	LoadedAt     time.Time `json:"loaded_at"`
	Missing      []string  `json:"missing,omitempty"`
}

func (s *Service) Health() Health {
	cur := s.registry.Current()
	if cur == nil {
		return Health{Status: "degraded"}
	}
	status := "ok"
	if len(cur.Missing) > 0 {
		status = "degraded"
	}
	return Health{
		Status:       status,
		ModelVersion: cur.Version,
		LoadedAt:     cur.LoadedAt,
		Missing:      cur.Missing,
	}
}

// ModelStatus is one component's serving state.
type ModelStatus struct {
	Name     string `json:"name"`
	Loaded   bool   `json:"loaded"`
	Fallback bool   `json:"fallback"`
}

// ModelInfo is the /models answer: the active version with per-component
// presence, or an all-fallback listing when nothing is loaded.
type ModelInfo struct {
	Version   int           `json:"version"`
	TrainedAt time.Time     `json:"trained_at"`
	Models    []ModelStatus `json:"models"`
}

func (s *Service) ModelInfo() ModelInfo {
	cur := s.registry.Current()
	names := componentNames(cur)

	info := ModelInfo{Models: make([]ModelStatus, 0, len(names))}
	if cur != nil {
		info.Version = cur.Version
		info.TrainedAt = cur.Manifest.TrainedAt
	}
	for _, name := range names {
		loaded := cur.Has(name)
		info.Models = append(info.Models, ModelStatus{Name: name, Loaded: loaded, Fallback: !loaded})
	}
	return info
}

func componentNames(cur *registry.Loaded) []string {
	names := []string{"classifier", "regressor"}
	for _, kind := range domain.EngineKinds() {
		names = append(names, "calibrator_"+string(kind))
	}
	engines := make([]string, 0, 4)
	if cur != nil && len(cur.Manifest.WeightEngines) > 0 {
		engines = cur.Manifest.WeightEngines
	} else {
		for _, kind := range domain.EngineKinds() {
			engines = append(engines, string(kind))
		}
	}
	for _, engine := range engines {
		names = append(names, "weights_"+engine)
	}
	return append(names, "feature_stats")
}
