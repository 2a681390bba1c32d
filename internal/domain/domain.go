package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrUnknownEngine    = errors.New("unknown engine")
	ErrUnknownFeature   = errors.New("unknown feature")
	ErrModelNotLoaded   = errors.New("model not loaded")
	ErrInsufficientData = errors.New("insufficient data")
	ErrGateRejected     = errors.New("validation gate rejected candidate")
)

type EngineKind string

const (
	EngineTechnical    EngineKind = "technical"
	EngineFundamental  EngineKind = "fundamental"
	EngineQuantitative EngineKind = "quantitative"
	EngineSentiment    EngineKind = "sentiment"
)

// EngineKinds returns the four analysis engines in canonical order. The
// order is load-bearing: feature indices and weight sub-models follow it.
func EngineKinds() []EngineKind {
	return []EngineKind{EngineTechnical, EngineFundamental, EngineQuantitative, EngineSentiment}
}

func (e EngineKind) IsValid() bool {
	switch e {
	case EngineTechnical, EngineFundamental, EngineQuantitative, EngineSentiment:
		return true
	}
	return false
}

type SignalLabel string

const (
	SignalStrongBuy  SignalLabel = "STRONG_BUY"
	SignalBuy        SignalLabel = "BUY"
	SignalWeakBuy    SignalLabel = "WEAK_BUY"
	SignalNeutral    SignalLabel = "NEUTRAL"
	SignalWeakSell   SignalLabel = "WEAK_SELL"
	SignalSell       SignalLabel = "SELL"
	SignalStrongSell SignalLabel = "STRONG_SELL"
)

// NormalizeSignal folds case and separator variants onto the canonical
// label form ("strong buy", "Strong-Buy" -> STRONG_BUY).
func NormalizeSignal(raw string) SignalLabel {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = strings.ReplaceAll(v, " ", "_")
	v = strings.ReplaceAll(v, "-", "_")
	return SignalLabel(v)
}

// Score maps a label onto the fixed 7-point strength scale. Unknown labels
// score 0, same as an absent engine.
func (s SignalLabel) Score() float64 {
	switch NormalizeSignal(string(s)) {
	case SignalStrongBuy:
		return 100
	case SignalBuy:
		return 60
	case SignalWeakBuy:
		return 30
	case SignalNeutral:
		return 0
	case SignalWeakSell:
		return -30
	case SignalSell:
		return -60
	case SignalStrongSell:
		return -100
	}
	return 0
}

type MarketRegime int

const (
	RegimeLowVol  MarketRegime = -1
	RegimeNormal  MarketRegime = 0
	RegimeHighVol MarketRegime = 1
)

// ParseRegime maps a regime tag onto {-1, 0, 1}. Unknown or empty tags are
// treated as normal.
func ParseRegime(raw string) MarketRegime {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low_vol", "low_volatility":
		return RegimeLowVol
	case "high_vol", "high_volatility":
		return RegimeHighVol
	}
	return RegimeNormal
}

// EngineOutput is one engine's contribution to an analysis result.
type EngineOutput struct {
	Signal     SignalLabel        `json:"signal"`
	Confidence float64            `json:"confidence"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// AnalysisResult is the multi-engine verdict for one symbol as emitted by
// the upstream analysis producer.
type AnalysisResult struct {
	Symbol  string                      `json:"symbol"`
	Regime  string                      `json:"market_regime,omitempty"`
	Engines map[EngineKind]EngineOutput `json:"engines"`
	At      time.Time                   `json:"at,omitempty"`
}

const FeatureCount = 23

// FeatureVector is the fixed-order value object every model consumes.
// Names and neutral defaults are frozen; changing either invalidates all
// trained artifacts.
type FeatureVector [FeatureCount]float64

var featureNames = [FeatureCount]string{
	"technical_score", "fundamental_score", "quantitative_score", "sentiment_score",
	"technical_confidence", "fundamental_confidence", "quantitative_confidence", "sentiment_confidence",
	"market_regime", "inter_engine_agreement",
	"rsi", "macd_histogram", "trend_strength", "volume_ratio",
	"pe_ratio", "revenue_growth", "profit_margin", "debt_to_equity",
	"beta", "volatility", "sharpe_ratio",
	"news_sentiment", "social_buzz",
}

var neutralDefaults = FeatureVector{
	10: 50,  // rsi
	12: 25,  // trend_strength
	13: 1,   // volume_ratio
	14: 20,  // pe_ratio
	17: 1,   // debt_to_equity
	18: 1,   // beta
	19: 0.2, // volatility
}

var featureIndex = func() map[string]int {
	m := make(map[string]int, FeatureCount)
	for i, n := range featureNames {
		m[n] = i
	}
	return m
}()

func FeatureNames() []string {
	out := make([]string, FeatureCount)
	copy(out, featureNames[:])
	return out
}

func FeatureIndex(name string) (int, bool) {
	i, ok := featureIndex[name]
	return i, ok
}

func NeutralFeatures() FeatureVector {
	return neutralDefaults
}

// FeaturesFromMap builds a vector from named values. Missing names take
// their neutral default, non-finite values are dropped in favor of it, and
// an unknown name is a client error.
func FeaturesFromMap(values map[string]float64) (FeatureVector, error) {
	fv := neutralDefaults
	for name, v := range values {
		i, ok := featureIndex[name]
		if !ok {
			return FeatureVector{}, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		fv[i] = v
	}
	return fv, nil
}

func (f FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, FeatureCount)
	for i, n := range featureNames {
		m[n] = f[i]
	}
	return m
}

func (f FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureCount)
	copy(out, f[:])
	return out
}

func (f FeatureVector) IsZero() bool {
	for _, v := range f {
		if v != 0 {
			return false
		}
	}
	return true
}

func (f FeatureVector) Finite() bool {
	for _, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// StrategyPosterior is one Beta-Bernoulli posterior over a strategy's win
// rate. Alpha and Beta stay strictly positive for the life of the strategy,
// so WinRate stays inside (0,1).
type StrategyPosterior struct {
	Name         string    `json:"name"`
	Alpha        float64   `json:"alpha"`
	Beta         float64   `json:"beta"`
	TotalSamples int64     `json:"total_samples"`
	WinRate      float64   `json:"win_rate"`
	LastUpdated  time.Time `json:"last_updated"`
}

func (p StrategyPosterior) Mean() float64 {
	return p.Alpha / (p.Alpha + p.Beta)
}

type Action string

const (
	ActionExecute Action = "EXECUTE"
	ActionSkip    Action = "SKIP"
)

// Decision is the meta-model verdict for one feature vector.
type Decision struct {
	Probability    float64 `json:"probability"`
	ExpectedReturn float64 `json:"expected_return"`
	Recommendation Action  `json:"recommendation"`
}

type ReliabilityTier string

const (
	TierHigh     ReliabilityTier = "high"
	TierModerate ReliabilityTier = "moderate"
	TierLow      ReliabilityTier = "low"
	TierVeryLow  ReliabilityTier = "very_low"
)

// TierFor buckets a calibrated probability into a reliability tier using
// the fixed 0.8/0.6/0.4 cut points.
func TierFor(p float64) ReliabilityTier {
	switch {
	case p >= 0.8:
		return TierHigh
	case p >= 0.6:
		return TierModerate
	case p >= 0.4:
		return TierLow
	}
	return TierVeryLow
}

const (
	SourceSnapshot = "snapshot"
	SourceBacktest = "backtest"
	SourceBars     = "bars"
)

// TrainingSample is one pooled historical observation. Outcome is 1 when
// the trade was profitable, 0 otherwise; ReturnPct is the realized return
// in percent.
type TrainingSample struct {
	Features  FeatureVector `json:"features"`
	Outcome   int           `json:"outcome"`
	ReturnPct float64       `json:"return_pct"`
	Source    string        `json:"source"`
	At        time.Time     `json:"at"`
}

type DriftStatus string

const (
	DriftStable       DriftStatus = "stable"
	DriftModerate     DriftStatus = "moderate_drift"
	DriftSignificant  DriftStatus = "significant_drift"
	DriftInsufficient DriftStatus = "insufficient_data"
)

type AggregateDrift string

const (
	AggregateStable  AggregateDrift = "stable"
	AggregateMonitor AggregateDrift = "monitor"
	AggregateRetrain AggregateDrift = "retrain_recommended"
)

type FeatureDrift struct {
	Feature   string      `json:"feature"`
	PSI       float64     `json:"psi"`
	Status    DriftStatus `json:"status"`
	MeanShift float64     `json:"mean_shift"`
}

type DriftReport struct {
	Features    []FeatureDrift `json:"features"`
	Aggregate   AggregateDrift `json:"aggregate"`
	RecentCount int            `json:"recent_count"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
}

// FeatureStats is the training-time distribution snapshot for one feature.
// Sample holds a capped raw sample so PSI can re-bin against live traffic.
type FeatureStats struct {
	Mean      float64   `json:"mean"`
	Std       float64   `json:"std"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Quantiles []float64 `json:"quantiles"`
	Sample    []float64 `json:"sample"`
}

// PredictionRecord is one logged serving decision, resolved later by the
// outcome stream.
type PredictionRecord struct {
	ID             int64
	Symbol         string
	Features       FeatureVector
	Probability    float64
	ExpectedReturn float64
	Recommendation Action
	ModelVersion   int
	CreatedAt      time.Time
	ResolvedAt     *time.Time
	Outcome        *int
	RealizedReturn *float64
}

// OutcomeEvent is one trade-completion message from the outcome stream.
// PredictionID is optional: producers that tracked the logged decision id
// resolve the prediction record, all others only move the posterior.
type OutcomeEvent struct {
	Strategy     string    `json:"strategy"`
	Outcome      int       `json:"outcome"`
	PnL          *float64  `json:"pnl,omitempty"`
	PredictionID *int64    `json:"prediction_id,omitempty"`
	ClosedAt     time.Time `json:"closed_at"`
}
