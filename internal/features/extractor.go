package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"verdict-engine/internal/domain"
)

// metricBase is the first vector slot fed from engine metric bags. Slots
// below it (scores, confidences, regime, agreement) are derived here and
// cannot be overridden by upstream metrics.
const metricBase = 10

// Extractor maps one multi-engine analysis result onto the canonical
// 23-feature vector. It is pure and deterministic, and it is the single
// code path shared by training-set assembly and live serving.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (x *Extractor) Extract(res domain.AnalysisResult) domain.FeatureVector {
	fv := domain.NeutralFeatures()

	active := make([]float64, 0, 4)
	for i, kind := range domain.EngineKinds() {
		out, ok := res.Engines[kind]
		if !ok {
			fv[i] = 0
			fv[4+i] = 0
			continue
		}
		score := out.Signal.Score()
		fv[i] = score
		fv[4+i] = clamp01(finiteOr(out.Confidence, 0))
		if score != 0 {
			active = append(active, score)
		}
	}

	fv[8] = float64(domain.ParseRegime(res.Regime))
	fv[9] = agreement(active)

	for _, kind := range domain.EngineKinds() {
		out, ok := res.Engines[kind]
		if !ok {
			continue
		}
		for name, v := range out.Metrics {
			i, known := domain.FeatureIndex(name)
			if !known || i < metricBase {
				continue
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			fv[i] = v
		}
	}

	return fv
}

// agreement is the population standard deviation of the active (nonzero)
// engine scores. Fewer than two active engines means there is no
// disagreement to measure.
func agreement(scores []float64) float64 {
	if len(scores) < 2 {
		return 0
	}
	return stat.PopStdDev(scores, nil)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
