package weights

import (
	"errors"
	"fmt"
	"math"

	"verdict-engine/internal/domain"
	"verdict-engine/internal/models/gbrt"
)

// MultiOutputRegressor presents N independent sub-models as one model
// with N named outputs, so callers never care how many trees sit behind
// the weight vector.
type MultiOutputRegressor struct {
	outputs []string
	models  []*gbrt.Model
}

func NewMultiOutputRegressor(outputs []string, models []*gbrt.Model) (*MultiOutputRegressor, error) {
	if len(outputs) == 0 || len(outputs) != len(models) {
		return nil, errors.New("outputs and sub-models must align")
	}
	return &MultiOutputRegressor{
		outputs: append([]string(nil), outputs...),
		models:  append([]*gbrt.Model(nil), models...),
	}, nil
}

// TrainMultiOutput fits one boosted regressor per target column.
func TrainMultiOutput(samples [][]float64, targets [][]float64, outputs, featureNames []string, opts gbrt.TrainOptions) (*MultiOutputRegressor, error) {
	if len(samples) == 0 || len(samples) != len(targets) {
		return nil, errors.New("invalid training dataset")
	}
	if len(outputs) == 0 {
		return nil, errors.New("no outputs declared")
	}
	for i := range targets {
		if len(targets[i]) != len(outputs) {
			return nil, fmt.Errorf("target row %d has %d values, want %d", i, len(targets[i]), len(outputs))
		}
	}

	models := make([]*gbrt.Model, len(outputs))
	column := make([]float64, len(samples))
	for j := range outputs {
		for i := range targets {
			column[i] = targets[i][j]
		}
		m, err := gbrt.Train(samples, column, featureNames, opts)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", outputs[j], err)
		}
		models[j] = m
	}
	return NewMultiOutputRegressor(outputs, models)
}

func (m *MultiOutputRegressor) Outputs() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.outputs...)
}

func (m *MultiOutputRegressor) ModelFor(output string) *gbrt.Model {
	if m == nil {
		return nil
	}
	for i, name := range m.outputs {
		if name == output {
			return m.models[i]
		}
	}
	return nil
}

// Fitted reports whether every output has a sub-model behind it. A
// partial set serves fallback weights instead of half-learned ones.
func (m *MultiOutputRegressor) Fitted() bool {
	if m == nil || len(m.models) == 0 {
		return false
	}
	for _, sub := range m.models {
		if sub == nil {
			return false
		}
	}
	return true
}

func (m *MultiOutputRegressor) Predict(sample []float64) []float64 {
	if m == nil {
		return nil
	}
	out := make([]float64, len(m.models))
	for i, sub := range m.models {
		out[i] = sub.Predict(sample)
	}
	return out
}

// Optimizer turns raw per-engine affinity scores into ensemble weights.
// Softmax guarantees non-negativity and sum-to-one by construction.
type Optimizer struct {
	reg *MultiOutputRegressor
}

// NewOptimizer requires the regressor outputs to be exactly the four
// engines in canonical order; a nil regressor serves the fixed fallback.
func NewOptimizer(reg *MultiOutputRegressor) (*Optimizer, error) {
	if reg != nil {
		kinds := domain.EngineKinds()
		outputs := reg.Outputs()
		if len(outputs) != len(kinds) {
			return nil, fmt.Errorf("weight regressor has %d outputs, want %d", len(outputs), len(kinds))
		}
		for i, k := range kinds {
			if outputs[i] != string(k) {
				return nil, fmt.Errorf("weight regressor output %d is %q, want %q", i, outputs[i], k)
			}
		}
	}
	return &Optimizer{reg: reg}, nil
}

// Fallback is served while no regressor is loaded.
func Fallback() map[domain.EngineKind]float64 {
	return map[domain.EngineKind]float64{
		domain.EngineTechnical:    0.20,
		domain.EngineFundamental:  0.40,
		domain.EngineQuantitative: 0.15,
		domain.EngineSentiment:    0.25,
	}
}

func (o *Optimizer) Fitted() bool {
	return o != nil && o.reg.Fitted()
}

// Weights predicts one affinity per engine and normalizes through a
// max-subtracted softmax.
func (o *Optimizer) Weights(features domain.FeatureVector) map[domain.EngineKind]float64 {
	if !o.Fitted() {
		return Fallback()
	}
	raw := o.reg.Predict(features.Slice())
	soft := softmax(raw)
	out := make(map[domain.EngineKind]float64, len(soft))
	for i, k := range domain.EngineKinds() {
		out[k] = soft[i]
	}
	return out
}

// AffinityTargets builds the per-engine training targets: a temperature-
// scaled softmax of each engine's directional alignment with the realized
// return. This is a documented heuristic proxy, not an observed truth.
func AffinityTargets(samples []domain.TrainingSample, temperature float64) [][]float64 {
	if temperature <= 0 {
		temperature = 0.5
	}
	out := make([][]float64, len(samples))
	for i, s := range samples {
		ret := s.ReturnPct
		if ret > 10 {
			ret = 10
		}
		if ret < -10 {
			ret = -10
		}
		align := make([]float64, 4)
		for j := 0; j < 4; j++ {
			align[j] = (s.Features[j] / 100) * (ret / 10) / temperature
		}
		out[i] = softmax(align)
	}
	return out
}

func softmax(raw []float64) []float64 {
	if len(raw) == 0 {
		return nil
	}
	max := math.Inf(-1)
	for _, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		if v > max {
			max = v
		}
	}
	if math.IsInf(max, -1) {
		max = 0
	}
	out := make([]float64, len(raw))
	var sum float64
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
