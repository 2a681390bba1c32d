package weights

import (
	"math"
	"testing"
	"time"

	"verdict-engine/internal/domain"
	"verdict-engine/internal/models/gbrt"
)

func TestFallbackWeights(t *testing.T) {
	o, err := NewOptimizer(nil)
	if err != nil {
		t.Fatalf("new optimizer: %v", err)
	}
	w := o.Weights(domain.NeutralFeatures())
	if w[domain.EngineTechnical] != 0.20 || w[domain.EngineFundamental] != 0.40 ||
		w[domain.EngineQuantitative] != 0.15 || w[domain.EngineSentiment] != 0.25 {
		t.Fatalf("fallback weights = %v", w)
	}
	assertWeightInvariants(t, w)
}

func TestWeightsSoftmaxInvariantsUnderExtremes(t *testing.T) {
	o := trainedOptimizer(t)

	vectors := []domain.FeatureVector{
		domain.NeutralFeatures(),
		{0: 100, 3: -100, 4: 1, 7: 1},
		{0: 1e9, 1: -1e9, 10: 1e12},
		{0: math.MaxFloat64 / 2},
	}
	for _, fv := range vectors {
		assertWeightInvariants(t, o.Weights(fv))
	}
}

func TestTrainedOptimizerFavorsAlignedEngine(t *testing.T) {
	o := trainedOptimizer(t)

	// Strong technical buy that pays off should pull weight toward the
	// technical engine relative to the flat case.
	buy := domain.NeutralFeatures()
	buy[0] = 100
	buy[4] = 0.9

	flat := domain.NeutralFeatures()

	wBuy := o.Weights(buy)
	wFlat := o.Weights(flat)
	if wBuy[domain.EngineTechnical] <= wFlat[domain.EngineTechnical] {
		t.Fatalf("technical weight did not respond: buy=%v flat=%v",
			wBuy[domain.EngineTechnical], wFlat[domain.EngineTechnical])
	}
	assertWeightInvariants(t, wBuy)
}

func TestAffinityTargetsAreDistributions(t *testing.T) {
	samples := alignedSamples(50)
	targets := AffinityTargets(samples, 0.5)
	if len(targets) != len(samples) {
		t.Fatalf("target rows = %d, want %d", len(targets), len(samples))
	}
	for i, row := range targets {
		var sum float64
		for _, v := range row {
			if v < 0 {
				t.Fatalf("row %d has negative target %v", i, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("row %d targets sum to %v", i, sum)
		}
	}
}

func TestNewOptimizerRejectsWrongOutputs(t *testing.T) {
	m, err := gbrt.Train([][]float64{{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8}, {9}, {10}},
		[]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, []string{"x"}, gbrt.DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	reg, err := NewMultiOutputRegressor([]string{"technical", "sentiment"}, []*gbrt.Model{m, m})
	if err != nil {
		t.Fatalf("new regressor: %v", err)
	}
	if _, err := NewOptimizer(reg); err == nil {
		t.Fatal("expected mismatched outputs to be rejected")
	}
}

func TestPartialRegressorServesFallback(t *testing.T) {
	kinds := domain.EngineKinds()
	outputs := make([]string, len(kinds))
	for i, k := range kinds {
		outputs[i] = string(k)
	}
	reg, err := NewMultiOutputRegressor(outputs, make([]*gbrt.Model, len(kinds)))
	if err != nil {
		t.Fatalf("new regressor: %v", err)
	}
	o, err := NewOptimizer(reg)
	if err != nil {
		t.Fatalf("new optimizer: %v", err)
	}
	if o.Fitted() {
		t.Fatal("regressor with nil sub-models must not report fitted")
	}
	if w := o.Weights(domain.NeutralFeatures()); w[domain.EngineFundamental] != 0.40 {
		t.Fatalf("partial regressor should serve fallback, got %v", w)
	}
}

func assertWeightInvariants(t *testing.T, w map[domain.EngineKind]float64) {
	t.Helper()
	if len(w) != 4 {
		t.Fatalf("weight count = %d, want 4", len(w))
	}
	var sum float64
	for k, v := range w {
		if v < 0 {
			t.Fatalf("weight %s = %v is negative", k, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("weights sum = %v, want 1", sum)
	}
}

func trainedOptimizer(t *testing.T) *Optimizer {
	t.Helper()
	samples := alignedSamples(400)
	rows := make([][]float64, len(samples))
	for i, s := range samples {
		rows[i] = s.Features.Slice()
	}
	targets := AffinityTargets(samples, 0.5)

	kinds := domain.EngineKinds()
	outputs := make([]string, len(kinds))
	for i, k := range kinds {
		outputs[i] = string(k)
	}
	reg, err := TrainMultiOutput(rows, targets, outputs, domain.FeatureNames(), gbrt.DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train multi-output: %v", err)
	}
	o, err := NewOptimizer(reg)
	if err != nil {
		t.Fatalf("new optimizer: %v", err)
	}
	return o
}

// alignedSamples alternates profitable technical buys with losing
// sentiment sells so the technical engine earns affinity on wins.
func alignedSamples(n int) []domain.TrainingSample {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.TrainingSample, 0, n)
	for i := 0; i < n; i++ {
		fv := domain.NeutralFeatures()
		var outcome int
		var ret float64
		if i%2 == 0 {
			fv[0] = 100
			fv[4] = 0.9
			outcome = 1
			ret = 4 + float64(i%7)
		} else {
			fv[3] = 60
			fv[7] = 0.8
			outcome = 0
			ret = -3 - float64(i%5)
		}
		out = append(out, domain.TrainingSample{
			Features:  fv,
			Outcome:   outcome,
			ReturnPct: ret,
			Source:    domain.SourceSnapshot,
			At:        at.Add(time.Duration(i) * time.Hour),
		})
	}
	return out
}
