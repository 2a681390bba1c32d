package meta

import (
	"math"
	"testing"

	"verdict-engine/internal/domain"
	"verdict-engine/internal/models/boosted"
	"verdict-engine/internal/models/gbrt"
)

func TestUnfittedModelIsConservative(t *testing.T) {
	clf, reg := trainedComponents(t)
	cases := []*Model{
		nil,
		New(nil, nil),
		New(clf, nil),
		New(nil, reg),
	}
	for i, m := range cases {
		got := m.Predict(winVector())
		if got.Probability != 0.5 || got.ExpectedReturn != 0 || got.Recommendation != domain.ActionSkip {
			t.Errorf("case %d: unfitted decision = %+v, want (0.5, 0, SKIP)", i, got)
		}
	}
}

func TestPredictAppliesExecuteThreshold(t *testing.T) {
	m := New(trainedComponents(t))

	win := m.Predict(winVector())
	if win.Recommendation != domain.ActionExecute {
		t.Fatalf("winning vector recommendation = %q (p=%v), want EXECUTE", win.Recommendation, win.Probability)
	}
	if win.Probability < ExecuteThreshold {
		t.Errorf("winning probability = %v, want >= %v", win.Probability, ExecuteThreshold)
	}
	if win.ExpectedReturn < 2 {
		t.Errorf("winning expected return = %v, want clearly positive", win.ExpectedReturn)
	}

	loss := m.Predict(lossVector())
	if loss.Recommendation != domain.ActionSkip {
		t.Fatalf("losing vector recommendation = %q (p=%v), want SKIP", loss.Recommendation, loss.Probability)
	}
	if loss.ExpectedReturn > -2 {
		t.Errorf("losing expected return = %v, want clearly negative", loss.ExpectedReturn)
	}
}

func TestSanitizeClipsSchemaRanges(t *testing.T) {
	fv := domain.NeutralFeatures()
	fv[0] = 500
	fv[4] = 3
	fv[8] = -9
	fv[10] = math.NaN()
	fv[13] = math.Inf(1)
	fv[14] = 37

	got := Sanitize(fv)

	if got[0] != 100 {
		t.Errorf("score clipped to %v, want 100", got[0])
	}
	if got[4] != 1 {
		t.Errorf("confidence clipped to %v, want 1", got[4])
	}
	if got[8] != -1 {
		t.Errorf("regime clipped to %v, want -1", got[8])
	}
	if got[10] != 50 {
		t.Errorf("NaN rsi = %v, want neutral 50", got[10])
	}
	if got[13] != 1 {
		t.Errorf("Inf volume ratio = %v, want neutral 1", got[13])
	}
	if got[14] != 37 {
		t.Errorf("unbounded metric = %v, want untouched 37", got[14])
	}
}

func TestPredictSurvivesHostileVector(t *testing.T) {
	m := New(trainedComponents(t))

	var hostile domain.FeatureVector
	for i := range hostile {
		hostile[i] = math.NaN()
	}
	hostile[0] = math.Inf(1)

	got := m.Predict(hostile)
	if math.IsNaN(got.Probability) || got.Probability < 0 || got.Probability > 1 {
		t.Fatalf("probability = %v, want finite in [0,1]", got.Probability)
	}
	if math.IsNaN(got.ExpectedReturn) || math.IsInf(got.ExpectedReturn, 0) {
		t.Fatalf("expected return = %v, want finite", got.ExpectedReturn)
	}

	want := m.Predict(Sanitize(hostile))
	if got != want {
		t.Errorf("hostile decision %+v differs from sanitized decision %+v", got, want)
	}
}

func trainedComponents(t *testing.T) (*boosted.Model, *gbrt.Model) {
	t.Helper()
	samples := make([][]float64, 0, 80)
	labels := make([]float64, 0, 80)
	returns := make([]float64, 0, 80)
	for i := 0; i < 80; i++ {
		fv := domain.NeutralFeatures()
		if i%2 == 0 {
			fv[0] = 100
			labels = append(labels, 1)
			returns = append(returns, 5)
		} else {
			fv[0] = -100
			labels = append(labels, 0)
			returns = append(returns, -5)
		}
		fv[4] = 0.8
		samples = append(samples, fv.Slice())
	}

	clf, err := boosted.Train(samples, labels, domain.FeatureNames(), boosted.DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train classifier: %v", err)
	}
	reg, err := gbrt.Train(samples, returns, domain.FeatureNames(), gbrt.DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train regressor: %v", err)
	}
	return clf, reg
}

func winVector() domain.FeatureVector {
	fv := domain.NeutralFeatures()
	fv[0] = 100
	fv[4] = 0.8
	return fv
}

func lossVector() domain.FeatureVector {
	fv := domain.NeutralFeatures()
	fv[0] = -100
	fv[4] = 0.8
	return fv
}
