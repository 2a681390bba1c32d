package training

import (
	"math"
	"testing"
)

func TestComputeMetricsKnownConfusion(t *testing.T) {
	labels := []float64{1, 1, 0, 0}
	probs := []float64{0.9, 0.4, 0.2, 0.6}

	m := computeMetrics(labels, probs)

	if got := m["accuracy"]; got != 0.5 {
		t.Fatalf("expected accuracy 0.5, got %.4f", got)
	}
	if got := m["precision"]; got != 0.5 {
		t.Fatalf("expected precision 0.5, got %.4f", got)
	}
	if got := m["recall"]; got != 0.5 {
		t.Fatalf("expected recall 0.5, got %.4f", got)
	}
	if got := m["f1"]; got != 0.5 {
		t.Fatalf("expected f1 0.5, got %.4f", got)
	}
	if got := m["brier"]; math.Abs(got-0.1925) > 1e-9 {
		t.Fatalf("expected brier 0.1925, got %.6f", got)
	}
	if got := m["n_test"]; got != 4 {
		t.Fatalf("expected n_test 4, got %.0f", got)
	}
}

func TestComputeAUCPerfectAndInverted(t *testing.T) {
	labels := []float64{0, 0, 1, 1}

	if auc := computeAUC(labels, []float64{0.1, 0.2, 0.8, 0.9}); auc != 1.0 {
		t.Fatalf("expected auc 1.0 for perfect ranking, got %.4f", auc)
	}
	if auc := computeAUC(labels, []float64{0.9, 0.8, 0.2, 0.1}); auc != 0.0 {
		t.Fatalf("expected auc 0.0 for inverted ranking, got %.4f", auc)
	}
}

func TestComputeAUCTiesShareRank(t *testing.T) {
	labels := []float64{0, 1, 0, 1}
	probs := []float64{0.5, 0.5, 0.5, 0.5}

	if auc := computeAUC(labels, probs); math.Abs(auc-0.5) > 1e-9 {
		t.Fatalf("expected auc 0.5 for all-tied probabilities, got %.4f", auc)
	}
}

func TestComputeAUCOneClassDegenerates(t *testing.T) {
	if auc := computeAUC([]float64{1, 1, 1}, []float64{0.2, 0.5, 0.9}); auc != 0.5 {
		t.Fatalf("expected auc 0.5 when only one class present, got %.4f", auc)
	}
}

func TestBinnedCalibrationError(t *testing.T) {
	// Perfectly calibrated: every decile's mean confidence equals its
	// observed win rate.
	probs := make([]float64, 0, 40)
	outcomes := make([]float64, 0, 40)
	for i := 0; i < 10; i++ {
		probs = append(probs, 0.95, 0.95, 0.05, 0.05)
		outcomes = append(outcomes, 1, 1, 0, 0)
	}
	if err := binnedCalibrationError(probs, outcomes); math.Abs(err-0.05) > 1e-9 {
		t.Fatalf("expected worst gap 0.05, got %.4f", err)
	}

	// Anti-calibrated: confident losers.
	inverted := make([]float64, len(outcomes))
	for i, y := range outcomes {
		inverted[i] = 1 - y
	}
	if err := binnedCalibrationError(probs, inverted); err < 0.9 {
		t.Fatalf("expected near-total gap for anti-calibrated predictions, got %.4f", err)
	}

	if err := binnedCalibrationError(nil, nil); err != 0 {
		t.Fatalf("expected 0 for empty input, got %.4f", err)
	}
}

func TestRegressionError(t *testing.T) {
	targets := []float64{1, -1, 2}
	preds := []float64{2, -1, 0}

	re := regressionError(targets, preds)
	if re == nil {
		t.Fatal("expected a regression error summary")
	}
	if math.Abs(re.MAE-1.0) > 1e-9 {
		t.Fatalf("expected mae 1.0, got %.4f", re.MAE)
	}
	want := math.Sqrt(5.0 / 3.0)
	if math.Abs(re.RMSE-want) > 1e-9 {
		t.Fatalf("expected rmse %.6f, got %.6f", want, re.RMSE)
	}

	if re := regressionError(nil, nil); re != nil {
		t.Fatal("expected nil summary for empty input")
	}
}
