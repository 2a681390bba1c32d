package training

import (
	"math"
	"sort"
)

func computeMetrics(labels []float64, probs []float64) map[string]float64 {
	n := len(labels)
	if n == 0 || len(probs) != n {
		return map[string]float64{"auc": 0.5, "accuracy": 0, "precision": 0, "recall": 0, "f1": 0, "brier": 0, "n_test": 0}
	}
	tp := 0.0
	fp := 0.0
	tn := 0.0
	fn := 0.0
	brier := 0.0
	for i := 0; i < n; i++ {
		y := labels[i]
		p := clamp01(probs[i])
		pred := 0.0
		if p >= 0.5 {
			pred = 1
		}
		if pred == 1 && y == 1 {
			tp++
		}
		if pred == 1 && y == 0 {
			fp++
		}
		if pred == 0 && y == 0 {
			tn++
		}
		if pred == 0 && y == 1 {
			fn++
		}
		d := p - y
		brier += d * d
	}

	accuracy := (tp + tn) / float64(n)
	precision := 0.0
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	recall := 0.0
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	auc := computeAUC(labels, probs)
	return map[string]float64{
		"auc":       auc,
		"accuracy":  accuracy,
		"precision": precision,
		"recall":    recall,
		"f1":        f1,
		"brier":     brier / float64(n),
		"n_test":    float64(n),
	}
}

// computeAUC is the rank statistic with tied probabilities sharing their
// average rank. Degenerate one-class slices answer 0.5.
func computeAUC(labels []float64, probs []float64) float64 {
	type pair struct {
		p float64
		y float64
	}
	pairs := make([]pair, len(labels))
	pos := 0.0
	neg := 0.0
	for i := range labels {
		pairs[i] = pair{p: clamp01(probs[i]), y: labels[i]}
		if labels[i] >= 0.5 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].p < pairs[j].p })

	sumRankPos := 0.0
	rank := 1.0
	for i := 0; i < len(pairs); {
		j := i + 1
		for j < len(pairs) && math.Abs(pairs[j].p-pairs[i].p) < 1e-12 {
			j++
		}
		avgRank := (rank + float64(j)) / 2
		for k := i; k < j; k++ {
			if pairs[k].y >= 0.5 {
				sumRankPos += avgRank
			}
		}
		rank = float64(j + 1)
		i = j
	}
	auc := (sumRankPos - (pos*(pos+1))/2) / (pos * neg)
	if math.IsNaN(auc) || math.IsInf(auc, 0) {
		return 0.5
	}
	return auc
}

// binnedCalibrationError is the worst probability-decile gap between mean
// predicted confidence and observed win rate.
func binnedCalibrationError(probs, outcomes []float64) float64 {
	n := len(probs)
	if n == 0 || len(outcomes) != n {
		return 0
	}
	const bins = 10
	sumP := make([]float64, bins)
	sumY := make([]float64, bins)
	count := make([]float64, bins)
	for i := 0; i < n; i++ {
		p := clamp01(probs[i])
		b := int(p * bins)
		if b == bins {
			b = bins - 1
		}
		sumP[b] += p
		sumY[b] += outcomes[i]
		count[b]++
	}
	worst := 0.0
	for b := 0; b < bins; b++ {
		if count[b] == 0 {
			continue
		}
		gap := math.Abs(sumP[b]/count[b] - sumY[b]/count[b])
		if gap > worst {
			worst = gap
		}
	}
	return worst
}

// RegressionError summarizes the return regressor on the validation slice.
type RegressionError struct {
	MAE  float64
	RMSE float64
}

func regressionError(targets, preds []float64) *RegressionError {
	n := len(targets)
	if n == 0 || len(preds) != n {
		return nil
	}
	var absSum, sqSum float64
	for i := 0; i < n; i++ {
		diff := preds[i] - targets[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
	}
	return &RegressionError{
		MAE:  absSum / float64(n),
		RMSE: math.Sqrt(sqSum / float64(n)),
	}
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
