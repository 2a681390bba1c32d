package drift

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"verdict-engine/internal/domain"
)

func TestPSIIdenticalSamplesIsZero(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 7))
	sample := make([]float64, 200)
	for i := range sample {
		sample[i] = rng.NormFloat64()
	}

	if psi := PSI(sample, sample, DefaultBins); psi != 0 {
		t.Fatalf("PSI of a sample against itself = %v, want exactly 0", psi)
	}
}

func TestPSIGrowsWithDistributionShift(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))
	base := make([]float64, 500)
	for i := range base {
		base[i] = rng.NormFloat64()
	}

	shifts := []float64{0.5, 1.0, 2.0}
	prev := PSI(base, base, DefaultBins)
	for _, shift := range shifts {
		moved := make([]float64, len(base))
		for i, v := range base {
			moved[i] = v + shift
		}
		psi := PSI(base, moved, DefaultBins)
		if psi <= prev {
			t.Fatalf("PSI at shift %.1f = %v, want > %v", shift, psi, prev)
		}
		prev = psi
	}
	if prev < 0.25 {
		t.Errorf("PSI at shift 2.0 = %v, want a clearly significant value", prev)
	}
}

func TestPSIDegenerateInputs(t *testing.T) {
	if psi := PSI(nil, []float64{1, 2}, DefaultBins); psi != 0 {
		t.Errorf("PSI with empty expected = %v, want 0", psi)
	}
	flat := []float64{5, 5, 5, 5}
	if psi := PSI(flat, flat, DefaultBins); psi != 0 {
		t.Errorf("PSI over zero-width range = %v, want 0", psi)
	}
}

func TestCompareStableWhenDistributionsMatch(t *testing.T) {
	vals := repeatingSample(60)
	train := trainSnapshot(vals, nil, 0)
	recent := recentWindow(vals, nil, 0)

	report := newTestMonitor().Compare(train, recent)

	if report.Aggregate != domain.AggregateStable {
		t.Fatalf("aggregate = %q, want %q", report.Aggregate, domain.AggregateStable)
	}
	if len(report.Features) != domain.FeatureCount {
		t.Fatalf("evaluated %d features, want %d", len(report.Features), domain.FeatureCount)
	}
	for _, fd := range report.Features {
		if fd.Status != domain.DriftStable {
			t.Errorf("feature %s status = %q, want stable (psi=%v)", fd.Feature, fd.Status, fd.PSI)
		}
	}
	if report.RecentCount != len(recent) {
		t.Errorf("recent count = %d, want %d", report.RecentCount, len(recent))
	}
}

func TestCompareRecommendsRetrainPastThreshold(t *testing.T) {
	vals := repeatingSample(60)
	// 8 of 23 features drifted is just above the 30% retrain threshold.
	drifted := []int{0, 2, 5, 9, 12, 15, 18, 21}
	train := trainSnapshot(vals, drifted, 100)
	recent := recentWindow(vals, nil, 0)

	report := newTestMonitor().Compare(train, recent)

	if report.Aggregate != domain.AggregateRetrain {
		t.Fatalf("aggregate = %q, want %q", report.Aggregate, domain.AggregateRetrain)
	}
	significant := 0
	for _, fd := range report.Features {
		if fd.Status == domain.DriftSignificant {
			significant++
		}
	}
	if significant != len(drifted) {
		t.Errorf("significant features = %d, want %d", significant, len(drifted))
	}
}

func TestCompareSingleSignificantFeatureMeansMonitor(t *testing.T) {
	vals := repeatingSample(60)
	train := trainSnapshot(vals, []int{10}, 100)
	recent := recentWindow(vals, nil, 0)

	report := newTestMonitor().Compare(train, recent)

	if report.Aggregate != domain.AggregateMonitor {
		t.Fatalf("aggregate = %q, want %q", report.Aggregate, domain.AggregateMonitor)
	}
}

func TestCompareExcludesThinFeatures(t *testing.T) {
	vals := repeatingSample(60)
	train := trainSnapshot(vals, nil, 0)
	thin := train["rsi"]
	thin.Sample = thin.Sample[:5]
	train["rsi"] = thin

	report := newTestMonitor().Compare(train, recentWindow(vals, nil, 0))

	var rsiStatus domain.DriftStatus
	for _, fd := range report.Features {
		if fd.Feature == "rsi" {
			rsiStatus = fd.Status
		}
	}
	if rsiStatus != domain.DriftInsufficient {
		t.Fatalf("thin feature status = %q, want %q", rsiStatus, domain.DriftInsufficient)
	}
	if report.Aggregate != domain.AggregateStable {
		t.Errorf("aggregate = %q, want stable with the thin feature excluded", report.Aggregate)
	}
}

func TestCompareShortWindowIsAllInsufficient(t *testing.T) {
	vals := repeatingSample(60)
	train := trainSnapshot(vals, nil, 0)
	report := newTestMonitor().Compare(train, recentWindow(vals, nil, 0)[:4])

	for _, fd := range report.Features {
		if fd.Status != domain.DriftInsufficient {
			t.Fatalf("feature %s status = %q, want insufficient with a 4-row window", fd.Feature, fd.Status)
		}
	}
	if report.Aggregate != domain.AggregateStable {
		t.Errorf("aggregate = %q, want stable when nothing was evaluated", report.Aggregate)
	}
}

func TestCompareMeanShiftIsStdUnits(t *testing.T) {
	vals := repeatingSample(60)
	// Shift the live window for one feature and leave training in place.
	idx, ok := domain.FeatureIndex("volatility")
	if !ok {
		t.Fatal("volatility missing from the canonical feature set")
	}
	train := trainSnapshot(vals, nil, 0)
	recent := recentWindow(vals, []int{idx}, 3)

	report := newTestMonitor().Compare(train, recent)

	stats := train["volatility"]
	want := 3.0 / stats.Std
	for _, fd := range report.Features {
		if fd.Feature != "volatility" {
			continue
		}
		if math.Abs(fd.MeanShift-want) > 1e-9 {
			t.Fatalf("mean shift = %v, want %v", fd.MeanShift, want)
		}
		return
	}
	t.Fatal("volatility missing from the report")
}

func newTestMonitor() *Monitor {
	return NewMonitor(DefaultBins, func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})
}

// repeatingSample cycles 0..9 so every equal-width bin is populated.
func repeatingSample(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i % 10)
	}
	return out
}

// trainSnapshot builds stats for all features from vals, adding offset to
// the sample of every feature index listed in drifted.
func trainSnapshot(vals []float64, drifted []int, offset float64) map[string]domain.FeatureStats {
	shift := make(map[int]bool, len(drifted))
	for _, idx := range drifted {
		shift[idx] = true
	}
	out := make(map[string]domain.FeatureStats, domain.FeatureCount)
	for i, name := range domain.FeatureNames() {
		sample := make([]float64, len(vals))
		copy(sample, vals)
		if shift[i] {
			for j := range sample {
				sample[j] += offset
			}
		}
		m, s := meanStd(sample)
		out[name] = domain.FeatureStats{Mean: m, Std: s, Min: sample[0], Max: sample[len(sample)-1], Sample: sample}
	}
	return out
}

// recentWindow builds one vector per value in vals, adding offset to every
// feature index listed in drifted.
func recentWindow(vals []float64, drifted []int, offset float64) []domain.FeatureVector {
	shift := make(map[int]bool, len(drifted))
	for _, idx := range drifted {
		shift[idx] = true
	}
	out := make([]domain.FeatureVector, len(vals))
	for i, v := range vals {
		var fv domain.FeatureVector
		for j := range fv {
			fv[j] = v
			if shift[j] {
				fv[j] += offset
			}
		}
		out[i] = fv
	}
	return out
}

func meanStd(sample []float64) (float64, float64) {
	var sum float64
	for _, v := range sample {
		sum += v
	}
	m := sum / float64(len(sample))
	var sq float64
	for _, v := range sample {
		sq += (v - m) * (v - m)
	}
	return m, math.Sqrt(sq / float64(len(sample)))
}
