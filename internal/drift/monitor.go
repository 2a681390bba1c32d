package drift

import (
	"math"
	"time"

	"verdict-engine/internal/domain"
)

const (
	DefaultBins = 10
	epsilon     = 1e-4
	minSamples  = 10
)

// Monitor compares live feature traffic against the training-time
// snapshot via the population stability index.
type Monitor struct {
	bins int
	now  func() time.Time
}

func NewMonitor(bins int, now func() time.Time) *Monitor {
	if bins <= 1 {
		bins = DefaultBins
	}
	if now == nil {
		now = time.Now
	}
	return &Monitor{bins: bins, now: now}
}

// PSI bins both samples into shared equal-width bins spanning their union
// range, floors proportions at epsilon, and sums (a-e)*ln(a/e). Two
// identical samples always score exactly 0.
func PSI(expected, actual []float64, bins int) float64 {
	if bins <= 1 || len(expected) == 0 || len(actual) == 0 {
		return 0
	}
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, v := range expected {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	for _, v := range actual {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	width := hi - lo
	if width <= 0 || math.IsInf(width, 0) || math.IsNaN(width) {
		return 0
	}

	expProps := binProportions(expected, lo, width, bins)
	actProps := binProportions(actual, lo, width, bins)

	var psi float64
	for i := 0; i < bins; i++ {
		e := math.Max(expProps[i], epsilon)
		a := math.Max(actProps[i], epsilon)
		psi += (a - e) * math.Log(a/e)
	}
	return psi
}

func binProportions(sample []float64, lo, width float64, bins int) []float64 {
	counts := make([]float64, bins)
	n := 0
	for _, v := range sample {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		idx := int((v - lo) / width * float64(bins))
		if idx < 0 {
			idx = 0
		}
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
		n++
	}
	if n == 0 {
		return counts
	}
	for i := range counts {
		counts[i] /= float64(n)
	}
	return counts
}

func statusFor(psi float64) domain.DriftStatus {
	switch {
	case psi < 0.10:
		return domain.DriftStable
	case psi <= 0.25:
		return domain.DriftModerate
	}
	return domain.DriftSignificant
}

// Compare evaluates every canonical feature present in the training
// snapshot against the recent window. Features with fewer than 10 samples
// on either side report insufficient_data and stay out of the aggregate.
func (m *Monitor) Compare(train map[string]domain.FeatureStats, recent []domain.FeatureVector) domain.DriftReport {
	report := domain.DriftReport{
		RecentCount: len(recent),
		EvaluatedAt: m.now().UTC(),
	}

	var evaluated, moderate, significant int
	for i, name := range domain.FeatureNames() {
		stats, ok := train[name]
		if !ok {
			continue
		}

		column := make([]float64, 0, len(recent))
		for _, fv := range recent {
			column = append(column, fv[i])
		}

		fd := domain.FeatureDrift{Feature: name}
		if len(stats.Sample) < minSamples || len(column) < minSamples {
			fd.Status = domain.DriftInsufficient
			report.Features = append(report.Features, fd)
			continue
		}

		fd.PSI = PSI(stats.Sample, column, m.bins)
		fd.Status = statusFor(fd.PSI)
		if stats.Std > 0 {
			fd.MeanShift = (mean(column) - stats.Mean) / stats.Std
		}
		report.Features = append(report.Features, fd)

		evaluated++
		switch fd.Status {
		case domain.DriftModerate:
			moderate++
		case domain.DriftSignificant:
			significant++
		}
	}

	report.Aggregate = aggregate(evaluated, moderate, significant)
	return report
}

func aggregate(evaluated, moderate, significant int) domain.AggregateDrift {
	if evaluated == 0 {
		return domain.AggregateStable
	}
	if float64(significant) > 0.30*float64(evaluated) {
		return domain.AggregateRetrain
	}
	if significant > 0 || float64(moderate) > 0.50*float64(evaluated) {
		return domain.AggregateMonitor
	}
	return domain.AggregateStable
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
