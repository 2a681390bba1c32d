package meta

import (
	"math"

	"verdict-engine/internal/domain"
	"verdict-engine/internal/models/boosted"
	"verdict-engine/internal/models/gbrt"
)

// ExecuteThreshold is the minimum profitability for an EXECUTE verdict.
const ExecuteThreshold = 0.6

// featureBound is a hard schema range enforced before evaluation. Slots
// without an entry are free-form metrics and pass through untouched.
type featureBound struct {
	lo, hi float64
}

// Slots 0-3 are engine scores, 4-7 confidences, 8 the regime flag, 9 the
// score dispersion (bounded by the score range itself), 10 the rsi.
var schemaBounds = map[int]featureBound{
	0: {-100, 100}, 1: {-100, 100}, 2: {-100, 100}, 3: {-100, 100},
	4: {0, 1}, 5: {0, 1}, 6: {0, 1}, 7: {0, 1},
	8: {-1, 1}, 9: {0, 100}, 10: {0, 100},
}

// Model pairs the profitability classifier with the expected-return
// regressor. Both must be present; a partial bundle serves the fallback so
// the system never mixes a real probability with an invented return.
type Model struct {
	clf *boosted.Model
	reg *gbrt.Model
}

func New(clf *boosted.Model, reg *gbrt.Model) *Model {
	return &Model{clf: clf, reg: reg}
}

func (m *Model) Fitted() bool {
	return m != nil && m.clf != nil && m.reg != nil
}

// Predict evaluates one feature vector. An unfitted model always answers
// (0.5, 0.0, SKIP) so an absent artifact cannot fabricate a trade signal.
func (m *Model) Predict(features domain.FeatureVector) domain.Decision {
	if !m.Fitted() {
		return domain.Decision{Probability: 0.5, ExpectedReturn: 0, Recommendation: domain.ActionSkip}
	}

	sample := Sanitize(features).Slice()
	p := m.clf.PredictProb(sample)
	ret := m.reg.Predict(sample)
	if math.IsNaN(ret) || math.IsInf(ret, 0) {
		ret = 0
	}

	action := domain.ActionSkip
	if p >= ExecuteThreshold {
		action = domain.ActionExecute
	}
	return domain.Decision{Probability: p, ExpectedReturn: ret, Recommendation: action}
}

// Sanitize replaces non-finite values with the neutral default and clips
// schema-bounded slots into range.
func Sanitize(features domain.FeatureVector) domain.FeatureVector {
	neutral := domain.NeutralFeatures()
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			features[i] = neutral[i]
			continue
		}
		if b, ok := schemaBounds[i]; ok {
			features[i] = math.Min(math.Max(v, b.lo), b.hi)
		}
	}
	return features
}
