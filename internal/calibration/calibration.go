package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"verdict-engine/internal/domain"
)

const (
	minFitSamples = 10
	minBins       = 4
	maxBins       = 50
)

// Curve is one engine's monotone raw-confidence to probability mapping.
// Immutable once fitted; retraining writes a replacement file.
type Curve struct {
	Engine      string    `json:"engine"`
	Raw         []float64 `json:"raw"`
	Calibrated  []float64 `json:"calibrated"`
	SampleCount int       `json:"sample_count"`
	FittedAt    time.Time `json:"fitted_at"`
}

// Fit bins the (raw confidence, outcome) pairs by rank, takes the observed
// win rate per bin, and enforces monotonicity with pool-adjacent-violators.
func Fit(engine domain.EngineKind, raws, outcomes []float64, fittedAt time.Time) (*Curve, error) {
	if !engine.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEngine, engine)
	}
	if len(raws) == 0 || len(raws) != len(outcomes) {
		return nil, errors.New("invalid calibration dataset")
	}
	if len(raws) < minFitSamples {
		return nil, fmt.Errorf("%w: calibration needs %d pairs, got %d", domain.ErrInsufficientData, minFitSamples, len(raws))
	}

	type pair struct{ raw, outcome float64 }
	pairs := make([]pair, 0, len(raws))
	for i := range raws {
		if math.IsNaN(raws[i]) || math.IsInf(raws[i], 0) {
			continue
		}
		pairs = append(pairs, pair{clamp01(raws[i]), clamp01(outcomes[i])})
	}
	if len(pairs) < minFitSamples {
		return nil, fmt.Errorf("%w: calibration needs %d finite pairs, got %d", domain.ErrInsufficientData, minFitSamples, len(pairs))
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].raw < pairs[j].raw })

	bins := optimalBins(len(pairs))
	binSize := len(pairs) / bins

	xs := make([]float64, 0, bins)
	ys := make([]float64, 0, bins)
	ws := make([]float64, 0, bins)
	for i := 0; i < len(pairs); i += binSize {
		end := i + binSize
		if len(pairs)-end < binSize {
			end = len(pairs)
		}
		var rawSum, winSum float64
		for _, p := range pairs[i:end] {
			rawSum += p.raw
			winSum += p.outcome
		}
		n := float64(end - i)
		xs = append(xs, rawSum/n)
		ys = append(ys, winSum/n)
		ws = append(ws, n)
		if end == len(pairs) {
			break
		}
	}

	ys = pav(ys, ws)
	xs, ys = dedupe(xs, ys)

	return &Curve{
		Engine:      string(engine),
		Raw:         xs,
		Calibrated:  ys,
		SampleCount: len(pairs),
		FittedAt:    fittedAt.UTC(),
	}, nil
}

// Predict maps a raw confidence through the curve with linear
// interpolation, clamped to [0,1]. A nil or empty curve is the identity.
func (c *Curve) Predict(raw float64) float64 {
	raw = clamp01(finiteOr(raw, 0))
	if c == nil || len(c.Raw) == 0 {
		return raw
	}
	if raw <= c.Raw[0] {
		return clamp01(c.Calibrated[0])
	}
	last := len(c.Raw) - 1
	if raw >= c.Raw[last] {
		return clamp01(c.Calibrated[last])
	}
	for i := 1; i <= last; i++ {
		if raw <= c.Raw[i] {
			x0, x1 := c.Raw[i-1], c.Raw[i]
			y0, y1 := c.Calibrated[i-1], c.Calibrated[i]
			if x1 == x0 {
				return clamp01(y1)
			}
			w := (raw - x0) / (x1 - x0)
			return clamp01(y0 + w*(y1-y0))
		}
	}
	return clamp01(c.Calibrated[last])
}

func (c *Curve) MarshalBinary() ([]byte, error) {
	if c == nil {
		return nil, errors.New("nil curve")
	}
	return json.Marshal(c)
}

func UnmarshalBinary(data []byte) (*Curve, error) {
	if len(data) == 0 {
		return nil, errors.New("empty artifact")
	}
	var c Curve
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if len(c.Raw) != len(c.Calibrated) {
		return nil, errors.New("invalid artifact")
	}
	for i := 1; i < len(c.Raw); i++ {
		if c.Raw[i] < c.Raw[i-1] || c.Calibrated[i] < c.Calibrated[i-1] {
			return nil, errors.New("invalid artifact: curve not monotone")
		}
	}
	return &c, nil
}

// Result is one calibrated engine confidence.
type Result struct {
	Calibrated float64                `json:"calibrated_confidence"`
	Tier       domain.ReliabilityTier `json:"reliability_tier"`
	Curved     bool                   `json:"curved"`
}

// Calibrator answers per-engine calibration. Engines without a fitted
// curve fall back to identity; unknown engines are a client error.
type Calibrator struct {
	curves map[domain.EngineKind]*Curve
}

func New(curves map[domain.EngineKind]*Curve) *Calibrator {
	cp := make(map[domain.EngineKind]*Curve, len(curves))
	for k, v := range curves {
		cp[k] = v
	}
	return &Calibrator{curves: cp}
}

func (c *Calibrator) Calibrate(engine domain.EngineKind, raw float64) (Result, error) {
	if !engine.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", domain.ErrUnknownEngine, engine)
	}
	var curve *Curve
	if c != nil {
		curve = c.curves[engine]
	}
	p := curve.Predict(raw)
	return Result{
		Calibrated: p,
		Tier:       domain.TierFor(p),
		Curved:     curve != nil && len(curve.Raw) > 0,
	}, nil
}

// CalibrateBatch keeps per-engine results independent: one bad engine name
// fails the whole batch so callers never see a partial map.
func (c *Calibrator) CalibrateBatch(raws map[domain.EngineKind]float64) (map[domain.EngineKind]Result, error) {
	out := make(map[domain.EngineKind]Result, len(raws))
	for engine, raw := range raws {
		res, err := c.Calibrate(engine, raw)
		if err != nil {
			return nil, err
		}
		out[engine] = res
	}
	return out, nil
}

// Fitted lists the engines that have a non-identity curve.
func (c *Calibrator) Fitted() []domain.EngineKind {
	if c == nil {
		return nil
	}
	out := make([]domain.EngineKind, 0, len(c.curves))
	for _, k := range domain.EngineKinds() {
		if cv := c.curves[k]; cv != nil && len(cv.Raw) > 0 {
			out = append(out, k)
		}
	}
	return out
}

// pav pools adjacent violators until the sequence is nondecreasing,
// weighting each bin by its sample count.
func pav(probs, weights []float64) []float64 {
	type block struct {
		sum, weight float64
		count       int
	}
	blocks := make([]block, 0, len(probs))
	for i := range probs {
		blocks = append(blocks, block{sum: probs[i] * weights[i], weight: weights[i], count: 1})
		for len(blocks) > 1 {
			a := blocks[len(blocks)-2]
			b := blocks[len(blocks)-1]
			if a.sum/a.weight <= b.sum/b.weight {
				break
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, block{sum: a.sum + b.sum, weight: a.weight + b.weight, count: a.count + b.count})
		}
	}
	out := make([]float64, 0, len(probs))
	for _, bl := range blocks {
		v := bl.sum / bl.weight
		for i := 0; i < bl.count; i++ {
			out = append(out, v)
		}
	}
	return out
}

// dedupe collapses points sharing a raw value, keeping the last (largest)
// calibrated value so interpolation never divides by zero.
func dedupe(xs, ys []float64) ([]float64, []float64) {
	outX := make([]float64, 0, len(xs))
	outY := make([]float64, 0, len(ys))
	for i := range xs {
		if len(outX) > 0 && xs[i] == outX[len(outX)-1] {
			outY[len(outY)-1] = ys[i]
			continue
		}
		outX = append(outX, xs[i])
		outY = append(outY, ys[i])
	}
	return outX, outY
}

func optimalBins(n int) int {
	bins := int(math.Ceil(math.Log2(float64(n)))) + 1
	if byCount := n / minFitSamples; bins > byCount && byCount >= minBins {
		bins = byCount
	}
	if bins < minBins {
		bins = minBins
	}
	if bins > maxBins {
		bins = maxBins
	}
	return bins
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
