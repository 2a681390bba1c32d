package gbrt

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"
)

type TrainOptions struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
	MinLeaf      int
}

// Node is one tree node in flat-array form. Feature < 0 marks a leaf.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

type Artifact struct {
	FeatureNames []string `json:"feature_names"`
	Base         float64  `json:"base"`
	LearningRate float64  `json:"learning_rate"`
	Trees        []Tree   `json:"trees"`
	MaxDepth     int      `json:"max_depth"`
	MinLeaf      int      `json:"min_leaf"`
}

type Model struct {
	artifact Artifact
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Rounds:       60,
		LearningRate: 0.1,
		MaxDepth:     3,
		MinLeaf:      5,
	}
}

// Train fits least-squares gradient-boosted regression trees: start from
// the target mean, then each round fits one depth-limited tree to the
// current residuals. Training is deterministic.
func Train(samples [][]float64, targets []float64, featureNames []string, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(targets) {
		return nil, errors.New("invalid training dataset")
	}
	if len(samples[0]) == 0 {
		return nil, errors.New("empty feature vectors")
	}
	defaults := DefaultTrainOptions()
	if opts.Rounds <= 0 {
		opts.Rounds = defaults.Rounds
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = defaults.LearningRate
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaults.MaxDepth
	}
	if opts.MinLeaf <= 0 {
		opts.MinLeaf = defaults.MinLeaf
	}

	base := mean(targets)
	preds := make([]float64, len(targets))
	for i := range preds {
		preds[i] = base
	}

	idx := make([]int, len(samples))
	for i := range idx {
		idx[i] = i
	}

	trees := make([]Tree, 0, opts.Rounds)
	residuals := make([]float64, len(targets))
	for round := 0; round < opts.Rounds; round++ {
		maxAbs := 0.0
		for i := range targets {
			residuals[i] = targets[i] - preds[i]
			if a := math.Abs(residuals[i]); a > maxAbs {
				maxAbs = a
			}
		}
		if maxAbs < 1e-9 {
			break
		}
		t := Tree{}
		t.grow(samples, residuals, idx, 0, opts)
		for i := range preds {
			preds[i] += opts.LearningRate * t.eval(samples[i])
		}
		trees = append(trees, t)
	}

	if len(featureNames) != len(samples[0]) {
		featureNames = defaultFeatureNames(len(samples[0]))
	}
	names := make([]string, len(featureNames))
	copy(names, featureNames)

	return &Model{artifact: Artifact{
		FeatureNames: names,
		Base:         base,
		LearningRate: opts.LearningRate,
		Trees:        trees,
		MaxDepth:     opts.MaxDepth,
		MinLeaf:      opts.MinLeaf,
	}}, nil
}

// Predict returns the boosted estimate. A nil model or a sample of the
// wrong width falls back to the base prediction (0 for a nil model).
func (m *Model) Predict(sample []float64) float64 {
	if m == nil {
		return 0
	}
	if len(sample) != len(m.artifact.FeatureNames) {
		return m.artifact.Base
	}
	out := m.artifact.Base
	for _, t := range m.artifact.Trees {
		out += m.artifact.LearningRate * t.eval(sample)
	}
	return out
}

func (m *Model) PredictBatch(samples [][]float64) []float64 {
	out := make([]float64, len(samples))
	for i := range samples {
		out[i] = m.Predict(samples[i])
	}
	return out
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	return json.Marshal(m.artifact)
}

func UnmarshalBinary(data []byte) (*Model, error) {
	if len(data) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	if len(a.FeatureNames) == 0 || a.LearningRate <= 0 {
		return nil, errors.New("invalid artifact")
	}
	for _, t := range a.Trees {
		for i, n := range t.Nodes {
			if n.Feature < 0 {
				continue
			}
			if n.Feature >= len(a.FeatureNames) {
				return nil, errors.New("invalid artifact: feature index out of range")
			}
			// Children are always appended after their parent, which is
			// what makes eval terminate.
			if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return nil, errors.New("invalid artifact: malformed tree")
			}
		}
	}
	return &Model{artifact: a}, nil
}

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.artifact.FeatureNames))
	copy(out, m.artifact.FeatureNames)
	return out
}

func (m *Model) Rounds() int {
	if m == nil {
		return 0
	}
	return len(m.artifact.Trees)
}

func (t *Tree) grow(samples [][]float64, residuals []float64, idx []int, depth int, opts TrainOptions) int {
	if depth >= opts.MaxDepth || len(idx) < 2*opts.MinLeaf {
		return t.leaf(meanAt(residuals, idx))
	}
	feat, thr, ok := bestSplit(samples, residuals, idx, opts.MinLeaf)
	if !ok {
		return t.leaf(meanAt(residuals, idx))
	}
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if samples[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	self := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Feature: feat, Threshold: thr})
	l := t.grow(samples, residuals, left, depth+1, opts)
	r := t.grow(samples, residuals, right, depth+1, opts)
	t.Nodes[self].Left = l
	t.Nodes[self].Right = r
	return self
}

func (t *Tree) leaf(v float64) int {
	t.Nodes = append(t.Nodes, Node{Feature: -1, Value: v})
	return len(t.Nodes) - 1
}

func (t Tree) eval(sample []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if sample[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// bestSplit scans sorted thresholds per feature and keeps the split with
// the lowest combined squared error, honoring the per-leaf minimum.
func bestSplit(samples [][]float64, residuals []float64, idx []int, minLeaf int) (int, float64, bool) {
	featCount := len(samples[idx[0]])
	type pair struct{ v, r float64 }

	bestFeat := -1
	bestThr := 0.0
	bestSSE := math.Inf(1)

	pairs := make([]pair, len(idx))
	for j := 0; j < featCount; j++ {
		for k, i := range idx {
			pairs[k] = pair{samples[i][j], residuals[i]}
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })
		if pairs[0].v == pairs[len(pairs)-1].v {
			continue
		}

		var totalSum, totalSq float64
		for _, p := range pairs {
			totalSum += p.r
			totalSq += p.r * p.r
		}
		n := float64(len(pairs))

		var leftSum, leftSq float64
		for k := 0; k < len(pairs)-1; k++ {
			leftSum += pairs[k].r
			leftSq += pairs[k].r * pairs[k].r
			if k+1 < minLeaf || len(pairs)-k-1 < minLeaf {
				continue
			}
			if pairs[k].v == pairs[k+1].v {
				continue
			}
			ln := float64(k + 1)
			rn := n - ln
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/ln) + (rightSq - rightSum*rightSum/rn)
			if sse < bestSSE {
				bestSSE = sse
				bestFeat = j
				bestThr = (pairs[k].v + pairs[k+1].v) / 2
			}
		}
	}
	return bestFeat, bestThr, bestFeat >= 0
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

func meanAt(values []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += values[i]
	}
	return sum / float64(len(idx))
}

func defaultFeatureNames(n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = "f" + strconv.Itoa(i)
	}
	return out
}
