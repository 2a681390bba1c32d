package boosted

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/rmera/boo"
	"github.com/rmera/boo/utils"
)

type TrainOptions struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
}

type artifact struct {
	FeatureNames []string `json:"feature_names"`
	ModelText    string   `json:"model_text"`
}

// Model is the gradient-boosted profitability classifier. Labels are
// binary: 1 profitable, 0 not.
type Model struct {
	featureNames []string
	boost        *boo.MultiClass
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Rounds:       50,
		LearningRate: 0.08,
		MaxDepth:     4,
	}
}

func (o TrainOptions) withDefaults() TrainOptions {
	def := DefaultTrainOptions()
	if o.Rounds <= 0 {
		o.Rounds = def.Rounds
	}
	if o.LearningRate <= 0 {
		o.LearningRate = def.LearningRate
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = def.MaxDepth
	}
	return o
}

// foldLabels thresholds the float targets at 0.5 into the binary outcome
// classes and reports whether both classes are present.
func foldLabels(labels []float64) ([]int, bool) {
	classSet := make(map[int]struct{}, 2)
	folded := make([]int, len(labels))
	for i, v := range labels {
		label := 0
		if v >= 0.5 {
			label = 1
		}
		folded[i] = label
		classSet[label] = struct{}{}
	}
	return folded, len(classSet) == 2
}

func Train(samples [][]float64, labels []float64, featureNames []string, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 || len(samples) != len(labels) {
		return nil, errors.New("invalid training dataset")
	}
	width := len(samples[0])
	if width == 0 {
		return nil, errors.New("empty feature vectors")
	}

	intLabels, bothClasses := foldLabels(labels)
	if !bothClasses {
		return nil, errors.New("profitability classifier requires both outcome classes")
	}

	// Positional fallback names keep artifacts self-describing even when
	// a caller trains outside the canonical feature schema.
	if len(featureNames) != width {
		featureNames = make([]string, width)
		for i := range featureNames {
			featureNames[i] = "f" + strconv.Itoa(i)
		}
	}

	opts = opts.withDefaults()
	o := boo.DefaultXOptions()
	o.Rounds = opts.Rounds
	o.LearningRate = opts.LearningRate
	o.MaxDepth = opts.MaxDepth
	o.Verbose = false
	o.EarlyStop = 0

	data := &utils.DataBunch{
		Data:   samples,
		Labels: intLabels,
		Keys:   featureNames,
	}
	model := boo.NewMultiClass(data, o)
	if model == nil {
		return nil, errors.New("failed to train boosted classifier")
	}
	return &Model{featureNames: append([]string(nil), featureNames...), boost: model}, nil
}

// PredictProb returns P(profitable). A nil or unloaded model answers the
// neutral 0.5 so an absent artifact can never fabricate conviction; the
// same holds for a vector whose width does not match the trained schema.
func (m *Model) PredictProb(sample []float64) float64 {
	if m == nil || m.boost == nil {
		return 0.5
	}
	if len(sample) != len(m.featureNames) {
		return 0.5
	}
	probs := m.boost.PredictSingle(sample)
	labels := m.boost.ClassLabels()
	for i := range labels {
		if labels[i] == 1 {
			return clamp01(probs[i])
		}
	}
	if len(probs) == 0 {
		return 0.5
	}
	return clamp01(probs[len(probs)-1])
}

func (m *Model) PredictBatch(samples [][]float64) []float64 {
	out := make([]float64, len(samples))
	for i := range samples {
		out[i] = m.PredictProb(samples[i])
	}
	return out
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil || m.boost == nil {
		return nil, errors.New("nil model")
	}
	var buf bytes.Buffer
	if err := boo.JSONMultiClass(m.boost, "softmax", &buf); err != nil {
		return nil, err
	}
	return json.Marshal(artifact{
		FeatureNames: m.featureNames,
		ModelText:    buf.String(),
	})
}

func UnmarshalBinary(blob []byte) (*Model, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a artifact
	if err := json.Unmarshal(blob, &a); err != nil {
		return nil, err
	}
	// Train always records the schema, so a blob without one is a
	// truncated or foreign artifact, not a loadable model.
	if len(a.FeatureNames) == 0 || a.ModelText == "" {
		return nil, errors.New("artifact missing feature schema or model text")
	}
	reader := bufio.NewReader(strings.NewReader(a.ModelText))
	model, err := boo.UnJSONMultiClass(reader)
	if err != nil {
		return nil, err
	}
	return &Model{featureNames: append([]string(nil), a.FeatureNames...), boost: model}, nil
}

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.featureNames))
	copy(out, m.featureNames)
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
