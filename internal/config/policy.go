package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Policy holds the numeric contracts of the learning subsystem. Every
// field has a default, so a missing policy file yields a fully usable
// policy; an invalid one is a startup error.
type Policy struct {
	Training TrainingPolicy `yaml:"training"`
	Gate     GatePolicy     `yaml:"gate"`
	Drift    DriftPolicy    `yaml:"drift"`
	Bayes    BayesPolicy    `yaml:"bayes"`
}

type TrainingPolicy struct {
	MinSamplesPerFamily int     `yaml:"min_samples_per_family" default:"200" validate:"gt=0"`
	MaxReturnPct        float64 `yaml:"max_return_pct" default:"50" validate:"gt=0"`
	TrainFraction       float64 `yaml:"train_fraction" default:"0.8" validate:"gt=0,lt=1"`
	OutlierScore        float64 `yaml:"outlier_score" default:"0.65" validate:"gte=0.5,lte=1"`
	MaxOutlierFraction  float64 `yaml:"max_outlier_fraction" default:"0.05" validate:"gte=0,lte=0.25"`
	StatsSampleCap      int     `yaml:"stats_sample_cap" default:"2000" validate:"gte=100"`
	TargetTemperature   float64 `yaml:"target_temperature" default:"0.5" validate:"gt=0"`
	BarsHorizon         int     `yaml:"bars_horizon" default:"4" validate:"gt=0"`
}

type GatePolicy struct {
	MinAccuracy         float64 `yaml:"min_accuracy" default:"0.52" validate:"gte=0,lte=1"`
	MinAUC              float64 `yaml:"min_auc" default:"0.55" validate:"gte=0,lte=1"`
	MaxCalibrationError float64 `yaml:"max_calibration_error" default:"0.15" validate:"gt=0,lte=1"`
	WeightSumTolerance  float64 `yaml:"weight_sum_tolerance" default:"0.05" validate:"gt=0,lte=0.5"`
	MaxSingleWeight     float64 `yaml:"max_single_weight" default:"0.50" validate:"gt=0,lte=1"`
}

type DriftPolicy struct {
	Bins         int `yaml:"bins" default:"10" validate:"gt=1"`
	RecentWindow int `yaml:"recent_window" default:"500" validate:"gte=10"`
}

type BayesPolicy struct {
	PriorAlpha      float64 `yaml:"prior_alpha" default:"1" validate:"gt=0"`
	PriorBeta       float64 `yaml:"prior_beta" default:"1" validate:"gt=0"`
	Decay           float64 `yaml:"decay" default:"0.99" validate:"gt=0,lte=1"`
	MinSamples      int64   `yaml:"min_samples" default:"10" validate:"gt=0"`
	ExplorationRate float64 `yaml:"exploration_rate" default:"0.1" validate:"gte=0,lte=1"`
}

// DefaultPolicy is the policy with every field at its default tag value.
func DefaultPolicy() Policy {
	var p Policy
	if err := defaults.Set(&p); err != nil {
		panic(fmt.Sprintf("policy defaults: %v", err))
	}
	return p
}

// LoadPolicy reads the YAML policy at path. A missing file is not an
// error: tuning is optional, defaults are not.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	if err := defaults.Set(&p); err != nil {
		return Policy{}, fmt.Errorf("apply policy defaults: %w", err)
	}
	if err := validator.New().Struct(p); err != nil {
		return Policy{}, fmt.Errorf("validate policy: %w", err)
	}
	return p, nil
}
