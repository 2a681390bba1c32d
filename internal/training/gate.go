package training

import (
	"fmt"
	"math"

	"verdict-engine/internal/config"
	"verdict-engine/internal/domain"
	"verdict-engine/internal/registry"
)

// GateInput carries the validation-slice evidence for one candidate.
// A nil map means the family was not trained in this run. RegressorError
// is informational only; no gate check binds the return regressor.
type GateInput struct {
	ClassifierMetrics map[string]float64
	RegressorError    *RegressionError
	CalibrationError  map[domain.EngineKind]float64
	MeanWeights       map[domain.EngineKind]float64
}

// EvaluateGate decides promotion. The classifier checks are mandatory: a
// run that skipped the meta family cannot promote. Calibrator and weight
// checks are skipped when their family was not trained, but fail the gate
// when trained and out of bounds.
func EvaluateGate(in GateInput, policy config.GatePolicy) registry.GateSummary {
	var checks []registry.GateCheck

	if in.ClassifierMetrics == nil {
		checks = append(checks,
			registry.GateCheck{Name: "classifier_accuracy", Status: "fail", Threshold: policy.MinAccuracy, Mandatory: true},
			registry.GateCheck{Name: "classifier_auc", Status: "fail", Threshold: policy.MinAUC, Mandatory: true},
		)
	} else {
		checks = append(checks,
			boundCheck("classifier_accuracy", in.ClassifierMetrics["accuracy"], policy.MinAccuracy, true),
			boundCheck("classifier_auc", in.ClassifierMetrics["auc"], policy.MinAUC, true),
		)
	}

	if len(in.CalibrationError) == 0 {
		checks = append(checks, registry.GateCheck{Name: "calibration_error", Status: "skipped", Threshold: policy.MaxCalibrationError})
	} else {
		worst := 0.0
		for _, e := range in.CalibrationError {
			if e > worst {
				worst = e
			}
		}
		status := "pass"
		if worst > policy.MaxCalibrationError {
			status = "fail"
		}
		checks = append(checks, registry.GateCheck{Name: "calibration_error", Status: status, Value: worst, Threshold: policy.MaxCalibrationError})
	}

	if len(in.MeanWeights) == 0 {
		checks = append(checks,
			registry.GateCheck{Name: "weights_sum", Status: "skipped", Threshold: policy.WeightSumTolerance},
			registry.GateCheck{Name: "weights_max", Status: "skipped", Threshold: policy.MaxSingleWeight},
		)
	} else {
		sum := 0.0
		max := 0.0
		for _, w := range in.MeanWeights {
			sum += w
			if w > max {
				max = w
			}
		}
		sumStatus := "pass"
		if math.Abs(sum-1) > policy.WeightSumTolerance {
			sumStatus = "fail"
		}
		maxStatus := "pass"
		if max > policy.MaxSingleWeight {
			maxStatus = "fail"
		}
		checks = append(checks,
			registry.GateCheck{Name: "weights_sum", Status: sumStatus, Value: sum, Threshold: policy.WeightSumTolerance},
			registry.GateCheck{Name: "weights_max", Status: maxStatus, Value: max, Threshold: policy.MaxSingleWeight},
		)
	}

	passed := true
	for _, c := range checks {
		if c.Status == "fail" {
			passed = false
		}
	}
	return registry.GateSummary{Passed: passed, Checks: checks}
}

// FailureReasons renders the failing checks for the operator channel.
func FailureReasons(gate registry.GateSummary) []string {
	var out []string
	for _, c := range gate.Checks {
		if c.Status != "fail" {
			continue
		}
		out = append(out, fmt.Sprintf("%s %.4f vs threshold %.4f", c.Name, c.Value, c.Threshold))
	}
	return out
}

func boundCheck(name string, value, min float64, mandatory bool) registry.GateCheck {
	status := "pass"
	if value < min {
		status = "fail"
	}
	return registry.GateCheck{Name: name, Status: status, Value: value, Threshold: min, Mandatory: mandatory}
}
