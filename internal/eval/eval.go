package eval

import "fmt"

// #region evaluator
// Evaluator turns calibration evidence into an earned debt repayment.
// Repayment is deliberately slow: a flat base plus an evidenced bonus,
// capped per action, while overclaim penalties carry no such ceiling.
type Evaluator struct {
	config RepaymentConfig
}

// NewEvaluator creates an evaluator with the given schedule.
func NewEvaluator(config RepaymentConfig) *Evaluator {
	return &Evaluator{config: config}
}

// Run computes the repayment earned by one action.
func (e *Evaluator) Run(ev CalibrationEvidence) RepaymentResult {
	if !ev.IsCalibration {
		return RepaymentResult{
			Reason: fmt.Sprintf("%s is not a calibration action", ev.ActionType),
		}
	}

	var metrics []EvalMetric

	// 1. Flat base credit
	metrics = append(metrics, EvalMetric{Name: "base_bits", Value: e.config.BaseBits, Pass: true})

	// 2. Improvement bonus; worsening noise earns nothing extra
	improvement := ev.NoiseImprovement
	improvementPass := improvement >= 0
	if !improvementPass {
		improvement = 0
	}
	metrics = append(metrics, EvalMetric{Name: "noise_improvement", Value: ev.NoiseImprovement, Pass: improvementPass})

	rawBonus := improvement * e.config.BonusPerImprovement
	bonus := min(e.config.MaxBonusBits, rawBonus)
	metrics = append(metrics, EvalMetric{Name: "bonus_bits", Value: bonus, Pass: bonus == rawBonus})

	// 3. Per-action ceiling
	rawTotal := e.config.BaseBits + bonus
	total := min(e.config.MaxBitsPerAction, rawTotal)
	metrics = append(metrics, EvalMetric{Name: "repay_bits", Value: total, Pass: total == rawTotal})

	return RepaymentResult{
		Eligible:  true,
		BaseBits:  e.config.BaseBits,
		BonusBits: bonus,
		RepayBits: total,
		Metrics:   metrics,
		Reason:    fmt.Sprintf("calibration repayment: base=%.4f bonus=%.4f total=%.4f", e.config.BaseBits, bonus, total),
	}
}

// #endregion evaluator
