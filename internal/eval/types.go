package eval

// #region repayment-config
// RepaymentConfig holds the calibration repayment schedule.
type RepaymentConfig struct {
	BaseBits            float64 `json:"base_bits" yaml:"base_bits"`                         // flat credit for any calibration action
	MaxBonusBits        float64 `json:"max_bonus_bits" yaml:"max_bonus_bits"`               // ceiling on the improvement bonus
	BonusPerImprovement float64 `json:"bonus_per_improvement" yaml:"bonus_per_improvement"` // bits per unit fractional noise improvement
	MaxBitsPerAction    float64 `json:"max_bits_per_action" yaml:"max_bits_per_action"`     // ceiling on total repayment
}

// DefaultRepaymentConfig returns the standard schedule: 0.25 base, up to
// 0.75 bonus at 7.5 bits per unit improvement, 1.0 bit per action.
func DefaultRepaymentConfig() RepaymentConfig {
	return RepaymentConfig{
		BaseBits:            0.25,
		MaxBonusBits:        0.75,
		BonusPerImprovement: 7.5,
		MaxBitsPerAction:    1.0,
	}
}

// #endregion repayment-config

// #region evidence
// CalibrationEvidence is what a completed action offers toward repayment.
type CalibrationEvidence struct {
	ActionID         string
	ActionType       string
	IsCalibration    bool
	NoiseImprovement float64 // fractional reduction in measured noise, e.g. 0.2 = 20%
}

// #endregion evidence

// #region eval-metric
// EvalMetric captures a single step of the repayment computation.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool // false when the value was capped or rejected
}

// #endregion eval-metric

// #region repayment-result
// RepaymentResult is the earned repayment for one action.
type RepaymentResult struct {
	Eligible  bool
	BaseBits  float64
	BonusBits float64
	RepayBits float64
	Metrics   []EvalMetric
	Reason    string
}

// Evidence returns the justification map recorded with the repayment.
func (r RepaymentResult) Evidence() map[string]any {
	out := make(map[string]any, len(r.Metrics))
	for _, m := range r.Metrics {
		out[m.Name] = m.Value
	}
	return out
}

// #endregion repayment-result
