package controller

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/epistemic-control/internal/eval"
	"github.com/danielpatrickdp/epistemic-control/internal/ledger"
	"github.com/danielpatrickdp/epistemic-control/internal/penalty"
	"github.com/danielpatrickdp/epistemic-control/internal/provisional"
	"github.com/danielpatrickdp/epistemic-control/internal/sandbag"
	"github.com/danielpatrickdp/epistemic-control/internal/signals"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid controller config")

// #region config
// Config holds every controller option.
type Config struct {
	DebtSensitivity         float64  `json:"debt_sensitivity" yaml:"debt_sensitivity"`     // specific-tier slope per bit of debt
	GlobalSensitivity       float64  `json:"global_sensitivity" yaml:"global_sensitivity"` // global-tier slope per bit of debt
	DebtDecayRate           float64  `json:"debt_decay_rate" yaml:"debt_decay_rate"`       // > 0 selects legacy flat decay
	DebtHardThreshold       float64  `json:"debt_hard_threshold" yaml:"debt_hard_threshold"`
	CalibrationCap          float64  `json:"calibration_cap" yaml:"calibration_cap"`
	MinCalibrationCostWells float64  `json:"min_calibration_cost_wells" yaml:"min_calibration_cost_wells"`
	CalibrationTemplates    []string `json:"calibration_templates" yaml:"calibration_templates"`
	EnableDebtTracking      bool     `json:"enable_debt_tracking" yaml:"enable_debt_tracking"`
	EnablePenalties         bool     `json:"enable_penalties" yaml:"enable_penalties"`

	Penalty     penalty.Config           `json:"penalty" yaml:"penalty"`
	Volatility  signals.VolatilityConfig `json:"volatility" yaml:"volatility"`
	Stability   signals.StabilityConfig  `json:"stability" yaml:"stability"`
	Sandbagging sandbag.Config           `json:"sandbagging" yaml:"sandbagging"`
	Repayment   eval.RepaymentConfig     `json:"repayment" yaml:"repayment"`
}

// DefaultConfig returns the standard control-plane settings. Debt
// sensitivity is intentionally large so that debt is felt.
func DefaultConfig() Config {
	return Config{
		DebtSensitivity:         0.5,
		GlobalSensitivity:       0.1,
		DebtDecayRate:           0,
		DebtHardThreshold:       2.0,
		CalibrationCap:          1.5,
		MinCalibrationCostWells: 12,
		CalibrationTemplates: []string{
			"baseline_replicates",
			"dmso_control_plate",
			"calibrate_noise_sigma",
			"calibrate_plate_effects",
		},
		EnableDebtTracking: true,
		EnablePenalties:    true,
		Penalty:            penalty.DefaultConfig(),
		Volatility:         signals.DefaultVolatilityConfig(),
		Stability:          signals.DefaultStabilityConfig(),
		Sandbagging:        sandbag.DefaultConfig(),
		Repayment:          eval.DefaultRepaymentConfig(),
	}
}

// Validate rejects configurations that are programming errors.
func (c Config) Validate() error {
	switch {
	case c.DebtSensitivity < 0:
		return fmt.Errorf("%w: debt_sensitivity %.4f < 0", ErrInvalidConfig, c.DebtSensitivity)
	case c.GlobalSensitivity < 0:
		return fmt.Errorf("%w: global_sensitivity %.4f < 0", ErrInvalidConfig, c.GlobalSensitivity)
	case c.DebtDecayRate < 0:
		return fmt.Errorf("%w: debt_decay_rate %.4f < 0", ErrInvalidConfig, c.DebtDecayRate)
	case c.DebtHardThreshold <= 0:
		return fmt.Errorf("%w: debt_hard_threshold %.4f <= 0", ErrInvalidConfig, c.DebtHardThreshold)
	case c.CalibrationCap < 1:
		return fmt.Errorf("%w: calibration_cap %.4f < 1", ErrInvalidConfig, c.CalibrationCap)
	case c.MinCalibrationCostWells < 0:
		return fmt.Errorf("%w: min_calibration_cost_wells %.2f < 0", ErrInvalidConfig, c.MinCalibrationCostWells)
	case c.Volatility.WindowSize < 1 || c.Stability.WindowSize < 1:
		return fmt.Errorf("%w: tracker window sizes must be >= 1", ErrInvalidConfig)
	case c.Penalty.MaxPenalty < 0 || c.Penalty.Weight < 0:
		return fmt.Errorf("%w: penalty weight and max_penalty must be >= 0", ErrInvalidConfig)
	case c.Repayment.BaseBits < 0 || c.Repayment.MaxBitsPerAction < 0:
		return fmt.Errorf("%w: repayment amounts must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// #endregion config

// #region gate-state
// GateState is the campaign-level access level implied by debt and budget.
type GateState string

const (
	StateSolvent    GateState = "solvent"
	StateInsolvent  GateState = "insolvent"
	StateDeadlocked GateState = "deadlocked"
)

// #endregion gate-state

// #region resolution
// Resolution reports the outcome of ResolveAction.
type Resolution struct {
	ActionID         string  `json:"action_id"`
	ClaimedGainBits  float64 `json:"claimed_gain_bits"`
	RealizedGainBits float64 `json:"realized_gain_bits"`
	CreditedGainBits float64 `json:"credited_gain_bits"` // after the sandbagging discount
	DebtIncrement    float64 `json:"debt_increment"`
	Matched          bool    `json:"matched"` // false when no open claim existed
}

// #endregion resolution

// #region penalty-breakdown
// PenaltyInput describes one measurement for ComputePenalty.
type PenaltyInput struct {
	ActionType       string
	PriorEntropy     float64
	PosteriorEntropy float64
	BaselineEntropy  float64
	Source           penalty.EntropySource
}

// PenaltyBreakdown combines every penalty source for one decision.
type PenaltyBreakdown struct {
	Entropy           penalty.Result `json:"entropy"`
	VolatilityPenalty float64        `json:"volatility_penalty"`
	StabilityPenalty  float64        `json:"stability_penalty"`
	Total             float64        `json:"total"`
}

// #endregion penalty-breakdown

// #region statistics
// Statistics merges every component's statistics.
type Statistics struct {
	Ledger              ledger.Statistics       `json:"ledger"`
	Provisional         provisional.Statistics  `json:"provisional"`
	Volatility          signals.VolatilityStats `json:"volatility"`
	Stability           signals.StabilityStats  `json:"stability"`
	Sandbagging         sandbag.Statistics      `json:"sandbagging"`
	DebtTrackingEnabled bool                    `json:"debt_tracking_enabled"`
	PenaltiesEnabled    bool                    `json:"penalties_enabled"`
	IsContaminated      bool                    `json:"is_contaminated"`
	ContaminationReason string                  `json:"contamination_reason,omitempty"`
}

// #endregion statistics
