package rpc

import (
	"github.com/danielpatrickdp/epistemic-control/internal/controller"
	"github.com/danielpatrickdp/epistemic-control/internal/gate"
	"github.com/danielpatrickdp/epistemic-control/internal/provisional"
	"github.com/danielpatrickdp/epistemic-control/internal/signals"
)

// #region requests
// ClaimRequest is the ClaimAction payload.
type ClaimRequest struct {
	ActionID            string   `json:"action_id"`
	ActionType          string   `json:"action_type"`
	ClaimedGainBits     float64  `json:"claimed_gain_bits"`
	PriorModalities     []string `json:"prior_modalities,omitempty"`
	ClaimedMarginalGain *float64 `json:"claimed_marginal_gain,omitempty"`
}

// ResolveRequest is the ResolveAction payload.
type ResolveRequest struct {
	ActionID       string  `json:"action_id"`
	ActualGainBits float64 `json:"actual_gain_bits"`
	ActionType     string  `json:"action_type,omitempty"`
}

// RefuseRequest is the ShouldRefuseAction payload.
type RefuseRequest struct {
	Template        string  `json:"template"`
	BaseCostWells   float64 `json:"base_cost_wells"`
	BudgetRemaining float64 `json:"budget_remaining"`
}

// RepayRequest is the ApplyCalibrationRepayment payload.
type RepayRequest struct {
	ActionID         string  `json:"action_id"`
	Template         string  `json:"template"`
	NoiseImprovement float64 `json:"noise_improvement"`
}

// MeasureRequest is the MeasureInformationGain payload, sent after every
// action that produced a posterior.
type MeasureRequest struct {
	PriorEntropy     float64 `json:"prior_entropy"`
	PosteriorEntropy float64 `json:"posterior_entropy"`
}

// PenaltyRequest is the ComputePenalty payload. An empty source counts as an
// ambiguous measurement.
type PenaltyRequest struct {
	ActionType       string  `json:"action_type"`
	PriorEntropy     float64 `json:"prior_entropy"`
	PosteriorEntropy float64 `json:"posterior_entropy"`
	BaselineEntropy  float64 `json:"baseline_entropy"`
	EntropySource    string  `json:"entropy_source,omitempty"`
}

// EscrowRequest is the EscrowWidening payload.
type EscrowRequest struct {
	ActionID        string  `json:"action_id"`
	Amount          float64 `json:"amount"`
	PriorEntropy    float64 `json:"prior_entropy"`
	SettlementHours float64 `json:"settlement_hours"`
}

// AdvanceRequest is the Advance payload.
type AdvanceRequest struct {
	CurrentEntropy float64 `json:"current_entropy"`
	ElapsedHours   float64 `json:"elapsed_hours"`
}

// #endregion requests

// #region responses
// ResolveResponse reports a settled claim and the resulting debt.
type ResolveResponse struct {
	Resolution controller.Resolution `json:"resolution"`
	TotalDebt  float64               `json:"total_debt"`
}

// Veto is one refusal condition that held.
type Veto struct {
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// RefuseResponse is the wire form of a gate decision.
type RefuseResponse struct {
	Refuse  bool                 `json:"refuse"`
	Reason  string               `json:"reason,omitempty"`
	Vetoes  []Veto               `json:"vetoes,omitempty"`
	Context gate.DecisionContext `json:"context"`
	State   string               `json:"state"`
	EntryID string               `json:"entry_id,omitempty"` // decision_log row, when logging is on
}

// RepayResponse reports an applied calibration repayment.
type RepayResponse struct {
	Eligible    bool    `json:"eligible"`
	BaseBits    float64 `json:"base_bits"`
	BonusBits   float64 `json:"bonus_bits"`
	RepayBits   float64 `json:"repay_bits"`
	AppliedBits float64 `json:"applied_bits"` // after capping at outstanding debt
	Reason      string  `json:"reason"`
	TotalDebt   float64 `json:"total_debt"`
}

// MeasureResponse reports the realized gain and the thrashing state it fed.
type MeasureResponse struct {
	InformationGainBits float64                 `json:"information_gain_bits"`
	Volatility          signals.VolatilityStats `json:"volatility"`
}

// EscrowResponse reports escrow totals after a new entry.
type EscrowResponse struct {
	ActionID    string                 `json:"action_id"`
	Amount      float64                `json:"amount"`
	Provisional provisional.Statistics `json:"provisional"`
}

// AdvanceResponse reports what settled during one clock advance. Charge is
// owed by the caller.
type AdvanceResponse struct {
	Charge      float64                `json:"charge"`
	Refunded    []string               `json:"refunded,omitempty"`
	Finalized   []string               `json:"finalized,omitempty"`
	Provisional provisional.Statistics `json:"provisional"`
}

// #endregion responses
