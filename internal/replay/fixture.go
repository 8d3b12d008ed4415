package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/epistemic-control/internal/controller"
	"github.com/danielpatrickdp/epistemic-control/internal/ledger"
	"github.com/danielpatrickdp/epistemic-control/internal/penalty"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a campaign replay.
type Fixture struct {
	Description string            `json:"description"`
	CampaignID  string            `json:"campaign_id"`
	Config      controller.Config `json:"config"` // absent keys keep defaults
	Steps       []Step            `json:"steps"`
}

// Op names one scripted controller operation.
type Op string

const (
	OpClaim           Op = "claim"
	OpResolve         Op = "resolve"
	OpMeasure         Op = "measure"
	OpPenalty         Op = "penalty"
	OpRefuseCheck     Op = "refuse_check"
	OpRepay           Op = "repay"
	OpEscrow          Op = "escrow"
	OpAdvance         Op = "advance"
	OpDecay           Op = "decay"
	OpDisableTracking Op = "disable_tracking"
	OpResetEpisode    Op = "reset_episode"
)

// Step is one scripted operation with its expected outcome. Only the
// fields relevant to Op are read.
type Step struct {
	ID     string `json:"id"`
	Op     Op     `json:"op"`
	Expect Expect `json:"expect"`

	ActionID   string `json:"action_id,omitempty"`
	ActionType string `json:"action_type,omitempty"`
	Template   string `json:"template,omitempty"`

	ClaimedGainBits float64  `json:"claimed_gain_bits,omitempty"`
	ActualGainBits  float64  `json:"actual_gain_bits,omitempty"`
	PriorModalities []string `json:"prior_modalities,omitempty"`

	PriorEntropy     float64 `json:"prior_entropy,omitempty"`
	PosteriorEntropy float64 `json:"posterior_entropy,omitempty"`
	BaselineEntropy  float64 `json:"baseline_entropy,omitempty"`
	Source           string  `json:"entropy_source,omitempty"`

	BaseCostWells   float64 `json:"base_cost_wells,omitempty"`
	BudgetRemaining float64 `json:"budget_remaining,omitempty"`

	NoiseImprovement float64 `json:"noise_improvement,omitempty"`

	Amount          *float64 `json:"amount,omitempty"` // escrow: nil derives the entropy penalty
	SettlementHours float64  `json:"settlement_hours,omitempty"`
	CurrentEntropy  float64  `json:"current_entropy,omitempty"`
	ElapsedHours    float64  `json:"elapsed_hours,omitempty"`
}

// Expect lists the checks for a step. Nil fields are not checked.
type Expect struct {
	Value  *float64 `json:"value,omitempty"`
	Debt   *float64 `json:"debt,omitempty"`
	Refuse *bool    `json:"refuse,omitempty"`
	Reason *string  `json:"reason,omitempty"`
	State  *string  `json:"state,omitempty"`
	Error  *string  `json:"error,omitempty"` // substring of the expected error
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file. Config keys absent
// from the file keep their controller defaults.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f := Fixture{Config: controller.DefaultConfig()}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	for i, s := range f.Steps {
		if s.ID == "" {
			f.Steps[i].ID = fmt.Sprintf("step-%d", i+1)
		}
	}
	return &f, nil
}

// ToClaimRequest converts a claim step to a ledger request.
func (s *Step) ToClaimRequest() ledger.ClaimRequest {
	return ledger.ClaimRequest{
		ActionID:        s.ActionID,
		ActionType:      s.ActionType,
		ClaimedGainBits: s.ClaimedGainBits,
		PriorModalities: s.PriorModalities,
	}
}

// ToPenaltyInput converts a penalty step to a controller input. An empty
// source counts as an ambiguous measurement.
func (s *Step) ToPenaltyInput() controller.PenaltyInput {
	src := penalty.EntropySource(s.Source)
	if src == "" {
		src = penalty.SourceMeasurementAmbiguous
	}
	return controller.PenaltyInput{
		ActionType:       s.ActionType,
		PriorEntropy:     s.PriorEntropy,
		PosteriorEntropy: s.PosteriorEntropy,
		BaselineEntropy:  s.BaselineEntropy,
		Source:           src,
	}
}

// #endregion fixture-loader
