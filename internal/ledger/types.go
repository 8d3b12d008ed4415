package ledger

import (
	"errors"
	"time"
)

// #region errors
var (
	ErrEmptyActionID      = errors.New("empty action_id")
	ErrDuplicateClaim     = errors.New("duplicate action_id")
	ErrNegativeRepayment  = errors.New("repay_bits must be >= 0")
	ErrRepaymentDisabled  = errors.New("repayment disabled under flat-decay forgiveness")
	ErrInvalidForgiveness = errors.New("invalid forgiveness policy")
	ErrNonFiniteGain      = errors.New("gain bits must be finite")
)

// #endregion errors

// #region claim
// Claim is one promise about an action's expected information gain.
// Append-only: created by Ledger.Claim, resolved once by Ledger.Realize.
type Claim struct {
	ActionID            string    `json:"action_id"`
	ActionType          string    `json:"action_type"`
	ClaimedGainBits     float64   `json:"claimed_gain_bits"`
	RealizedGainBits    *float64  `json:"realized_gain_bits"`
	Timestamp           time.Time `json:"timestamp"`
	PriorModalities     []string  `json:"prior_modalities,omitempty"`
	ClaimedMarginalGain *float64  `json:"claimed_marginal_gain,omitempty"`
}

// IsResolved reports whether a realized gain has been recorded.
func (c Claim) IsResolved() bool {
	return c.RealizedGainBits != nil
}

// Overclaim is claimed minus realized gain; 0 while unresolved.
func (c Claim) Overclaim() float64 {
	if c.RealizedGainBits == nil {
		return 0
	}
	return c.ClaimedGainBits - *c.RealizedGainBits
}

// OverclaimPenalty is the positive part of Overclaim.
func (c Claim) OverclaimPenalty() float64 {
	return max(0, c.Overclaim())
}

// ClaimRequest carries the inputs of Ledger.Claim.
type ClaimRequest struct {
	ActionID            string
	ActionType          string
	ClaimedGainBits     float64
	PriorModalities     []string // measurement types already taken, in order
	ClaimedMarginalGain *float64
}

// #endregion claim

// #region repayment
// RepaymentEvent is an evidence-backed debt reduction. RepayBits is the
// amount actually applied, after capping at the outstanding debt.
type RepaymentEvent struct {
	EventID    string         `json:"event_id"`
	ActionID   string         `json:"action_id"`
	ActionType string         `json:"action_type"`
	RepayBits  float64        `json:"repay_bits"`
	Reason     string         `json:"reason"`
	Evidence   map[string]any `json:"evidence,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// #endregion repayment

// #region forgiveness
// ForgivenessMode selects the single active debt-reduction mechanism.
type ForgivenessMode string

const (
	ForgivenessRepayment ForgivenessMode = "repayment"
	ForgivenessFlatDecay ForgivenessMode = "flat_decay"
)

// Forgiveness is a tagged variant: evidenced repayment, or legacy flat decay
// at DecayRate bits per ApplyDecay call. Only the active arm reduces debt.
type Forgiveness struct {
	Mode      ForgivenessMode `json:"mode"`
	DecayRate float64         `json:"decay_rate,omitempty"`
}

// RepaymentForgiveness is the default policy.
func RepaymentForgiveness() Forgiveness {
	return Forgiveness{Mode: ForgivenessRepayment}
}

// FlatDecayForgiveness selects the legacy flat-decay arm.
func FlatDecayForgiveness(rate float64) Forgiveness {
	return Forgiveness{Mode: ForgivenessFlatDecay, DecayRate: rate}
}

// ForgivenessFromDecayRate maps the legacy debt_decay_rate option onto a
// policy: any positive rate selects flat decay.
func ForgivenessFromDecayRate(rate float64) Forgiveness {
	if rate > 0 {
		return FlatDecayForgiveness(rate)
	}
	return RepaymentForgiveness()
}

func (f Forgiveness) validate() error {
	switch f.Mode {
	case ForgivenessRepayment:
		return nil
	case ForgivenessFlatDecay:
		if f.DecayRate < 0 {
			return ErrInvalidForgiveness
		}
		return nil
	}
	return ErrInvalidForgiveness
}

// #endregion forgiveness

// #region statistics
// Statistics summarizes the ledger.
type Statistics struct {
	TotalClaims    int     `json:"total_claims"`
	ResolvedClaims int     `json:"resolved_claims"`
	MeanOverclaim  float64 `json:"mean_overclaim"`
	OverclaimRate  float64 `json:"overclaim_rate"`
	TotalDebt      float64 `json:"total_debt"`
	TotalRepaid    float64 `json:"total_repaid"`
	Repayments     int     `json:"repayments"`
}

// #endregion statistics
