package provisional

import "errors"

// #region errors
var (
	ErrNegativeAmount  = errors.New("penalty amount must be >= 0")
	ErrNegativeElapsed = errors.New("elapsed hours must be >= 0")
	ErrDuplicateEntry  = errors.New("action already has an open escrow entry")
)

// #endregion errors

// #region outcome
// Outcome is how an escrow entry was settled.
type Outcome string

const (
	OutcomePending   Outcome = ""
	OutcomeRefunded  Outcome = "refunded"
	OutcomeFinalized Outcome = "finalized"
)

// #endregion outcome

// #region entry
// Entry is an escrowed penalty for an entropy-widening action.
type Entry struct {
	ActionID        string  `json:"action_id"`
	PenaltyAmount   float64 `json:"penalty_amount"`
	PriorEntropy    float64 `json:"prior_entropy"`    // baseline for the settlement comparison
	SettlementHours float64 `json:"settlement_hours"` // settle once ElapsedHours reaches this
	ElapsedHours    float64 `json:"elapsed_hours"`
	Settled         bool    `json:"settled"`
	Outcome         Outcome `json:"outcome,omitempty"`
}

// #endregion entry

// #region step-result
// StepResult reports what settled during one Step.
type StepResult struct {
	Charge    float64  // sum of finalized amounts, to be applied by the caller
	Refunded  []string // action ids refunded this step
	Finalized []string // action ids finalized this step
}

// #endregion step-result

// #region statistics
// Statistics summarizes escrow activity.
type Statistics struct {
	TotalEscrowed  float64 `json:"total_escrowed"`
	TotalRefunded  float64 `json:"total_refunded"`
	TotalFinalized float64 `json:"total_finalized"`
	Pending        int     `json:"pending"`
	PendingAmount  float64 `json:"pending_amount"`
	RefundRate     float64 `json:"refund_rate"` // refunded / (refunded + finalized)
}

// #endregion statistics

// EpisodeHorizon converts a legacy episode-count horizon into hours.
func EpisodeHorizon(episodes int, hoursPerEpisode float64) float64 {
	return float64(episodes) * hoursPerEpisode
}
