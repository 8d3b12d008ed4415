package provisional

import (
	"fmt"
	"log/slog"
)

// #region tracker
// Tracker escrows widening penalties whose productiveness can only be judged
// later. Every entry settles exactly once: refunded if entropy has since
// collapsed below its prior, finalized otherwise.
//
// Time advances only through Step with caller-supplied elapsed hours.
type Tracker struct {
	entries        []*Entry
	open           map[string]*Entry
	totalEscrowed  float64
	totalRefunded  float64
	totalFinalized float64
	logger         *slog.Logger
}

// NewTracker creates an empty tracker. A nil logger uses slog.Default().
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{open: make(map[string]*Entry), logger: logger}
}

// #endregion tracker

// #region add
// Add opens an escrow entry for actionID.
func (t *Tracker) Add(actionID string, amount, priorEntropy, settlementHours float64) error {
	if amount < 0 {
		return fmt.Errorf("escrow %s: %w", actionID, ErrNegativeAmount)
	}
	if _, exists := t.open[actionID]; exists {
		return fmt.Errorf("escrow %s: %w", actionID, ErrDuplicateEntry)
	}
	e := &Entry{
		ActionID:        actionID,
		PenaltyAmount:   amount,
		PriorEntropy:    priorEntropy,
		SettlementHours: max(0, settlementHours),
	}
	t.entries = append(t.entries, e)
	t.open[actionID] = e
	t.totalEscrowed += amount
	return nil
}

// #endregion add

// #region step
// Step advances every open entry by elapsedHours and settles those whose
// horizon has elapsed against currentEntropy.
func (t *Tracker) Step(currentEntropy, elapsedHours float64) (StepResult, error) {
	if elapsedHours < 0 {
		return StepResult{}, ErrNegativeElapsed
	}

	var res StepResult
	for _, e := range t.entries {
		if e.Settled {
			continue
		}
		e.ElapsedHours += elapsedHours
		if e.ElapsedHours < e.SettlementHours {
			continue
		}
		if currentEntropy < e.PriorEntropy {
			t.settle(e, OutcomeRefunded)
			res.Refunded = append(res.Refunded, e.ActionID)
			continue
		}
		t.settle(e, OutcomeFinalized)
		res.Charge += e.PenaltyAmount
		res.Finalized = append(res.Finalized, e.ActionID)
	}
	return res, nil
}

// #endregion step

// #region manual-settlement
// Refund settles actionID early as productive. Returns false if no open
// entry exists.
func (t *Tracker) Refund(actionID string) bool {
	e, ok := t.open[actionID]
	if !ok {
		return false
	}
	t.settle(e, OutcomeRefunded)
	return true
}

// Finalize settles actionID early as a charge and returns the amount.
func (t *Tracker) Finalize(actionID string) (float64, bool) {
	e, ok := t.open[actionID]
	if !ok {
		return 0, false
	}
	t.settle(e, OutcomeFinalized)
	return e.PenaltyAmount, true
}

func (t *Tracker) settle(e *Entry, outcome Outcome) {
	e.Settled = true
	e.Outcome = outcome
	delete(t.open, e.ActionID)
	switch outcome {
	case OutcomeRefunded:
		t.totalRefunded += e.PenaltyAmount
	case OutcomeFinalized:
		t.totalFinalized += e.PenaltyAmount
	}
	t.logger.Debug("provisional penalty settled",
		"action_id", e.ActionID, "outcome", string(outcome), "amount", e.PenaltyAmount)
}

// #endregion manual-settlement

// #region queries
// Entries returns copies of all entries in creation order.
func (t *Tracker) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = *e
	}
	return out
}

// Statistics summarizes escrow activity.
func (t *Tracker) Statistics() Statistics {
	s := Statistics{
		TotalEscrowed:  t.totalEscrowed,
		TotalRefunded:  t.totalRefunded,
		TotalFinalized: t.totalFinalized,
		Pending:        len(t.open),
	}
	for _, e := range t.open {
		s.PendingAmount += e.PenaltyAmount
	}
	if settled := t.totalRefunded + t.totalFinalized; settled > 0 {
		s.RefundRate = t.totalRefunded / settled
	}
	return s
}

// Reset drops all entries and totals.
func (t *Tracker) Reset() {
	t.entries = nil
	t.open = make(map[string]*Entry)
	t.totalEscrowed = 0
	t.totalRefunded = 0
	t.totalFinalized = 0
}

// #endregion queries
