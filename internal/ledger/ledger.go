package ledger

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/oklog/ulid/v2"
)

// #region ledger-struct
// Ledger is the durable record of claims, resolutions, and repayments for
// one campaign. totalDebt rises only through Realize and falls only through
// the active forgiveness arm; it never goes below zero.
//
// A Ledger is not safe for concurrent use.
type Ledger struct {
	totalDebt   float64
	claims      []Claim
	index       map[string]int // action_id -> position in claims
	repayments  []RepaymentEvent
	forgiveness Forgiveness
	logger      *slog.Logger
	clock       func() time.Time

	contaminated        bool
	contaminationReason string
}

// #endregion ledger-struct

// #region constructor
// New creates an empty ledger with the given forgiveness policy.
func New(forgiveness Forgiveness) (*Ledger, error) {
	if err := forgiveness.validate(); err != nil {
		return nil, fmt.Errorf("new ledger: %w", err)
	}
	return &Ledger{
		index:       make(map[string]int),
		forgiveness: forgiveness,
		logger:      slog.Default(),
		clock:       time.Now,
	}, nil
}

// WithLogger overrides the logger used for integrity warnings.
func (l *Ledger) WithLogger(logger *slog.Logger) *Ledger {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// WithClock overrides the timestamp source for testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// #endregion constructor

// #region accessors
// TotalDebt returns the outstanding debt in bits.
func (l *Ledger) TotalDebt() float64 {
	return l.totalDebt
}

// Forgiveness returns the active forgiveness policy.
func (l *Ledger) Forgiveness() Forgiveness {
	return l.forgiveness
}

// Contamination reports whether the run behind this ledger ever ran with
// debt enforcement off, and why.
func (l *Ledger) Contamination() (bool, string) {
	return l.contaminated, l.contaminationReason
}

// MarkContaminated flags the ledger as produced by an unenforced run. The
// first reason is kept.
func (l *Ledger) MarkContaminated(reason string) {
	if l.contaminated {
		return
	}
	l.contaminated = true
	l.contaminationReason = reason
}

// Claims returns a copy of all claims in creation order.
func (l *Ledger) Claims() []Claim {
	out := make([]Claim, len(l.claims))
	copy(out, l.claims)
	return out
}

// Repayments returns a copy of all repayment events in order.
func (l *Ledger) Repayments() []RepaymentEvent {
	out := make([]RepaymentEvent, len(l.repayments))
	copy(out, l.repayments)
	return out
}

// Lookup returns the claim for actionID.
func (l *Ledger) Lookup(actionID string) (Claim, bool) {
	i, ok := l.index[actionID]
	if !ok {
		return Claim{}, false
	}
	return l.claims[i], true
}

// #endregion accessors

// #region claim
// Claim appends an unresolved claim. action_id must be unique for the
// lifetime of the ledger.
func (l *Ledger) Claim(req ClaimRequest) (Claim, error) {
	if req.ActionID == "" {
		return Claim{}, fmt.Errorf("claim: %w", ErrEmptyActionID)
	}
	if _, exists := l.index[req.ActionID]; exists {
		return Claim{}, fmt.Errorf("claim %s: %w", req.ActionID, ErrDuplicateClaim)
	}
	if !IsFinite(req.ClaimedGainBits) {
		return Claim{}, fmt.Errorf("claim %s: %w", req.ActionID, ErrNonFiniteGain)
	}

	c := Claim{
		ActionID:            req.ActionID,
		ActionType:          req.ActionType,
		ClaimedGainBits:     req.ClaimedGainBits,
		Timestamp:           l.clock().UTC(),
		ClaimedMarginalGain: req.ClaimedMarginalGain,
	}
	if len(req.PriorModalities) > 0 {
		c.PriorModalities = append([]string(nil), req.PriorModalities...)
	}

	l.index[c.ActionID] = len(l.claims)
	l.claims = append(l.claims, c)
	return c, nil
}

// #endregion claim

// #region realize
// Realize records the realized gain for actionID and adds its overclaim
// penalty to the debt. Returns the debt increment. An unknown or already
// resolved action_id, or a non-finite gain, is logged and ignored.
func (l *Ledger) Realize(actionID string, actualGainBits float64) float64 {
	i, ok := l.index[actionID]
	if !ok {
		l.logger.Warn("realize: no claim for action", "action_id", actionID)
		return 0
	}
	if l.claims[i].IsResolved() {
		l.logger.Warn("realize: claim already resolved", "action_id", actionID)
		return 0
	}
	if !IsFinite(actualGainBits) {
		l.logger.Error("realize: non-finite gain rejected", "action_id", actionID, "actual_gain_bits", actualGainBits)
		return 0
	}

	realized := actualGainBits
	l.claims[i].RealizedGainBits = &realized
	inc := l.claims[i].OverclaimPenalty()
	l.totalDebt += inc

	l.logger.Debug("claim resolved",
		"action_id", actionID,
		"claimed", l.claims[i].ClaimedGainBits,
		"realized", realized,
		"debt_increment", inc,
		"total_debt", l.totalDebt,
	)
	return inc
}

// #endregion realize

// #region repayment
// ApplyRepayment reduces debt by min(repayBits, totalDebt) and records the
// applied amount. Negative amounts are argument errors.
func (l *Ledger) ApplyRepayment(actionID, actionType string, repayBits float64, reason string, evidence map[string]any) (float64, error) {
	if repayBits < 0 {
		return 0, fmt.Errorf("apply repayment %s: %w", actionID, ErrNegativeRepayment)
	}
	if l.forgiveness.Mode != ForgivenessRepayment {
		return 0, fmt.Errorf("apply repayment %s: %w", actionID, ErrRepaymentDisabled)
	}

	applied := min(repayBits, l.totalDebt)
	l.totalDebt -= applied

	ev := RepaymentEvent{
		EventID:    ulid.Make().String(),
		ActionID:   actionID,
		ActionType: actionType,
		RepayBits:  applied,
		Reason:     reason,
		Evidence:   copyEvidence(evidence),
		Timestamp:  l.clock().UTC(),
	}
	l.repayments = append(l.repayments, ev)

	if applied < repayBits {
		l.logger.Debug("repayment capped at outstanding debt",
			"action_id", actionID, "requested", repayBits, "applied", applied)
	}
	return applied, nil
}

// ApplyDecay applies one tick of legacy flat decay. It is a no-op unless the
// flat-decay arm is active. Returns the reduction.
func (l *Ledger) ApplyDecay() float64 {
	if l.forgiveness.Mode != ForgivenessFlatDecay {
		return 0
	}
	dec := min(l.forgiveness.DecayRate, l.totalDebt)
	l.totalDebt -= dec
	return dec
}

// #endregion repayment

// #region cost
// CostMultiplier returns the two-tier inflation factor for an action of
// baseCost. The global tier applies to every action so that sticking to
// cheap actions cannot hide debt; the specific tier scales with cost.
func (l *Ledger) CostMultiplier(baseCost, sensitivity, globalSensitivity float64) float64 {
	globalMult := 1.0 + globalSensitivity*l.totalDebt
	specificMult := 1.0 + sensitivity*(baseCost/100.0)*l.totalDebt
	return globalMult * specificMult
}

// InflatedCost returns baseCost scaled by CostMultiplier.
func (l *Ledger) InflatedCost(baseCost, sensitivity, globalSensitivity float64) float64 {
	return baseCost * l.CostMultiplier(baseCost, sensitivity, globalSensitivity)
}

// #endregion cost

// #region statistics
// Statistics summarizes claims, resolutions and repayments.
func (l *Ledger) Statistics() Statistics {
	s := Statistics{
		TotalClaims: len(l.claims),
		TotalDebt:   l.totalDebt,
		Repayments:  len(l.repayments),
	}

	var sumOverclaim float64
	var positive int
	for _, c := range l.claims {
		if !c.IsResolved() {
			continue
		}
		s.ResolvedClaims++
		sumOverclaim += c.Overclaim()
		if c.Overclaim() > 0 {
			positive++
		}
	}
	if s.ResolvedClaims > 0 {
		s.MeanOverclaim = sumOverclaim / float64(s.ResolvedClaims)
		s.OverclaimRate = float64(positive) / float64(s.ResolvedClaims)
	}
	for _, r := range l.repayments {
		s.TotalRepaid += r.RepayBits
	}
	return s
}

// #endregion statistics

// #region reset
// Reset clears all claims, repayments and debt. The forgiveness policy and
// contamination are kept.
func (l *Ledger) Reset() {
	l.totalDebt = 0
	l.claims = nil
	l.index = make(map[string]int)
	l.repayments = nil
}

// #endregion reset

// #region helpers
// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func copyEvidence(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// #endregion helpers
