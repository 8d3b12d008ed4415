package controller

import (
	"fmt"
	"log/slog"

	"github.com/danielpatrickdp/epistemic-control/internal/eval"
	"github.com/danielpatrickdp/epistemic-control/internal/gate"
	"github.com/danielpatrickdp/epistemic-control/internal/ledger"
	"github.com/danielpatrickdp/epistemic-control/internal/penalty"
	"github.com/danielpatrickdp/epistemic-control/internal/provisional"
	"github.com/danielpatrickdp/epistemic-control/internal/sandbag"
	"github.com/danielpatrickdp/epistemic-control/internal/signals"
)

const reasonTrackingDisabled = "enable_debt_tracking=false"

// #region controller-struct

// Controller is the single facade the action chooser talks to. It owns the
// ledger, escrow, trackers and refusal gate for one campaign.
//
// A Controller is not safe for concurrent use; callers serialize access.
type Controller struct {
	config      Config
	ledger      *ledger.Ledger
	provisional *provisional.Tracker
	volatility  *signals.VolatilityTracker
	stability   *signals.StabilityTracker
	detector    sandbag.Detector
	gate        *gate.Gate
	repayment   *eval.Evaluator
	calibration map[string]bool
	logger      *slog.Logger

	contaminated        bool
	contaminationReason string
}

// #endregion controller-struct

// #region constructor

// New creates a controller. A nil logger uses slog.Default().
// Disabling debt tracking is allowed but marks the run contaminated.
func New(config Config, logger *slog.Logger) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	l, err := ledger.New(ledger.ForgivenessFromDecayRate(config.DebtDecayRate))
	if err != nil {
		return nil, err
	}

	c := &Controller{
		config:      config,
		ledger:      l.WithLogger(logger),
		provisional: provisional.NewTracker(logger),
		volatility:  signals.NewVolatilityTracker(config.Volatility),
		stability:   signals.NewStabilityTracker(config.Stability),
		detector:    sandbag.New(config.Sandbagging),
		gate: gate.NewGate(gate.GateConfig{
			DebtHardThreshold: config.DebtHardThreshold,
			ReserveWells:      config.MinCalibrationCostWells,
		}),
		repayment:   eval.NewEvaluator(config.Repayment),
		calibration: make(map[string]bool, len(config.CalibrationTemplates)),
		logger:      logger,
	}
	for _, name := range config.CalibrationTemplates {
		c.calibration[name] = true
	}
	if !config.EnableDebtTracking {
		c.markContaminated(reasonTrackingDisabled)
	}
	return c, nil
}

// WithDetector replaces the sandbagging detector.
func (c *Controller) WithDetector(d sandbag.Detector) *Controller {
	if d == nil {
		d = sandbag.Noop{}
	}
	c.detector = d
	return c
}

// WithLedger replaces the ledger, e.g. with one restored from a snapshot.
// Contamination flows both ways: a contaminated ledger marks the controller,
// and a contaminated controller marks the ledger it adopts.
func (c *Controller) WithLedger(l *ledger.Ledger) *Controller {
	c.ledger = l.WithLogger(c.logger)
	if ok, reason := l.Contamination(); ok {
		c.markContaminated(reason)
	}
	if c.contaminated {
		c.ledger.MarkContaminated(c.contaminationReason)
	}
	return c
}

// #endregion constructor

// #region accessors

// Config returns the controller configuration.
func (c *Controller) Config() Config { return c.config }

// Ledger exposes the ledger for persistence.
func (c *Controller) Ledger() *ledger.Ledger { return c.ledger }

// TotalDebt returns the outstanding debt in bits.
func (c *Controller) TotalDebt() float64 { return c.ledger.TotalDebt() }

// IsCalibrationTemplate reports whether name is a calibration template.
func (c *Controller) IsCalibrationTemplate(name string) bool {
	return c.calibration[name]
}

// #endregion accessors

// #region contamination

// SetDebtTracking toggles debt enforcement. Disabling is sticky: the run
// stays contaminated even if tracking is later re-enabled.
func (c *Controller) SetDebtTracking(enabled bool) {
	c.config.EnableDebtTracking = enabled
	if !enabled {
		c.markContaminated(reasonTrackingDisabled)
	}
}

// IsContaminated reports whether enforcement was ever disabled.
func (c *Controller) IsContaminated() bool { return c.contaminated }

func (c *Controller) markContaminated(reason string) {
	if c.contaminated {
		return
	}
	c.contaminated = true
	c.contaminationReason = reason
	c.ledger.MarkContaminated(reason)
	c.logger.Warn("debt enforcement disabled; run marked contaminated", "reason", reason)
}

// #endregion contamination

// #region claim-resolve

// ClaimAction records the agent's promise before it spends budget.
func (c *Controller) ClaimAction(req ledger.ClaimRequest) (ledger.Claim, error) {
	return c.ledger.Claim(req)
}

// MeasureInformationGain returns prior - posterior bits and feeds the
// posterior into the thrashing detector.
func (c *Controller) MeasureInformationGain(priorEntropy, posteriorEntropy float64) float64 {
	c.volatility.Add(posteriorEntropy)
	return priorEntropy - posteriorEntropy
}

// ResolveAction settles a claim with its realized gain. Suspicious surprise
// gains are discounted first; the credited value is what the ledger and the
// stability tracker see. A NaN or infinite gain is rejected before any
// component sees it.
func (c *Controller) ResolveAction(actionID string, actualGainBits float64, actionType string) (Resolution, error) {
	if !ledger.IsFinite(actualGainBits) {
		return Resolution{ActionID: actionID}, fmt.Errorf("resolve %s: %w", actionID, ledger.ErrNonFiniteGain)
	}
	res := Resolution{ActionID: actionID, RealizedGainBits: actualGainBits, CreditedGainBits: actualGainBits}

	claim, ok := c.ledger.Lookup(actionID)
	if !ok || claim.IsResolved() {
		// ledger logs the integrity warning
		c.ledger.Realize(actionID, actualGainBits)
		return res, nil
	}
	if actionType != "" && claim.ActionType != "" && actionType != claim.ActionType {
		c.logger.Warn("resolve: action type differs from claim",
			"action_id", actionID, "claimed_type", claim.ActionType, "resolved_type", actionType)
	}

	res.Matched = true
	res.ClaimedGainBits = claim.ClaimedGainBits

	if actualGainBits > 0 && claim.ClaimedGainBits > 0 {
		res.CreditedGainBits = c.detector.CreditDiscount(claim.ClaimedGainBits, actualGainBits)
		c.detector.AddObservation(claim.ClaimedGainBits, actualGainBits)
	}

	res.DebtIncrement = c.ledger.Realize(actionID, res.CreditedGainBits)
	c.stability.AddError(claim.ClaimedGainBits, res.CreditedGainBits)
	return res, nil
}

// #endregion claim-resolve

// #region penalties

// ComputePenalty combines the entropy penalty with thrashing and
// calibration-instability penalties. All zero when penalties are disabled.
func (c *Controller) ComputePenalty(in PenaltyInput) PenaltyBreakdown {
	res := penalty.ComputeFull(in.PriorEntropy, in.PosteriorEntropy, in.BaselineEntropy, in.ActionType, c.config.Penalty, in.Source)
	if !c.config.EnablePenalties {
		res.EntropyPenalty = 0
		res.HorizonMultiplier = 1.0
		return PenaltyBreakdown{Entropy: res}
	}

	b := PenaltyBreakdown{
		Entropy:           res,
		VolatilityPenalty: c.volatility.Penalty(),
		StabilityPenalty:  c.stability.Penalty(),
	}
	b.Total = b.Entropy.EntropyPenalty + b.VolatilityPenalty + b.StabilityPenalty
	return b
}

// EscrowWidening holds a widening penalty until its settlement horizon.
func (c *Controller) EscrowWidening(actionID string, amount, priorEntropy, settlementHours float64) error {
	return c.provisional.Add(actionID, amount, priorEntropy, settlementHours)
}

// Advance moves the escrow clock and returns what settled. Charge is the
// one-time penalty for entries finalized this step.
func (c *Controller) Advance(currentEntropy, elapsedHours float64) (provisional.StepResult, error) {
	return c.provisional.Step(currentEntropy, elapsedHours)
}

// RefundProvisional settles an escrow entry early as productive.
func (c *Controller) RefundProvisional(actionID string) bool {
	return c.provisional.Refund(actionID)
}

// FinalizeProvisional settles an escrow entry early as a charge.
func (c *Controller) FinalizeProvisional(actionID string) (float64, bool) {
	return c.provisional.Finalize(actionID)
}

// #endregion penalties

// #region cost

// InflatedCost returns baseCost after debt inflation. Calibration actions are
// capped at CalibrationCap*baseCost so the escape route stays affordable.
func (c *Controller) InflatedCost(baseCost float64, isCalibration bool) float64 {
	if !c.config.EnableDebtTracking {
		return baseCost
	}
	inflated := c.ledger.InflatedCost(baseCost, c.config.DebtSensitivity, c.config.GlobalSensitivity)
	if isCalibration {
		return min(inflated, baseCost*c.config.CalibrationCap)
	}
	return inflated
}

// MinCalibrationCost is the capped inflated cost of the cheapest calibration.
func (c *Controller) MinCalibrationCost() float64 {
	return c.InflatedCost(c.config.MinCalibrationCostWells, true)
}

// #endregion cost

// #region refusal

// ShouldRefuseAction decides whether template may be attempted with the
// remaining budget. When enforcement is disabled the would-be decision is
// still computed and logged, but never refuses: a would-be refusal carries
// ReasonNotEnforced and its vetoes, an allowed action keeps ReasonAllowed.
func (c *Controller) ShouldRefuseAction(template string, baseCostWells, budgetRemaining float64) gate.Decision {
	isCal := c.IsCalibrationTemplate(template)
	d := c.gate.Evaluate(gate.Request{
		Template:           template,
		IsCalibration:      isCal,
		BaseCostWells:      baseCostWells,
		InflatedCost:       c.InflatedCost(baseCostWells, isCal),
		BudgetRemaining:    budgetRemaining,
		TotalDebt:          c.ledger.TotalDebt(),
		MinCalibrationCost: c.MinCalibrationCost(),
	})

	if !c.config.EnableDebtTracking {
		if d.Refuse {
			c.logger.Warn("refusal not enforced", "template", template, "would_refuse", string(d.Reason))
			d.Refuse = false
			d.Reason = gate.ReasonNotEnforced
		}
		return d
	}

	if d.Refuse {
		c.logger.Info("action refused",
			"template", template,
			"reason", string(d.Reason),
			"debt", d.Context.TotalDebt,
			"inflated_cost", d.Context.InflatedCost,
			"budget", budgetRemaining,
		)
	}
	return d
}

// State reports the campaign gate state for the given budget. It describes
// the debt, not enforcement: with tracking disabled it still reports
// insolvent or deadlocked, against the uninflated calibration cost, and
// ShouldRefuseAction is what declines to act on it.
func (c *Controller) State(budgetRemaining float64) GateState {
	if c.ledger.TotalDebt() <= c.config.DebtHardThreshold {
		return StateSolvent
	}
	if c.MinCalibrationCost() > budgetRemaining {
		return StateDeadlocked
	}
	return StateInsolvent
}

// #endregion refusal

// #region repayment

// ComputeRepayment returns the repayment earned by an action without
// applying it.
func (c *Controller) ComputeRepayment(actionID, actionType string, isCalibration bool, noiseImprovement float64) eval.RepaymentResult {
	return c.repayment.Run(eval.CalibrationEvidence{
		ActionID:         actionID,
		ActionType:       actionType,
		IsCalibration:    isCalibration,
		NoiseImprovement: noiseImprovement,
	})
}

// ApplyCalibrationRepayment computes and applies the repayment earned by a
// completed calibration action. Returns the bits actually applied.
func (c *Controller) ApplyCalibrationRepayment(actionID, template string, noiseImprovement float64) (float64, eval.RepaymentResult, error) {
	res := c.ComputeRepayment(actionID, template, c.IsCalibrationTemplate(template), noiseImprovement)
	if !res.Eligible {
		return 0, res, nil
	}
	evidence := res.Evidence()
	evidence["template"] = template
	applied, err := c.ledger.ApplyRepayment(actionID, template, res.RepayBits, res.Reason, evidence)
	if err != nil {
		return 0, res, fmt.Errorf("calibration repayment: %w", err)
	}
	return applied, res, nil
}

// ApplyDecay runs one tick of legacy flat decay, if that arm is active.
func (c *Controller) ApplyDecay() float64 {
	return c.ledger.ApplyDecay()
}

// #endregion repayment

// #region statistics

// Statistics merges every component's statistics.
func (c *Controller) Statistics() Statistics {
	return Statistics{
		Ledger:              c.ledger.Statistics(),
		Provisional:         c.provisional.Statistics(),
		Volatility:          c.volatility.Statistics(),
		Stability:           c.stability.Statistics(),
		Sandbagging:         c.detector.Statistics(),
		DebtTrackingEnabled: c.config.EnableDebtTracking,
		PenaltiesEnabled:    c.config.EnablePenalties,
		IsContaminated:      c.contaminated,
		ContaminationReason: c.contaminationReason,
	}
}

// #endregion statistics

// #region reset

// ResetEpisode clears the per-episode trackers.
func (c *Controller) ResetEpisode() {
	c.volatility.Reset()
	c.stability.Reset()
}

// Reset clears all campaign state. Contamination is kept.
func (c *Controller) Reset() {
	c.ledger.Reset()
	c.provisional.Reset()
	c.detector.Reset()
	c.ResetEpisode()
}

// #endregion reset
