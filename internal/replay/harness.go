package replay

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/danielpatrickdp/epistemic-control/internal/controller"
	"github.com/danielpatrickdp/epistemic-control/internal/gate"
	"github.com/danielpatrickdp/epistemic-control/internal/penalty"
	"github.com/danielpatrickdp/epistemic-control/internal/provisional"
)

const tolerance = 1e-6

// #region types
// StepResult captures the outcome of replaying one step.
type StepResult struct {
	StepID string
	Op     Op
	Value  float64 // op-specific: gain, debt increment, inflated cost, repayment, charge
	Debt   float64 // total debt after the step
	Err    string

	// Refusal stage (nil unless Op is refuse_check)
	Decision *gate.Decision
	State    controller.GateState

	Mismatches []string
}

// Passed reports whether every expectation held.
func (r StepResult) Passed() bool { return len(r.Mismatches) == 0 }

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSteps int                   `json:"total_steps"`
	Passed     int                   `json:"passed"`
	Failed     int                   `json:"failed"`
	Refusals   int                   `json:"refusals"`
	Errors     int                   `json:"errors"`
	FinalDebt  float64               `json:"final_debt"`
	Statistics controller.Statistics `json:"statistics"`
}

// #endregion types

// #region run
// Run builds a controller from the fixture config and replays its steps.
func Run(f *Fixture, logger *slog.Logger) (*controller.Controller, []StepResult, error) {
	ctrl, err := controller.New(f.Config, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("replay %s: %w", f.CampaignID, err)
	}
	return ctrl, Replay(ctrl, f.Steps), nil
}

// #endregion run

// #region replay
// Replay applies each step to ctrl in order and checks its expectations.
// Operates entirely in-memory.
func Replay(ctrl *controller.Controller, steps []Step) []StepResult {
	results := make([]StepResult, 0, len(steps))
	for _, s := range steps {
		r := apply(ctrl, s)
		r.Debt = ctrl.TotalDebt()
		r.Mismatches = check(s.Expect, r)
		results = append(results, r)
	}
	return results
}

func apply(ctrl *controller.Controller, s Step) StepResult {
	r := StepResult{StepID: s.ID, Op: s.Op}
	var err error

	switch s.Op {
	case OpClaim:
		_, err = ctrl.ClaimAction(s.ToClaimRequest())

	case OpResolve:
		var res controller.Resolution
		res, err = ctrl.ResolveAction(s.ActionID, s.ActualGainBits, s.ActionType)
		r.Value = res.DebtIncrement

	case OpMeasure:
		r.Value = ctrl.MeasureInformationGain(s.PriorEntropy, s.PosteriorEntropy)

	case OpPenalty:
		in := s.ToPenaltyInput()
		if !in.Source.Valid() {
			err = fmt.Errorf("unknown entropy source %q", in.Source)
			break
		}
		r.Value = ctrl.ComputePenalty(in).Total

	case OpRefuseCheck:
		d := ctrl.ShouldRefuseAction(s.Template, s.BaseCostWells, s.BudgetRemaining)
		r.Decision = &d
		r.Value = d.Context.InflatedCost
		r.State = ctrl.State(s.BudgetRemaining)

	case OpRepay:
		r.Value, _, err = ctrl.ApplyCalibrationRepayment(s.ActionID, s.Template, s.NoiseImprovement)

	case OpEscrow:
		var amount float64
		if s.Amount != nil {
			amount = *s.Amount
		} else {
			amount = penalty.ComputeEntropyPenalty(s.PriorEntropy, s.PosteriorEntropy, s.ActionType,
				ctrl.Config().Penalty, penalty.SourceMeasurementAmbiguous)
		}
		r.Value = amount
		err = ctrl.EscrowWidening(s.ActionID, amount, s.PriorEntropy, s.SettlementHours)

	case OpAdvance:
		var res provisional.StepResult
		res, err = ctrl.Advance(s.CurrentEntropy, s.ElapsedHours)
		r.Value = res.Charge

	case OpDecay:
		r.Value = ctrl.ApplyDecay()

	case OpDisableTracking:
		ctrl.SetDebtTracking(false)

	case OpResetEpisode:
		ctrl.ResetEpisode()

	default:
		err = fmt.Errorf("unknown op %q", s.Op)
	}

	if err != nil {
		r.Err = err.Error()
	}
	return r
}

func check(e Expect, r StepResult) []string {
	var out []string
	if e.Value != nil && math.Abs(*e.Value-r.Value) > tolerance {
		out = append(out, fmt.Sprintf("value: want %.6f, got %.6f", *e.Value, r.Value))
	}
	if e.Debt != nil && math.Abs(*e.Debt-r.Debt) > tolerance {
		out = append(out, fmt.Sprintf("debt: want %.6f, got %.6f", *e.Debt, r.Debt))
	}
	if e.Refuse != nil {
		if r.Decision == nil {
			out = append(out, "refuse: step produced no decision")
		} else if *e.Refuse != r.Decision.Refuse {
			out = append(out, fmt.Sprintf("refuse: want %v, got %v", *e.Refuse, r.Decision.Refuse))
		}
	}
	if e.Reason != nil && r.Decision != nil && *e.Reason != string(r.Decision.Reason) {
		out = append(out, fmt.Sprintf("reason: want %q, got %q", *e.Reason, r.Decision.Reason))
	}
	if e.State != nil && *e.State != string(r.State) {
		out = append(out, fmt.Sprintf("state: want %q, got %q", *e.State, r.State))
	}
	switch {
	case e.Error != nil && !strings.Contains(r.Err, *e.Error):
		out = append(out, fmt.Sprintf("error: want %q, got %q", *e.Error, r.Err))
	case e.Error == nil && r.Err != "":
		out = append(out, "unexpected error: "+r.Err)
	}
	return out
}

// #endregion replay

// #region summarize
// Summarize aggregates replay results.
func Summarize(ctrl *controller.Controller, results []StepResult) ReplaySummary {
	s := ReplaySummary{
		TotalSteps: len(results),
		FinalDebt:  ctrl.TotalDebt(),
		Statistics: ctrl.Statistics(),
	}
	for _, r := range results {
		if r.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
		if r.Decision != nil && r.Decision.Refuse {
			s.Refusals++
		}
		if r.Err != "" {
			s.Errors++
		}
	}
	return s
}

// #endregion summarize
