package gate

import "fmt"

// #region gate
// Gate decides whether a proposed action may be attempted given the current
// debt and budget.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Config returns the gate thresholds.
func (g *Gate) Config() GateConfig {
	return g.config
}

// Evaluate checks every refusal condition and reports the most severe.
// Precedence: deadlock, debt threshold, recovery reserve, plain budget.
func (g *Gate) Evaluate(req Request) Decision {
	insolvent := req.TotalDebt > g.config.DebtHardThreshold

	dc := DecisionContext{
		Template:           req.Template,
		IsCalibration:      req.IsCalibration,
		TotalDebt:          req.TotalDebt,
		DebtHardThreshold:  g.config.DebtHardThreshold,
		BaseCostWells:      req.BaseCostWells,
		InflatedCost:       req.InflatedCost,
		BudgetRemaining:    req.BudgetRemaining,
		ReserveWells:       g.config.ReserveWells,
		MinCalibrationCost: req.MinCalibrationCost,
	}

	// 1. Deadlock: insolvent and even the cheapest recovery is unaffordable
	dc.IsDeadlocked = insolvent && req.MinCalibrationCost > req.BudgetRemaining

	// 2. Insolvent agents may only calibrate
	dc.BlockedByThreshold = insolvent && !req.IsCalibration

	// 3. Exploration may not eat the recovery reserve
	dc.BlockedByReserve = !req.IsCalibration && req.BudgetRemaining-req.InflatedCost < g.config.ReserveWells

	// 4. Plain affordability
	dc.BlockedByCost = req.InflatedCost > req.BudgetRemaining

	var vetoes []VetoSignal
	if dc.IsDeadlocked {
		vetoes = append(vetoes, VetoSignal{
			Reason: ReasonDeadlock,
			Detail: fmt.Sprintf("debt %.4f > %.4f and cheapest calibration %.2f > budget %.2f",
				req.TotalDebt, g.config.DebtHardThreshold, req.MinCalibrationCost, req.BudgetRemaining),
		})
	}
	if dc.BlockedByThreshold {
		vetoes = append(vetoes, VetoSignal{
			Reason: ReasonDebtBlocked,
			Detail: fmt.Sprintf("debt %.4f > %.4f and %s is not a calibration template",
				req.TotalDebt, g.config.DebtHardThreshold, req.Template),
		})
	}
	if dc.BlockedByReserve {
		vetoes = append(vetoes, VetoSignal{
			Reason: ReasonReserve,
			Detail: fmt.Sprintf("budget %.2f - cost %.2f leaves less than reserve %.2f",
				req.BudgetRemaining, req.InflatedCost, g.config.ReserveWells),
		})
	}
	if dc.BlockedByCost {
		vetoes = append(vetoes, VetoSignal{
			Reason: ReasonBudget,
			Detail: fmt.Sprintf("inflated cost %.2f exceeds budget %.2f", req.InflatedCost, req.BudgetRemaining),
		})
	}

	if len(vetoes) == 0 {
		return Decision{Reason: ReasonAllowed, Context: dc}
	}
	return Decision{
		Refuse:  true,
		Reason:  vetoes[0].Reason,
		Vetoes:  vetoes,
		Context: dc,
	}
}

// #endregion gate
