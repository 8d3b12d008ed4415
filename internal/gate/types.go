package gate

// #region reason
// Reason names why an action was refused. Ordered by severity.
type Reason string

const (
	ReasonAllowed     Reason = ""
	ReasonDeadlock    Reason = "epistemic_deadlock_detected"
	ReasonDebtBlocked Reason = "epistemic_debt_action_blocked"
	ReasonReserve     Reason = "insufficient_budget_for_epistemic_recovery"
	ReasonBudget      Reason = "epistemic_debt_budget_exceeded"
	ReasonNotEnforced Reason = "debt_enforcement_disabled"
)

// #endregion reason

// #region veto-signal
// VetoSignal is one refusal condition that held.
type VetoSignal struct {
	Reason Reason
	Detail string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds refusal thresholds.
type GateConfig struct {
	DebtHardThreshold float64 // debt above this restricts the agent to calibration
	ReserveWells      float64 // budget kept back for the cheapest calibration
}

// DefaultGateConfig returns a 2-bit threshold and a 12-well reserve.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		DebtHardThreshold: 2.0,
		ReserveWells:      12,
	}
}

// #endregion gate-config

// #region request
// Request is one proposed action with its costs already inflated by the
// caller. InflatedCost is capped when IsCalibration is set.
type Request struct {
	Template           string
	IsCalibration      bool
	BaseCostWells      float64
	InflatedCost       float64
	BudgetRemaining    float64
	TotalDebt          float64
	MinCalibrationCost float64 // capped inflated cost of the cheapest calibration
}

// #endregion request

// #region decision
// DecisionContext carries every intermediate value for audit.
type DecisionContext struct {
	Template           string  `json:"template"`
	IsCalibration      bool    `json:"is_calibration"`
	TotalDebt          float64 `json:"total_debt"`
	DebtHardThreshold  float64 `json:"debt_hard_threshold"`
	BaseCostWells      float64 `json:"base_cost_wells"`
	InflatedCost       float64 `json:"inflated_cost"`
	BudgetRemaining    float64 `json:"budget_remaining"`
	ReserveWells       float64 `json:"reserve_wells"`
	MinCalibrationCost float64 `json:"min_calibration_cost"`
	IsDeadlocked       bool    `json:"is_deadlocked"`
	BlockedByThreshold bool    `json:"blocked_by_threshold"`
	BlockedByReserve   bool    `json:"blocked_by_reserve"`
	BlockedByCost      bool    `json:"blocked_by_cost"`
}

// Decision is the gate's answer. Refusal is a steering signal, not an error.
type Decision struct {
	Refuse  bool
	Reason  Reason
	Vetoes  []VetoSignal // every condition that held, most severe first
	Context DecisionContext
}

// #endregion decision
