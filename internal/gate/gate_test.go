package gate

import "testing"

func exploration(debt, cost, budget float64) Request {
	return Request{
		Template:           "dose_response",
		BaseCostWells:      cost,
		InflatedCost:       cost,
		BudgetRemaining:    budget,
		TotalDebt:          debt,
		MinCalibrationCost: 12,
	}
}

func TestGateAllowsSolventAffordable(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	d := g.Evaluate(exploration(0.5, 24, 200))

	if d.Refuse {
		t.Fatalf("expected allow, got %s", d.Reason)
	}
	if d.Reason != ReasonAllowed || len(d.Vetoes) != 0 {
		t.Fatalf("expected no vetoes, got %+v", d.Vetoes)
	}
}

func TestGateBlocksInsolventExploration(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	d := g.Evaluate(exploration(2.5, 24, 1000))

	if !d.Refuse || d.Reason != ReasonDebtBlocked {
		t.Fatalf("expected %s, got refuse=%v reason=%s", ReasonDebtBlocked, d.Refuse, d.Reason)
	}
	if !d.Context.BlockedByThreshold || d.Context.IsDeadlocked {
		t.Fatalf("unexpected flags: %+v", d.Context)
	}
}

func TestGateAllowsInsolventCalibration(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	req := exploration(2.5, 12, 1000)
	req.Template = "baseline_replicates"
	req.IsCalibration = true
	req.InflatedCost = 18

	if d := g.Evaluate(req); d.Refuse {
		t.Fatalf("calibration must stay available when insolvent, got %s", d.Reason)
	}
}

func TestGateDeadlockTakesPrecedence(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	req := exploration(3.0, 24, 5)
	req.MinCalibrationCost = 18

	d := g.Evaluate(req)
	if !d.Refuse || d.Reason != ReasonDeadlock {
		t.Fatalf("expected %s, got %s", ReasonDeadlock, d.Reason)
	}
	if len(d.Vetoes) != 4 {
		t.Fatalf("expected all four vetoes recorded, got %d", len(d.Vetoes))
	}
	if d.Vetoes[1].Reason != ReasonDebtBlocked {
		t.Fatalf("expected threshold veto second, got %s", d.Vetoes[1].Reason)
	}
}

func TestGateDeadlockForCalibrationToo(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	req := Request{Template: "baseline_replicates", IsCalibration: true, BaseCostWells: 12, InflatedCost: 18, BudgetRemaining: 10, TotalDebt: 3.0, MinCalibrationCost: 18}

	d := g.Evaluate(req)
	if d.Reason != ReasonDeadlock {
		t.Fatalf("expected deadlock, got %s", d.Reason)
	}
}

func TestGateReserveProtectsRecovery(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	// affordable, but leaves 6 < 12 wells
	d := g.Evaluate(exploration(0.0, 30, 36))

	if !d.Refuse || d.Reason != ReasonReserve {
		t.Fatalf("expected %s, got %s", ReasonReserve, d.Reason)
	}
	if d.Context.BlockedByCost {
		t.Fatal("action is affordable; cost flag must be false")
	}
}

func TestGateReserveExemptsCalibration(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	req := Request{Template: "baseline_replicates", IsCalibration: true, BaseCostWells: 12, InflatedCost: 12, BudgetRemaining: 14, MinCalibrationCost: 12}

	if d := g.Evaluate(req); d.Refuse {
		t.Fatalf("calibration must not be held to the reserve, got %s", d.Reason)
	}
}

func TestGateBudgetExceeded(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	req := Request{Template: "baseline_replicates", IsCalibration: true, BaseCostWells: 12, InflatedCost: 15, BudgetRemaining: 14, MinCalibrationCost: 12}

	d := g.Evaluate(req)
	if !d.Refuse || d.Reason != ReasonBudget {
		t.Fatalf("expected %s, got %s", ReasonBudget, d.Reason)
	}
}

func TestGateThresholdIsStrict(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	if d := g.Evaluate(exploration(2.0, 24, 1000)); d.Refuse {
		t.Fatalf("debt equal to threshold is solvent, got %s", d.Reason)
	}
}
