package eval

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNonCalibrationEarnsNothing(t *testing.T) {
	e := NewEvaluator(DefaultRepaymentConfig())
	res := e.Run(CalibrationEvidence{ActionID: "a", ActionType: "cell_painting", NoiseImprovement: 0.5})

	if res.Eligible || res.RepayBits != 0 {
		t.Fatalf("expected no repayment, got %+v", res)
	}
}

func TestRepaymentScheduleTable(t *testing.T) {
	e := NewEvaluator(DefaultRepaymentConfig())

	tests := []struct {
		name        string
		improvement float64
		wantBonus   float64
		wantTotal   float64
	}{
		{"no improvement earns base", 0, 0, 0.25},
		{"small improvement", 0.04, 0.3, 0.55},
		{"bonus capped at 0.75", 0.2, 0.75, 1.0},
		{"huge improvement still capped", 3.0, 0.75, 1.0},
		{"worse noise earns base only", -0.5, 0, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Run(CalibrationEvidence{ActionID: "c", ActionType: "baseline_replicates", IsCalibration: true, NoiseImprovement: tt.improvement})
			if !res.Eligible {
				t.Fatal("expected eligible")
			}
			if !approx(res.BonusBits, tt.wantBonus) {
				t.Errorf("bonus = %.4f, want %.4f", res.BonusBits, tt.wantBonus)
			}
			if !approx(res.RepayBits, tt.wantTotal) {
				t.Errorf("total = %.4f, want %.4f", res.RepayBits, tt.wantTotal)
			}
		})
	}
}

func TestTotalCapBindsWithLargerBase(t *testing.T) {
	cfg := DefaultRepaymentConfig()
	cfg.BaseBits = 0.5
	e := NewEvaluator(cfg)

	res := e.Run(CalibrationEvidence{IsCalibration: true, NoiseImprovement: 0.2})
	if res.RepayBits != 1.0 {
		t.Fatalf("expected cap at 1.0, got %.4f", res.RepayBits)
	}
	var capped bool
	for _, m := range res.Metrics {
		if m.Name == "repay_bits" && !m.Pass {
			capped = true
		}
	}
	if !capped {
		t.Fatal("expected repay_bits metric to show the cap")
	}
}

func TestEvidenceMap(t *testing.T) {
	e := NewEvaluator(DefaultRepaymentConfig())
	res := e.Run(CalibrationEvidence{IsCalibration: true, NoiseImprovement: 0.1})

	ev := res.Evidence()
	if ev["noise_improvement"] != 0.1 {
		t.Fatalf("expected noise_improvement in evidence, got %v", ev)
	}
	if _, ok := ev["repay_bits"]; !ok {
		t.Fatal("expected repay_bits in evidence")
	}
}
