package ledger

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"
)

// #region helpers
func newLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(RepaymentForgiveness())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return l.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).WithClock(func() time.Time { return fixed })
}

func mustClaim(t *testing.T, l *Ledger, id string, bits float64) {
	t.Helper()
	if _, err := l.Claim(ClaimRequest{ActionID: id, ActionType: "cell_painting", ClaimedGainBits: bits}); err != nil {
		t.Fatalf("Claim(%s): %v", id, err)
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// #endregion helpers

// #region claim-realize-tests
func TestRealizeOverclaimAddsDebt(t *testing.T) {
	l := newLedger(t)
	mustClaim(t, l, "a1", 1.5)

	inc := l.Realize("a1", 0.5)

	if !approx(inc, 1.0) {
		t.Fatalf("expected increment 1.0, got %.4f", inc)
	}
	if !approx(l.TotalDebt(), 1.0) {
		t.Fatalf("expected debt 1.0, got %.4f", l.TotalDebt())
	}
	c, ok := l.Lookup("a1")
	if !ok || !c.IsResolved() {
		t.Fatal("expected resolved claim")
	}
	if !approx(c.OverclaimPenalty(), 1.0) {
		t.Fatalf("expected overclaim penalty 1.0, got %.4f", c.OverclaimPenalty())
	}
}

func TestRealizeUnderclaimIsFree(t *testing.T) {
	l := newLedger(t)
	mustClaim(t, l, "a1", 0.5)

	if inc := l.Realize("a1", 2.0); inc != 0 {
		t.Fatalf("expected zero increment, got %.4f", inc)
	}
	c, _ := l.Lookup("a1")
	if !approx(c.Overclaim(), -1.5) {
		t.Fatalf("expected overclaim -1.5, got %.4f", c.Overclaim())
	}
	if l.TotalDebt() != 0 {
		t.Fatalf("expected zero debt, got %.4f", l.TotalDebt())
	}
}

func TestRealizeUnknownIsLoggedNoOp(t *testing.T) {
	var buf bytes.Buffer
	l := newLedger(t).WithLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	if inc := l.Realize("ghost", 0.0); inc != 0 {
		t.Fatalf("expected 0, got %.4f", inc)
	}
	if !strings.Contains(buf.String(), "ghost") {
		t.Fatalf("expected warning mentioning action id, got %q", buf.String())
	}
}

func TestRealizeTwiceIsNoOp(t *testing.T) {
	l := newLedger(t)
	mustClaim(t, l, "a1", 2.0)
	l.Realize("a1", 1.0)

	if inc := l.Realize("a1", 0.0); inc != 0 {
		t.Fatalf("expected 0 on second realize, got %.4f", inc)
	}
	if !approx(l.TotalDebt(), 1.0) {
		t.Fatalf("expected debt unchanged at 1.0, got %.4f", l.TotalDebt())
	}
	c, _ := l.Lookup("a1")
	if *c.RealizedGainBits != 1.0 {
		t.Fatalf("realized value must not be overwritten, got %.4f", *c.RealizedGainBits)
	}
}

func TestClaimDuplicateRejected(t *testing.T) {
	l := newLedger(t)
	mustClaim(t, l, "a1", 1.0)

	_, err := l.Claim(ClaimRequest{ActionID: "a1", ClaimedGainBits: 1.0})
	if !errors.Is(err, ErrDuplicateClaim) {
		t.Fatalf("expected ErrDuplicateClaim, got %v", err)
	}

	l.Realize("a1", 1.0)
	_, err = l.Claim(ClaimRequest{ActionID: "a1", ClaimedGainBits: 1.0})
	if !errors.Is(err, ErrDuplicateClaim) {
		t.Fatalf("expected ErrDuplicateClaim after resolution, got %v", err)
	}
}

func TestClaimNonFiniteRejected(t *testing.T) {
	l := newLedger(t)
	for _, bits := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := l.Claim(ClaimRequest{ActionID: "a1", ClaimedGainBits: bits}); !errors.Is(err, ErrNonFiniteGain) {
			t.Fatalf("claim %v: expected ErrNonFiniteGain, got %v", bits, err)
		}
	}
	if len(l.Claims()) != 0 {
		t.Fatalf("rejected claims must not be recorded, got %d", len(l.Claims()))
	}
}

func TestRealizeNonFiniteKeepsDebt(t *testing.T) {
	l := newLedger(t)
	mustClaim(t, l, "seed", 5.0)
	l.Realize("seed", 0)
	mustClaim(t, l, "a1", 1.0)

	if inc := l.Realize("a1", math.NaN()); inc != 0 {
		t.Fatalf("expected 0, got %f", inc)
	}
	if !approx(l.TotalDebt(), 5.0) {
		t.Fatalf("expected debt 5.0, got %f", l.TotalDebt())
	}
	if c, _ := l.Lookup("a1"); c.IsResolved() {
		t.Fatal("claim must stay open")
	}
}

func TestClaimEmptyID(t *testing.T) {
	l := newLedger(t)
	if _, err := l.Claim(ClaimRequest{}); !errors.Is(err, ErrEmptyActionID) {
		t.Fatalf("expected ErrEmptyActionID, got %v", err)
	}
}

func TestClaimCopiesModalities(t *testing.T) {
	l := newLedger(t)
	mods := []string{"imaging", "scrna_seq"}
	marginal := 0.3
	if _, err := l.Claim(ClaimRequest{ActionID: "a1", ClaimedGainBits: 1, PriorModalities: mods, ClaimedMarginalGain: &marginal}); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	mods[0] = "mutated"

	c, _ := l.Lookup("a1")
	if c.PriorModalities[0] != "imaging" {
		t.Fatalf("expected stored modalities to be a copy, got %v", c.PriorModalities)
	}
	if c.ClaimedMarginalGain == nil || *c.ClaimedMarginalGain != 0.3 {
		t.Fatal("expected claimed marginal gain 0.3")
	}
}

// #endregion claim-realize-tests

// #region repayment-tests
func TestRepaymentCappedAtDebt(t *testing.T) {
	l := newLedger(t)
	mustClaim(t, l, "a1", 1.5)
	l.Realize("a1", 0.5)

	applied, err := l.ApplyRepayment("cal-1", "baseline_replicates", 5.0, "calibration", map[string]any{"noise_improvement": 0.2})
	if err != nil {
		t.Fatalf("ApplyRepayment: %v", err)
	}
	if !approx(applied, 1.0) {
		t.Fatalf("expected applied 1.0, got %.4f", applied)
	}
	if l.TotalDebt() != 0 {
		t.Fatalf("expected zero debt, got %.4f", l.TotalDebt())
	}
	reps := l.Repayments()
	if len(reps) != 1 || !approx(reps[0].RepayBits, 1.0) {
		t.Fatalf("expected recorded repay_bits 1.0, got %+v", reps)
	}
	if reps[0].EventID == "" {
		t.Fatal("expected event id")
	}

	// further repayment against zero debt records zero
	applied, _ = l.ApplyRepayment("cal-2", "baseline_replicates", 0.5, "calibration", nil)
	if applied != 0 || l.TotalDebt() != 0 {
		t.Fatalf("expected zero applied and zero debt, got %.4f / %.4f", applied, l.TotalDebt())
	}
}

func TestRepaymentNegativeFails(t *testing.T) {
	l := newLedger(t)
	_, err := l.ApplyRepayment("a", "x", -0.1, "bad", nil)
	if !errors.Is(err, ErrNegativeRepayment) {
		t.Fatalf("expected ErrNegativeRepayment, got %v", err)
	}
	if len(l.Repayments()) != 0 {
		t.Fatal("failed repayment must not be recorded")
	}
}

func TestDebtNeverNegative(t *testing.T) {
	l := newLedger(t)
	amounts := []float64{0.3, 2.0, 0.0, 10.0}
	for i, claim := range []float64{1.0, 0.2, 3.0, 0.5} {
		id := string(rune('a' + i))
		mustClaim(t, l, id, claim)
		l.Realize(id, 0.1)
		if _, err := l.ApplyRepayment(id, "cal", amounts[i], "r", nil); err != nil {
			t.Fatalf("ApplyRepayment: %v", err)
		}
		if l.TotalDebt() < 0 {
			t.Fatalf("debt went negative: %.4f", l.TotalDebt())
		}
	}
}

func TestForgivenessArms(t *testing.T) {
	l, err := New(FlatDecayForgiveness(0.4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	mustClaim(t, l, "a1", 1.0)
	l.Realize("a1", 0.0)

	if _, err := l.ApplyRepayment("a1", "cal", 0.5, "r", nil); !errors.Is(err, ErrRepaymentDisabled) {
		t.Fatalf("expected ErrRepaymentDisabled, got %v", err)
	}
	if dec := l.ApplyDecay(); !approx(dec, 0.4) {
		t.Fatalf("expected decay 0.4, got %.4f", dec)
	}
	l.ApplyDecay()
	if dec := l.ApplyDecay(); !approx(dec, 0.2) {
		t.Fatalf("expected final decay capped at 0.2, got %.4f", dec)
	}
	if l.TotalDebt() != 0 {
		t.Fatalf("expected zero debt, got %.4f", l.TotalDebt())
	}

	r := newLedger(t)
	mustClaim(t, r, "a1", 1.0)
	r.Realize("a1", 0.0)
	if dec := r.ApplyDecay(); dec != 0 {
		t.Fatalf("decay must be inactive under repayment, got %.4f", dec)
	}
}

func TestInvalidForgiveness(t *testing.T) {
	if _, err := New(Forgiveness{Mode: "amnesty"}); !errors.Is(err, ErrInvalidForgiveness) {
		t.Fatalf("expected ErrInvalidForgiveness, got %v", err)
	}
	if f := ForgivenessFromDecayRate(0); f.Mode != ForgivenessRepayment {
		t.Fatalf("expected repayment arm for zero rate, got %s", f.Mode)
	}
}

// #endregion repayment-tests

// #region cost-tests
func TestCostMultiplierTwoTier(t *testing.T) {
	l := newLedger(t)
	if m := l.CostMultiplier(50, 0.5, 0.1); m != 1.0 {
		t.Fatalf("expected 1.0 with zero debt, got %.4f", m)
	}

	mustClaim(t, l, "a1", 2.0)
	l.Realize("a1", 0.0)

	// global 1 + 0.1*2 = 1.2; specific 1 + 0.5*0.5*2 = 1.5
	if m := l.CostMultiplier(50, 0.5, 0.1); !approx(m, 1.8) {
		t.Fatalf("expected 1.8, got %.4f", m)
	}
	if c := l.InflatedCost(50, 0.5, 0.1); !approx(c, 90) {
		t.Fatalf("expected 90, got %.4f", c)
	}
	// cheap actions still pay the global tier
	if m := l.CostMultiplier(0, 0.5, 0.1); !approx(m, 1.2) {
		t.Fatalf("expected global-only 1.2, got %.4f", m)
	}
}

func TestInflatedCostMonotoneInDebt(t *testing.T) {
	l := newLedger(t)
	prev := l.InflatedCost(24, 0.5, 0.1)
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		mustClaim(t, l, id, 0.7)
		l.Realize(id, 0.2)
		cur := l.InflatedCost(24, 0.5, 0.1)
		if cur < prev {
			t.Fatalf("inflated cost decreased: %.4f -> %.4f", prev, cur)
		}
		prev = cur
	}
}

// #endregion cost-tests

// #region stats-tests
func TestStatistics(t *testing.T) {
	l := newLedger(t)
	mustClaim(t, l, "a", 1.0)
	mustClaim(t, l, "b", 1.0)
	mustClaim(t, l, "c", 1.0)
	l.Realize("a", 0.5) // +0.5
	l.Realize("b", 1.5) // -0.5

	s := l.Statistics()
	if s.TotalClaims != 3 || s.ResolvedClaims != 2 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if !approx(s.MeanOverclaim, 0) {
		t.Fatalf("expected mean overclaim 0, got %.4f", s.MeanOverclaim)
	}
	if !approx(s.OverclaimRate, 0.5) {
		t.Fatalf("expected overclaim rate 0.5, got %.4f", s.OverclaimRate)
	}
	if !approx(s.TotalDebt, 0.5) {
		t.Fatalf("expected debt 0.5, got %.4f", s.TotalDebt)
	}
}

func TestReset(t *testing.T) {
	l := newLedger(t)
	mustClaim(t, l, "a", 1.0)
	l.Realize("a", 0.0)
	l.Reset()

	if l.TotalDebt() != 0 || len(l.Claims()) != 0 {
		t.Fatal("expected empty ledger after reset")
	}
	mustClaim(t, l, "a", 1.0) // id is free again
}

// #endregion stats-tests
