package provisional

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
)

func quietTracker() *Tracker {
	return NewTracker(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// #region settlement-tests
func TestStepRefundsWhenEntropyCollapsed(t *testing.T) {
	tr := quietTracker()
	if err := tr.Add("a1", 0.4, 2.0, 24); err != nil {
		t.Fatalf("Add: %v", err)
	}

	res, err := tr.Step(1.5, 24)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Charge != 0 {
		t.Fatalf("expected no charge, got %.4f", res.Charge)
	}
	if len(res.Refunded) != 1 || res.Refunded[0] != "a1" {
		t.Fatalf("expected a1 refunded, got %+v", res)
	}
	s := tr.Statistics()
	if s.TotalRefunded != 0.4 || s.TotalFinalized != 0 {
		t.Fatalf("unexpected totals: %+v", s)
	}
	if s.RefundRate != 1.0 {
		t.Fatalf("expected refund rate 1.0, got %.4f", s.RefundRate)
	}
}

func TestStepFinalizesWhenEntropyStayedHigh(t *testing.T) {
	tr := quietTracker()
	tr.Add("a1", 0.4, 2.0, 24)

	res, _ := tr.Step(2.5, 24)
	if res.Charge != 0.4 {
		t.Fatalf("expected charge 0.4, got %.4f", res.Charge)
	}
	if len(res.Finalized) != 1 {
		t.Fatalf("expected one finalized entry, got %+v", res)
	}
	if tr.Statistics().TotalFinalized != 0.4 {
		t.Fatalf("expected total finalized 0.4, got %+v", tr.Statistics())
	}
}

func TestStepEqualEntropyFinalizes(t *testing.T) {
	tr := quietTracker()
	tr.Add("a1", 0.3, 2.0, 0)
	res, _ := tr.Step(2.0, 0)
	if res.Charge != 0.3 {
		t.Fatalf("entropy back exactly at prior must finalize, got %+v", res)
	}
}

func TestStepWaitsForHorizon(t *testing.T) {
	tr := quietTracker()
	tr.Add("a1", 0.4, 2.0, 10)

	res, _ := tr.Step(3.0, 4)
	if res.Charge != 0 || len(res.Finalized) != 0 {
		t.Fatalf("expected nothing settled before horizon, got %+v", res)
	}
	res, _ = tr.Step(3.0, 4)
	if res.Charge != 0 {
		t.Fatalf("expected nothing settled at 8h, got %+v", res)
	}
	res, _ = tr.Step(3.0, 2)
	if res.Charge != 0.4 {
		t.Fatalf("expected settlement at 10h, got %+v", res)
	}
}

func TestSettlesExactlyOnce(t *testing.T) {
	tr := quietTracker()
	tr.Add("a1", 0.4, 2.0, 0)
	tr.Step(3.0, 1)

	res, _ := tr.Step(3.0, 1)
	if res.Charge != 0 {
		t.Fatalf("settled entry charged twice: %+v", res)
	}
	if tr.Refund("a1") {
		t.Fatal("refund of settled entry must fail")
	}
	if tr.Statistics().TotalFinalized != 0.4 {
		t.Fatalf("unexpected totals: %+v", tr.Statistics())
	}
}

// #endregion settlement-tests

// #region manual-tests
func TestManualSettlement(t *testing.T) {
	tr := quietTracker()
	tr.Add("a1", 0.2, 1.0, 100)
	tr.Add("a2", 0.6, 1.0, 100)

	if !tr.Refund("a1") {
		t.Fatal("expected refund to succeed")
	}
	amt, ok := tr.Finalize("a2")
	if !ok || amt != 0.6 {
		t.Fatalf("expected finalize 0.6, got %.4f %v", amt, ok)
	}
	if _, ok := tr.Finalize("a2"); ok {
		t.Fatal("second finalize must fail")
	}

	s := tr.Statistics()
	if s.Pending != 0 || s.PendingAmount != 0 {
		t.Fatalf("expected nothing pending, got %+v", s)
	}
	if math.Abs(s.RefundRate-0.25) > 1e-9 {
		t.Fatalf("expected refund rate 0.25, got %.4f", s.RefundRate)
	}
	if math.Abs(s.TotalEscrowed-0.8) > 1e-9 {
		t.Fatalf("expected escrowed 0.8, got %.4f", s.TotalEscrowed)
	}
}

func TestAddValidation(t *testing.T) {
	tr := quietTracker()
	if err := tr.Add("a1", -1, 1, 1); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
	tr.Add("a1", 0.1, 1, 1)
	if err := tr.Add("a1", 0.1, 1, 1); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
	if _, err := tr.Step(1, -1); !errors.Is(err, ErrNegativeElapsed) {
		t.Fatalf("expected ErrNegativeElapsed, got %v", err)
	}
}

func TestEpisodeHorizon(t *testing.T) {
	if h := EpisodeHorizon(3, 24); h != 72 {
		t.Fatalf("expected 72h, got %.1f", h)
	}
}

// #endregion manual-tests
