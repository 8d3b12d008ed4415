package signals

import (
	"math"
	"testing"
)

// #region volatility-tests
func TestVolatilityOscillationPenalized(t *testing.T) {
	v := NewVolatilityTracker(DefaultVolatilityConfig())
	for _, h := range []float64{2.0, 2.5, 1.8, 2.6, 1.9} {
		v.Add(h)
	}

	if v.Penalty() <= 0 {
		t.Fatalf("expected positive penalty, volatility=%.4f", v.Volatility())
	}
	if !v.IsThrashing() {
		t.Fatal("expected thrashing")
	}
}

func TestVolatilityFlatWindowFree(t *testing.T) {
	v := NewVolatilityTracker(DefaultVolatilityConfig())
	for _, h := range []float64{2.0, 2.0, 2.0} {
		v.Add(h)
	}
	if v.Penalty() != 0 {
		t.Fatalf("expected zero penalty, got %.4f", v.Penalty())
	}
	if v.IsThrashing() {
		t.Fatal("flat window should not be thrashing")
	}
}

func TestVolatilityNeedsThreeSamples(t *testing.T) {
	v := NewVolatilityTracker(DefaultVolatilityConfig())
	v.Add(0.0)
	v.Add(5.0)
	if v.Volatility() != 0 {
		t.Fatalf("expected 0 with two samples, got %.4f", v.Volatility())
	}
}

func TestVolatilityWindowBounded(t *testing.T) {
	cfg := DefaultVolatilityConfig()
	cfg.WindowSize = 3
	v := NewVolatilityTracker(cfg)
	for _, h := range []float64{9.0, 1.0, 1.0, 1.0} {
		v.Add(h)
	}

	hist := v.History()
	if len(hist) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(hist))
	}
	if hist[0] != 1.0 {
		t.Fatalf("expected oldest sample evicted, got %v", hist)
	}
	if v.Volatility() != 0 {
		t.Fatalf("expected 0 volatility after eviction, got %.4f", v.Volatility())
	}
}

func TestVolatilitySignIndependent(t *testing.T) {
	up := NewVolatilityTracker(DefaultVolatilityConfig())
	down := NewVolatilityTracker(DefaultVolatilityConfig())
	for _, h := range []float64{1.0, 2.0, 1.0, 2.0} {
		up.Add(h)
		down.Add(-h)
	}
	if math.Abs(up.Volatility()-down.Volatility()) > 1e-12 {
		t.Fatalf("expected equal volatility, got %.4f vs %.4f", up.Volatility(), down.Volatility())
	}
}

func TestVolatilityReset(t *testing.T) {
	v := NewVolatilityTracker(DefaultVolatilityConfig())
	for _, h := range []float64{2.0, 2.5, 1.8} {
		v.Add(h)
	}
	v.Reset()
	if s := v.Statistics(); s.Samples != 0 || s.Penalty != 0 {
		t.Fatalf("expected empty tracker after reset, got %+v", s)
	}
}

// #endregion volatility-tests

// #region stability-tests
func TestStabilityDefaultsToStable(t *testing.T) {
	s := NewStabilityTracker(DefaultStabilityConfig())
	s.AddError(1.0, 0.0)
	s.AddError(0.0, 1.0)

	if s.Stability() != 1.0 {
		t.Fatalf("expected 1.0 with two samples, got %.4f", s.Stability())
	}
	if s.Penalty() != 0 {
		t.Fatalf("expected zero penalty, got %.4f", s.Penalty())
	}
}

func TestStabilityConstantBiasIsStable(t *testing.T) {
	s := NewStabilityTracker(DefaultStabilityConfig())
	for i := 0; i < 5; i++ {
		s.AddError(1.5, 0.5)
	}
	if s.Stability() != 1.0 {
		t.Fatalf("constant error should be stable, got %.4f", s.Stability())
	}
}

func TestStabilityErraticPenalized(t *testing.T) {
	s := NewStabilityTracker(DefaultStabilityConfig())
	// errors: 0, 1, 0, 1 -> variance 0.25 -> stability 1/3
	s.AddError(1.0, 1.0)
	s.AddError(1.0, 0.0)
	s.AddError(1.0, 1.0)
	s.AddError(1.0, 0.0)

	if math.Abs(s.Stability()-1.0/3.0) > 1e-9 {
		t.Fatalf("expected stability 1/3, got %.4f", s.Stability())
	}
	want := (1.0 - 1.0/3.0) * 0.3
	if math.Abs(s.Penalty()-want) > 1e-9 {
		t.Fatalf("expected penalty %.4f, got %.4f", want, s.Penalty())
	}
}

// #endregion stability-tests
