package signals

// #region volatility-tracker
// VolatilityTracker detects oscillation in posterior entropy regardless of
// its direction. An agent that widens and narrows in alternation is
// thrashing even when its net progress looks fine.
type VolatilityTracker struct {
	config  VolatilityConfig
	history window
}

// NewVolatilityTracker creates a tracker with the given thresholds.
func NewVolatilityTracker(config VolatilityConfig) *VolatilityTracker {
	return &VolatilityTracker{config: config, history: newWindow(config.WindowSize)}
}

// Add records an entropy value, discarding the oldest on overflow.
func (v *VolatilityTracker) Add(entropy float64) {
	v.history.push(entropy)
}

// Volatility is the population stddev of the window, 0 below three samples.
func (v *VolatilityTracker) Volatility() float64 {
	if v.history.len() < minSamples {
		return 0
	}
	return v.history.stddev()
}

// Penalty returns the thrashing penalty for the current window.
func (v *VolatilityTracker) Penalty() float64 {
	vol := v.Volatility()
	if vol <= v.config.Threshold {
		return 0
	}
	return (vol - v.config.Threshold) * v.config.PenaltyWeight
}

// IsThrashing reports whether volatility exceeds the threshold.
func (v *VolatilityTracker) IsThrashing() bool {
	return v.Volatility() > v.config.Threshold
}

// History returns a copy of the window, oldest first.
func (v *VolatilityTracker) History() []float64 {
	return v.history.snapshot()
}

// Reset clears the window.
func (v *VolatilityTracker) Reset() {
	v.history.reset()
}

// Statistics summarizes the tracker.
func (v *VolatilityTracker) Statistics() VolatilityStats {
	return VolatilityStats{
		Samples:     v.history.len(),
		Volatility:  v.Volatility(),
		Penalty:     v.Penalty(),
		IsThrashing: v.IsThrashing(),
	}
}

// #endregion volatility-tracker
