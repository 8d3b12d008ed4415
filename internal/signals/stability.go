package signals

// #region stability-tracker
// StabilityTracker detects erratic calibration: claim errors with high
// variance, independent of their mean.
type StabilityTracker struct {
	config StabilityConfig
	errors window
}

// NewStabilityTracker creates a tracker with the given weights.
func NewStabilityTracker(config StabilityConfig) *StabilityTracker {
	return &StabilityTracker{config: config, errors: newWindow(config.WindowSize)}
}

// AddError records the calibration error claimed - realized.
func (s *StabilityTracker) AddError(claimed, realized float64) {
	s.errors.push(claimed - realized)
}

// Stability is 1/(1+8*variance); 1.0 with fewer than three samples.
func (s *StabilityTracker) Stability() float64 {
	if s.errors.len() < minSamples {
		return 1.0
	}
	return 1.0 / (1.0 + 8.0*s.errors.variance())
}

// Penalty returns (1 - stability) * instability weight.
func (s *StabilityTracker) Penalty() float64 {
	return (1.0 - s.Stability()) * s.config.InstabilityWeight
}

// Errors returns a copy of the error window, oldest first.
func (s *StabilityTracker) Errors() []float64 {
	return s.errors.snapshot()
}

// Reset clears the window.
func (s *StabilityTracker) Reset() {
	s.errors.reset()
}

// Statistics summarizes the tracker.
func (s *StabilityTracker) Statistics() StabilityStats {
	return StabilityStats{
		Samples:   s.errors.len(),
		Stability: s.Stability(),
		Penalty:   s.Penalty(),
	}
}

// #endregion stability-tracker
