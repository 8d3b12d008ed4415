package signals

// DefaultWindowSize is the default history capacity for both trackers.
const DefaultWindowSize = 10

// minSamples is the evidence floor below which neither tracker penalizes.
const minSamples = 3

// #region volatility-config
// VolatilityConfig holds thrashing detection thresholds.
type VolatilityConfig struct {
	WindowSize    int     `json:"window_size" yaml:"window_size"`
	Threshold     float64 `json:"threshold" yaml:"threshold"`           // stddev above which entropy is thrashing
	PenaltyWeight float64 `json:"penalty_weight" yaml:"penalty_weight"` // penalty per unit of excess stddev
}

// DefaultVolatilityConfig returns the standard thrashing thresholds.
func DefaultVolatilityConfig() VolatilityConfig {
	return VolatilityConfig{
		WindowSize:    DefaultWindowSize,
		Threshold:     0.25,
		PenaltyWeight: 0.5,
	}
}

// #endregion volatility-config

// #region stability-config
// StabilityConfig holds calibration-stability weights.
type StabilityConfig struct {
	WindowSize        int     `json:"window_size" yaml:"window_size"`
	InstabilityWeight float64 `json:"instability_weight" yaml:"instability_weight"`
}

// DefaultStabilityConfig returns the standard stability weights.
func DefaultStabilityConfig() StabilityConfig {
	return StabilityConfig{
		WindowSize:        DefaultWindowSize,
		InstabilityWeight: 0.3,
	}
}

// #endregion stability-config

// #region stats
// VolatilityStats summarizes the volatility tracker.
type VolatilityStats struct {
	Samples     int     `json:"samples"`
	Volatility  float64 `json:"volatility"`
	Penalty     float64 `json:"penalty"`
	IsThrashing bool    `json:"is_thrashing"`
}

// StabilityStats summarizes the stability tracker.
type StabilityStats struct {
	Samples   int     `json:"samples"`
	Stability float64 `json:"stability"`
	Penalty   float64 `json:"penalty"`
}

// #endregion stats
