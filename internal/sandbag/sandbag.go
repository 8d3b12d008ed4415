// Package sandbag discounts suspiciously large "surprise" gains from agents
// that systematically underclaim.
package sandbag

// #region detector
// Detector is the capability the controller needs from a sandbagging
// detector. CreditDiscount must never return more than actualGain.
type Detector interface {
	AddObservation(claimedGain, actualGain float64)
	CreditDiscount(claimedGain, actualGain float64) float64
	Statistics() Statistics
	Reset()
}

// Statistics summarizes detector state.
type Statistics struct {
	Enabled           bool    `json:"enabled"`
	Observations      int     `json:"observations"`
	MeanSurpriseRatio float64 `json:"mean_surprise_ratio"`
	Suspicious        bool    `json:"suspicious"`
	DiscountsApplied  int     `json:"discounts_applied"`
	BitsDiscounted    float64 `json:"bits_discounted"`
}

// #endregion detector

// #region noop
// Noop credits every realization in full.
type Noop struct{}

func (Noop) AddObservation(float64, float64) {}
func (Noop) CreditDiscount(_ float64, actualGain float64) float64 { return actualGain }
func (Noop) Statistics() Statistics { return Statistics{} }
func (Noop) Reset() {}

// #endregion noop

// #region config
// Config holds window detector thresholds.
type Config struct {
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	WindowSize     int     `json:"window_size" yaml:"window_size"`
	MinSamples     int     `json:"min_samples" yaml:"min_samples"`
	SuspicionRatio float64 `json:"suspicion_ratio" yaml:"suspicion_ratio"` // mean actual/claimed that triggers discounting
	Discount       float64 `json:"discount" yaml:"discount"`               // fraction of surprise withheld, in [0,1]
}

// DefaultConfig returns the standard detector thresholds.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		WindowSize:     20,
		MinSamples:     5,
		SuspicionRatio: 1.5,
		Discount:       0.5,
	}
}

// New returns a WindowDetector when enabled, otherwise Noop.
func New(config Config) Detector {
	if !config.Enabled {
		return Noop{}
	}
	return NewWindowDetector(config)
}

// #endregion config

// #region window-detector
// WindowDetector flags an agent whose realized gains consistently exceed its
// claims by SuspicionRatio, and withholds part of the surprise beyond the
// claim while suspicious.
type WindowDetector struct {
	config           Config
	ratios           []float64
	discountsApplied int
	bitsDiscounted   float64
}

// NewWindowDetector creates a detector with the given thresholds.
func NewWindowDetector(config Config) *WindowDetector {
	if config.WindowSize < 1 {
		config.WindowSize = DefaultConfig().WindowSize
	}
	config.Discount = min(1, max(0, config.Discount))
	return &WindowDetector{config: config}
}

// AddObservation records one claimed/actual pair. Non-positive claims carry
// no ratio and are ignored.
func (d *WindowDetector) AddObservation(claimedGain, actualGain float64) {
	if claimedGain <= 0 {
		return
	}
	if len(d.ratios) == d.config.WindowSize {
		d.ratios = d.ratios[1:]
	}
	d.ratios = append(d.ratios, actualGain/claimedGain)
}

// CreditDiscount returns the credited gain, which is actualGain unless the
// agent is suspicious and beat its claim.
func (d *WindowDetector) CreditDiscount(claimedGain, actualGain float64) float64 {
	if !d.suspicious() || actualGain <= claimedGain {
		return actualGain
	}
	credited := claimedGain + (actualGain-claimedGain)*(1-d.config.Discount)
	credited = min(credited, actualGain)
	d.discountsApplied++
	d.bitsDiscounted += actualGain - credited
	return credited
}

func (d *WindowDetector) meanRatio() float64 {
	if len(d.ratios) == 0 {
		return 0
	}
	var sum float64
	for _, r := range d.ratios {
		sum += r
	}
	return sum / float64(len(d.ratios))
}

func (d *WindowDetector) suspicious() bool {
	return len(d.ratios) >= d.config.MinSamples && d.meanRatio() >= d.config.SuspicionRatio
}

// Statistics summarizes the detector.
func (d *WindowDetector) Statistics() Statistics {
	return Statistics{
		Enabled:           true,
		Observations:      len(d.ratios),
		MeanSurpriseRatio: d.meanRatio(),
		Suspicious:        d.suspicious(),
		DiscountsApplied:  d.discountsApplied,
		BitsDiscounted:    d.bitsDiscounted,
	}
}

// Reset clears the window and counters.
func (d *WindowDetector) Reset() {
	d.ratios = nil
	d.discountsApplied = 0
	d.bitsDiscounted = 0
}

// #endregion window-detector
