package penalty

// #region entropy-source
// EntropySource classifies where a posterior entropy value came from.
// Supplied by the measurement layer; never inferred here.
type EntropySource string

const (
	SourcePrior                    EntropySource = "prior"
	SourceMeasurementNarrowing     EntropySource = "measurement_narrowing"
	SourceMeasurementAmbiguous     EntropySource = "measurement_ambiguous"
	SourceMeasurementContradictory EntropySource = "measurement_contradictory"
)

// Valid reports whether s is one of the known sources.
func (s EntropySource) Valid() bool {
	switch s {
	case SourcePrior, SourceMeasurementNarrowing, SourceMeasurementAmbiguous, SourceMeasurementContradictory:
		return true
	}
	return false
}

// #endregion entropy-source

// #region penalty-config
// Config holds weights and thresholds for the entropy penalty functions.
type Config struct {
	Weight                   float64 `json:"weight" yaml:"weight"`                                           // penalty per bit of widening
	MaxPenalty               float64 `json:"max_penalty" yaml:"max_penalty"`                                 // hard cap on a single penalty
	OnlyPenalizeAgentActions bool    `json:"only_penalize_agent_actions" yaml:"only_penalize_agent_actions"` // skip drift / batch noise
	ShrinkageRate            float64 `json:"shrinkage_rate" yaml:"shrinkage_rate"`                           // horizon shrinkage slope
}

// DefaultConfig returns the standard penalty weights.
func DefaultConfig() Config {
	return Config{
		Weight:                   1.0,
		MaxPenalty:               2.0,
		OnlyPenalizeAgentActions: true,
		ShrinkageRate:            0.3,
	}
}

// #endregion penalty-config

// #region agent-actions
// contradictoryMultiplier scales penalties for flat contradictions.
const contradictoryMultiplier = 1.5

// agentActionTypes are the expensive assays whose widening is the agent's fault.
var agentActionTypes = map[string]bool{
	"cell_painting": true,
	"scrna_seq":     true,
	"bulk_rna_seq":  true,
	"atac_seq":      true,
	"imaging":       true,
	"proteomics":    true,
}

// IsAgentAction reports whether actionType is an agent-caused assay.
func IsAgentAction(actionType string) bool {
	return agentActionTypes[actionType]
}

// #endregion agent-actions

// #region result
// Result combines the immediate widening penalty and the horizon multiplier.
type Result struct {
	ActionType        string        `json:"action_type"`
	Source            EntropySource `json:"entropy_source"`
	PriorEntropy      float64       `json:"prior_entropy"`
	PosteriorEntropy  float64       `json:"posterior_entropy"`
	EntropyPenalty    float64       `json:"entropy_penalty"`
	HorizonMultiplier float64       `json:"horizon_multiplier"`
}

// InfoGain is prior minus posterior entropy, in bits.
func (r Result) InfoGain() float64 {
	return r.PriorEntropy - r.PosteriorEntropy
}

// DidWiden reports whether the action increased uncertainty.
func (r Result) DidWiden() bool {
	return r.InfoGain() < 0
}

// #endregion result
