package penalty

// #region entropy-penalty
// ComputeEntropyPenalty returns the immediate penalty for entropy widening.
// Narrowing, unmeasured prior uncertainty, and (optionally) non-agent
// actions are never penalized.
func ComputeEntropyPenalty(priorEntropy, posteriorEntropy float64, actionType string, config Config, source EntropySource) float64 {
	delta := posteriorEntropy - priorEntropy
	if delta <= 0 {
		return 0
	}
	if source == SourcePrior {
		return 0
	}
	if config.OnlyPenalizeAgentActions && !IsAgentAction(actionType) {
		return 0
	}

	p := delta * config.Weight
	if source == SourceMeasurementContradictory {
		p *= contradictoryMultiplier
	}
	if p > config.MaxPenalty {
		p = config.MaxPenalty
	}
	return p
}

// #endregion entropy-penalty

// #region horizon-shrinkage
// ComputePlanningHorizonShrinkage returns a [0,1] multiplier on the planning
// horizon. High uncertainty relative to baseline shortens the horizon.
func ComputePlanningHorizonShrinkage(currentEntropy, baselineEntropy float64, config Config) float64 {
	if baselineEntropy <= 0 {
		return 1.0
	}
	return clamp01(1.0 - config.ShrinkageRate*(currentEntropy/baselineEntropy))
}

// #endregion horizon-shrinkage

// #region full-penalty
// ComputeFull evaluates both penalty functions for one measurement pair.
func ComputeFull(priorEntropy, posteriorEntropy, baselineEntropy float64, actionType string, config Config, source EntropySource) Result {
	return Result{
		ActionType:        actionType,
		Source:            source,
		PriorEntropy:      priorEntropy,
		PosteriorEntropy:  posteriorEntropy,
		EntropyPenalty:    ComputeEntropyPenalty(priorEntropy, posteriorEntropy, actionType, config, source),
		HorizonMultiplier: ComputePlanningHorizonShrinkage(posteriorEntropy, baselineEntropy, config),
	}
}

// #endregion full-penalty

// #region helpers
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// #endregion helpers
