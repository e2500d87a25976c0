package improvement

import (
	"fmt"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/pvmodel"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

// CompareCandidates contrasts the baseline with the optimized candidate under fitness.
// ImprovementPercent is the share of the baseline error removed; it is 0 when the baseline error is 0.
func CompareCandidates(fitness *Fitness, baseline, optimized models.CandidateSolution) (*models.Comparison, error) {
	if fitness == nil {
		return nil, fmt.Errorf("fitness function is nil")
	}
	if baseline == nil {
		return nil, fmt.Errorf("baseline candidate is nil")
	}
	if optimized == nil {
		return nil, fmt.Errorf("optimized candidate is nil")
	}
	if len(baseline) != len(optimized) {
		return nil, fmt.Errorf("candidate length mismatch: baseline %d, optimized %d", len(baseline), len(optimized))
	}

	baselineError := fitness.Score(baseline)
	optimizedError := fitness.Score(optimized)
	cmp := &models.Comparison{
		BaselinePower:  fitness.Predict(baseline),
		OptimizedPower: fitness.Predict(optimized),
		MeasuredPower:  fitness.Target(),
		ErrorReduction: baselineError - optimizedError,
		Improved:       optimizedError < baselineError,
	}
	cmp.PowerDelta = cmp.OptimizedPower - cmp.BaselinePower
	if baselineError > 0 {
		cmp.ImprovementPercent = cmp.ErrorReduction / baselineError * 100
	}
	return cmp, nil
}

// DegeneracyWarnings flags targets the forward model cannot represent well.
// None of these stop a run: the objective stays finite for any finite target.
func DegeneracyWarnings(model *pvmodel.Model, set models.TunableFactorSet, target float64) []string {
	var warnings []string
	if target <= 0 {
		warnings = append(warnings, fmt.Sprintf("measured target %.4g W is not positive", target))
	}
	lo, hi := model.Range(set)
	switch {
	case target > hi:
		warnings = append(warnings, fmt.Sprintf("measured target %.4g W exceeds the maximum achievable prediction %.4g W", target, hi))
	case target < lo && target > 0:
		warnings = append(warnings, fmt.Sprintf("measured target %.4g W is below the minimum achievable prediction %.4g W", target, lo))
	}
	return warnings
}
