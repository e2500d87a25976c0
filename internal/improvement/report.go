package improvement

import (
	"github.com/GoSim-25-26J-441/pv-calibration/internal/pvmodel"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

// convergenceTolerance is the distance from the final error at which a run counts as settled
const convergenceTolerance = 1e-9

// ReportInput is the raw outcome of a search, before packaging
type ReportInput struct {
	Fitness       *Fitness
	Factors       models.TunableFactorSet
	Best          models.CandidateSolution
	BestError     float64
	Baseline      models.CandidateSolution
	BaselineError float64
	History       []float64
	Strategy      string
	Iterations    int
	Seed          int64
	Cancelled     bool
}

// Report packages a search outcome: named factors, the baseline comparison,
// convergence diagnostics and degeneracy warnings.
func Report(in ReportInput) *models.OptimizationResult {
	res := &models.OptimizationResult{
		BestSolution:     in.Best,
		BestError:        in.BestError,
		BaselineSolution: in.Baseline,
		BaselineError:    in.BaselineError,
		History:          in.History,
		Strategy:         in.Strategy,
		Objective:        in.Fitness.Objective().Name(),
		Iterations:       in.Iterations,
		Seed:             in.Seed,
		Cancelled:        in.Cancelled,
		Warnings:         DegeneracyWarnings(in.Fitness.Model(), in.Factors, in.Fitness.Target()),
		Diagnostics:      Diagnose(in.History, diagnosticStrategy(), convergenceTolerance),
	}
	if in.Best != nil {
		res.Factors = pvmodel.Name(in.Factors, in.Best)
		if cmp, err := CompareCandidates(in.Fitness, in.Baseline, in.Best); err == nil {
			res.Comparison = *cmp
		}
	}
	return res
}

// diagnosticStrategy is the verdict reported with every result: the default
// combined checks plus trailing-window variance.
func diagnosticStrategy() ConvergenceStrategy {
	s := NewCombinedStrategy(nil)
	s.AddStrategy(NewVarianceStrategy(nil))
	return s
}
