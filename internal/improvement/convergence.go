package improvement

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/utils"
)

// ConvergenceStrategy inspects a best-error history after a run.
// Detection is descriptive only; a run always executes its configured iterations.
type ConvergenceStrategy interface {
	// CheckConvergence reports whether history has converged, and why
	CheckConvergence(history []float64) (bool, string)
	// Name returns the name of the convergence strategy
	Name() string
}

// ConvergenceConfig holds configuration for convergence detection
type ConvergenceConfig struct {
	// NoImprovementIterations is the number of trailing iterations without improvement
	NoImprovementIterations int
	// ImprovementThreshold is the minimum relative improvement to consider significant
	ImprovementThreshold float64
	// ScoreTolerance is the absolute tolerance for errors to be considered equal
	ScoreTolerance float64
	// MinIterations is the minimum history length before convergence can be detected
	MinIterations int
	// PlateauIterations is the window inspected for a plateau
	PlateauIterations int
}

// DefaultConvergenceConfig returns a default convergence configuration
func DefaultConvergenceConfig() *ConvergenceConfig {
	return &ConvergenceConfig{
		NoImprovementIterations: 20,
		ImprovementThreshold:    0.01,
		ScoreTolerance:          1e-6,
		MinIterations:           5,
		PlateauIterations:       10,
	}
}

// NoImprovementStrategy detects convergence when there's no improvement for N iterations
type NoImprovementStrategy struct {
	config *ConvergenceConfig
}

// NewNoImprovementStrategy creates a new no-improvement convergence strategy
func NewNoImprovementStrategy(config *ConvergenceConfig) *NoImprovementStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &NoImprovementStrategy{config: config}
}

func (s *NoImprovementStrategy) Name() string {
	return "no_improvement"
}

func (s *NoImprovementStrategy) CheckConvergence(history []float64) (bool, string) {
	if len(history) < s.config.MinIterations {
		return false, ""
	}
	best := bestIndex(history)
	since := len(history) - 1 - best
	if since >= s.config.NoImprovementIterations {
		return true, fmt.Sprintf("no improvement for %d iterations (best at iteration %d)", since, best+1)
	}
	return false, ""
}

// PlateauStrategy detects convergence when the trailing window lies within ScoreTolerance
type PlateauStrategy struct {
	config *ConvergenceConfig
}

// NewPlateauStrategy creates a new plateau convergence strategy
func NewPlateauStrategy(config *ConvergenceConfig) *PlateauStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &PlateauStrategy{config: config}
}

func (s *PlateauStrategy) Name() string {
	return "plateau"
}

func (s *PlateauStrategy) CheckConvergence(history []float64) (bool, string) {
	if len(history) < s.config.MinIterations || len(history) < s.config.PlateauIterations {
		return false, ""
	}
	window := history[len(history)-s.config.PlateauIterations:]
	lo, hi := window[0], window[0]
	for _, v := range window {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo <= s.config.ScoreTolerance {
		return true, fmt.Sprintf("error plateaued for %d iterations (range: %.6g)", s.config.PlateauIterations, hi-lo)
	}
	return false, ""
}

// ThresholdStrategy detects convergence when recent relative improvements are below threshold
type ThresholdStrategy struct {
	config *ConvergenceConfig
}

// NewThresholdStrategy creates a new improvement threshold convergence strategy
func NewThresholdStrategy(config *ConvergenceConfig) *ThresholdStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &ThresholdStrategy{config: config}
}

func (s *ThresholdStrategy) Name() string {
	return "improvement_threshold"
}

func (s *ThresholdStrategy) CheckConvergence(history []float64) (bool, string) {
	window := s.config.NoImprovementIterations
	if len(history) < s.config.MinIterations+1 || len(history) < window || window < 2 {
		return false, ""
	}
	recent := history[len(history)-window:]
	maxImprovement := 0.0
	counted := 0
	for i := 1; i < len(recent); i++ {
		if recent[i-1] <= 0 {
			continue
		}
		counted++
		maxImprovement = math.Max(maxImprovement, (recent[i-1]-recent[i])/recent[i-1])
	}
	if counted > 0 && maxImprovement <= s.config.ImprovementThreshold {
		return true, fmt.Sprintf("improvements below threshold (max: %.4f%%, threshold: %.4f%%)", maxImprovement*100, s.config.ImprovementThreshold*100)
	}
	return false, ""
}

// VarianceStrategy detects convergence when the trailing window is stable relative to its mean
type VarianceStrategy struct {
	config *ConvergenceConfig
}

// NewVarianceStrategy creates a new variance-based convergence strategy
func NewVarianceStrategy(config *ConvergenceConfig) *VarianceStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &VarianceStrategy{config: config}
}

func (s *VarianceStrategy) Name() string {
	return "variance"
}

func (s *VarianceStrategy) CheckConvergence(history []float64) (bool, string) {
	if len(history) < s.config.MinIterations {
		return false, ""
	}
	size := min(s.config.PlateauIterations, len(history))
	if size < 2 {
		return false, ""
	}
	mean, std := meanStdDev(history[len(history)-size:])
	if mean > 0 && std/mean < s.config.ImprovementThreshold {
		return true, fmt.Sprintf("low error variance (relative stddev: %.4f%%)", std/mean*100)
	}
	return false, ""
}

// CombinedStrategy converges when any of its strategies does
type CombinedStrategy struct {
	strategies []ConvergenceStrategy
}

// NewCombinedStrategy creates a combined no-improvement, plateau and threshold strategy
func NewCombinedStrategy(config *ConvergenceConfig) *CombinedStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &CombinedStrategy{
		strategies: []ConvergenceStrategy{
			NewNoImprovementStrategy(config),
			NewPlateauStrategy(config),
			NewThresholdStrategy(config),
		},
	}
}

func (s *CombinedStrategy) Name() string {
	return "combined"
}

func (s *CombinedStrategy) CheckConvergence(history []float64) (bool, string) {
	for _, strategy := range s.strategies {
		if converged, reason := strategy.CheckConvergence(history); converged {
			return true, fmt.Sprintf("%s: %s", strategy.Name(), reason)
		}
	}
	return false, ""
}

// AddStrategy adds a custom strategy to the combined strategy
func (s *CombinedStrategy) AddStrategy(strategy ConvergenceStrategy) {
	s.strategies = append(s.strategies, strategy)
}

// Diagnose summarises a history: the first iteration (1-based) within tolerance of
// the final error, how many iterations improved, history statistics and the verdict
// of strategy. An empty history yields zero diagnostics.
func Diagnose(history []float64, strategy ConvergenceStrategy, tolerance float64) models.Diagnostics {
	var d models.Diagnostics
	if len(history) == 0 {
		return d
	}
	final := history[len(history)-1]
	for i, v := range history {
		if math.Abs(v-final) <= tolerance {
			d.ConvergedAtIteration = i + 1
			break
		}
	}
	for i := 1; i < len(history); i++ {
		if history[i] < history[i-1] {
			d.ImprovingIterations++
		}
	}
	d.HistoryMean, d.HistoryStdDev = meanStdDev(history)
	if strategy != nil {
		d.Converged, d.ConvergenceReason = strategy.CheckConvergence(history)
	}
	return d
}

func bestIndex(history []float64) int {
	best := 0
	for i := 1; i < len(history); i++ {
		if history[i] < history[best] {
			best = i
		}
	}
	return best
}

// meanStdDev is the population mean and standard deviation of values. Squared
// deviations of very large errors overflow, so such histories are summarised
// after scaling by their largest magnitude.
func meanStdDev(values []float64) (mean, std float64) {
	mean, std = stat.PopMeanStdDev(values, nil)
	if utils.IsFinite(mean) && utils.IsFinite(std) {
		return mean, std
	}
	m := floats.Norm(values, math.Inf(1))
	if m == 0 || !utils.IsFinite(m) {
		return mean, std
	}
	scaled := make([]float64, len(values))
	floats.ScaleTo(scaled, 1/m, values)
	mean, std = stat.PopMeanStdDev(scaled, nil)
	return mean * m, std * m
}
