package improvement

import (
	"gonum.org/v1/gonum/floats"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/utils"
)

// SelectionStrategy picks a population slot given per-slot errors
type SelectionStrategy interface {
	// Prepare is called once before a batch of Select calls against the same errors
	Prepare(errors []float64)
	Select(errors []float64, rng *utils.RandSource) int
	// Name returns the name of the selection strategy
	Name() string
}

// RouletteStrategy selects slots with probability proportional to 1/(1+err).
type RouletteStrategy struct {
	weights []float64
}

func (s *RouletteStrategy) Name() string {
	return "roulette"
}

// Prepare computes the selection weights once for a batch of Select calls
// against the same errors.
func (s *RouletteStrategy) Prepare(errors []float64) {
	if cap(s.weights) < len(errors) {
		s.weights = make([]float64, len(errors))
	}
	s.weights = s.weights[:len(errors)]
	for i, e := range errors {
		s.weights[i] = FitnessWeight(e)
	}
}

// Select draws a slot from the weights computed by Prepare.
// Degenerate weights fall back to a uniform draw.
func (s *RouletteStrategy) Select(errors []float64, rng *utils.RandSource) int {
	if len(s.weights) != len(errors) {
		s.Prepare(errors)
	}
	total := floats.Sum(s.weights)
	if total <= 0 || !utils.IsFinite(total) {
		return rng.Intn(len(errors))
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, w := range s.weights {
		acc += w
		if r < acc {
			return i
		}
	}
	return len(s.weights) - 1
}

// FitnessWeight maps a non-negative error to the colony fitness 1/(1+err)
func FitnessWeight(err float64) float64 {
	if err < 0 || !utils.IsFinite(err) {
		return 0
	}
	return 1 / (1 + err)
}
