package improvement

import (
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/utils"
)

// Population is the fixed-size set of candidates evolved by a run.
// Errors[i] always holds the fitness of Members[i].
type Population struct {
	Members []models.CandidateSolution
	Errors  []float64
	// Trials counts consecutive non-improving moves per slot (used by the colony strategy).
	Trials []int
}

// NewPopulation draws n candidates uniformly from set.
// Coordinates are drawn member by member, factor by factor, so a seed fixes the population.
func NewPopulation(set models.TunableFactorSet, n int, rng *utils.RandSource) *Population {
	p := &Population{
		Members: make([]models.CandidateSolution, n),
		Errors:  make([]float64, n),
		Trials:  make([]int, n),
	}
	for i := range p.Members {
		p.Members[i] = RandomCandidate(set, rng)
	}
	return p
}

// RandomCandidate draws every coordinate uniformly from its bound
func RandomCandidate(set models.TunableFactorSet, rng *utils.RandSource) models.CandidateSolution {
	c := make(models.CandidateSolution, len(set))
	for j, b := range set {
		c[j] = rng.UniformFloat64(b.Min, b.Max)
	}
	return c
}

// Size returns N
func (p *Population) Size() int {
	return len(p.Members)
}

// Replace stores c in slot i with its error and resets the slot's trial counter
func (p *Population) Replace(i int, c models.CandidateSolution, err float64) {
	p.Members[i] = c
	p.Errors[i] = err
	p.Trials[i] = 0
}

// BestIndex returns the slot with the lowest error; the first one wins ties.
func (p *Population) BestIndex() int {
	best := 0
	for i := 1; i < len(p.Errors); i++ {
		if p.Errors[i] < p.Errors[best] {
			best = i
		}
	}
	return best
}
