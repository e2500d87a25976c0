package improvement

import (
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/utils"
)

// NeighborExplorer proposes a neighbor of a candidate.
// Implementations return a new clipped candidate and never modify c.
type NeighborExplorer interface {
	Neighbor(c models.CandidateSolution, rng *utils.RandSource) models.CandidateSolution
	// Name returns the name of the exploration strategy
	Name() string
}

// UniformStepExplorer perturbs every coordinate by U[-Step, +Step] and clips to Bounds
type UniformStepExplorer struct {
	Bounds models.TunableFactorSet
	Step   float64
}

// NewUniformStepExplorer creates a uniform step explorer
func NewUniformStepExplorer(bounds models.TunableFactorSet, step float64) *UniformStepExplorer {
	return &UniformStepExplorer{Bounds: bounds, Step: step}
}

func (e *UniformStepExplorer) Name() string {
	return "uniform_step"
}

func (e *UniformStepExplorer) Neighbor(c models.CandidateSolution, rng *utils.RandSource) models.CandidateSolution {
	n := c.Clone()
	for j := range n {
		n[j] += rng.Symmetric(e.Step)
	}
	e.Bounds.Clip(n)
	return n
}

// PartnerExplorer moves one random coordinate relative to a partner source:
// v_j = x_j + φ(x_j - p_j) with φ drawn from U[-1, 1].
// With no partner (a population of one) it falls back to a uniform step of Step on that coordinate.
type PartnerExplorer struct {
	Bounds models.TunableFactorSet
	Step   float64
}

func (e *PartnerExplorer) Name() string {
	return "partner"
}

// Move returns the neighbor of c with respect to partner
func (e *PartnerExplorer) Move(c, partner models.CandidateSolution, rng *utils.RandSource) models.CandidateSolution {
	n := c.Clone()
	j := rng.Intn(len(n))
	if partner == nil {
		n[j] += rng.Symmetric(e.Step)
	} else {
		n[j] += rng.Symmetric(1) * (c[j] - partner[j])
	}
	e.Bounds.Clip(n)
	return n
}
