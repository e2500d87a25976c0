package improvement

import (
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/utils"
)

// colony is the canonical artificial bee colony: an employed phase, a
// fitness-proportional onlooker phase and a scout phase that abandons
// exhausted sources. Selection is always greedy; trial counters rely on it.
type colony struct {
	set       models.TunableFactorSet
	fitness   *Fitness
	rng       *utils.RandSource
	workers   int
	limit     int
	explorer  *PartnerExplorer
	selection SelectionStrategy
}

func newColony(set models.TunableFactorSet, fitness *Fitness, rng *utils.RandSource, cfg SearchConfig) *colony {
	return &colony{
		set:       set,
		fitness:   fitness,
		rng:       rng,
		workers:   cfg.Workers,
		limit:     cfg.AbandonLimit,
		explorer:  &PartnerExplorer{Bounds: set, Step: cfg.Step},
		selection: &RouletteStrategy{},
	}
}

func (c *colony) Name() string {
	return string(StrategyABC)
}

func (c *colony) Step(pop *Population, offer func(models.CandidateSolution, float64)) {
	n := pop.Size()

	employed := make([]int, n)
	for i := range employed {
		employed[i] = i
	}
	c.forage(pop, employed)

	c.selection.Prepare(pop.Errors)
	onlookers := make([]int, n)
	for k := range onlookers {
		onlookers[k] = c.selection.Select(pop.Errors, c.rng)
	}
	c.forage(pop, onlookers)

	for i := range pop.Members {
		offer(pop.Members[i], pop.Errors[i])
	}

	if i := c.exhausted(pop); i >= 0 {
		scout := RandomCandidate(c.set, c.rng)
		pop.Replace(i, scout, c.fitness.Score(scout))
		offer(pop.Members[i], pop.Errors[i])
	}
}

// forage sends one bee to each listed source. Moves are drawn sequentially
// against the sources as they stood at the start of the phase, then applied
// greedily in order.
func (c *colony) forage(pop *Population, sources []int) {
	n := pop.Size()
	moves := make([]models.CandidateSolution, len(sources))
	for k, i := range sources {
		var partner models.CandidateSolution
		if n > 1 {
			partner = pop.Members[c.rng.IntnExcluding(n, i)]
		}
		moves[k] = c.explorer.Move(pop.Members[i], partner, c.rng)
	}

	scores := c.fitness.ScoreAll(moves, c.workers)
	for k, i := range sources {
		if scores[k] < pop.Errors[i] {
			pop.Replace(i, moves[k], scores[k])
		} else {
			pop.Trials[i]++
		}
	}
}

// exhausted returns the source with the most trials above the abandon limit, or -1
func (c *colony) exhausted(pop *Population) int {
	worst := -1
	for i, t := range pop.Trials {
		if t > c.limit && (worst < 0 || t > pop.Trials[worst]) {
			worst = i
		}
	}
	return worst
}
