package improvement

import (
	"context"
	"testing"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/pvmodel"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/utils"
)

func TestColonyReachableTarget(t *testing.T) {
	target := pvmodel.Evaluate(referenceContext(), []float64{0.973})
	cfg := testConfig(21)
	cfg.Strategy = StrategyABC

	res, err := Calibrate(context.Background(), referenceProblem(target), cfg, nil)
	if err != nil {
		t.Fatalf("Calibrate error: %v", err)
	}
	if res.BestError >= 0.1 {
		t.Fatalf("expected colony to approach the target, best error %v", res.BestError)
	}
	if res.Strategy != "abc" {
		t.Fatalf("expected strategy abc, got %s", res.Strategy)
	}
}

func TestColonyDefaultAbandonLimit(t *testing.T) {
	problem := Problem{
		Context: referenceContext(),
		Target:  300,
		Factors: models.TunableFactorSet{
			{Name: "Fa", Min: 0.8, Max: 1.0},
			{Name: "Fb", Min: 0.8, Max: 1.0},
			{Name: "Fc", Min: 0.8, Max: 1.0},
		},
	}
	cfg := testConfig(4)
	cfg.Strategy = StrategyABC
	cfg.PopulationSize = 10
	opt, err := NewOptimizer(problem, cfg)
	if err != nil {
		t.Fatalf("NewOptimizer error: %v", err)
	}
	if got := opt.Config().AbandonLimit; got != 30 {
		t.Fatalf("expected abandon limit N*D = 30, got %d", got)
	}

	cfg.Strategy = StrategyHillClimb
	opt, _ = NewOptimizer(problem, cfg)
	if got := opt.Config().AbandonLimit; got != 0 {
		t.Fatalf("hill climbing should not derive an abandon limit, got %d", got)
	}
}

func TestColonyExhaustedSource(t *testing.T) {
	set := models.TunableFactorSet{{Name: "Fa", Min: 0.8, Max: 1.0}}
	fitness := NewFitness(referenceContext(), 300, &AbsoluteErrorObjective{})
	cfg := testConfig(6)
	cfg.AbandonLimit = 2
	c := newColony(set, fitness, utils.NewRandSource(6), cfg)

	pop := &Population{
		Members: []models.CandidateSolution{{0.9}, {0.95}, {0.85}},
		Trials:  []int{0, 5, 3},
	}
	pop.Errors = fitness.ScoreAll(pop.Members, 1)

	if got := c.exhausted(pop); got != 1 {
		t.Fatalf("expected source 1 to be exhausted, got %d", got)
	}
	pop.Trials = []int{0, 1, 2}
	if got := c.exhausted(pop); got != -1 {
		t.Fatalf("expected no exhausted source, got %d", got)
	}
}

func TestColonyTrialCounters(t *testing.T) {
	set := models.TunableFactorSet{{Name: "Fa", Min: 0.8, Max: 1.0}}
	fitness := NewFitness(referenceContext(), 0, &AbsoluteErrorObjective{})
	cfg := testConfig(10)
	cfg.AbandonLimit = 1000
	c := newColony(set, fitness, utils.NewRandSource(10), cfg)

	// Every source sits on the lower bound, which is already optimal for a zero target:
	// no move can improve, so every visit must count as a trial.
	pop := &Population{
		Members: []models.CandidateSolution{{0.8}, {0.8}},
		Trials:  make([]int, 2),
	}
	pop.Errors = fitness.ScoreAll(pop.Members, 1)

	offered := 0
	c.Step(pop, func(models.CandidateSolution, float64) { offered++ })
	if total := pop.Trials[0] + pop.Trials[1]; total != 4 {
		t.Fatalf("expected 4 trials (2 employed + 2 onlooker), got %d", total)
	}
	if offered != 2 {
		t.Fatalf("expected every source offered once, got %d", offered)
	}
}

func TestColonyStepReplacesExhaustedSource(t *testing.T) {
	set := models.TunableFactorSet{{Name: "Fa", Min: 0.8, Max: 1.0}}
	fitness := NewFitness(referenceContext(), 0, &AbsoluteErrorObjective{})
	cfg := testConfig(11)
	cfg.AbandonLimit = 2
	c := newColony(set, fitness, utils.NewRandSource(11), cfg)

	// Identical optimal sources cannot improve, so source 1 stays the most tried.
	pop := &Population{
		Members: []models.CandidateSolution{{0.8}, {0.8}, {0.8}},
		Trials:  []int{0, 5, 0},
	}
	pop.Errors = fitness.ScoreAll(pop.Members, 1)
	exhausted := pop.Members[1]

	var offered []models.CandidateSolution
	var offeredErrors []float64
	c.Step(pop, func(cand models.CandidateSolution, err float64) {
		offered = append(offered, cand)
		offeredErrors = append(offeredErrors, err)
	})

	if pop.Trials[1] != 0 {
		t.Fatalf("expected scout to reset trials, got %d", pop.Trials[1])
	}
	if &pop.Members[1][0] == &exhausted[0] {
		t.Fatalf("expected a freshly drawn candidate in slot 1")
	}
	if !set.Contains(pop.Members[1]) {
		t.Fatalf("scout %v outside bounds", pop.Members[1])
	}
	if want := fitness.Score(pop.Members[1]); pop.Errors[1] != want {
		t.Fatalf("expected rescored error %v, got %v", want, pop.Errors[1])
	}
	if pop.Trials[0] == 0 || pop.Trials[2] == 0 {
		t.Fatalf("expected other sources to accumulate trials, got %v", pop.Trials)
	}
	if len(offered) != 4 {
		t.Fatalf("expected 3 sources plus the scout offered, got %d", len(offered))
	}
	if last := offered[3]; &last[0] != &pop.Members[1][0] || offeredErrors[3] != pop.Errors[1] {
		t.Fatalf("expected the scout to be offered last")
	}
}
