package improvement

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/pvmodel"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/utils"
)

// Strategy names a search strategy
type Strategy string

const (
	// StrategyHillClimb is greedy stochastic hill climbing over the whole population
	StrategyHillClimb Strategy = "hill_climb"
	// StrategyABC is the canonical artificial bee colony with onlooker and scout phases
	StrategyABC Strategy = "abc"
)

// Limits accepted by SearchConfig.Validate
const (
	MaxPopulationSize = 10000
	MaxIterations     = 100000
)

// SearchConfig holds the run configuration of the search engine
type SearchConfig struct {
	Strategy       Strategy
	Objective      string
	PopulationSize int
	Iterations     int
	Step           float64
	GreedyReplace  bool
	// Seed 0 selects a time-based seed; the effective seed is reported in the result.
	Seed    int64
	Workers int
	// AbandonLimit applies to StrategyABC only; 0 means PopulationSize * dimension.
	AbandonLimit int
}

// DefaultSearchConfig returns the defaults of the calibration page: 30 bees, 200 iterations, ±0.01 steps.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Strategy:       StrategyHillClimb,
		Objective:      string(ObjectiveAbsoluteError),
		PopulationSize: 30,
		Iterations:     200,
		Step:           0.01,
		GreedyReplace:  true,
		Workers:        1,
	}
}

// Validate rejects configurations the engine cannot run
func (c SearchConfig) Validate() error {
	switch c.Strategy {
	case StrategyHillClimb, StrategyABC:
	default:
		return &models.ConfigError{Field: "search.strategy", Reason: fmt.Sprintf("unknown strategy %q", c.Strategy)}
	}
	if _, err := NewObjectiveFunction(c.Objective); err != nil {
		return &models.ConfigError{Field: "search.objective", Reason: err.Error()}
	}
	if c.PopulationSize <= 0 || c.PopulationSize > MaxPopulationSize {
		return &models.ConfigError{Field: "search.population_size", Reason: fmt.Sprintf("must be in [1, %d], got %d", MaxPopulationSize, c.PopulationSize)}
	}
	if c.Iterations <= 0 || c.Iterations > MaxIterations {
		return &models.ConfigError{Field: "search.iterations", Reason: fmt.Sprintf("must be in [1, %d], got %d", MaxIterations, c.Iterations)}
	}
	if !(c.Step > 0) || !utils.IsFinite(c.Step) {
		return &models.ConfigError{Field: "search.step", Reason: "must be a positive finite number"}
	}
	if c.Workers < 0 {
		return &models.ConfigError{Field: "search.workers", Reason: "cannot be negative"}
	}
	if c.AbandonLimit < 0 {
		return &models.ConfigError{Field: "search.abandon_limit", Reason: "cannot be negative"}
	}
	return nil
}

// Problem is everything a run calibrates against
type Problem struct {
	Context models.ForwardModelContext
	Target  float64
	Factors models.TunableFactorSet
	// Baseline is the designated unoptimized candidate; nil selects the midpoint of Factors.
	Baseline models.CandidateSolution
}

// Validate checks the problem before any iteration runs
func (p Problem) Validate() error {
	if err := p.Context.Validate(); err != nil {
		return err
	}
	if !utils.IsFinite(p.Target) {
		return &models.ConfigError{Field: "measured_target", Reason: "must be finite"}
	}
	if err := p.Factors.Validate(); err != nil {
		return err
	}
	if peak := pvmodel.NewModel(p.Context).Peak(p.Factors); !utils.IsFinite(peak) {
		return &models.ConfigError{Field: "context", Reason: "predicted power overflows within the factor bounds"}
	}
	if p.Baseline != nil {
		if len(p.Baseline) != p.Factors.Dim() {
			return &models.ConfigError{Field: "baseline", Reason: fmt.Sprintf("has %d values for %d factors", len(p.Baseline), p.Factors.Dim())}
		}
		if !p.Factors.Contains(p.Baseline) {
			return &models.ConfigError{Field: "baseline", Reason: "lies outside the factor bounds"}
		}
	}
	return nil
}

// ProgressReporter is called once per completed iteration
type ProgressReporter func(iteration int, bestError float64)

// searchStrategy advances a population by one iteration.
// offer must be called with every finalized candidate, in population order.
type searchStrategy interface {
	Name() string
	Step(pop *Population, offer func(models.CandidateSolution, float64))
}

// Optimizer runs one calibration. It is single-use: Optimize may be called once.
type Optimizer struct {
	problem   Problem
	cfg       SearchConfig
	objective ObjectiveFunction
	fitness   *Fitness
	rng       *utils.RandSource
	progress  ProgressReporter

	mu        sync.RWMutex
	best      models.CandidateSolution
	bestError float64
	iteration int
	history   []float64
}

// NewOptimizer validates problem and cfg and prepares a run
func NewOptimizer(problem Problem, cfg SearchConfig) (*Optimizer, error) {
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	objective, err := NewObjectiveFunction(cfg.Objective)
	if err != nil {
		return nil, err
	}
	if err := checkErrorRange(problem, objective); err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.Strategy == StrategyABC && cfg.AbandonLimit == 0 {
		cfg.AbandonLimit = cfg.PopulationSize * problem.Factors.Dim()
	}
	return &Optimizer{
		problem:   problem,
		cfg:       cfg,
		objective: objective,
		fitness:   NewFitness(problem.Context, problem.Target, objective),
		rng:       utils.NewRandSource(cfg.Seed),
		bestError: math.Inf(1),
		history:   make([]float64, 0, cfg.Iterations),
	}, nil
}

// checkErrorRange rejects objectives that overflow somewhere in the reachable
// prediction range. Every objective grows with |predicted-target|, so checking
// both ends of [-peak, peak] covers the whole box.
func checkErrorRange(problem Problem, objective ObjectiveFunction) error {
	peak := pvmodel.NewModel(problem.Context).Peak(problem.Factors)
	for _, predicted := range []float64{peak, -peak} {
		if !utils.IsFinite(objective.Evaluate(predicted, problem.Target)) {
			return &models.ConfigError{Field: "objective", Reason: fmt.Sprintf("%s overflows within the factor bounds", objective.Name())}
		}
	}
	return nil
}

// WithProgressReporter sets a callback invoked after every iteration
func (o *Optimizer) WithProgressReporter(fn ProgressReporter) *Optimizer {
	o.progress = fn
	return o
}

// Config returns the effective configuration
func (o *Optimizer) Config() SearchConfig {
	return o.cfg
}

// Optimize runs exactly cfg.Iterations iterations, or fewer when ctx is cancelled.
// Cancellation is checked between iterations and yields the best result so far.
func (o *Optimizer) Optimize(ctx context.Context) (*models.OptimizationResult, error) {
	log := logger.Component("optimizer")

	baseline := o.problem.Baseline.Clone()
	if baseline == nil {
		baseline = o.problem.Factors.Midpoint()
	}
	baselineError := o.fitness.Score(baseline)
	o.offer(baseline, baselineError)

	pop := NewPopulation(o.problem.Factors, o.cfg.PopulationSize, o.rng)
	pop.Errors = o.fitness.ScoreAll(pop.Members, o.cfg.Workers)
	first := pop.BestIndex()
	o.offer(pop.Members[first], pop.Errors[first])

	strategy := o.newStrategy()
	log.Debug("calibration started",
		"strategy", strategy.Name(),
		"objective", o.objective.Name(),
		"population", o.cfg.PopulationSize,
		"iterations", o.cfg.Iterations,
		"dimension", o.problem.Factors.Dim(),
		"seed", o.rng.Seed())

	cancelled := false
	for iteration := 1; iteration <= o.cfg.Iterations; iteration++ {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		strategy.Step(pop, o.offer)

		o.mu.Lock()
		o.iteration = iteration
		o.history = append(o.history, o.bestError)
		bestError := o.bestError
		o.mu.Unlock()

		if o.progress != nil {
			o.progress(iteration, bestError)
		}
	}

	if cancelled {
		log.Info("calibration cancelled", "completed_iterations", o.Iteration(), "best_error", o.BestError())
	}
	return o.buildResult(baseline, baselineError, strategy.Name(), cancelled), nil
}

func (o *Optimizer) newStrategy() searchStrategy {
	if o.cfg.Strategy == StrategyABC {
		return newColony(o.problem.Factors, o.fitness, o.rng, o.cfg)
	}
	return &hillClimber{
		explorer: NewUniformStepExplorer(o.problem.Factors, o.cfg.Step),
		fitness:  o.fitness,
		rng:      o.rng,
		workers:  o.cfg.Workers,
		greedy:   o.cfg.GreedyReplace,
	}
}

// offer updates the running best with strict <, so the first-found of equal candidates is kept
func (o *Optimizer) offer(c models.CandidateSolution, err float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err < o.bestError {
		o.bestError = err
		o.best = c.Clone()
	}
}

// buildResult constructs the optimization result
func (o *Optimizer) buildResult(baseline models.CandidateSolution, baselineError float64, strategy string, cancelled bool) *models.OptimizationResult {
	o.mu.RLock()
	defer o.mu.RUnlock()

	history := make([]float64, len(o.history))
	copy(history, o.history)

	return Report(ReportInput{
		Fitness:       o.fitness,
		Factors:       o.problem.Factors,
		Best:          o.best.Clone(),
		BestError:     o.bestError,
		Baseline:      baseline,
		BaselineError: baselineError,
		History:       history,
		Strategy:      strategy,
		Iterations:    o.iteration,
		Seed:          o.rng.Seed(),
		Cancelled:     cancelled,
	})
}

// BestSolution returns the best candidate found so far
func (o *Optimizer) BestSolution() models.CandidateSolution {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.best.Clone()
}

// BestError returns the best error found so far
func (o *Optimizer) BestError() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.bestError
}

// Iteration returns the number of completed iterations
func (o *Optimizer) Iteration() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.iteration
}

// hillClimber perturbs every member once per iteration.
// Neighbors are drawn sequentially, scored (possibly in parallel), then accepted in population order.
type hillClimber struct {
	explorer NeighborExplorer
	fitness  *Fitness
	rng      *utils.RandSource
	workers  int
	greedy   bool
}

func (h *hillClimber) Name() string {
	return string(StrategyHillClimb)
}

func (h *hillClimber) Step(pop *Population, offer func(models.CandidateSolution, float64)) {
	neighbors := make([]models.CandidateSolution, pop.Size())
	for i, c := range pop.Members {
		neighbors[i] = h.explorer.Neighbor(c, h.rng)
	}
	scores := h.fitness.ScoreAll(neighbors, h.workers)
	for i, n := range neighbors {
		if !h.greedy || scores[i] < pop.Errors[i] {
			pop.Replace(i, n, scores[i])
		}
		offer(pop.Members[i], pop.Errors[i])
	}
}
