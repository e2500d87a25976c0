package improvement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/pvmodel"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

func referenceContext() models.ForwardModelContext {
	return models.ForwardModelContext{
		BasePower:         450,
		TemperatureFactor: 0.9825,
		IrradianceFactor:  0.8,
		FixedFactors: []models.NamedFactor{
			{Name: "Fmm", Value: 0.98},
			{Name: "Fshade", Value: 0.95},
		},
	}
}

func referenceProblem(target float64) Problem {
	return Problem{
		Context: referenceContext(),
		Target:  target,
		Factors: models.TunableFactorSet{{Name: "Fclean", Min: 0.8, Max: 1.0}},
	}
}

func testConfig(seed int64) SearchConfig {
	cfg := DefaultSearchConfig()
	cfg.Seed = seed
	return cfg
}

func TestOptimizerReachableTarget(t *testing.T) {
	target := pvmodel.Evaluate(referenceContext(), []float64{0.973})
	opt, err := NewOptimizer(referenceProblem(target), testConfig(42))
	if err != nil {
		t.Fatalf("NewOptimizer error: %v", err)
	}
	res, err := opt.Optimize(context.Background())
	if err != nil {
		t.Fatalf("Optimize error: %v", err)
	}
	if res.BestError >= 1e-2 {
		t.Fatalf("expected best error < 1e-2 W, got %v (solution %v)", res.BestError, res.BestSolution)
	}
	if math.Abs(res.BestSolution[0]-0.973) > 1e-3 {
		t.Fatalf("expected solution near 0.973, got %v", res.BestSolution)
	}
	if len(res.Factors) != 1 || res.Factors[0].Name != "Fclean" {
		t.Fatalf("expected named Fclean factor, got %+v", res.Factors)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("expected no warnings for a reachable target, got %v", res.Warnings)
	}
}

func TestOptimizerUnreachableTarget(t *testing.T) {
	upper := pvmodel.Evaluate(referenceContext(), []float64{1.0})
	opt, err := NewOptimizer(referenceProblem(1000), testConfig(7))
	if err != nil {
		t.Fatalf("NewOptimizer error: %v", err)
	}
	res, _ := opt.Optimize(context.Background())

	if res.BestSolution[0] != 1.0 {
		t.Fatalf("expected tunable at upper bound, got %v", res.BestSolution)
	}
	if math.Abs(res.BestError-(1000-upper)) > 1e-9 {
		t.Fatalf("expected best error %v, got %v", 1000-upper, res.BestError)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a degeneracy warning for an unreachable target")
	}
}

func TestOptimizerUnreachableTargetAllFactors(t *testing.T) {
	in := pvmodel.DefaultModuleInputs()
	base, specs := pvmodel.Calculate(in).CalibrationContext(in)
	fm, err := pvmodel.BuildFactorModel(specs)
	if err != nil {
		t.Fatalf("BuildFactorModel error: %v", err)
	}
	ctx, set, baseline := fm.Split(base)

	res, err := Calibrate(context.Background(), Problem{Context: ctx, Target: 1000, Factors: set, Baseline: baseline}, testConfig(11), nil)
	if err != nil {
		t.Fatalf("Calibrate error: %v", err)
	}
	for i, v := range res.BestSolution {
		if v != set[i].Max {
			t.Fatalf("expected %s at upper bound, got %v", set[i].Name, v)
		}
	}
}

// The convergence guarantees above hold for greedy replacement, the default.
// A non-greedy walk keeps only the structural properties checked below.
func TestOptimizerDefaultsToGreedyReplacement(t *testing.T) {
	if !DefaultSearchConfig().GreedyReplace {
		t.Fatalf("expected greedy replacement by default")
	}
	if !testConfig(42).GreedyReplace {
		t.Fatalf("expected convergence tests to run greedy")
	}
}

func TestOptimizerHistoryProperties(t *testing.T) {
	target := pvmodel.Evaluate(referenceContext(), []float64{0.9})
	for _, strategy := range []Strategy{StrategyHillClimb, StrategyABC} {
		for _, greedy := range []bool{true, false} {
			for _, n := range []int{1, 5, 30} {
				for _, k := range []int{1, 17, 60} {
					name := fmt.Sprintf("%s/greedy=%v/N=%d/K=%d", strategy, greedy, n, k)
					t.Run(name, func(t *testing.T) {
						cfg := testConfig(int64(n*1000 + k))
						cfg.Strategy = strategy
						cfg.GreedyReplace = greedy
						cfg.PopulationSize = n
						cfg.Iterations = k

						res, err := Calibrate(context.Background(), referenceProblem(target), cfg, nil)
						if err != nil {
							t.Fatalf("Calibrate error: %v", err)
						}
						if len(res.History) != k {
							t.Fatalf("expected history length %d, got %d", k, len(res.History))
						}
						for i := 1; i < len(res.History); i++ {
							if res.History[i] > res.History[i-1] {
								t.Fatalf("history increased at %d: %v > %v", i, res.History[i], res.History[i-1])
							}
						}
						if res.BaselineError < res.BestError {
							t.Fatalf("baseline error %v below best error %v", res.BaselineError, res.BestError)
						}
						if res.History[len(res.History)-1] != res.BestError {
							t.Fatalf("last history entry %v differs from best error %v", res.History[len(res.History)-1], res.BestError)
						}
						if res.Iterations != k || res.Cancelled {
							t.Fatalf("unexpected iterations %d cancelled %v", res.Iterations, res.Cancelled)
						}
					})
				}
			}
		}
	}
}

func TestOptimizerBoundInvariance(t *testing.T) {
	problem := Problem{
		Context: referenceContext(),
		Target:  200,
		Factors: models.TunableFactorSet{
			{Name: "Fmm", Min: 0.8, Max: 1.0},
			{Name: "Fclean", Min: 0.9, Max: 1.0},
			{Name: "Fshade", Min: 0.95, Max: 0.96},
		},
	}
	for _, strategy := range []Strategy{StrategyHillClimb, StrategyABC} {
		for _, greedy := range []bool{true, false} {
			t.Run(fmt.Sprintf("%s/greedy=%v", strategy, greedy), func(t *testing.T) {
				cfg := testConfig(3)
				cfg.Strategy = strategy
				cfg.GreedyReplace = greedy
				cfg.Step = 0.2
				cfg.AbandonLimit = 2
				opt, err := NewOptimizer(problem, cfg)
				if err != nil {
					t.Fatalf("NewOptimizer error: %v", err)
				}

				pop := NewPopulation(problem.Factors, cfg.PopulationSize, opt.rng)
				pop.Errors = opt.fitness.ScoreAll(pop.Members, 1)
				search := opt.newStrategy()
				for iter := 0; iter < 100; iter++ {
					search.Step(pop, opt.offer)
					for i, c := range pop.Members {
						if !problem.Factors.Contains(c) {
							t.Fatalf("iteration %d: member %d out of bounds: %v", iter, i, c)
						}
						if pop.Errors[i] != opt.fitness.Score(c) {
							t.Fatalf("iteration %d: cached error of member %d is stale", iter, i)
						}
					}
				}
				if !problem.Factors.Contains(opt.BestSolution()) {
					t.Fatalf("best solution out of bounds: %v", opt.BestSolution())
				}
			})
		}
	}
}

func TestOptimizerDeterminism(t *testing.T) {
	target := pvmodel.Evaluate(referenceContext(), []float64{0.95})
	for _, strategy := range []Strategy{StrategyHillClimb, StrategyABC} {
		t.Run(string(strategy), func(t *testing.T) {
			cfg := testConfig(1234)
			cfg.Strategy = strategy
			a, err := Calibrate(context.Background(), referenceProblem(target), cfg, nil)
			if err != nil {
				t.Fatalf("Calibrate error: %v", err)
			}
			b, err := Calibrate(context.Background(), referenceProblem(target), cfg, nil)
			if err != nil {
				t.Fatalf("Calibrate error: %v", err)
			}
			if diff := cmp.Diff(a, b); diff != "" {
				t.Fatalf("results differ under a fixed seed (-first +second):\n%s", diff)
			}
			if a.Seed != 1234 {
				t.Fatalf("expected seed 1234 in result, got %d", a.Seed)
			}
		})
	}
}

func TestOptimizerWorkerInvariance(t *testing.T) {
	problem := Problem{
		Context: referenceContext(),
		Target:  300,
		Factors: models.TunableFactorSet{
			{Name: "Fa", Min: 0.8, Max: 1.0},
			{Name: "Fb", Min: 0.8, Max: 1.0},
		},
	}
	for _, strategy := range []Strategy{StrategyHillClimb, StrategyABC} {
		t.Run(string(strategy), func(t *testing.T) {
			cfg := testConfig(99)
			cfg.Strategy = strategy
			serial, err := Calibrate(context.Background(), problem, cfg, nil)
			if err != nil {
				t.Fatalf("Calibrate error: %v", err)
			}
			cfg.Workers = 8
			parallel, err := Calibrate(context.Background(), problem, cfg, nil)
			if err != nil {
				t.Fatalf("Calibrate error: %v", err)
			}
			if diff := cmp.Diff(serial, parallel); diff != "" {
				t.Fatalf("worker count changed the result (-serial +parallel):\n%s", diff)
			}
		})
	}
}

func TestOptimizerConfigRejection(t *testing.T) {
	valid := referenceProblem(300)
	tests := []struct {
		name    string
		problem func() Problem
		cfg     func() SearchConfig
	}{
		{
			name: "inverted bound",
			problem: func() Problem {
				p := valid
				p.Factors = models.TunableFactorSet{{Name: "Fclean", Min: 0.95, Max: 0.90}}
				return p
			},
		},
		{name: "zero population", cfg: func() SearchConfig { c := testConfig(1); c.PopulationSize = 0; return c }},
		{name: "zero iterations", cfg: func() SearchConfig { c := testConfig(1); c.Iterations = 0; return c }},
		{name: "negative iterations", cfg: func() SearchConfig { c := testConfig(1); c.Iterations = -5; return c }},
		{name: "zero step", cfg: func() SearchConfig { c := testConfig(1); c.Step = 0; return c }},
		{name: "nan step", cfg: func() SearchConfig { c := testConfig(1); c.Step = math.NaN(); return c }},
		{name: "unknown strategy", cfg: func() SearchConfig { c := testConfig(1); c.Strategy = "annealing"; return c }},
		{name: "unknown objective", cfg: func() SearchConfig { c := testConfig(1); c.Objective = "huber"; return c }},
		{name: "negative workers", cfg: func() SearchConfig { c := testConfig(1); c.Workers = -1; return c }},
		{
			name: "baseline length",
			problem: func() Problem {
				p := valid
				p.Baseline = models.CandidateSolution{0.9, 0.9}
				return p
			},
		},
		{
			name: "baseline outside bounds",
			problem: func() Problem {
				p := valid
				p.Baseline = models.CandidateSolution{1.1}
				return p
			},
		},
		{
			name: "non-finite target",
			problem: func() Problem {
				p := valid
				p.Target = math.Inf(1)
				return p
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := valid
			if tt.problem != nil {
				problem = tt.problem()
			}
			cfg := testConfig(1)
			if tt.cfg != nil {
				cfg = tt.cfg()
			}
			iterations := 0
			_, err := Calibrate(context.Background(), problem, cfg, func(int, float64) { iterations++ })
			if !errors.Is(err, models.ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
			if iterations != 0 {
				t.Fatalf("expected no iterations before rejection, got %d", iterations)
			}
		})
	}
}

func TestOptimizerRejectsOverflowingModel(t *testing.T) {
	hugeContext := func(base, temp float64) models.ForwardModelContext {
		ctx := referenceContext()
		ctx.BasePower = base
		ctx.TemperatureFactor = temp
		return ctx
	}
	tests := []struct {
		name      string
		ctx       models.ForwardModelContext
		factors   models.TunableFactorSet
		target    float64
		objective string
		wantErr   bool
	}{
		{name: "context product overflows", ctx: hugeContext(1e300, 1e10), target: 300, objective: "absolute_error", wantErr: true},
		{name: "tunable product overflows", ctx: hugeContext(1e300, 1), factors: models.TunableFactorSet{{Name: "Fclean", Min: 0.8, Max: 1e10}}, target: 300, objective: "absolute_error", wantErr: true},
		{name: "squared error overflows", ctx: hugeContext(1e200, 1), target: 0, objective: "squared_error", wantErr: true},
		{name: "relative error overflows", ctx: hugeContext(1e300, 1), target: 1e-300, objective: "relative_error", wantErr: true},
		{name: "large but finite absolute error", ctx: hugeContext(1e200, 1), target: 0, objective: "absolute_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := referenceProblem(tt.target)
			problem.Context = tt.ctx
			if tt.factors != nil {
				problem.Factors = tt.factors
			}
			cfg := testConfig(3)
			cfg.Objective = tt.objective
			cfg.Iterations = 5
			cfg.PopulationSize = 4

			res, err := Calibrate(context.Background(), problem, cfg, nil)
			if tt.wantErr {
				if !errors.Is(err, models.ErrInvalidConfiguration) {
					t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.BestSolution) != 1 || math.IsInf(res.BestError, 0) || math.IsNaN(res.BestError) {
				t.Fatalf("expected a finite best result, got %v err=%v", res.BestSolution, res.BestError)
			}
			for i, v := range res.History {
				if math.IsInf(v, 0) || math.IsNaN(v) {
					t.Fatalf("history[%d] is not finite: %v", i, v)
				}
			}
			if _, err := json.Marshal(res); err != nil {
				t.Fatalf("expected result to marshal, got %v", err)
			}
		})
	}
}

func TestOptimizerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opt, err := NewOptimizer(referenceProblem(300), testConfig(5))
	if err != nil {
		t.Fatalf("NewOptimizer error: %v", err)
	}
	opt.WithProgressReporter(func(iteration int, _ float64) {
		if iteration == 10 {
			cancel()
		}
	})
	res, err := opt.Optimize(ctx)
	if err != nil {
		t.Fatalf("cancellation should not be an error: %v", err)
	}
	if !res.Cancelled {
		t.Fatalf("expected cancelled result")
	}
	if len(res.History) != 10 || res.Iterations != 10 {
		t.Fatalf("expected 10 completed iterations, got history %d iterations %d", len(res.History), res.Iterations)
	}
	if res.BestSolution == nil || res.BaselineError < res.BestError {
		t.Fatalf("expected a usable partial best, got %+v", res)
	}
}

func TestOptimizerCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Calibrate(ctx, referenceProblem(300), testConfig(5), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Cancelled || len(res.History) != 0 {
		t.Fatalf("expected cancelled result with empty history, got %+v", res)
	}
}

func TestOptimizerProgressReporter(t *testing.T) {
	var calls []float64
	cfg := testConfig(8)
	cfg.Iterations = 25
	_, err := Calibrate(context.Background(), referenceProblem(310), cfg, func(iteration int, bestError float64) {
		if iteration != len(calls)+1 {
			t.Errorf("unexpected iteration %d after %d calls", iteration, len(calls))
		}
		calls = append(calls, bestError)
	})
	if err != nil {
		t.Fatalf("Calibrate error: %v", err)
	}
	if len(calls) != 25 {
		t.Fatalf("expected 25 progress calls, got %d", len(calls))
	}
}

func TestOptimizerBaselineSelection(t *testing.T) {
	problem := referenceProblem(300)
	res, _ := Calibrate(context.Background(), problem, testConfig(2), nil)
	if math.Abs(res.BaselineSolution[0]-0.9) > 1e-12 {
		t.Fatalf("expected midpoint baseline 0.9, got %v", res.BaselineSolution)
	}

	problem.Baseline = models.CandidateSolution{1.0}
	res, _ = Calibrate(context.Background(), problem, testConfig(2), nil)
	if res.BaselineSolution[0] != 1.0 {
		t.Fatalf("expected designated baseline 1.0, got %v", res.BaselineSolution)
	}
	want := math.Abs(pvmodel.Evaluate(referenceContext(), []float64{1.0}) - 300)
	if math.Abs(res.BaselineError-want) > 1e-9 {
		t.Fatalf("expected baseline error %v, got %v", want, res.BaselineError)
	}
	if res.Comparison.ErrorReduction < 0 || res.Comparison.MeasuredPower != 300 {
		t.Fatalf("unexpected comparison %+v", res.Comparison)
	}
}
