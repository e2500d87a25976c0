package config

import (
	"fmt"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/improvement"
	"github.com/GoSim-25-26J-441/pv-calibration/internal/pvmodel"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

// Resolved is a run spec turned into engine inputs
type Resolved struct {
	Problem     improvement.Problem
	Search      improvement.SearchConfig
	CallbackURL string
}

// Resolve checks preconditions and builds the problem and search configuration.
// Every missing required value is reported at once as a MissingPreconditionError;
// defaults fill search fields the run spec leaves unset.
func (s *RunSpec) Resolve(defaults SearchSpec) (*Resolved, error) {
	missing := s.Context.missing()
	if s.MeasuredTarget == nil {
		missing = append(missing, "measured_target")
	}
	if len(missing) > 0 {
		return nil, &models.MissingPreconditionError{Missing: missing}
	}

	base, err := s.Context.ForwardContext()
	if err != nil {
		return nil, err
	}
	for _, f := range s.Factors {
		for _, fixed := range base.FixedFactors {
			if fixed.Name == f.Name {
				return nil, &models.ConfigError{Field: "factors." + f.Name, Reason: "already declared as a context fixed factor"}
			}
		}
	}

	fm, err := pvmodel.BuildFactorModel(s.Factors)
	if err != nil {
		return nil, err
	}
	ctx, set, baseline := fm.Split(base)

	search, err := s.Search.Merge(defaults).SearchConfig()
	if err != nil {
		return nil, err
	}

	problem := improvement.Problem{Context: ctx, Target: *s.MeasuredTarget, Factors: set, Baseline: baseline}
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	return &Resolved{Problem: problem, Search: search, CallbackURL: s.CallbackURL}, nil
}

// ForwardContext builds the model context, rejecting missing values and duplicate fixed factor names.
func (c ContextSpec) ForwardContext() (models.ForwardModelContext, error) {
	if missing := c.missing(); len(missing) > 0 {
		return models.ForwardModelContext{}, &models.MissingPreconditionError{Missing: missing}
	}

	ctx := models.ForwardModelContext{
		BasePower:         *c.BasePower,
		TemperatureFactor: *c.TemperatureFactor,
		IrradianceFactor:  *c.IrradianceFactor,
	}
	seen := make(map[string]bool, len(c.FixedFactors))
	for _, f := range c.FixedFactors {
		if f.Name == "" {
			return models.ForwardModelContext{}, &models.ConfigError{Field: "context.fixed_factors.name", Reason: "factor name cannot be empty"}
		}
		if seen[f.Name] {
			return models.ForwardModelContext{}, &models.ConfigError{Field: "context.fixed_factors." + f.Name, Reason: "duplicate factor name"}
		}
		seen[f.Name] = true
		ctx.FixedFactors = append(ctx.FixedFactors, models.NamedFactor{Name: f.Name, Value: *f.Value})
	}
	return ctx, ctx.Validate()
}

func (c ContextSpec) missing() []string {
	var missing []string
	if c.BasePower == nil {
		missing = append(missing, "context.base_power")
	}
	if c.TemperatureFactor == nil {
		missing = append(missing, "context.temperature_factor")
	}
	if c.IrradianceFactor == nil {
		missing = append(missing, "context.irradiance_factor")
	}
	for i, f := range c.FixedFactors {
		if f.Value == nil {
			name := f.Name
			if name == "" {
				name = fmt.Sprintf("[%d]", i)
			}
			missing = append(missing, "context.fixed_factors."+name+".value")
		}
	}
	return missing
}

// Merge returns s with unset fields taken from defaults
func (s SearchSpec) Merge(defaults SearchSpec) SearchSpec {
	out := s
	if out.Strategy == "" {
		out.Strategy = defaults.Strategy
	}
	if out.Objective == "" {
		out.Objective = defaults.Objective
	}
	if out.PopulationSize == nil {
		out.PopulationSize = defaults.PopulationSize
	}
	if out.Iterations == nil {
		out.Iterations = defaults.Iterations
	}
	if out.Step == nil {
		out.Step = defaults.Step
	}
	if out.GreedyReplace == nil {
		out.GreedyReplace = defaults.GreedyReplace
	}
	if out.Seed == 0 {
		out.Seed = defaults.Seed
	}
	if out.Workers == nil {
		out.Workers = defaults.Workers
	}
	if out.AbandonLimit == nil {
		out.AbandonLimit = defaults.AbandonLimit
	}
	return out
}

// SearchConfig converts s to the engine configuration, starting from improvement.DefaultSearchConfig.
func (s SearchSpec) SearchConfig() (improvement.SearchConfig, error) {
	cfg := improvement.DefaultSearchConfig()
	if s.Strategy != "" {
		cfg.Strategy = improvement.Strategy(s.Strategy)
	}
	if s.Objective != "" {
		cfg.Objective = s.Objective
	}
	if s.PopulationSize != nil {
		cfg.PopulationSize = *s.PopulationSize
	}
	if s.Iterations != nil {
		cfg.Iterations = *s.Iterations
	}
	if s.Step != nil {
		cfg.Step = *s.Step
	}
	if s.GreedyReplace != nil {
		cfg.GreedyReplace = *s.GreedyReplace
	}
	cfg.Seed = s.Seed
	if s.Workers != nil {
		cfg.Workers = *s.Workers
	}
	if s.AbandonLimit != nil {
		cfg.AbandonLimit = *s.AbandonLimit
	}
	return cfg, cfg.Validate()
}

// Int returns a pointer to v
func Int(v int) *int {
	return &v
}
