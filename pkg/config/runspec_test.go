package config

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/improvement"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

const validRunSpec = `
context:
  base_power: 450
  temperature_factor: 0.9825
  irradiance_factor: 0.8
  fixed_factors:
    - {name: Fmm, value: 0.98}
measured_target: 320
factors:
  - {name: Fclean, min: 0.8, max: 1.0}
  - {name: Fshade, min: 0.8, max: 1.0, baseline: 0.95}
  - {name: Fage, value: 0.95}
search:
  population_size: 12
  greedy_replace: false
`

func TestResolveRunSpec(t *testing.T) {
	spec, err := ParseRunSpecYAML([]byte(validRunSpec))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	resolved, err := spec.Resolve(DefaultConfig().Defaults)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}

	p := resolved.Problem
	if p.Factors.Dim() != 2 {
		t.Fatalf("expected 2 tunables, got %d", p.Factors.Dim())
	}
	if len(p.Context.FixedFactors) != 2 || p.Context.FixedFactors[1].Name != "Fage" {
		t.Fatalf("expected context and factor-list fixed factors merged, got %+v", p.Context.FixedFactors)
	}
	if len(p.Baseline) != 2 || math.Abs(p.Baseline[0]-0.9) > 1e-12 || p.Baseline[1] != 0.95 {
		t.Fatalf("unexpected baseline %v", p.Baseline)
	}

	s := resolved.Search
	if s.PopulationSize != 12 || s.GreedyReplace {
		t.Fatalf("expected spec values to win, got %+v", s)
	}
	if s.Iterations != 200 || s.Strategy != improvement.StrategyHillClimb {
		t.Fatalf("expected defaults for unset fields, got %+v", s)
	}
}

func TestResolveMissingPreconditions(t *testing.T) {
	spec, err := ParseRunSpecYAML([]byte(`
context:
  base_power: 450
  fixed_factors:
    - {name: Fmm}
factors:
  - {name: Fclean, min: 0.8, max: 1.0}
`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = spec.Resolve(DefaultConfig().Defaults)
	var mp *models.MissingPreconditionError
	if !errors.As(err, &mp) {
		t.Fatalf("expected MissingPreconditionError, got %v", err)
	}
	want := []string{"context.temperature_factor", "context.irradiance_factor", "context.fixed_factors.Fmm.value", "measured_target"}
	if strings.Join(mp.Missing, ",") != strings.Join(want, ",") {
		t.Fatalf("expected missing %v, got %v", want, mp.Missing)
	}
}

func TestResolveInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"inverted bound", "factors: [{name: Fclean, min: 0.95, max: 0.90}]"},
		{"zero population", "factors: [{name: Fclean, min: 0.8, max: 1.0}]\nsearch: {population_size: 0}"},
		{"zero iterations", "factors: [{name: Fclean, min: 0.8, max: 1.0}]\nsearch: {iterations: 0}"},
		{"negative step", "factors: [{name: Fclean, min: 0.8, max: 1.0}]\nsearch: {step: -0.01}"},
		{"unknown strategy", "factors: [{name: Fclean, min: 0.8, max: 1.0}]\nsearch: {strategy: genetic}"},
		{"no tunables", "factors: [{name: Fage, value: 0.95}]"},
		{"clashing fixed factor", "factors: [{name: Fmm, min: 0.8, max: 1.0}]"},
	}
	header := `
context:
  base_power: 450
  temperature_factor: 0.9825
  irradiance_factor: 0.8
  fixed_factors: [{name: Fmm, value: 0.98}]
measured_target: 320
`
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseRunSpecYAML([]byte(header + tt.yaml))
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if _, err := spec.Resolve(DefaultConfig().Defaults); !errors.Is(err, models.ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestParseRunSpecRejectsUnknownFields(t *testing.T) {
	if _, err := ParseRunSpecYAML([]byte("measured_targett: 300\n")); err == nil {
		t.Fatalf("expected unknown yaml field to be rejected")
	}
	if _, err := ParseRunSpecJSON([]byte(`{"populaton": 3}`)); err == nil {
		t.Fatalf("expected unknown json field to be rejected")
	}
}

func TestSearchSpecMerge(t *testing.T) {
	defaults := SearchSpec{Strategy: "abc", Iterations: Int(50), Seed: 9}
	merged := SearchSpec{Iterations: Int(10)}.Merge(defaults)
	if merged.Strategy != "abc" || *merged.Iterations != 10 || merged.Seed != 9 {
		t.Fatalf("unexpected merge %+v", merged)
	}
}
