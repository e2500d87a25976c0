package pvmodel

import (
	"fmt"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/utils"
)

// FactorModel is a factor list split into its fixed and tunable parts.
type FactorModel struct {
	Fixed    []models.NamedFactor
	Tunables models.TunableFactorSet
	// Baseline is nil unless at least one tunable factor declared a baseline or value.
	Baseline models.CandidateSolution
}

// BuildFactorModel resolves a configuration-driven factor list.
// Fixed factors without a value are reported together as a MissingPreconditionError.
func BuildFactorModel(specs []models.FactorSpec) (*FactorModel, error) {
	fm := &FactorModel{}
	seen := make(map[string]bool, len(specs))
	var missing []string
	baseline := make(models.CandidateSolution, 0, len(specs))
	hasBaseline := false

	for _, spec := range specs {
		if spec.Name == "" {
			return nil, &models.ConfigError{Field: "factors.name", Reason: "factor name cannot be empty"}
		}
		if seen[spec.Name] {
			return nil, &models.ConfigError{Field: "factors." + spec.Name, Reason: "duplicate factor name"}
		}
		seen[spec.Name] = true

		if !spec.IsTunable() {
			if spec.Value == nil {
				missing = append(missing, "factors."+spec.Name+".value")
				continue
			}
			if !utils.IsFinite(*spec.Value) {
				return nil, &models.ConfigError{Field: "factors." + spec.Name + ".value", Reason: "must be finite"}
			}
			fm.Fixed = append(fm.Fixed, models.NamedFactor{Name: spec.Name, Value: *spec.Value})
			continue
		}

		if spec.Min == nil || spec.Max == nil {
			return nil, &models.ConfigError{Field: "factors." + spec.Name, Reason: "tunable factors require min and max"}
		}
		bound := models.CalibrationBound{Name: spec.Name, Min: *spec.Min, Max: *spec.Max}
		if err := bound.Validate(); err != nil {
			return nil, err
		}
		fm.Tunables = append(fm.Tunables, bound)

		start := spec.Baseline
		if start == nil {
			start = spec.Value
		}
		if start == nil {
			baseline = append(baseline, bound.Midpoint())
			continue
		}
		if !bound.Contains(*start) {
			return nil, &models.ConfigError{
				Field:  "factors." + spec.Name + ".baseline",
				Reason: fmt.Sprintf("%g is outside [%g, %g]", *start, bound.Min, bound.Max),
			}
		}
		baseline = append(baseline, *start)
		hasBaseline = true
	}

	if len(missing) > 0 {
		return nil, &models.MissingPreconditionError{Missing: missing}
	}
	if hasBaseline {
		fm.Baseline = baseline
	}
	return fm, nil
}

// Context merges the fixed factors into a base context
func (fm *FactorModel) Context(base models.ForwardModelContext) models.ForwardModelContext {
	ctx := base
	ctx.FixedFactors = make([]models.NamedFactor, 0, len(base.FixedFactors)+len(fm.Fixed))
	ctx.FixedFactors = append(ctx.FixedFactors, base.FixedFactors...)
	ctx.FixedFactors = append(ctx.FixedFactors, fm.Fixed...)
	return ctx
}

// Name pairs a candidate's coordinates with the factor names of set.
func Name(set models.TunableFactorSet, c models.CandidateSolution) []models.NamedFactor {
	out := make([]models.NamedFactor, len(set))
	for i, b := range set {
		out[i] = models.NamedFactor{Name: b.Name, Value: c[i]}
	}
	return out
}

// Split returns the forward-model context, the search space and the designated
// baseline (nil when none was declared).
func (fm *FactorModel) Split(base models.ForwardModelContext) (models.ForwardModelContext, models.TunableFactorSet, models.CandidateSolution) {
	return fm.Context(base), fm.Tunables, fm.Baseline.Clone()
}
