package models

// FactorSpec declares one multiplicative factor of the forward model.
// A factor is tunable when Tunable is true, or when Tunable is unset and bounds are given;
// otherwise it is fixed and Value must be supplied.
type FactorSpec struct {
	Name     string   `json:"name" yaml:"name"`
	Tunable  *bool    `json:"tunable,omitempty" yaml:"tunable,omitempty"`
	Value    *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Baseline *float64 `json:"baseline,omitempty" yaml:"baseline,omitempty"`
}

// IsTunable resolves the explicit or inferred tunable flag
func (f FactorSpec) IsTunable() bool {
	if f.Tunable != nil {
		return *f.Tunable
	}
	return f.Min != nil || f.Max != nil
}

// Float returns a pointer to v, for building specs in code
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v
func Bool(v bool) *bool {
	return &v
}
