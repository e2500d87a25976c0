package config

import (
	"github.com/GoSim-25-26J-441/pv-calibration/internal/pvmodel"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

// ModuleSpec describes a module for the calculator, optionally with a measured
// power to calibrate the loss factors against.
type ModuleSpec struct {
	Module        pvmodel.ModuleInputs `yaml:"module" json:"module"`
	MeasuredPower *float64             `yaml:"measured_power,omitempty" json:"measured_power,omitempty"`
	Search        SearchSpec           `yaml:"search,omitempty" json:"search,omitempty"`
	CallbackURL   string               `yaml:"callback_url,omitempty" json:"callback_url,omitempty"`
}

// NewModuleSpec returns a spec pre-filled with the calculator defaults, so a
// document only needs the fields it changes.
func NewModuleSpec() *ModuleSpec {
	return &ModuleSpec{Module: pvmodel.DefaultModuleInputs()}
}

// Calculate validates the module inputs and runs the calculator
func (m *ModuleSpec) Calculate() (pvmodel.ModuleOutputs, error) {
	if err := m.Module.Validate(); err != nil {
		return pvmodel.ModuleOutputs{}, err
	}
	return pvmodel.Calculate(m.Module), nil
}

// RunSpec builds the calibration request for the calculated module: mismatch,
// cleaning and shading are tuned against MeasuredPower.
func (m *ModuleSpec) RunSpec() (*RunSpec, error) {
	out, err := m.Calculate()
	if err != nil {
		return nil, err
	}
	if m.MeasuredPower == nil {
		return nil, &models.MissingPreconditionError{Missing: []string{"measured_power"}}
	}
	ctx, factors := out.CalibrationContext(m.Module)
	return &RunSpec{
		Context: ContextSpec{
			BasePower:         models.Float(ctx.BasePower),
			TemperatureFactor: models.Float(ctx.TemperatureFactor),
			IrradianceFactor:  models.Float(ctx.IrradianceFactor),
		},
		MeasuredTarget: models.Float(*m.MeasuredPower),
		Factors:        factors,
		Search:         m.Search,
		CallbackURL:    m.CallbackURL,
	}, nil
}
