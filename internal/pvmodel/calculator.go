package pvmodel

import (
	"fmt"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/utils"
)

const (
	// stcIrradiance is the reference irradiance at Standard Test Conditions (W/m²)
	stcIrradiance = 1000.0
	// stcTemperature is the reference cell temperature at Standard Test Conditions (°C)
	stcTemperature = 25.0
	// agingRatePerYear is the linear power degradation applied per year of module age
	agingRatePerYear = 0.005
)

// ModuleSTC holds datasheet electrical values at Standard Test Conditions.
type ModuleSTC struct {
	Pmax float64 `json:"pmax_w" yaml:"pmax_w"`
	Vmp  float64 `json:"vmp_v" yaml:"vmp_v"`
	Imp  float64 `json:"imp_a" yaml:"imp_a"`
	Voc  float64 `json:"voc_v" yaml:"voc_v"`
	Isc  float64 `json:"isc_a" yaml:"isc_a"`
}

// Environment holds the operating conditions of the module.
type Environment struct {
	FrontIrradiance float64 `json:"front_irradiance_w_m2" yaml:"front_irradiance_w_m2"`
	BifacialGain    float64 `json:"bifacial_gain" yaml:"bifacial_gain"`
	CellTemperature float64 `json:"cell_temperature_c" yaml:"cell_temperature_c"`
}

// TemperatureCoefficients are expressed in %/°C.
type TemperatureCoefficients struct {
	Alpha float64 `json:"alpha_isc" yaml:"alpha_isc"`
	Beta  float64 `json:"beta_voc" yaml:"beta_voc"`
	Gamma float64 `json:"gamma_pmax" yaml:"gamma_pmax"`
}

// Losses are the user-estimated derating inputs.
type Losses struct {
	DirtPercent float64 `json:"dirt_percent" yaml:"dirt_percent"`
	AgeYears    float64 `json:"age_years" yaml:"age_years"`
	Mismatch    float64 `json:"mismatch" yaml:"mismatch"`
	Shading     float64 `json:"shading" yaml:"shading"`
}

// ModuleInputs is everything the calculator needs.
type ModuleInputs struct {
	STC          ModuleSTC               `json:"stc" yaml:"stc"`
	Environment  Environment             `json:"environment" yaml:"environment"`
	Coefficients TemperatureCoefficients `json:"coefficients" yaml:"coefficients"`
	Losses       Losses                  `json:"losses" yaml:"losses"`
}

// DefaultModuleInputs returns a 450 W bifacial module at 800 W/m² and 30 °C.
func DefaultModuleInputs() ModuleInputs {
	return ModuleInputs{
		STC:          ModuleSTC{Pmax: 450, Vmp: 41, Imp: 10.98, Voc: 49.5, Isc: 11.5},
		Environment:  Environment{FrontIrradiance: 800, BifacialGain: 0.10, CellTemperature: 30},
		Coefficients: TemperatureCoefficients{Alpha: 0.040, Beta: -0.280, Gamma: -0.350},
		Losses:       Losses{DirtPercent: 5, AgeYears: 10, Mismatch: 0.98, Shading: 0.95},
	}
}

// Validate rejects non-finite inputs and loss factors outside the calculator's accepted range.
func (in ModuleInputs) Validate() error {
	values := map[string]float64{
		"stc.pmax_w":                        in.STC.Pmax,
		"stc.vmp_v":                         in.STC.Vmp,
		"stc.imp_a":                         in.STC.Imp,
		"stc.voc_v":                         in.STC.Voc,
		"stc.isc_a":                         in.STC.Isc,
		"environment.front_irradiance_w_m2": in.Environment.FrontIrradiance,
		"environment.bifacial_gain":         in.Environment.BifacialGain,
		"environment.cell_temperature_c":    in.Environment.CellTemperature,
		"coefficients.alpha_isc":            in.Coefficients.Alpha,
		"coefficients.beta_voc":             in.Coefficients.Beta,
		"coefficients.gamma_pmax":           in.Coefficients.Gamma,
		"losses.dirt_percent":               in.Losses.DirtPercent,
		"losses.age_years":                  in.Losses.AgeYears,
		"losses.mismatch":                   in.Losses.Mismatch,
		"losses.shading":                    in.Losses.Shading,
	}
	for field, v := range values {
		if !utils.IsFinite(v) {
			return &models.ConfigError{Field: field, Reason: "must be finite"}
		}
	}
	if in.Losses.Mismatch < 0.8 || in.Losses.Mismatch > 1.0 {
		return &models.ConfigError{Field: "losses.mismatch", Reason: fmt.Sprintf("%g is outside [0.8, 1.0]", in.Losses.Mismatch)}
	}
	if in.Losses.Shading < 0.8 || in.Losses.Shading > 1.0 {
		return &models.ConfigError{Field: "losses.shading", Reason: fmt.Sprintf("%g is outside [0.8, 1.0]", in.Losses.Shading)}
	}
	return nil
}

// DerivedFactors are the intermediate multipliers computed from ModuleInputs.
type DerivedFactors struct {
	RearIrradiance  float64 `json:"rear_irradiance_w_m2"`
	TotalIrradiance float64 `json:"total_irradiance_w_m2"`
	Irradiance      float64 `json:"fg"`
	Cleaning        float64 `json:"fclean"`
	Aging           float64 `json:"fage"`
	TempCurrent     float64 `json:"ftemp_i"`
	TempVoltage     float64 `json:"ftemp_v"`
	TempPower       float64 `json:"ftemp_p"`
}

// ModuleOutputs are the calculated module-level electrical outputs.
type ModuleOutputs struct {
	Pmax    float64        `json:"pmax_w"`
	Vmp     float64        `json:"vmp_v"`
	Imp     float64        `json:"imp_a"`
	Voc     float64        `json:"voc_v"`
	Isc     float64        `json:"isc_a"`
	Factors DerivedFactors `json:"factors"`
}

// Calculate derives the module outputs.
// Rear irradiance is reported but does not enter Pmax.
func Calculate(in ModuleInputs) ModuleOutputs {
	env := in.Environment
	dT := env.CellTemperature - stcTemperature

	f := DerivedFactors{
		RearIrradiance: env.BifacialGain * env.FrontIrradiance,
		Irradiance:     env.FrontIrradiance / stcIrradiance,
		Cleaning:       (100 - in.Losses.DirtPercent) / 100,
		Aging:          1 - agingRatePerYear*in.Losses.AgeYears,
		TempCurrent:    1 + (in.Coefficients.Alpha/100)*dT,
		TempVoltage:    1 + (in.Coefficients.Beta/100)*dT,
		TempPower:      1 + (in.Coefficients.Gamma/100)*dT,
	}
	f.TotalIrradiance = env.FrontIrradiance + f.RearIrradiance

	current := f.TempCurrent * f.Irradiance * f.Cleaning * in.Losses.Shading
	return ModuleOutputs{
		Pmax: in.STC.Pmax * f.TempPower * f.Irradiance * f.Cleaning * in.Losses.Shading * in.Losses.Mismatch * f.Aging,
		Isc:  in.STC.Isc * current,
		Imp:  in.STC.Imp * current,
		Voc:  in.STC.Voc * f.TempVoltage,
		Vmp:  in.STC.Vmp * f.TempVoltage,
		Factors: f,
	}
}

// CalibrationContext returns the forward-model context for out and the default factor
// list: mismatch, cleaning and shading tunable in [0.80, 1.00], starting from the
// calculator's own values, and aging fixed.
func (out ModuleOutputs) CalibrationContext(in ModuleInputs) (models.ForwardModelContext, []models.FactorSpec) {
	ctx := models.ForwardModelContext{
		BasePower:         in.STC.Pmax,
		TemperatureFactor: out.Factors.TempPower,
		IrradianceFactor:  out.Factors.Irradiance,
	}
	specs := []models.FactorSpec{
		{Name: "Fmm", Min: models.Float(0.80), Max: models.Float(1.00), Baseline: models.Float(in.Losses.Mismatch)},
		{Name: "Fclean", Min: models.Float(0.80), Max: models.Float(1.00), Baseline: models.Float(clampLoss(out.Factors.Cleaning))},
		{Name: "Fshade", Min: models.Float(0.80), Max: models.Float(1.00), Baseline: models.Float(in.Losses.Shading)},
		{Name: "Fage", Value: models.Float(out.Factors.Aging)},
	}
	return ctx, specs
}

// clampLoss keeps a derived cleaning factor usable as a baseline when dirt exceeds 20 %.
func clampLoss(v float64) float64 {
	return utils.ClampFloat64(v, 0.80, 1.00)
}
