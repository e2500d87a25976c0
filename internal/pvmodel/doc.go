// Package pvmodel implements the deterministic photovoltaic power model that the
// calibration engine tunes.
//
// The model is a pure product of multiplicative factors:
//
//	P = base_power * temperature_factor * irradiance_factor * Π(tunable) * Π(fixed)
//
// Which factors are tunable and which are fixed is decided by configuration
// (see BuildFactorModel), not by separate formula variants. The package also
// carries the module-level calculator that derives the fixed context from STC
// datasheet values, environmental inputs and loss estimates.
package pvmodel
