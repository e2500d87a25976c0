package config

import "github.com/GoSim-25-26J-441/pv-calibration/pkg/models"

// Config represents the pvcald service configuration
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	GRPCAddr  string `yaml:"grpc_addr"`
	HTTPAddr  string `yaml:"http_addr"`
	// MaxConcurrentRuns bounds asynchronous runs executing at once; 0 means unlimited.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
	// MaxWorkers caps search.workers requested by any run.
	MaxWorkers int             `yaml:"max_workers"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	Callback   CallbackConfig  `yaml:"callback"`
	// Defaults fill search fields a run spec leaves unset.
	Defaults SearchSpec `yaml:"defaults"`
}

// RateLimitConfig throttles run submissions per client
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// CallbackConfig configures completion webhooks
type CallbackConfig struct {
	Secret     string `yaml:"secret"`
	MaxRetries int    `yaml:"max_retries"`
	Backoff    string `yaml:"backoff"` // exponential, linear, constant
	BaseMs     int    `yaml:"base_ms"`
	MaxMs      int    `yaml:"max_ms"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	// BreakerThreshold consecutive failures open the circuit for a callback host; 0 disables it.
	BreakerThreshold  int `yaml:"breaker_threshold"`
	BreakerCooldownMs int `yaml:"breaker_cooldown_ms"`
}

// RunSpec is a calibration request document (YAML or JSON).
// Pointer fields distinguish "not supplied" from zero.
type RunSpec struct {
	Context        ContextSpec         `yaml:"context" json:"context"`
	MeasuredTarget *float64            `yaml:"measured_target" json:"measured_target"`
	Factors        []models.FactorSpec `yaml:"factors" json:"factors"`
	Search         SearchSpec          `yaml:"search" json:"search"`
	CallbackURL    string              `yaml:"callback_url,omitempty" json:"callback_url,omitempty"`
}

// ContextSpec carries the forward-model quantities that are not tuned
type ContextSpec struct {
	BasePower         *float64          `yaml:"base_power" json:"base_power"`
	TemperatureFactor *float64          `yaml:"temperature_factor" json:"temperature_factor"`
	IrradianceFactor  *float64          `yaml:"irradiance_factor" json:"irradiance_factor"`
	FixedFactors      []FixedFactorSpec `yaml:"fixed_factors,omitempty" json:"fixed_factors,omitempty"`
}

// FixedFactorSpec is a non-tunable factor of the context
type FixedFactorSpec struct {
	Name  string   `yaml:"name" json:"name"`
	Value *float64 `yaml:"value" json:"value"`
}

// SearchSpec holds search parameters; unset fields take defaults.
type SearchSpec struct {
	Strategy       string   `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	Objective      string   `yaml:"objective,omitempty" json:"objective,omitempty"`
	PopulationSize *int     `yaml:"population_size,omitempty" json:"population_size,omitempty"`
	Iterations     *int     `yaml:"iterations,omitempty" json:"iterations,omitempty"`
	Step           *float64 `yaml:"step,omitempty" json:"step,omitempty"`
	GreedyReplace  *bool    `yaml:"greedy_replace,omitempty" json:"greedy_replace,omitempty"`
	Seed           int64    `yaml:"seed,omitempty" json:"seed,omitempty"`
	Workers        *int     `yaml:"workers,omitempty" json:"workers,omitempty"`
	AbandonLimit   *int     `yaml:"abandon_limit,omitempty" json:"abandon_limit,omitempty"`
}
