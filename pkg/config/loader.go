package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/improvement"
)

// Environment variables overriding the config file
const (
	EnvLogLevel          = "PVCAL_LOG_LEVEL"
	EnvLogFormat         = "PVCAL_LOG_FORMAT"
	EnvGRPCAddr          = "PVCAL_GRPC_ADDR"
	EnvHTTPAddr          = "PVCAL_HTTP_ADDR"
	EnvMaxConcurrentRuns = "PVCAL_MAX_CONCURRENT_RUNS"
	EnvMaxWorkers        = "PVCAL_MAX_WORKERS"
	EnvRateLimitEnabled  = "PVCAL_RATE_LIMIT_ENABLED"
	EnvRateLimitRPM      = "PVCAL_RATE_LIMIT_RPM"
	EnvCallbackSecret    = "PVCAL_CALLBACK_SECRET"
	EnvCallbackRetries   = "PVCAL_CALLBACK_MAX_RETRIES"
)

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	search := improvement.DefaultSearchConfig()
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		GRPCAddr:          ":50051",
		HTTPAddr:          ":8080",
		MaxConcurrentRuns: 4,
		MaxWorkers:        8,
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			Burst:             10,
		},
		Callback: CallbackConfig{
			MaxRetries: 3,
			Backoff:    "exponential",
			BaseMs:     500,
			MaxMs:      10000,
			TimeoutMs:  10000,

			BreakerThreshold:  5,
			BreakerCooldownMs: 30000,
		},
		Defaults: SearchSpec{
			Strategy:       string(search.Strategy),
			Objective:      search.Objective,
			PopulationSize: Int(search.PopulationSize),
			Iterations:     Int(search.Iterations),
			Step:           &search.Step,
			GreedyReplace:  &search.GreedyReplace,
			Workers:        Int(search.Workers),
		},
	}
}

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadRunSpec loads a run spec; .json files are parsed as JSON, anything else as YAML.
func LoadRunSpec(path string) (*RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run spec %s: %w", path, err)
	}
	var spec *RunSpec
	if isJSON(path) {
		spec, err = ParseRunSpecJSON(data)
	} else {
		spec, err = ParseRunSpecYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse run spec %s: %w", path, err)
	}
	return spec, nil
}

// LoadModuleSpec loads a module spec for the calculator
func LoadModuleSpec(path string) (*ModuleSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module spec %s: %w", path, err)
	}
	var spec *ModuleSpec
	if isJSON(path) {
		spec, err = ParseModuleSpecJSON(data)
	} else {
		spec, err = ParseModuleSpecYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse module spec %s: %w", path, err)
	}
	return spec, nil
}

// ApplyEnv overrides cfg with any PVCAL_* variables that are set and valid, then revalidates.
func ApplyEnv(cfg *Config) error {
	cfg.LogLevel = getEnv(EnvLogLevel, cfg.LogLevel)
	cfg.LogFormat = getEnv(EnvLogFormat, cfg.LogFormat)
	cfg.GRPCAddr = getEnv(EnvGRPCAddr, cfg.GRPCAddr)
	cfg.HTTPAddr = getEnv(EnvHTTPAddr, cfg.HTTPAddr)
	cfg.MaxConcurrentRuns = getEnvInt(EnvMaxConcurrentRuns, cfg.MaxConcurrentRuns)
	cfg.MaxWorkers = getEnvInt(EnvMaxWorkers, cfg.MaxWorkers)
	cfg.RateLimit.Enabled = getEnvBool(EnvRateLimitEnabled, cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = getEnvInt(EnvRateLimitRPM, cfg.RateLimit.RequestsPerMinute)
	cfg.Callback.Secret = getEnv(EnvCallbackSecret, cfg.Callback.Secret)
	cfg.Callback.MaxRetries = getEnvInt(EnvCallbackRetries, cfg.Callback.MaxRetries)
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config after environment overrides: %w", err)
	}
	return nil
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log_format: %s (must be text or json)", cfg.LogFormat)
	}
	if cfg.GRPCAddr == "" && cfg.HTTPAddr == "" {
		return fmt.Errorf("at least one of grpc_addr or http_addr must be set")
	}
	if cfg.MaxConcurrentRuns < 0 {
		return fmt.Errorf("max_concurrent_runs cannot be negative, got %d", cfg.MaxConcurrentRuns)
	}
	if cfg.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be positive, got %d", cfg.MaxWorkers)
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerMinute < 1 || cfg.RateLimit.RequestsPerMinute > 10000 {
			return fmt.Errorf("rate_limit requests_per_minute must be between 1 and 10000, got %d", cfg.RateLimit.RequestsPerMinute)
		}
		if cfg.RateLimit.Burst < 0 {
			return fmt.Errorf("rate_limit burst cannot be negative, got %d", cfg.RateLimit.Burst)
		}
	}
	if err := validateCallback(&cfg.Callback); err != nil {
		return fmt.Errorf("callback validation failed: %w", err)
	}
	if _, err := cfg.Defaults.SearchConfig(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}
	return nil
}

// validateCallback validates the webhook retry configuration
func validateCallback(c *CallbackConfig) error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", c.MaxRetries)
	}
	validBackoffs := map[string]bool{
		"exponential": true,
		"linear":      true,
		"constant":    true,
	}
	if !validBackoffs[c.Backoff] {
		return fmt.Errorf("invalid backoff type: %s (must be exponential, linear, or constant)", c.Backoff)
	}
	if c.BaseMs < 0 || c.MaxMs < 0 || c.TimeoutMs < 0 {
		return fmt.Errorf("base_ms, max_ms and timeout_ms cannot be negative")
	}
	if c.BreakerThreshold < 0 || c.BreakerCooldownMs < 0 {
		return fmt.Errorf("breaker_threshold and breaker_cooldown_ms cannot be negative")
	}
	return nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
