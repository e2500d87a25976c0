package policy

import (
	"time"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/config"
)

// Policy represents a generic policy interface
type Policy interface {
	// Enabled returns whether the policy is enabled
	Enabled() bool
	// Name returns the policy name for identification
	Name() string
}

// RateLimitingPolicy throttles calibration submissions per client
type RateLimitingPolicy interface {
	Policy
	// AllowRequest checks if a submission from clientID on route is within its quota
	AllowRequest(clientID, route string, requestTime time.Time) bool
	// GetRemainingQuota returns the submissions left for clientID on route at now
	GetRemainingQuota(clientID, route string, now time.Time) int
}

// RetryPolicy handles retry logic for failed webhook deliveries
type RetryPolicy interface {
	Policy
	// ShouldRetry determines if a delivery should be retried
	ShouldRetry(attempt int, err error) bool
	// GetBackoffDuration calculates the wait before retry attempt (1-indexed)
	GetBackoffDuration(attempt int) time.Duration
	// GetMaxRetries returns the maximum number of retries allowed
	GetMaxRetries() int
}

// CircuitBreakerPolicy stops deliveries to callback hosts that keep failing
type CircuitBreakerPolicy interface {
	Policy
	// AllowRequest checks if a delivery to host may be attempted (circuit not open)
	AllowRequest(host string, now time.Time) bool
	// RecordSuccess records a successful delivery
	RecordSuccess(host string, now time.Time)
	// RecordFailure records a failed delivery
	RecordFailure(host string, now time.Time)
	// CheckAndGetState returns the circuit state, moving open circuits past their cooldown to half-open
	CheckAndGetState(host string, now time.Time) CircuitState
}

// CircuitState represents the state of a circuit breaker
type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"   // Normal operation
	CircuitStateOpen     CircuitState = "open"     // Failing, rejecting deliveries
	CircuitStateHalfOpen CircuitState = "halfopen" // Probing whether the host recovered
)

// Manager manages all active policies
type Manager struct {
	rateLimiting   RateLimitingPolicy
	retry          RetryPolicy
	circuitBreaker CircuitBreakerPolicy
}

// NewPolicyManager creates a new policy manager from the service configuration.
// Policies that are disabled in cfg are left nil.
func NewPolicyManager(cfg *config.Config) *Manager {
	pm := &Manager{}
	if cfg == nil {
		return pm
	}

	if cfg.RateLimit.Enabled {
		pm.rateLimiting = NewRateLimitingPolicyFromConfig(&cfg.RateLimit)
	}
	if cfg.Callback.MaxRetries > 0 {
		pm.retry = NewRetryPolicyFromConfig(&cfg.Callback)
	}
	if cfg.Callback.BreakerThreshold > 0 {
		pm.circuitBreaker = NewCircuitBreakerPolicy(true, cfg.Callback.BreakerThreshold, 1,
			time.Duration(cfg.Callback.BreakerCooldownMs)*time.Millisecond)
	}

	return pm
}

// GetRateLimiting returns the rate limiting policy if enabled
func (pm *Manager) GetRateLimiting() RateLimitingPolicy {
	return pm.rateLimiting
}

// GetRetry returns the retry policy if enabled
func (pm *Manager) GetRetry() RetryPolicy {
	return pm.retry
}

// GetCircuitBreaker returns the circuit breaker policy if enabled
func (pm *Manager) GetCircuitBreaker() CircuitBreakerPolicy {
	return pm.circuitBreaker
}
