package policy

import (
	"time"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/utils"
)

// retryPolicy implements RetryPolicy on top of a utils.BackoffStrategy
type retryPolicy struct {
	enabled    bool
	maxRetries int
	backoff    utils.BackoffStrategy
}

// NewRetryPolicyFromConfig creates a retry policy from the callback config
func NewRetryPolicyFromConfig(cfg *config.CallbackConfig) RetryPolicy {
	return NewRetryPolicy(cfg.MaxRetries > 0, cfg.MaxRetries, cfg.Backoff,
		time.Duration(cfg.BaseMs)*time.Millisecond, time.Duration(cfg.MaxMs)*time.Millisecond)
}

// NewRetryPolicy creates a retry policy with explicit parameters.
// backoff is one of exponential, linear or constant.
func NewRetryPolicy(enabled bool, maxRetries int, backoff string, base, max time.Duration) RetryPolicy {
	return &retryPolicy{
		enabled:    enabled,
		maxRetries: maxRetries,
		backoff:    utils.BackoffFromConfig(backoff, base, max),
	}
}

func (p *retryPolicy) Enabled() bool {
	return p.enabled
}

func (p *retryPolicy) Name() string {
	return "retry"
}

func (p *retryPolicy) ShouldRetry(attempt int, err error) bool {
	if !p.enabled {
		return false
	}
	if attempt >= p.maxRetries {
		return false
	}
	return err != nil
}

func (p *retryPolicy) GetBackoffDuration(attempt int) time.Duration {
	if !p.enabled || attempt <= 0 {
		return 0
	}
	return p.backoff.NextDelay(attempt - 1)
}

func (p *retryPolicy) GetMaxRetries() int {
	return p.maxRetries
}
