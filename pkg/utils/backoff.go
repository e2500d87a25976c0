package utils

import (
	"math"
	"time"
)

// BackoffStrategy represents a retry backoff strategy
type BackoffStrategy interface {
	// NextDelay returns the delay for the given attempt number (0-indexed)
	NextDelay(attempt int) time.Duration
}

// ConstantBackoff waits the same delay before every attempt
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns the constant delay
func (cb *ConstantBackoff) NextDelay(int) time.Duration {
	return cb.Delay
}

// LinearBackoff grows the delay by BaseDelay per attempt up to MaxDelay
type LinearBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NextDelay returns the linearly increasing delay
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	delay := lb.BaseDelay * time.Duration(attempt+1)
	if delay > lb.MaxDelay {
		return lb.MaxDelay
	}
	return delay
}

// ExponentialBackoff doubles (by Multiplier) the delay per attempt, capped at MaxDelay.
// With Jitter the delay is scaled by a random factor in [0.5, 1.5).
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	Jitter     bool
}

// NextDelay returns the exponentially increasing delay
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	multiplier := eb.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	delay := math.Min(float64(eb.BaseDelay)*math.Pow(multiplier, float64(attempt)), float64(eb.MaxDelay))
	if eb.Jitter {
		delay *= 0.5 + JitterFloat64()
	}
	return time.Duration(delay)
}

// BackoffFromConfig creates a backoff strategy by name.
// Unknown names fall back to exponential with jitter.
func BackoffFromConfig(backoffType string, base, max time.Duration) BackoffStrategy {
	if max <= 0 {
		max = 30 * time.Second
	}
	switch backoffType {
	case "constant":
		return &ConstantBackoff{Delay: base}
	case "linear":
		return &LinearBackoff{BaseDelay: base, MaxDelay: max}
	default:
		return &ExponentialBackoff{BaseDelay: base, Multiplier: 2.0, MaxDelay: max, Jitter: true}
	}
}
