package policy

import (
	"sync"
	"time"
)

// circuitBreakerPolicy implements CircuitBreakerPolicy keyed by callback host
type circuitBreakerPolicy struct {
	enabled bool
	// failureThreshold is the number of consecutive failures before opening the circuit
	failureThreshold int
	// successThreshold is the number of successes needed in half-open state to close
	successThreshold int
	// cooldown is how long the circuit stays open before transitioning to half-open
	cooldown time.Duration
	circuits map[string]*circuitState
	mu       sync.RWMutex
}

type circuitState struct {
	state           CircuitState
	failureCount    int
	successCount    int
	lastStateChange time.Time
	mu              sync.Mutex
}

// NewCircuitBreakerPolicy creates a new circuit breaker policy
func NewCircuitBreakerPolicy(enabled bool, failureThreshold, successThreshold int, cooldown time.Duration) CircuitBreakerPolicy {
	if successThreshold < 1 {
		successThreshold = 1
	}
	return &circuitBreakerPolicy{
		enabled:          enabled,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
		circuits:         make(map[string]*circuitState),
	}
}

func (p *circuitBreakerPolicy) Enabled() bool {
	return p.enabled
}

func (p *circuitBreakerPolicy) Name() string {
	return "circuit_breaker"
}

func (p *circuitBreakerPolicy) circuit(host string, now time.Time, create bool) *circuitState {
	p.mu.RLock()
	c, exists := p.circuits[host]
	p.mu.RUnlock()
	if exists || !create {
		return c
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, exists = p.circuits[host]; !exists {
		c = &circuitState{state: CircuitStateClosed, lastStateChange: now}
		p.circuits[host] = c
	}
	return c
}

// advance moves an open circuit to half-open once the cooldown elapsed; caller holds c.mu
func (p *circuitBreakerPolicy) advance(c *circuitState, now time.Time) {
	if c.state == CircuitStateOpen && now.Sub(c.lastStateChange) >= p.cooldown {
		c.state = CircuitStateHalfOpen
		c.successCount = 0
		c.lastStateChange = now
	}
}

func (p *circuitBreakerPolicy) AllowRequest(host string, now time.Time) bool {
	if !p.enabled {
		return true
	}
	c := p.circuit(host, now, false)
	if c == nil {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	p.advance(c, now)
	return c.state != CircuitStateOpen
}

func (p *circuitBreakerPolicy) RecordSuccess(host string, now time.Time) {
	if !p.enabled {
		return
	}
	c := p.circuit(host, now, false)
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case CircuitStateHalfOpen:
		c.successCount++
		if c.successCount >= p.successThreshold {
			c.state = CircuitStateClosed
			c.failureCount = 0
			c.lastStateChange = now
		}
	case CircuitStateClosed:
		c.failureCount = 0
	}
}

func (p *circuitBreakerPolicy) RecordFailure(host string, now time.Time) {
	if !p.enabled {
		return
	}
	c := p.circuit(host, now, true)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount++
	switch c.state {
	case CircuitStateHalfOpen:
		// Any failure while probing reopens the circuit
		c.state = CircuitStateOpen
		c.successCount = 0
		c.lastStateChange = now
	case CircuitStateClosed:
		if c.failureCount >= p.failureThreshold {
			c.state = CircuitStateOpen
			c.lastStateChange = now
		}
	}
}

func (p *circuitBreakerPolicy) CheckAndGetState(host string, now time.Time) CircuitState {
	if !p.enabled {
		return CircuitStateClosed
	}
	c := p.circuit(host, now, false)
	if c == nil {
		return CircuitStateClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	p.advance(c, now)
	return c.state
}
