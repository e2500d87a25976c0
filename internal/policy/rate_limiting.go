package policy

import (
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/config"
)

// rateLimitingPolicy implements RateLimitingPolicy using token bucket algorithm
type rateLimitingPolicy struct {
	enabled bool
	// perMinute is the sustained refill rate per client/route
	perMinute int
	// burst is the bucket capacity
	burst int
	// buckets tracks token buckets per client/route
	buckets map[string]*tokenBucket
	mu      sync.RWMutex
}

// tokenBucket tracks fractional tokens so low per-minute rates still refill
type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimitingPolicy creates a new rate limiting policy.
// A burst below 1 falls back to perMinute.
func NewRateLimitingPolicy(enabled bool, perMinute, burst int) RateLimitingPolicy {
	if burst < 1 {
		burst = perMinute
	}
	return &rateLimitingPolicy{
		enabled:   enabled,
		perMinute: perMinute,
		burst:     burst,
		buckets:   make(map[string]*tokenBucket),
	}
}

// NewRateLimitingPolicyFromConfig creates a rate limiting policy from config
func NewRateLimitingPolicyFromConfig(cfg *config.RateLimitConfig) RateLimitingPolicy {
	return NewRateLimitingPolicy(cfg.Enabled, cfg.RequestsPerMinute, cfg.Burst)
}

func (p *rateLimitingPolicy) Enabled() bool {
	return p.enabled
}

func (p *rateLimitingPolicy) Name() string {
	return "rate_limiting"
}

func (p *rateLimitingPolicy) AllowRequest(clientID, route string, requestTime time.Time) bool {
	if !p.enabled {
		return true
	}

	key := clientID + ":" + route
	p.mu.RLock()
	bucket, exists := p.buckets[key]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		// Double-check after acquiring write lock
		if bucket, exists = p.buckets[key]; !exists {
			bucket = &tokenBucket{
				tokens:     float64(p.burst),
				lastRefill: requestTime,
			}
			p.buckets[key] = bucket
		}
		p.mu.Unlock()
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	p.refill(bucket, requestTime)
	if bucket.tokens >= 1 {
		bucket.tokens--
		return true
	}
	return false
}

func (p *rateLimitingPolicy) GetRemainingQuota(clientID, route string, now time.Time) int {
	if !p.enabled {
		return -1 // Unlimited
	}

	key := clientID + ":" + route
	p.mu.RLock()
	bucket, exists := p.buckets[key]
	p.mu.RUnlock()

	if !exists {
		return p.burst
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	p.refill(bucket, now)
	return int(bucket.tokens)
}

// refill adds tokens for the time elapsed since the last refill; caller holds bucket.mu
func (p *rateLimitingPolicy) refill(bucket *tokenBucket, now time.Time) {
	elapsed := now.Sub(bucket.lastRefill)
	if elapsed <= 0 {
		return
	}
	bucket.tokens += elapsed.Minutes() * float64(p.perMinute)
	if bucket.tokens > float64(p.burst) {
		bucket.tokens = float64(p.burst)
	}
	bucket.lastRefill = now
}
