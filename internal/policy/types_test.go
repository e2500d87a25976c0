package policy

import (
	"testing"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/config"
)

func TestNewPolicyManager(t *testing.T) {
	pm := NewPolicyManager(nil)
	if pm == nil {
		t.Fatalf("expected Manager to be created")
	}
	if pm.GetRateLimiting() != nil || pm.GetRetry() != nil || pm.GetCircuitBreaker() != nil {
		t.Fatalf("expected no policies for nil config")
	}

	pm = NewPolicyManager(config.DefaultConfig())
	if pm.GetRateLimiting() == nil || !pm.GetRateLimiting().Enabled() {
		t.Fatalf("expected rate limiting policy from defaults")
	}
	if pm.GetRetry() == nil || pm.GetRetry().GetMaxRetries() != 3 {
		t.Fatalf("expected retry policy with 3 retries from defaults")
	}
	if pm.GetCircuitBreaker() == nil {
		t.Fatalf("expected circuit breaker from defaults")
	}

	cfg := config.DefaultConfig()
	cfg.RateLimit.Enabled = false
	cfg.Callback.MaxRetries = 0
	cfg.Callback.BreakerThreshold = 0
	pm = NewPolicyManager(cfg)
	if pm.GetRateLimiting() != nil {
		t.Fatalf("expected no rate limiting when disabled")
	}
	if pm.GetRetry() != nil {
		t.Fatalf("expected no retry policy with zero retries")
	}
	if pm.GetCircuitBreaker() != nil {
		t.Fatalf("expected no circuit breaker with zero threshold")
	}
}
