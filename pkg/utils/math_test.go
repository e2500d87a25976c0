package utils

import (
	"math"
	"testing"
)

func TestClampFloat64(t *testing.T) {
	tests := []struct {
		value, min, max, expected float64
	}{
		{0.5, 0.8, 1.0, 0.8},
		{1.2, 0.8, 1.0, 1.0},
		{0.9, 0.8, 1.0, 0.9},
		{0.8, 0.8, 1.0, 0.8},
	}
	for _, tt := range tests {
		if got := ClampFloat64(tt.value, tt.min, tt.max); got != tt.expected {
			t.Errorf("ClampFloat64(%v, %v, %v) = %v, expected %v", tt.value, tt.min, tt.max, got, tt.expected)
		}
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(1.5) {
		t.Error("expected 1.5 to be finite")
	}
	if IsFinite(math.NaN()) || IsFinite(math.Inf(-1)) {
		t.Error("expected NaN and -Inf to be non-finite")
	}
}
