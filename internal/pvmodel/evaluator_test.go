package pvmodel

import (
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

func referenceContext() models.ForwardModelContext {
	return models.ForwardModelContext{
		BasePower:         450,
		TemperatureFactor: 0.9825,
		IrradianceFactor:  0.8,
		FixedFactors: []models.NamedFactor{
			{Name: "Fmm", Value: 0.98},
			{Name: "Fshade", Value: 0.95},
		},
	}
}

func TestEvaluate(t *testing.T) {
	ctx := referenceContext()
	tests := []struct {
		name    string
		tunable []float64
		want    float64
	}{
		{"upper bound", []float64{1.0}, 450 * 0.9825 * 0.8 * 0.98 * 0.95},
		{"tuned", []float64{0.973}, 450 * 0.9825 * 0.8 * 0.98 * 0.95 * 0.973},
		{"empty tunable vector", nil, 450 * 0.9825 * 0.8 * 0.98 * 0.95},
		{"outside physical range", []float64{1.5, -1}, -450 * 0.9825 * 0.8 * 0.98 * 0.95 * 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(ctx, tt.tunable)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Evaluate(%v) = %v, want %v", tt.tunable, got, tt.want)
			}
		})
	}
}

func TestModelMatchesEvaluate(t *testing.T) {
	ctx := referenceContext()
	m := NewModel(ctx)
	for _, x := range []float64{0.8, 0.9, 0.973, 1.0} {
		if m.Predict([]float64{x}) != Evaluate(ctx, []float64{x}) {
			t.Fatalf("Predict and Evaluate disagree at %v", x)
		}
	}
	if m.Context().BasePower != 450 {
		t.Fatalf("expected bound context to be kept")
	}
}

func TestModelRange(t *testing.T) {
	m := NewModel(referenceContext())
	set := models.TunableFactorSet{{Name: "Fclean", Min: 0.8, Max: 1.0}}
	lo, hi := m.Range(set)
	if lo >= hi {
		t.Fatalf("expected lo < hi, got %v %v", lo, hi)
	}
	if math.Abs(hi-329.2947) > 1e-4 {
		t.Fatalf("expected max prediction ≈329.2947, got %v", hi)
	}
}
