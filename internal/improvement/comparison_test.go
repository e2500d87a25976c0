package improvement

import (
	"math"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/pvmodel"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

func TestCompareCandidates(t *testing.T) {
	f := NewFitness(referenceContext(), 320, &AbsoluteErrorObjective{})
	cmp, err := CompareCandidates(f, models.CandidateSolution{1.0}, models.CandidateSolution{0.973})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cmp.Improved {
		t.Fatalf("expected improvement, got %+v", cmp)
	}
	if math.Abs(cmp.BaselinePower-329.2947) > 1e-4 {
		t.Fatalf("unexpected baseline power %v", cmp.BaselinePower)
	}
	if cmp.PowerDelta >= 0 {
		t.Fatalf("expected optimized power below baseline, got delta %v", cmp.PowerDelta)
	}
	if cmp.ImprovementPercent <= 0 || cmp.ImprovementPercent > 100 {
		t.Fatalf("unexpected improvement percent %v", cmp.ImprovementPercent)
	}
}

func TestCompareCandidatesErrors(t *testing.T) {
	f := NewFitness(referenceContext(), 320, &AbsoluteErrorObjective{})
	if _, err := CompareCandidates(nil, models.CandidateSolution{1}, models.CandidateSolution{1}); err == nil {
		t.Fatalf("expected error for nil fitness")
	}
	if _, err := CompareCandidates(f, nil, models.CandidateSolution{1}); err == nil {
		t.Fatalf("expected error for nil baseline")
	}
	if _, err := CompareCandidates(f, models.CandidateSolution{1}, models.CandidateSolution{1, 1}); err == nil {
		t.Fatalf("expected error for length mismatch")
	}
}

func TestCompareCandidatesZeroBaselineError(t *testing.T) {
	target := pvmodel.Evaluate(referenceContext(), []float64{0.9})
	f := NewFitness(referenceContext(), target, &AbsoluteErrorObjective{})
	cmp, err := CompareCandidates(f, models.CandidateSolution{0.9}, models.CandidateSolution{0.9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmp.Improved || cmp.ImprovementPercent != 0 {
		t.Fatalf("expected no improvement, got %+v", cmp)
	}
}

func TestDegeneracyWarnings(t *testing.T) {
	model := pvmodel.NewModel(referenceContext())
	set := models.TunableFactorSet{{Name: "Fclean", Min: 0.8, Max: 1.0}}

	tests := []struct {
		name   string
		target float64
		want   []string
	}{
		{"reachable", 320, nil},
		{"zero", 0, []string{"not positive"}},
		{"negative", -10, []string{"not positive"}},
		{"above max", 1000, []string{"exceeds the maximum"}},
		{"below min", 100, []string{"below the minimum"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DegeneracyWarnings(model, set, tt.target)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d warnings, got %v", len(tt.want), got)
			}
			for i, w := range tt.want {
				if !strings.Contains(got[i], w) {
					t.Fatalf("warning %q does not mention %q", got[i], w)
				}
			}
		})
	}
}
