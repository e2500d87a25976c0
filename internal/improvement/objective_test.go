package improvement

import (
	"errors"
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

func TestNewObjectiveFunction(t *testing.T) {
	tests := []struct {
		name     string
		objType  string
		wantName string
		wantErr  bool
	}{
		{name: "absolute", objType: "absolute_error", wantName: "absolute_error"},
		{name: "default", objType: "", wantName: "absolute_error"},
		{name: "squared", objType: "squared_error", wantName: "squared_error"},
		{name: "relative", objType: "relative_error", wantName: "relative_error"},
		{name: "unknown objective", objType: "unknown", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := NewObjectiveFunction(tt.objType)
			if tt.wantErr {
				var unknown *UnknownObjectiveError
				if !errors.As(err, &unknown) {
					t.Fatalf("expected UnknownObjectiveError, got %v", err)
				}
				if !errors.Is(err, models.ErrInvalidConfiguration) {
					t.Fatalf("expected error to wrap ErrInvalidConfiguration")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if obj.Name() != tt.wantName {
				t.Fatalf("expected name %s, got %s", tt.wantName, obj.Name())
			}
		})
	}
}

func TestObjectiveValues(t *testing.T) {
	tests := []struct {
		objective ObjectiveFunction
		predicted float64
		target    float64
		want      float64
	}{
		{&AbsoluteErrorObjective{}, 310, 320, 10},
		{&AbsoluteErrorObjective{}, 330, 320, 10},
		{&SquaredErrorObjective{}, 310, 320, 100},
		{&RelativeErrorObjective{}, 300, 400, 0.25},
		{&RelativeErrorObjective{}, 300, -400, 1.75},
		{&RelativeErrorObjective{}, 5, 0, 5},
	}
	for _, tt := range tests {
		got := tt.objective.Evaluate(tt.predicted, tt.target)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s(%v, %v) = %v, want %v", tt.objective.Name(), tt.predicted, tt.target, got, tt.want)
		}
		if got < 0 {
			t.Errorf("%s returned a negative score", tt.objective.Name())
		}
	}
}

func TestFitnessScore(t *testing.T) {
	f := NewFitness(referenceContext(), 300, &AbsoluteErrorObjective{})
	c := models.CandidateSolution{1.0}
	if math.Abs(f.Predict(c)-329.2947) > 1e-4 {
		t.Fatalf("unexpected prediction %v", f.Predict(c))
	}
	if math.Abs(f.Score(c)-29.2947) > 1e-4 {
		t.Fatalf("unexpected score %v", f.Score(c))
	}
	if f.Target() != 300 || f.Objective().Name() != "absolute_error" {
		t.Fatalf("unexpected fitness bindings")
	}
}

func TestFitnessNegativeTargetStaysFinite(t *testing.T) {
	for _, target := range []float64{0, -50} {
		f := NewFitness(referenceContext(), target, &AbsoluteErrorObjective{})
		s := f.Score(models.CandidateSolution{0.9})
		if math.IsNaN(s) || math.IsInf(s, 0) {
			t.Fatalf("non-finite score %v for target %v", s, target)
		}
	}
}
