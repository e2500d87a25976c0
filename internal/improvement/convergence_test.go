package improvement

import (
	"math"
	"testing"
)

func TestNoImprovementStrategy(t *testing.T) {
	strategy := NewNoImprovementStrategy(&ConvergenceConfig{NoImprovementIterations: 3, MinIterations: 2})

	converged, reason := strategy.CheckConvergence([]float64{100, 90, 90, 90, 90})
	if !converged {
		t.Fatalf("expected convergence, got false")
	}
	if reason == "" {
		t.Fatalf("expected convergence reason")
	}

	converged, _ = strategy.CheckConvergence([]float64{100, 100, 100, 90})
	if converged {
		t.Fatalf("expected no convergence (recent improvement), got true")
	}
}

func TestPlateauStrategy(t *testing.T) {
	strategy := NewPlateauStrategy(&ConvergenceConfig{PlateauIterations: 3, ScoreTolerance: 0.01, MinIterations: 2})

	converged, reason := strategy.CheckConvergence([]float64{100, 10.01, 10.005, 10.002})
	if !converged || reason == "" {
		t.Fatalf("expected plateau convergence")
	}

	converged, _ = strategy.CheckConvergence([]float64{100, 90, 80, 70})
	if converged {
		t.Fatalf("expected no plateau")
	}
}

func TestThresholdStrategy(t *testing.T) {
	strategy := NewThresholdStrategy(&ConvergenceConfig{NoImprovementIterations: 3, ImprovementThreshold: 0.01, MinIterations: 2})

	converged, _ := strategy.CheckConvergence([]float64{100, 50, 49.9, 49.85})
	if !converged {
		t.Fatalf("expected small improvements to converge")
	}

	converged, _ = strategy.CheckConvergence([]float64{100, 80, 60, 40})
	if converged {
		t.Fatalf("expected large improvements not to converge")
	}
}

func TestVarianceStrategy(t *testing.T) {
	strategy := NewVarianceStrategy(&ConvergenceConfig{PlateauIterations: 4, ImprovementThreshold: 0.01, MinIterations: 2})

	converged, _ := strategy.CheckConvergence([]float64{50, 10, 10, 10, 10})
	if !converged {
		t.Fatalf("expected a constant tail to converge")
	}

	converged, _ = strategy.CheckConvergence([]float64{50, 40, 30, 20, 10})
	if converged {
		t.Fatalf("expected a falling tail not to converge")
	}
}

func TestCombinedStrategy(t *testing.T) {
	strategy := NewCombinedStrategy(&ConvergenceConfig{
		NoImprovementIterations: 3,
		ImprovementThreshold:    0.001,
		ScoreTolerance:          0,
		MinIterations:           2,
		PlateauIterations:       3,
	})
	converged, reason := strategy.CheckConvergence([]float64{9, 8, 8, 8, 8})
	if !converged || reason == "" {
		t.Fatalf("expected combined convergence")
	}

	strategy.AddStrategy(NewVarianceStrategy(nil))
	if strategy.Name() != "combined" {
		t.Fatalf("unexpected name %s", strategy.Name())
	}
}

func TestDiagnose(t *testing.T) {
	history := []float64{10, 5, 5, 2, 2, 2}
	d := Diagnose(history, NewCombinedStrategy(&ConvergenceConfig{
		NoImprovementIterations: 2,
		MinIterations:           2,
		PlateauIterations:       3,
	}), 1e-9)

	if d.ConvergedAtIteration != 4 {
		t.Fatalf("expected convergence at iteration 4, got %d", d.ConvergedAtIteration)
	}
	if d.ImprovingIterations != 2 {
		t.Fatalf("expected 2 improving iterations, got %d", d.ImprovingIterations)
	}
	if math.Abs(d.HistoryMean-26.0/6) > 1e-12 {
		t.Fatalf("unexpected mean %v", d.HistoryMean)
	}
	if d.HistoryStdDev <= 0 {
		t.Fatalf("expected positive stddev")
	}
	if !d.Converged {
		t.Fatalf("expected converged diagnostics")
	}

	if empty := Diagnose(nil, nil, 1e-9); empty.ConvergedAtIteration != 0 || empty.Converged {
		t.Fatalf("expected zero diagnostics for empty history, got %+v", empty)
	}
}

func TestDiagnoseLargeErrorsStayFinite(t *testing.T) {
	history := []float64{9e199, 8e199, 7e199, 7e199}
	d := Diagnose(history, nil, 1e-9)
	if math.IsInf(d.HistoryStdDev, 0) || math.IsNaN(d.HistoryStdDev) || d.HistoryStdDev <= 0 {
		t.Fatalf("expected finite positive stddev, got %v", d.HistoryStdDev)
	}
	if math.Abs(d.HistoryMean-7.75e199) > 1e187 {
		t.Fatalf("unexpected mean %v", d.HistoryMean)
	}
}
