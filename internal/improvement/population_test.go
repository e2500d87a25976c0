package improvement

import (
	"testing"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/utils"
)

func TestNewPopulation(t *testing.T) {
	set := models.TunableFactorSet{{Name: "Fa", Min: 0.8, Max: 1.0}, {Name: "Fb", Min: 0.9, Max: 0.95}}
	pop := NewPopulation(set, 50, utils.NewRandSource(1))

	if pop.Size() != 50 || len(pop.Errors) != 50 || len(pop.Trials) != 50 {
		t.Fatalf("unexpected population sizes")
	}
	for i, c := range pop.Members {
		if !set.Contains(c) {
			t.Fatalf("member %d out of bounds: %v", i, c)
		}
	}
	pop.Members[0][0] = 0.5
	if pop.Members[1][0] == 0.5 {
		t.Fatalf("members share backing storage")
	}
}

func TestNewPopulationSeeded(t *testing.T) {
	set := models.TunableFactorSet{{Name: "Fa", Min: 0.8, Max: 1.0}}
	a := NewPopulation(set, 10, utils.NewRandSource(77))
	b := NewPopulation(set, 10, utils.NewRandSource(77))
	for i := range a.Members {
		if a.Members[i][0] != b.Members[i][0] {
			t.Fatalf("same seed produced different populations at %d", i)
		}
	}
}

func TestPopulationReplaceAndBest(t *testing.T) {
	pop := &Population{
		Members: []models.CandidateSolution{{0.9}, {0.8}, {1.0}},
		Errors:  []float64{3, 1, 1},
		Trials:  []int{4, 4, 4},
	}
	if got := pop.BestIndex(); got != 1 {
		t.Fatalf("expected first-found best at 1, got %d", got)
	}

	pop.Replace(2, models.CandidateSolution{0.95}, 0.5)
	if pop.BestIndex() != 2 || pop.Trials[2] != 0 || pop.Trials[1] != 4 {
		t.Fatalf("unexpected state after replace: %+v", pop)
	}
}
