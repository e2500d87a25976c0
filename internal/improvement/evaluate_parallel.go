package improvement

import (
	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

// ScoreAll scores candidates, fanning out over at most workers goroutines.
// Results are indexed like cands, so the outcome does not depend on workers.
func (f *Fitness) ScoreAll(cands []models.CandidateSolution, workers int) []float64 {
	scores := make([]float64, len(cands))
	if workers <= 1 || len(cands) < 2 {
		for i, c := range cands {
			scores[i] = f.Score(c)
		}
		return scores
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, c := range cands {
		g.Go(func() error {
			scores[i] = f.Score(c)
			return nil
		})
	}
	_ = g.Wait()
	return scores
}
