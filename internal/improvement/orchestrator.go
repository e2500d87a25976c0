package improvement

import (
	"context"
	"fmt"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

// Calibrate validates problem and cfg, runs the configured strategy and returns the packaged result.
// A cancelled ctx is not an error: the result carries Cancelled and the best found so far.
func Calibrate(ctx context.Context, problem Problem, cfg SearchConfig, progress ProgressReporter) (*models.OptimizationResult, error) {
	opt, err := NewOptimizer(problem, cfg)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		opt.WithProgressReporter(progress)
	}
	res, err := opt.Optimize(ctx)
	if err != nil {
		return nil, fmt.Errorf("calibration failed: %w", err)
	}
	return res, nil
}
