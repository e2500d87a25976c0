package simd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/improvement"
	"github.com/GoSim-25-26J-441/pv-calibration/internal/metrics"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
)

// ExecutorOptions configures a RunExecutor. Zero values mean unlimited
// concurrency, no worker cap and no webhooks.
type ExecutorOptions struct {
	MaxConcurrentRuns int
	MaxWorkers        int
	Notifier          *Notifier
	Metrics           *metrics.Collector
}

// RunExecutor manages asynchronous run execution and per-run cancellation.
type RunExecutor struct {
	store      *RunStore
	notifier   *Notifier
	metrics    *metrics.Collector
	slots      chan struct{}
	maxWorkers int

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	done    map[string]chan struct{}
}

func NewRunExecutor(store *RunStore, opts ExecutorOptions) *RunExecutor {
	e := &RunExecutor{
		store:      store,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		maxWorkers: opts.MaxWorkers,
		cancels:    make(map[string]context.CancelFunc),
		done:       make(map[string]chan struct{}),
	}
	if e.metrics == nil {
		e.metrics = metrics.NewCollector()
	}
	if opts.MaxConcurrentRuns > 0 {
		e.slots = make(chan struct{}, opts.MaxConcurrentRuns)
	}
	return e
}

// Metrics returns the collector runs report to
func (e *RunExecutor) Metrics() *metrics.Collector {
	return e.metrics
}

// Start begins executing a run asynchronously. The run stays pending until a
// concurrency slot frees up.
func (e *RunExecutor) Start(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Resolved == nil {
		return nil, fmt.Errorf("run %s has no resolved problem", runID)
	}

	status := rec.Run.Snapshot().Status
	if status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	e.mu.Lock()
	if _, active := e.cancels[runID]; active {
		e.mu.Unlock()
		return rec, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancels[runID] = cancel
	e.done[runID] = make(chan struct{})
	e.mu.Unlock()

	go e.execute(ctx, rec)
	return rec, nil
}

// Stop requests cancellation for a run and marks it cancelled.
// The search returns its best-so-far result, which is still attached to the run.
func (e *RunExecutor) Stop(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	e.mu.Lock()
	cancel, active := e.cancels[runID]
	e.mu.Unlock()
	if active {
		cancel()
	}

	if !rec.Run.Transition(models.RunStatusCancelled, "") {
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}
	return rec, nil
}

// StopAll cancels every active run, e.g. on shutdown
func (e *RunExecutor) StopAll() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.cancels))
	for id := range e.cancels {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if _, err := e.Stop(id); err != nil && !errors.Is(err, ErrRunTerminal) {
			logger.Warn("failed to stop run", "run_id", id, "error", err)
		}
	}
}

// Wait blocks until the run's execution goroutine has finished or ctx is done.
// Runs that were never started, or already finished, return immediately.
func (e *RunExecutor) Wait(ctx context.Context, runID string) error {
	if _, ok := e.store.Get(runID); !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	e.mu.Lock()
	done, active := e.done[runID]
	e.mu.Unlock()
	if !active {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunSync executes a resolved request on the caller's goroutine without tracking it in the store.
func (e *RunExecutor) RunSync(ctx context.Context, resolved *config.Resolved) (*models.OptimizationResult, error) {
	search := e.clampWorkers(resolved.Search)
	strategy := string(search.Strategy)

	e.metrics.RunStarted()
	started := time.Now()
	res, err := improvement.Calibrate(ctx, resolved.Problem, search, func(int, float64) {
		e.metrics.IterationDone(strategy)
	})
	e.metrics.RunFinished(strategy, string(outcome(res, err)), bestErrorOf(res), time.Since(started))
	return res, err
}

func (e *RunExecutor) execute(ctx context.Context, rec *RunRecord) {
	runID := rec.Run.ID
	defer e.cleanup(runID)

	if !e.acquire(ctx) {
		logger.Info("run cancelled before start", "run_id", runID)
		e.notify(rec)
		return
	}
	defer e.release()

	if !rec.Run.Transition(models.RunStatusRunning, "") {
		e.notify(rec)
		return
	}

	search := e.clampWorkers(rec.Resolved.Search)
	strategy := string(search.Strategy)
	e.metrics.RunStarted()
	started := time.Now()

	logger.Info("calibration run started", "run_id", runID,
		"strategy", strategy,
		"iterations", search.Iterations,
		"population", search.PopulationSize,
		"workers", search.Workers)

	res, err := improvement.Calibrate(ctx, rec.Resolved.Problem, search, func(iteration int, bestError float64) {
		rec.Run.SetProgress(iteration, bestError)
		e.metrics.IterationDone(strategy)
	})

	status := settle(ctx, res, err)
	switch status {
	case models.RunStatusFailed:
		logger.Error("calibration run failed", "run_id", runID, "error", err)
		rec.Run.Transition(models.RunStatusFailed, err.Error())
	default:
		rec.Run.SetResult(res)
		rec.Run.Transition(status, "")
		logger.Info("calibration run finished", "run_id", runID,
			"status", status,
			"best_error", res.BestError,
			"converged", res.Diagnostics.Converged)
	}
	e.metrics.RunFinished(strategy, string(status), bestErrorOf(res), time.Since(started))
	e.notify(rec)
}

func (e *RunExecutor) notify(rec *RunRecord) {
	if e.notifier == nil {
		return
	}
	snap := rec.Run.Snapshot()
	if snap.CallbackURL == "" {
		return
	}
	e.notifier.Notify(snap.CallbackURL, snap)
}

func (e *RunExecutor) acquire(ctx context.Context) bool {
	if e.slots == nil {
		return ctx.Err() == nil
	}
	select {
	case e.slots <- struct{}{}:
		if ctx.Err() != nil {
			<-e.slots
			return false
		}
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *RunExecutor) release() {
	if e.slots != nil {
		<-e.slots
	}
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	if done, ok := e.done[runID]; ok {
		close(done)
		delete(e.done, runID)
	}
}

// clampWorkers caps the requested parallelism at the service limit
func (e *RunExecutor) clampWorkers(cfg improvement.SearchConfig) improvement.SearchConfig {
	if e.maxWorkers > 0 && cfg.Workers > e.maxWorkers {
		cfg.Workers = e.maxWorkers
	}
	return cfg
}

// settle marks a result cancelled when ctx was cancelled after the search's last
// cancellation check, so the result agrees with the status Stop already recorded.
func settle(ctx context.Context, res *models.OptimizationResult, err error) models.RunStatus {
	if err == nil && res != nil && ctx.Err() != nil {
		res.Cancelled = true
	}
	return outcome(res, err)
}

func outcome(res *models.OptimizationResult, err error) models.RunStatus {
	switch {
	case err != nil || res == nil:
		return models.RunStatusFailed
	case res.Cancelled:
		return models.RunStatusCancelled
	default:
		return models.RunStatusCompleted
	}
}

func bestErrorOf(res *models.OptimizationResult) float64 {
	if res == nil {
		return -1
	}
	return res.BestError
}
