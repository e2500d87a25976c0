package simd

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/utils"
)

// ErrRunExists is returned when a caller-supplied run ID is already taken
var ErrRunExists = errors.New("run already exists")

// RunRecord ties a tracked run to the request that produced it
type RunRecord struct {
	Run      *models.Run
	Spec     *config.RunSpec
	Resolved *config.Resolved
}

// RunStore keeps runs in memory, in creation order
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]*RunRecord
	order []string
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

// Create registers a pending run. An empty runID is replaced by a generated one.
func (s *RunStore) Create(runID string, spec *config.RunSpec, resolved *config.Resolved) (*RunRecord, error) {
	if err := utils.ValidateRunID(runID); err != nil {
		return nil, &models.ConfigError{Field: "run_id", Reason: err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if runID == "" {
		runID = utils.GenerateRunID()
	}
	if _, exists := s.runs[runID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}

	run := &models.Run{
		ID:        runID,
		Status:    models.RunStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if resolved != nil {
		run.CallbackURL = resolved.CallbackURL
		run.Progress.Iterations = resolved.Search.Iterations
	}
	rec := &RunRecord{Run: run, Spec: spec, Resolved: resolved}
	s.runs[runID] = rec
	s.order = append(s.order, runID)
	return rec, nil
}

func (s *RunStore) Get(runID string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	return rec, ok
}

// List returns up to limit runs, newest first
func (s *RunStore) List(limit int) []*RunRecord {
	return s.ListFiltered(limit, 0, "")
}

// ListFiltered pages through runs newest first, keeping only status when it is non-empty.
func (s *RunStore) ListFiltered(limit, offset int, status models.RunStatus) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	out := make([]*RunRecord, 0, minInt(limit, len(s.order)))
	skipped := 0
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.runs[s.order[i]]
		if status != "" && rec.Run.Snapshot().Status != status {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Len returns the number of tracked runs
func (s *RunStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
