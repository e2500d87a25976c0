package models

import (
	"math"
	"strings"
	"sync"
	"time"
)

// CalibrationBound is the closed interval a single tunable factor may take.
type CalibrationBound struct {
	Name string  `json:"name" yaml:"name"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
}

// Midpoint returns the centre of the interval
func (b CalibrationBound) Midpoint() float64 {
	return b.Min + (b.Max-b.Min)/2
}

// Contains reports whether v lies in [Min, Max]
func (b CalibrationBound) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Validate checks the bound invariant min < max with finite endpoints.
func (b CalibrationBound) Validate() error {
	if b.Name == "" {
		return &ConfigError{Field: "factors.name", Reason: "factor name cannot be empty"}
	}
	if !isFinite(b.Min) || !isFinite(b.Max) {
		return &ConfigError{Field: "factors." + b.Name, Reason: "bounds must be finite"}
	}
	if b.Min >= b.Max {
		return &ConfigError{Field: "factors." + b.Name, Reason: "min must be less than max"}
	}
	return nil
}

// TunableFactorSet is the ordered list of bounds defining the search space.
// Index i of every candidate corresponds to entry i of the set.
type TunableFactorSet []CalibrationBound

// Dim returns the dimensionality of the search space
func (s TunableFactorSet) Dim() int {
	return len(s)
}

// Names returns the factor names in vector order
func (s TunableFactorSet) Names() []string {
	names := make([]string, len(s))
	for i, b := range s {
		names[i] = b.Name
	}
	return names
}

// Midpoint returns the candidate at the centre of every bound
func (s TunableFactorSet) Midpoint() CandidateSolution {
	c := make(CandidateSolution, len(s))
	for i, b := range s {
		c[i] = b.Midpoint()
	}
	return c
}

// Upper returns the candidate with every factor at its upper bound
func (s TunableFactorSet) Upper() CandidateSolution {
	c := make(CandidateSolution, len(s))
	for i, b := range s {
		c[i] = b.Max
	}
	return c
}

// Lower returns the candidate with every factor at its lower bound
func (s TunableFactorSet) Lower() CandidateSolution {
	c := make(CandidateSolution, len(s))
	for i, b := range s {
		c[i] = b.Min
	}
	return c
}

// Clip clamps every coordinate of c into its bound in place.
func (s TunableFactorSet) Clip(c CandidateSolution) {
	for i, b := range s {
		if c[i] < b.Min {
			c[i] = b.Min
		} else if c[i] > b.Max {
			c[i] = b.Max
		}
	}
}

// Contains reports whether every coordinate of c lies within its bound
func (s TunableFactorSet) Contains(c CandidateSolution) bool {
	if len(c) != len(s) {
		return false
	}
	for i, b := range s {
		if !b.Contains(c[i]) {
			return false
		}
	}
	return true
}

// Validate checks every bound and rejects an empty set or duplicate names.
func (s TunableFactorSet) Validate() error {
	if len(s) == 0 {
		return &ConfigError{Field: "factors", Reason: "at least one tunable factor must be defined"}
	}
	seen := make(map[string]bool, len(s))
	for _, b := range s {
		if err := b.Validate(); err != nil {
			return err
		}
		if seen[b.Name] {
			return &ConfigError{Field: "factors." + b.Name, Reason: "duplicate factor name"}
		}
		seen[b.Name] = true
	}
	return nil
}

// NamedFactor is a multiplicative factor with a fixed value.
type NamedFactor struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// ForwardModelContext holds every model quantity that is not being tuned.
// It is supplied by the caller and treated as read-only by the engine.
type ForwardModelContext struct {
	BasePower         float64       `json:"base_power"`
	TemperatureFactor float64       `json:"temperature_factor"`
	IrradianceFactor  float64       `json:"irradiance_factor"`
	FixedFactors      []NamedFactor `json:"fixed_factors,omitempty"`
}

// FixedValues returns the fixed factor values in order
func (c ForwardModelContext) FixedValues() []float64 {
	out := make([]float64, len(c.FixedFactors))
	for i, f := range c.FixedFactors {
		out[i] = f.Value
	}
	return out
}

// Validate rejects non-finite context values.
func (c ForwardModelContext) Validate() error {
	if !isFinite(c.BasePower) {
		return &ConfigError{Field: "context.base_power", Reason: "must be finite"}
	}
	if !isFinite(c.TemperatureFactor) {
		return &ConfigError{Field: "context.temperature_factor", Reason: "must be finite"}
	}
	if !isFinite(c.IrradianceFactor) {
		return &ConfigError{Field: "context.irradiance_factor", Reason: "must be finite"}
	}
	for _, f := range c.FixedFactors {
		if !isFinite(f.Value) {
			return &ConfigError{Field: "context.fixed_factors." + f.Name, Reason: "must be finite"}
		}
	}
	return nil
}

// CandidateSolution is one proposed vector of tunable factor values.
// Candidates are values: callers copy with Clone, never share the backing array.
type CandidateSolution []float64

// Clone returns an independent copy of c
func (c CandidateSolution) Clone() CandidateSolution {
	if c == nil {
		return nil
	}
	out := make(CandidateSolution, len(c))
	copy(out, c)
	return out
}

// Diagnostics summarises the convergence history of a run.
type Diagnostics struct {
	ConvergedAtIteration int     `json:"converged_at_iteration"`
	Converged            bool    `json:"converged"`
	ConvergenceReason    string  `json:"convergence_reason,omitempty"`
	ImprovingIterations  int     `json:"improving_iterations"`
	HistoryMean          float64 `json:"history_mean"`
	HistoryStdDev        float64 `json:"history_stddev"`
}

// Comparison contrasts the baseline candidate with the optimized one.
type Comparison struct {
	BaselinePower      float64 `json:"baseline_power"`
	OptimizedPower     float64 `json:"optimized_power"`
	MeasuredPower      float64 `json:"measured_power"`
	PowerDelta         float64 `json:"power_delta"`
	ErrorReduction     float64 `json:"error_reduction"`
	ImprovementPercent float64 `json:"improvement_percent"`
	Improved           bool    `json:"improved"`
}

// OptimizationResult is the immutable outcome of one calibration run.
type OptimizationResult struct {
	BestSolution     CandidateSolution `json:"best_solution"`
	BestError        float64           `json:"best_error"`
	BaselineSolution CandidateSolution `json:"baseline_solution"`
	BaselineError    float64           `json:"baseline_error"`
	History          []float64         `json:"history"`

	Factors     []NamedFactor `json:"factors"`
	Comparison  Comparison    `json:"comparison"`
	Diagnostics Diagnostics   `json:"diagnostics"`
	Strategy    string        `json:"strategy"`
	Objective   string        `json:"objective"`
	Iterations  int           `json:"iterations"`
	Seed        int64         `json:"seed"`
	Cancelled   bool          `json:"cancelled,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"`
}

// RunStatus represents the lifecycle state of a calibration run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// ParseRunStatus maps a case-insensitive string to a RunStatus.
func ParseRunStatus(s string) (RunStatus, bool) {
	switch RunStatus(strings.ToLower(s)) {
	case RunStatusPending:
		return RunStatusPending, true
	case RunStatusRunning:
		return RunStatusRunning, true
	case RunStatusCompleted:
		return RunStatusCompleted, true
	case RunStatusFailed:
		return RunStatusFailed, true
	case RunStatusCancelled:
		return RunStatusCancelled, true
	}
	return "", false
}

// Progress is the live view of a running calibration.
type Progress struct {
	Iteration  int     `json:"iteration"`
	Iterations int     `json:"iterations"`
	BestError  float64 `json:"best_error"`
}

// Run is a calibration run as tracked by the service
type Run struct {
	ID          string              `json:"id"`
	Status      RunStatus           `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	StartedAt   time.Time           `json:"started_at,omitempty"`
	EndedAt     time.Time           `json:"ended_at,omitempty"`
	Progress    Progress            `json:"progress"`
	Result      *OptimizationResult `json:"result,omitempty"`
	Error       string              `json:"error,omitempty"`
	CallbackURL string              `json:"callback_url,omitempty"`
	mu          sync.RWMutex
}

// Snapshot returns a copy safe to hand out while the run is still executing.
func (r *Run) Snapshot() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Run{
		ID:          r.ID,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		EndedAt:     r.EndedAt,
		Progress:    r.Progress,
		Result:      r.Result,
		Error:       r.Error,
		CallbackURL: r.CallbackURL,
	}
}

// SetProgress records the latest iteration (thread-safe)
func (r *Run) SetProgress(iteration int, bestError float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress.Iteration = iteration
	r.Progress.BestError = bestError
}

// Transition moves the run to status, stamping start/end times.
// Returns false when the run is already terminal.
func (r *Run) Transition(status RunStatus, errMsg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status.Terminal() {
		return false
	}
	r.Status = status
	if errMsg != "" {
		r.Error = errMsg
	}
	now := time.Now().UTC()
	switch {
	case status == RunStatusRunning:
		if r.StartedAt.IsZero() {
			r.StartedAt = now
		}
	case status.Terminal():
		r.EndedAt = now
	}
	return true
}

// SetResult attaches the final result (thread-safe)
func (r *Run) SetResult(res *OptimizationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Result = res
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
