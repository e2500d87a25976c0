package simd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/improvement"
	"github.com/GoSim-25-26J-441/pv-calibration/internal/pvmodel"
	"github.com/GoSim-25-26J-441/pv-calibration/internal/policy"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/utils"
)

var (
	// ErrThrottled marks a submission refused by the rate limiter
	ErrThrottled = errors.New("too many calibration requests")
	// ErrBadRequest marks a request body that could not be decoded
	ErrBadRequest = errors.New("bad request")
)

// Submission routes, used as rate limiter keys
const (
	routeCreate    = "calibrations:create"
	routeRun       = "calibrations:run"
	routeCalculate = "module:calculate"
)

// Service implements the calibration operations shared by the HTTP and gRPC fronts.
type Service struct {
	store    *RunStore
	executor *RunExecutor
	defaults config.SearchSpec
	limiter  policy.RateLimitingPolicy
}

// ServiceOptions holds optional Service collaborators
type ServiceOptions struct {
	Defaults config.SearchSpec
	Limiter  policy.RateLimitingPolicy
}

func NewService(store *RunStore, executor *RunExecutor, opts ServiceOptions) *Service {
	return &Service{
		store:    store,
		executor: executor,
		defaults: opts.Defaults,
		limiter:  opts.Limiter,
	}
}

// Store returns the run store backing the service
func (s *Service) Store() *RunStore {
	return s.store
}

// Executor returns the run executor backing the service
func (s *Service) Executor() *RunExecutor {
	return s.executor
}

// RunRequest is the create/run envelope: an optional caller-chosen ID plus a run spec
type RunRequest struct {
	RunID string
	Spec  *config.RunSpec
}

// DecodeRunRequest parses {"run_id": "...", "spec": {...}} with unknown fields rejected.
func DecodeRunRequest(data []byte) (*RunRequest, error) {
	var envelope struct {
		RunID string          `json:"run_id,omitempty"`
		Spec  json.RawMessage `json:"spec"`
	}
	if err := decodeStrict(data, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Spec) == 0 || string(envelope.Spec) == "null" {
		return nil, fmt.Errorf("%w: spec is required", ErrBadRequest)
	}
	spec, err := config.ParseRunSpecJSON(envelope.Spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return &RunRequest{RunID: envelope.RunID, Spec: spec}, nil
}

// EvaluateRequest asks for one forward-model prediction, optionally scored against a target.
type EvaluateRequest struct {
	Context        config.ContextSpec `json:"context"`
	Tunable        []float64          `json:"tunable"`
	MeasuredTarget *float64           `json:"measured_target,omitempty"`
	Objective      string             `json:"objective,omitempty"`
}

// EvaluateResponse carries the prediction and, when a target was given, its objective value.
type EvaluateResponse struct {
	PredictedPower float64  `json:"predicted_power"`
	Error          *float64 `json:"error,omitempty"`
	Objective      string   `json:"objective,omitempty"`
}

// ModuleResponse carries calculator outputs and an optional calibration of the module's loss factors.
type ModuleResponse struct {
	Outputs     pvmodel.ModuleOutputs      `json:"outputs"`
	Calibration *models.OptimizationResult `json:"calibration,omitempty"`
}

// CreateCalibration resolves spec, registers a run and starts it asynchronously.
func (s *Service) CreateCalibration(clientID string, req *RunRequest) (*RunRecord, error) {
	if err := s.admit(clientID, routeCreate); err != nil {
		return nil, err
	}
	resolved, err := s.resolve(req.Spec)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.Create(req.RunID, req.Spec, resolved)
	if err != nil {
		return nil, err
	}
	if _, err := s.executor.Start(rec.Run.ID); err != nil {
		return nil, err
	}
	logger.Info("calibration run created", "run_id", rec.Run.ID, "client", clientID)
	return rec, nil
}

// Calibrate resolves spec and runs it to completion on the caller's context.
func (s *Service) Calibrate(ctx context.Context, clientID string, spec *config.RunSpec) (*models.OptimizationResult, error) {
	if err := s.admit(clientID, routeRun); err != nil {
		return nil, err
	}
	resolved, err := s.resolve(spec)
	if err != nil {
		return nil, err
	}
	return s.executor.RunSync(ctx, resolved)
}

// GetCalibration returns a tracked run
func (s *Service) GetCalibration(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return rec, nil
}

// StopCalibration cancels a run
func (s *Service) StopCalibration(runID string) (*RunRecord, error) {
	rec, err := s.executor.Stop(runID)
	if err != nil {
		return nil, err
	}
	logger.Info("calibration run cancelled", "run_id", runID)
	return rec, nil
}

// ListCalibrations pages through runs newest first
func (s *Service) ListCalibrations(limit, offset int, status models.RunStatus) []*RunRecord {
	return s.store.ListFiltered(limit, offset, status)
}

// Evaluate runs the forward model once
func (s *Service) Evaluate(req *EvaluateRequest) (*EvaluateResponse, error) {
	ctx, err := req.Context.ForwardContext()
	if err != nil {
		return nil, err
	}
	for i, v := range req.Tunable {
		if !utils.IsFinite(v) {
			return nil, &models.ConfigError{Field: fmt.Sprintf("tunable[%d]", i), Reason: "must be finite"}
		}
	}

	resp := &EvaluateResponse{PredictedPower: pvmodel.Evaluate(ctx, req.Tunable)}
	if !utils.IsFinite(resp.PredictedPower) {
		return nil, &models.ConfigError{Field: "context", Reason: "predicted power overflows"}
	}
	if req.MeasuredTarget != nil {
		obj, err := improvement.NewObjectiveFunction(req.Objective)
		if err != nil {
			return nil, &models.ConfigError{Field: "objective", Reason: err.Error()}
		}
		e := obj.Evaluate(resp.PredictedPower, *req.MeasuredTarget)
		if !utils.IsFinite(e) {
			return nil, &models.ConfigError{Field: "objective", Reason: obj.Name() + " overflows"}
		}
		resp.Error = &e
		resp.Objective = obj.Name()
	}
	return resp, nil
}

// CalculateModule runs the module calculator and, when calibrate is set, tunes
// the module's loss factors against its measured power synchronously.
func (s *Service) CalculateModule(ctx context.Context, clientID string, spec *config.ModuleSpec, calibrate bool) (*ModuleResponse, error) {
	out, err := spec.Calculate()
	if err != nil {
		return nil, err
	}
	resp := &ModuleResponse{Outputs: out}
	if !calibrate {
		return resp, nil
	}

	if err := s.admit(clientID, routeCalculate); err != nil {
		return nil, err
	}
	runSpec, err := spec.RunSpec()
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolve(runSpec)
	if err != nil {
		return nil, err
	}
	resp.Calibration, err = s.executor.RunSync(ctx, resolved)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) resolve(spec *config.RunSpec) (*config.Resolved, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: spec is required", ErrBadRequest)
	}
	if spec.CallbackURL != "" {
		if err := validateCallbackURL(spec.CallbackURL); err != nil {
			s.executor.Metrics().Rejected("validation")
			return nil, &models.ConfigError{Field: "callback_url", Reason: err.Error()}
		}
	}
	resolved, err := spec.Resolve(s.defaults)
	if err != nil {
		s.executor.Metrics().Rejected("validation")
		return nil, err
	}
	return resolved, nil
}

func (s *Service) admit(clientID, route string) error {
	if s.limiter == nil || s.limiter.AllowRequest(clientID, route, time.Now()) {
		return nil
	}
	s.executor.Metrics().Rejected("throttled")
	logger.Warn("calibration request throttled", "client", clientID, "route", route)
	return fmt.Errorf("%w: retry later", ErrThrottled)
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", ErrBadRequest, err)
	}
	return nil
}

// badRequestUnlessTyped wraps decode failures as ErrBadRequest and leaves typed validation errors alone.
func badRequestUnlessTyped(err error) error {
	if errors.Is(err, models.ErrInvalidConfiguration) || errors.Is(err, models.ErrMissingPrecondition) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBadRequest, err)
}
