package simd

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

// handleCreateCalibration handles POST /v1/calibrations
func (s *HTTPServer) handleCreateCalibration(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	req, err := DecodeRunRequest(body)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	rec, err := s.svc.CreateCalibration(clientID(r), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"run": runToJSON(rec.Run.Snapshot()),
	})
}

// handleRunCalibration handles POST /v1/calibrations:run
func (s *HTTPServer) handleRunCalibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	req, err := DecodeRunRequest(body)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	res, err := s.svc.Calibrate(r.Context(), clientID(r), req.Spec)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"result": res,
	})
}

// handleListCalibrations handles GET /v1/calibrations with pagination and filtering
func (s *HTTPServer) handleListCalibrations(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	var status models.RunStatus
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		parsed, ok := models.ParseRunStatus(statusStr)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status filter: "+statusStr)
			return
		}
		status = parsed
	}

	recs := s.svc.ListCalibrations(limit, offset, status)
	runs := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		snap := rec.Run.Snapshot()
		// Listings stay small: results are fetched per run.
		snap.Result = nil
		runs = append(runs, runToJSON(snap))
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs": runs,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(runs),
		},
	})
}

// handleGetCalibration handles GET /v1/calibrations/{id}
func (s *HTTPServer) handleGetCalibration(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, err := s.svc.GetCalibration(runID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": runToJSON(rec.Run.Snapshot()),
	})
}

// handleStopCalibration handles POST /v1/calibrations/{id}:stop
func (s *HTTPServer) handleStopCalibration(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, err := s.svc.StopCalibration(runID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": runToJSON(rec.Run.Snapshot()),
	})
}

// handleHistory handles GET /v1/calibrations/{id}/history
func (s *HTTPServer) handleHistory(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, err := s.svc.GetCalibration(runID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	snap := rec.Run.Snapshot()
	if snap.Result == nil {
		s.writeError(w, http.StatusPreconditionFailed, "history not available until the run finishes")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":      runID,
		"history":     snap.Result.History,
		"diagnostics": snap.Result.Diagnostics,
	})
}

// handleEvents handles GET /v1/calibrations/{id}/events as a Server-Sent Events stream
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request, runID string) {
	rec, err := s.svc.GetCalibration(runID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	interval := time.Second
	if intervalStr := r.URL.Query().Get("interval_ms"); intervalStr != "" {
		if intervalMs, err := strconv.ParseInt(intervalStr, 10, 64); err == nil && intervalMs > 0 {
			interval = time.Duration(intervalMs) * time.Millisecond
		}
	}

	snap := rec.Run.Snapshot()
	previousStatus := snap.Status
	lastIteration := snap.Progress.Iteration
	s.sendSSEEvent(w, "status_change", map[string]any{"status": snap.Status})
	if snap.Status.Terminal() {
		s.sendSSEEvent(w, "complete", completeEvent(snap))
		flush(w)
		return
	}
	flush(w)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap := rec.Run.Snapshot()
			if snap.Progress.Iteration != lastIteration {
				s.sendSSEEvent(w, "progress", map[string]any{
					"iteration":  snap.Progress.Iteration,
					"iterations": snap.Progress.Iterations,
					"best_error": snap.Progress.BestError,
				})
				lastIteration = snap.Progress.Iteration
			}
			if snap.Status != previousStatus {
				s.sendSSEEvent(w, "status_change", map[string]any{"status": snap.Status})
				previousStatus = snap.Status
			}
			if snap.Status.Terminal() {
				s.sendSSEEvent(w, "complete", completeEvent(snap))
				flush(w)
				return
			}
			flush(w)
		}
	}
}

// handleEvaluate handles POST /v1/model:evaluate
func (s *HTTPServer) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var req EvaluateRequest
	if err := decodeStrict(body, &req); err != nil {
		s.writeServiceError(w, err)
		return
	}

	resp, err := s.svc.Evaluate(&req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleCalculate handles POST /v1/module:calculate[?calibrate=true]
func (s *HTTPServer) handleCalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	calibrate, _ := strconv.ParseBool(r.URL.Query().Get("calibrate"))

	spec, err := config.ParseModuleSpecJSON(body)
	if err != nil {
		s.writeServiceError(w, badRequestUnlessTyped(err))
		return
	}
	resp, err := s.svc.CalculateModule(r.Context(), clientID(r), spec, calibrate)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}
	return body, true
}

// sendSSEEvent sends a Server-Sent Event
func (s *HTTPServer) sendSSEEvent(w http.ResponseWriter, eventType string, data map[string]any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		logger.Error("failed to marshal SSE event data", "error", err)
		return
	}
	if _, err := w.Write([]byte("event: " + eventType + "\ndata: " + string(jsonData) + "\n\n")); err != nil {
		logger.Debug("failed to write SSE event", "error", err)
	}
}

func completeEvent(run *models.Run) map[string]any {
	event := map[string]any{"status": run.Status}
	if run.Result != nil {
		event["best_error"] = run.Result.BestError
		event["factors"] = run.Result.Factors
	}
	if run.Error != "" {
		event["error"] = run.Error
	}
	return event
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
