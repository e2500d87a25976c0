package simd

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/pv-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/utils"
)

const maxRequestBytes = 1 << 20

type HTTPServer struct {
	mux *http.ServeMux
	svc *Service
}

func NewHTTPServer(svc *Service) *HTTPServer {
	s := &HTTPServer{
		mux: http.NewServeMux(),
		svc: svc,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.Handle("/metrics", svc.Executor().Metrics().Handler())
	s.mux.HandleFunc("/v1/calibrations", s.handleCalibrations)
	s.mux.HandleFunc("/v1/calibrations:run", s.handleRunCalibration)
	s.mux.HandleFunc("/v1/calibrations/", s.handleCalibrationByID)
	s.mux.HandleFunc("/v1/model:evaluate", s.handleEvaluate)
	s.mux.HandleFunc("/v1/module:calculate", s.handleCalculate)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return withRequestLog(s.mux)
}

// statusRecorder captures the response code for the request log
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withRequestLog tags every response with an X-Request-ID and logs it at debug level.
// A caller-supplied ID is echoed back unchanged.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = utils.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		logger.Debug("http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"runs":      s.svc.Store().Len(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCalibrations handles /v1/calibrations
func (s *HTTPServer) handleCalibrations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateCalibration(w, r)
	case http.MethodGet:
		s.handleListCalibrations(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCalibrationByID handles /v1/calibrations/{id} and its sub-resources
func (s *HTTPServer) handleCalibrationByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/calibrations/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	route := func(suffix, method string, h func(http.ResponseWriter, *http.Request, string)) bool {
		if !strings.HasSuffix(path, suffix) {
			return false
		}
		if r.Method != method {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return true
		}
		h(w, r, strings.TrimSuffix(path, suffix))
		return true
	}

	switch {
	case route(":stop", http.MethodPost, s.handleStopCalibration):
	case route("/history", http.MethodGet, s.handleHistory):
	case route("/events", http.MethodGet, s.handleEvents):
	case strings.Contains(path, "/"):
		s.writeError(w, http.StatusNotFound, "unknown resource")
	case r.Method == http.MethodGet:
		s.handleGetCalibration(w, r, path)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// Helper functions

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

// writeServiceError maps a Service error onto its HTTP status
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	body := map[string]any{"error": err.Error()}
	var mp *models.MissingPreconditionError
	if errors.As(err, &mp) {
		body["missing"] = mp.Missing
	}
	s.writeJSON(w, status, body)
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRunExists), errors.Is(err, ErrRunTerminal):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrRunIDMissing),
		errors.Is(err, models.ErrMissingPrecondition),
		errors.Is(err, models.ErrInvalidConfiguration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// clientID identifies the caller for rate limiting by its remote IP
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func runToJSON(run *models.Run) map[string]any {
	out := map[string]any{
		"id":                 run.ID,
		"status":             run.Status,
		"created_at_unix_ms": unixMs(run.CreatedAt),
		"started_at_unix_ms": unixMs(run.StartedAt),
		"ended_at_unix_ms":   unixMs(run.EndedAt),
		"progress":           run.Progress,
	}
	if run.Error != "" {
		out["error"] = run.Error
	}
	if run.CallbackURL != "" {
		out["callback_url"] = run.CallbackURL
	}
	if run.Result != nil {
		out["result"] = run.Result
	}
	return out
}
