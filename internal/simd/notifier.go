package simd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/pv-calibration/internal/metrics"
	"github.com/GoSim-25-26J-441/pv-calibration/internal/policy"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/pv-calibration/pkg/models"
)

// CallbackSecretHeader carries the configured shared secret on every webhook
const CallbackSecretHeader = "X-Pvcal-Callback-Secret"

var (
	ErrInvalidURL       = errors.New("invalid callback url")
	ErrMetadataEndpoint = errors.New("callback url targets a cloud metadata endpoint")
	ErrInternalHost     = errors.New("callback url targets an internal address")
)

// NotificationPayload represents the JSON payload sent to the callback URL
type NotificationPayload struct {
	RunID           string               `json:"run_id"`
	Status          models.RunStatus     `json:"status"`
	CreatedAtUnixMs int64                `json:"created_at_unix_ms"`
	StartedAtUnixMs int64                `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64                `json:"ended_at_unix_ms,omitempty"`
	Error           string               `json:"error,omitempty"`
	BestError       *float64             `json:"best_error,omitempty"`
	Factors         []models.NamedFactor `json:"factors,omitempty"`
	Iterations      int                  `json:"iterations"`
	Timestamp       int64                `json:"timestamp"` // When notification was sent
}

// Notifier posts run completions to caller-supplied webhooks
type Notifier struct {
	httpClient *http.Client
	secret     string
	retry      policy.RetryPolicy
	breaker    policy.CircuitBreakerPolicy
	metrics    *metrics.Collector
	wg         sync.WaitGroup
}

// NewNotifier creates a notifier using the retry and circuit breaker policies of pm.
// Either policy may be absent: no retries, or no breaker.
func NewNotifier(cfg config.CallbackConfig, pm *policy.Manager, m *metrics.Collector) *Notifier {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	n := &Notifier{
		httpClient: &http.Client{Timeout: timeout},
		secret:     cfg.Secret,
		metrics:    m,
	}
	if pm != nil {
		n.retry = pm.GetRetry()
		n.breaker = pm.GetCircuitBreaker()
	}
	return n
}

// Notify sends a notification to the callback URL asynchronously.
// run must be a snapshot; it is not read again after Notify returns.
func (n *Notifier) Notify(callbackURL string, run *models.Run) {
	if callbackURL == "" || run == nil {
		return
	}

	finalURL := strings.ReplaceAll(callbackURL, "{run_id}", url.PathEscape(run.ID))
	payload := newNotificationPayload(run)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.sendNotification(finalURL, payload)
	}()
}

// Wait blocks until every in-flight notification finished
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func newNotificationPayload(run *models.Run) NotificationPayload {
	payload := NotificationPayload{
		RunID:           run.ID,
		Status:          run.Status,
		CreatedAtUnixMs: unixMs(run.CreatedAt),
		StartedAtUnixMs: unixMs(run.StartedAt),
		EndedAtUnixMs:   unixMs(run.EndedAt),
		Error:           run.Error,
		Iterations:      run.Progress.Iteration,
		Timestamp:       time.Now().UTC().UnixMilli(),
	}
	if run.Result != nil {
		best := run.Result.BestError
		payload.BestError = &best
		payload.Factors = run.Result.Factors
	}
	return payload
}

// sendNotification performs the HTTP POST, retrying per the retry policy
func (n *Notifier) sendNotification(callbackURL string, payload NotificationPayload) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload",
			"callback_url", callbackURL,
			"run_id", payload.RunID,
			"error", err)
		return
	}

	host := callbackURL
	if u, err := url.Parse(callbackURL); err == nil {
		host = u.Host
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := n.retry.GetBackoffDuration(attempt)
			logger.Debug("retrying notification",
				"callback_url", callbackURL,
				"run_id", payload.RunID,
				"attempt", attempt,
				"delay", delay)
			time.Sleep(delay)
		}

		if n.breaker != nil && !n.breaker.AllowRequest(host, time.Now()) {
			logger.Warn("notification skipped: circuit open",
				"callback_url", callbackURL,
				"run_id", payload.RunID)
			n.record("skipped")
			return
		}

		lastErr = n.post(callbackURL, payloadJSON)
		if lastErr == nil {
			if n.breaker != nil {
				n.breaker.RecordSuccess(host, time.Now())
			}
			logger.Info("notification sent successfully",
				"run_id", payload.RunID,
				"status", payload.Status)
			n.record("delivered")
			return
		}

		if n.breaker != nil {
			n.breaker.RecordFailure(host, time.Now())
		}
		logger.Warn("notification attempt failed",
			"callback_url", callbackURL,
			"run_id", payload.RunID,
			"attempt", attempt+1,
			"error", lastErr)

		if n.retry == nil || !n.retry.ShouldRetry(attempt, lastErr) {
			break
		}
	}

	logger.Error("failed to send notification after retries",
		"callback_url", callbackURL,
		"run_id", payload.RunID,
		"status", payload.Status,
		"last_error", lastErr)
	n.record("failed")
}

func (n *Notifier) post(callbackURL string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pvcald/1.0")
	if n.secret != "" {
		req.Header.Set(CallbackSecretHeader, n.secret)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	responseBody := string(bodyBytes)
	if len(responseBody) > 200 {
		responseBody = responseBody[:200] + "..."
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, responseBody)
}

func (n *Notifier) record(outcome string) {
	if n.metrics != nil {
		n.metrics.CallbackDelivered(outcome)
	}
}

// validateCallbackURL rejects webhook targets that are malformed or point at
// metadata services or literal internal IPs. Hostnames are not resolved, so
// localhost remains usable in development.
func validateCallbackURL(raw string) error {
	u, err := url.Parse(strings.ReplaceAll(raw, "{run_id}", "run"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, u.Scheme)
	}
	hostname := u.Hostname()
	if hostname == "" {
		return fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	if strings.EqualFold(hostname, "metadata.google.internal") || hostname == "169.254.169.254" {
		return fmt.Errorf("%w: %s", ErrMetadataEndpoint, hostname)
	}
	if ip := net.ParseIP(hostname); ip != nil {
		if ip.IsUnspecified() || isPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrInternalHost, hostname)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
