package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pvcal"

// Collector records calibration service metrics on its own Prometheus registry
type Collector struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	iterationsTotal *prometheus.CounterVec
	bestError       *prometheus.HistogramVec
	runDuration     *prometheus.HistogramVec
	activeRuns      prometheus.Gauge
	rejectedTotal   *prometheus.CounterVec
	callbacksTotal  *prometheus.CounterVec
}

// NewCollector creates a collector with every metric registered
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Calibration runs finished, by strategy and final status",
			},
			[]string{"strategy", "status"},
		),
		iterationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "iterations_total",
				Help:      "Search iterations executed across all runs",
			},
			[]string{"strategy"},
		),
		bestError: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "best_error_watts",
				Help:      "Objective value of the best candidate at the end of a run",
				Buckets:   prometheus.ExponentialBuckets(1e-4, 10, 8),
			},
			[]string{"strategy"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of calibration runs",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Calibration runs currently executing",
			},
		),
		rejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejected_requests_total",
				Help:      "Requests rejected before a run started, by reason",
			},
			[]string{"reason"},
		),
		callbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "callbacks_total",
				Help:      "Completion webhook deliveries, by outcome",
			},
			[]string{"outcome"},
		),
	}
	c.registry.MustRegister(
		c.runsTotal,
		c.iterationsTotal,
		c.bestError,
		c.runDuration,
		c.activeRuns,
		c.rejectedTotal,
		c.callbacksTotal,
	)
	return c
}

// Registry exposes the underlying registry, e.g. for Gather in tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RunStarted marks a run as executing
func (c *Collector) RunStarted() {
	c.activeRuns.Inc()
}

// RunFinished records the outcome of a run that previously called RunStarted
func (c *Collector) RunFinished(strategy, status string, bestError float64, elapsed time.Duration) {
	c.activeRuns.Dec()
	c.runsTotal.WithLabelValues(strategy, status).Inc()
	c.runDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if bestError >= 0 {
		c.bestError.WithLabelValues(strategy).Observe(bestError)
	}
}

// IterationDone counts one completed search iteration
func (c *Collector) IterationDone(strategy string) {
	c.iterationsTotal.WithLabelValues(strategy).Inc()
}

// Rejected counts a request refused with reason (validation, throttled, ...)
func (c *Collector) Rejected(reason string) {
	c.rejectedTotal.WithLabelValues(reason).Inc()
}

// CallbackDelivered counts a webhook outcome (delivered, failed, skipped)
func (c *Collector) CallbackDelivered(outcome string) {
	c.callbacksTotal.WithLabelValues(outcome).Inc()
}
