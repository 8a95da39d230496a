package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for crfleet.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	activeRuns    prometheus.Gauge

	// Tick metrics
	ticks                 *prometheus.CounterVec
	tickDuration          *prometheus.HistogramVec
	tickRetries           *prometheus.CounterVec
	stabilizationAttempts *prometheus.HistogramVec

	// Control plane metrics
	remoteCalls    *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
	remoteErrors   *prometheus.CounterVec

	// Error metrics
	errorsByKind *prometheus.CounterVec

	// Simulator metrics
	fleetsByState *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled configuration yields a collector whose methods do nothing.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of orchestrated runs started",
			},
			[]string{"operation"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of orchestrated runs completed",
			},
			[]string{"operation", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of orchestrated runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
			},
			[]string{"operation", "status"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Current number of active runs",
			},
		),

		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_invocations_total",
				Help:      "Total number of engine invocations by resulting status",
			},
			[]string{"operation", "status"},
		),
		tickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "engine_invocation_duration_seconds",
				Help:      "Duration of single engine invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		tickRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tick_retries_total",
				Help:      "Total number of failed ticks retried by the orchestrator",
			},
			[]string{"operation", "kind"},
		),
		stabilizationAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stabilization_attempts",
				Help:      "Number of stabilization checks needed by completed runs",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
			},
			[]string{"operation"},
		),

		remoteCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "control_plane_calls_total",
				Help:      "Total number of control plane calls",
			},
			[]string{"call"},
		),
		remoteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "control_plane_call_duration_seconds",
				Help:      "Duration of control plane calls in seconds",
				Buckets:   buckets,
			},
			[]string{"call"},
		),
		remoteErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "control_plane_errors_total",
				Help:      "Total number of failed control plane calls",
			},
			[]string{"call", "kind"},
		),

		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_kind_total",
				Help:      "Total number of failed invocations by error kind",
			},
			[]string{"kind"},
		),

		fleetsByState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "simulated_fleets",
				Help:      "Current number of simulated fleets by state",
			},
			[]string{"state"},
		),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.activeRuns,
		m.ticks,
		m.tickDuration,
		m.tickRetries,
		m.stabilizationAttempts,
		m.remoteCalls,
		m.remoteDuration,
		m.remoteErrors,
		m.errorsByKind,
		m.fleetsByState,
	)

	return m, nil
}

// Run Metrics

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted(operation string) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(operation).Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its status, duration and
// the number of stabilization checks it needed.
func (m *Metrics) RecordRunCompleted(operation, status string, duration time.Duration, attempts int) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(operation, status).Inc()
	m.runDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
	if attempts > 0 {
		m.stabilizationAttempts.WithLabelValues(operation).Observe(float64(attempts))
	}
	m.activeRuns.Dec()
}

// Tick Metrics

// RecordInvocation records one engine invocation.
func (m *Metrics) RecordInvocation(operation, status string, duration time.Duration) {
	if m.ticks == nil {
		return
	}
	m.ticks.WithLabelValues(operation, status).Inc()
	m.tickDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTickRetry records a failed tick the orchestrator re-runs.
func (m *Metrics) RecordTickRetry(operation, kind string) {
	if m.tickRetries == nil {
		return
	}
	m.tickRetries.WithLabelValues(operation, kind).Inc()
}

// Control Plane Metrics

// RecordRemoteCall records a control plane call with its duration.
func (m *Metrics) RecordRemoteCall(call string, duration time.Duration) {
	if m.remoteCalls == nil {
		return
	}
	m.remoteCalls.WithLabelValues(call).Inc()
	m.remoteDuration.WithLabelValues(call).Observe(duration.Seconds())
}

// RecordRemoteError records a failed control plane call.
func (m *Metrics) RecordRemoteError(call, kind string) {
	if m.remoteErrors == nil {
		return
	}
	m.remoteErrors.WithLabelValues(call, kind).Inc()
}

// Error Metrics

// RecordError records a failed invocation by error kind.
func (m *Metrics) RecordError(kind string) {
	if m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// Simulator Metrics

// SetFleetCount sets the number of simulated fleets in a state.
func (m *Metrics) SetFleetCount(state string, count float64) {
	if m.fleetsByState == nil {
		return
	}
	m.fleetsByState.WithLabelValues(state).Set(count)
}

// Registry returns the metrics registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics endpoint until ctx is done.
func (m *Metrics) Serve(ctx context.Context) error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
