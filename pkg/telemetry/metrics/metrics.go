// Package metrics exposes Prometheus metrics for the audit pipeline.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warden-hq/callisto/pkg/audit"
)

// AuditMetrics collects counters and timings for audited events.
type AuditMetrics struct {
	registry *prometheus.Registry

	eventsTotal     *prometheus.CounterVec
	violationsTotal *prometheus.CounterVec
	dispatchSeconds prometheus.Histogram

	mode   string
	logger *slog.Logger
}

// New creates the audit metrics on a fresh registry. mode labels the
// violation counter with the active policy mode.
func New(mode string) *AuditMetrics {
	registry := prometheus.NewRegistry()

	m := &AuditMetrics{
		registry: registry,
		mode:     mode,
		logger:   slog.Default().With("component", "telemetry.metrics"),

		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "warden",
				Subsystem: "audit",
				Name:      "events_total",
				Help:      "Audited events by event name and verdict.",
			},
			[]string{"event", "verdict"},
		),

		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "warden",
				Subsystem: "audit",
				Name:      "violations_total",
				Help:      "Aborted operations by policy mode.",
			},
			[]string{"mode"},
		),

		dispatchSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "warden",
				Subsystem: "audit",
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent in audit dispatch, including the policy callback.",
				// Dispatch is usually microseconds; review prompts can take seconds.
				Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1, 10, 60},
			},
		),
	}

	registry.MustRegister(m.eventsTotal, m.violationsTotal, m.dispatchSeconds)
	return m
}

// RecordDispatch records one dispatched event with its verdict.
func (m *AuditMetrics) RecordDispatch(event string, verdict audit.Verdict) {
	m.eventsTotal.WithLabelValues(event, string(verdict)).Inc()
	if verdict == audit.Abort {
		m.violationsTotal.WithLabelValues(m.mode).Inc()
	}
}

// ObserveDispatchDuration records how long one dispatch took.
func (m *AuditMetrics) ObserveDispatchDuration(d time.Duration) {
	m.dispatchSeconds.Observe(d.Seconds())
}

// Observer adapts the metrics to the audit bridge's observer hook, feeding
// both the event counters and the dispatch duration histogram.
func (m *AuditMetrics) Observer() audit.Observer {
	return func(ev audit.Event, v audit.Verdict, d time.Duration) {
		m.RecordDispatch(ev.Name, v)
		m.ObserveDispatchDuration(d)
	}
}

// Registry returns the Prometheus registry backing these metrics.
func (m *AuditMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus scrape handler for these metrics.
func (m *AuditMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// Serve exposes /metrics on addr until ctx is cancelled. It blocks; run
// it on its own goroutine.
func (m *AuditMetrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	m.logger.Info("metrics listener started", "addr", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
