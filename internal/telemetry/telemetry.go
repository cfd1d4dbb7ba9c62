// Package telemetry exposes the gateway's Prometheus metrics: per-operation
// counters and latencies, HTTP request metrics, build info, and periodically
// sampled credential gauges.
package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace      = "ehrgate"
	sampleInterval = time.Minute
)

// Operation outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeError        = "error"
	OutcomeUnauthorized = "unauthorized"
	OutcomeForbidden    = "forbidden"
	OutcomeInvalid      = "invalid"
)

// Stats is the state sampled by the background loop.
type Stats struct {
	Credentials       int
	ActiveCredentials int
}

// StatsFunc is called each sample to gather current state.
type StatsFunc func(ctx context.Context) (Stats, error)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	operations       *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
	httpInFlight     prometheus.Gauge
	streams          prometheus.Gauge
	credentials      *prometheus.GaugeVec
	buildInfo        *prometheus.GaugeVec

	startedAt time.Time
	logger    *slog.Logger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates Metrics on a private registry that also carries the Go runtime
// and process collectors.
func New(version, commit string, logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Dispatched operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Operation latency in seconds, including token validation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route, and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "HTTP requests currently being served.",
		}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_streams",
			Help:      "Open server-push and socket connections.",
		}),
		credentials: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "credentials",
			Help:      "Registered client credentials by state.",
		}, []string{"state"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information; always 1.",
		}, []string{"version", "commit"}),
		startedAt: time.Now(),
		logger:    logger,
	}

	m.registry.MustRegister(
		m.operations, m.operationLatency,
		m.httpRequests, m.httpLatency, m.httpInFlight,
		m.streams, m.credentials, m.buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.buildInfo.WithLabelValues(version, commit).Set(1)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOperation records one dispatched operation.
func (m *Metrics) ObserveOperation(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.operationLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveHTTP records one completed HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// InFlight adjusts the in-flight HTTP request gauge by delta.
func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.httpInFlight.Add(delta)
}

// StreamOpened and StreamClosed track long-lived connections.
func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.streams.Inc()
}

func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.streams.Dec()
}

// Start begins sampling statsFn immediately and then every minute until
// Shutdown. Non-blocking.
func (m *Metrics) Start(statsFn StatsFunc) {
	if m == nil || statsFn == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.sample(ctx, statsFn)

		ticker := time.NewTicker(sampleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.sample(ctx, statsFn)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the sampling loop.
func (m *Metrics) Shutdown() {
	if m == nil {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Metrics) sample(ctx context.Context, statsFn StatsFunc) {
	stats, err := statsFn(ctx)
	if err != nil {
		m.logger.Debug("metrics sample failed", "error", err)
		return
	}
	m.credentials.WithLabelValues("active").Set(float64(stats.ActiveCredentials))
	m.credentials.WithLabelValues("inactive").Set(float64(stats.Credentials - stats.ActiveCredentials))
}

// Uptime reports how long ago the metrics were created.
func (m *Metrics) Uptime() time.Duration {
	if m == nil {
		return 0
	}
	return time.Since(m.startedAt)
}
