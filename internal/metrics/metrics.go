// Package metrics holds the Prometheus instrumentation for tool dispatch and
// remote API calls.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace   = "alpacon_mcp"
	maxLabelLen = 64
)

// sanitizeLabel keeps label values bounded and non-empty.
func sanitizeLabel(s string) string {
	if s == "" {
		return "unknown"
	}
	s = strings.ReplaceAll(s, " ", "_")
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	return s
}

// Metrics groups the collectors. A nil *Metrics is valid and records nothing,
// which keeps tests and CLI-only code paths free of instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	remoteRequests *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
	fanoutTargets  *prometheus.CounterVec
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tool",
				Name:      "calls_total",
				Help:      "Total tool calls by operation and envelope status",
			},
			[]string{"operation", "status"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "tool",
				Name:      "call_duration_seconds",
				Help:      "Tool call latency by operation",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		remoteRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "remote",
				Name:      "requests_total",
				Help:      "Total remote API requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		remoteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "remote",
				Name:      "request_duration_seconds",
				Help:      "Remote API request latency by method",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		fanoutTargets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fanout",
				Name:      "targets_total",
				Help:      "Multi-target dispatch results by execution mode and per-target status",
			},
			[]string{"mode", "status"},
		),
	}

	m.registry.MustRegister(
		m.toolCalls,
		m.toolDuration,
		m.remoteRequests,
		m.remoteDuration,
		m.fanoutTargets,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordToolCall counts one tool call.
func (m *Metrics) RecordToolCall(operation, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	op := sanitizeLabel(operation)
	m.toolCalls.WithLabelValues(op, sanitizeLabel(status)).Inc()
	m.toolDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RecordRemoteRequest counts one remote request. outcome is "ok" or the
// remote error kind.
func (m *Metrics) RecordRemoteRequest(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.remoteRequests.WithLabelValues(sanitizeLabel(method), sanitizeLabel(outcome)).Inc()
	m.remoteDuration.WithLabelValues(sanitizeLabel(method)).Observe(elapsed.Seconds())
}

// RecordFanOutTarget counts one per-target result of a multi-target dispatch.
func (m *Metrics) RecordFanOutTarget(mode, status string) {
	if m == nil {
		return
	}
	m.fanoutTargets.WithLabelValues(sanitizeLabel(mode), sanitizeLabel(status)).Inc()
}
