// Package observability exposes the runtime's Prometheus instrumentation:
// an LLM call counter with token totals and a histogram over backward
// pipeline runs. All recorder methods are nil-safe so instrumentation stays
// optional at every call site.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agentstep"

// Metrics holds the process-wide collectors, registered on a private
// registry so embedding applications control exposure.
type Metrics struct {
	registry *prometheus.Registry

	llmCalls        *prometheus.CounterVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec

	backwardRuns        prometheus.Counter
	backwardRunDuration prometheus.Histogram
	backwardOSPARows    prometheus.Counter
}

// NewMetrics builds and registers the collector set.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Total number of completed LLM provider calls",
	}, []string{"component"})
	m.llmTokensInput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "tokens_input_total",
		Help:      "Total prompt tokens billed across LLM calls",
	}, []string{"component"})
	m.llmTokensOutput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "tokens_output_total",
		Help:      "Total completion tokens billed across LLM calls",
	}, []string{"component"})

	m.backwardRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backward",
		Name:      "runs_total",
		Help:      "Total backward pipeline runs",
	})
	m.backwardRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "backward",
		Name:      "run_duration_seconds",
		Help:      "Backward pipeline run duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	m.backwardOSPARows = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backward",
		Name:      "ospa_rows_total",
		Help:      "Total OSPA rows emitted by backward pipeline runs",
	})

	m.registry.MustRegister(
		m.llmCalls, m.llmTokensInput, m.llmTokensOutput,
		m.backwardRuns, m.backwardRunDuration, m.backwardOSPARows,
	)
	return m
}

// Registry returns the underlying registry, for promhttp exposure by an
// embedding server.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordLLMCall counts one completed provider call and its token usage.
func (m *Metrics) RecordLLMCall(component string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(component).Inc()
	m.llmTokensInput.WithLabelValues(component).Add(float64(inputTokens))
	m.llmTokensOutput.WithLabelValues(component).Add(float64(outputTokens))
}

// ObserveBackwardRun records one completed pipeline run.
func (m *Metrics) ObserveBackwardRun(d time.Duration, ospaRows int) {
	if m == nil {
		return
	}
	m.backwardRuns.Inc()
	m.backwardRunDuration.Observe(d.Seconds())
	m.backwardOSPARows.Add(float64(ospaRows))
}
