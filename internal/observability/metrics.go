package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the cognitive core: tick
// throughput, language-model latency, tool executions, and memory
// retrieval counts.
type Metrics struct {
	registry *prometheus.Registry

	// TickCounter counts cognitive loop ticks by selected mode.
	// Labels: mode (responsive|planning|reflective|spoken)
	TickCounter *prometheus.CounterVec

	// LLMRequestDuration measures language-model call latency in seconds.
	// Labels: model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts language-model requests.
	// Labels: model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool, status (success|error|timeout|rejected)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool
	ToolExecutionDuration *prometheus.HistogramVec

	// MemorySearchCounter counts memory retrievals by tier.
	// Labels: tier (base|medium|long|personality)
	MemorySearchCounter *prometheus.CounterVec

	// EmbeddingFailures counts failed embedding requests.
	EmbeddingFailures prometheus.Counter

	// ThoughtBufferSize tracks the current processed-thought count.
	ThoughtBufferSize prometheus.Gauge
}

// NewMetrics creates the metric set on its own registry so repeated
// construction in tests does not collide.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		TickCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "animus_ticks_total",
				Help: "Total cognitive loop ticks by selected mode",
			},
			[]string{"mode"},
		),
		LLMRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "animus_llm_request_duration_seconds",
				Help:    "Duration of language-model requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model"},
		),
		LLMRequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "animus_llm_requests_total",
				Help: "Total language-model requests by model and status",
			},
			[]string{"model", "status"},
		),
		ToolExecutionCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "animus_tool_executions_total",
				Help: "Total tool executions by tool and status",
			},
			[]string{"tool", "status"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "animus_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		MemorySearchCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "animus_memory_searches_total",
				Help: "Total memory retrievals by tier",
			},
			[]string{"tier"},
		),
		EmbeddingFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "animus_embedding_failures_total",
				Help: "Total failed embedding requests",
			},
		),
		ThoughtBufferSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "animus_thought_buffer_size",
				Help: "Current number of processed thoughts in the buffer",
			},
		),
	}

	reg.MustRegister(
		m.TickCounter,
		m.LLMRequestDuration,
		m.LLMRequestCounter,
		m.ToolExecutionCounter,
		m.ToolExecutionDuration,
		m.MemorySearchCounter,
		m.EmbeddingFailures,
		m.ThoughtBufferSize,
	)
	return m
}

// Handler returns an HTTP handler serving the metrics in Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
