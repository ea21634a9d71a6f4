package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// Tracked here:
//   - LLM request performance, status, and token consumption
//   - Tool execution patterns and latencies
//   - Task outcomes per function, and worker states
//   - Callback delivery sizes and paths (inline vs upload)
//   - HTTP surface latency
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordTask("agent_run", "success", time.Since(start).Seconds())
type Metrics struct {
	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by model and status.
	// Labels: model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// TaskCounter counts finished tasks.
	// Labels: function, status (success|failed|canceled)
	TaskCounter *prometheus.CounterVec

	// TaskDuration measures task execution time in seconds.
	// Labels: function
	TaskDuration *prometheus.HistogramVec

	// WorkerState gauges workers per state.
	// Labels: state (idle|running|error)
	WorkerState *prometheus.GaugeVec

	// CallbackBytes observes serialized callback payload sizes.
	// Labels: path (inline|upload|summary)
	CallbackBytes *prometheus.HistogramVec

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts HTTP requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by component and kind.
	// Labels: component (agent|worker|callback|llm|retrieval), error_type
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup; collectors register
// with the default registry and surface at /metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wizard_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wizard_llm_requests_total",
				Help: "Total number of LLM requests by model and status",
			},
			[]string{"model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wizard_llm_tokens_total",
				Help: "Total number of tokens used by model and type",
			},
			[]string{"model", "type"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wizard_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wizard_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		TaskCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wizard_tasks_total",
				Help: "Total number of finished tasks by function and status",
			},
			[]string{"function", "status"},
		),

		TaskDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wizard_task_duration_seconds",
				Help:    "Duration of task executions in seconds",
				Buckets: []float64{0.1, 1, 5, 30, 60, 300, 600, 1800},
			},
			[]string{"function"},
		),

		WorkerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wizard_workers",
				Help: "Current number of workers per state",
			},
			[]string{"state"},
		),

		CallbackBytes: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wizard_callback_payload_bytes",
				Help:    "Serialized callback payload sizes by delivery path",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
			[]string{"path"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wizard_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wizard_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wizard_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
	}
}

// RecordLLMRequest records metrics for an LLM API request.
func (m *Metrics) RecordLLMRequest(model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordTask records a finished task.
func (m *Metrics) RecordTask(function, status string, durationSeconds float64) {
	m.TaskCounter.WithLabelValues(function, status).Inc()
	m.TaskDuration.WithLabelValues(function).Observe(durationSeconds)
}

// RecordWorkerState moves a worker between state gauges.
func (m *Metrics) RecordWorkerState(from, to string) {
	if from != "" {
		m.WorkerState.WithLabelValues(from).Dec()
	}
	if to != "" {
		m.WorkerState.WithLabelValues(to).Inc()
	}
}

// RecordCallback observes a callback payload size on the given path.
func (m *Metrics) RecordCallback(path string, bytes int) {
	m.CallbackBytes.WithLabelValues(path).Observe(float64(bytes))
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}

// RecordError increments the error counter for a component and error kind.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}
