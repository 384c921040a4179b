package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	pendingDepth  *prometheus.GaugeVec
	activeRunners prometheus.Gauge
	enqueueTotal  *prometheus.CounterVec
	droppedTotal  *prometheus.CounterVec
	batchTotal    *prometheus.CounterVec
	batchSize     prometheus.Histogram

	agentRunTotal      *prometheus.CounterVec
	agentRunDuration   *prometheus.HistogramVec
	agentIterations    prometheus.Histogram
	planParseFailTotal *prometheus.CounterVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	modelBlocked     *prometheus.GaugeVec
	rateLimitedTotal *prometheus.CounterVec

	reminderRunTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			pendingDepth: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "inbound_pending_depth",
					Help: "Pending inbound messages by coordinator key.",
				},
				[]string{"key"},
			),
			activeRunners: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "inbound_active_runners",
					Help: "Coordinator keys with an active runner.",
				},
			),
			enqueueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "inbound_enqueue_total",
					Help: "Total inbound messages accepted by outcome (started, queued).",
				},
				[]string{"outcome"},
			),
			droppedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "inbound_dropped_total",
					Help: "Total inbound messages displaced by the drop policy.",
				},
				[]string{"policy"},
			),
			batchTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "inbound_batch_total",
					Help: "Total inbound batches handed to the agent by origin (first, drained).",
				},
				[]string{"origin"},
			),
			batchSize: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "inbound_batch_size",
					Help:    "Messages per inbound batch.",
					Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
				},
			),
			agentRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_run_total",
					Help: "Total agent runs by provider and status.",
				},
				[]string{"provider", "status"},
			),
			agentRunDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agent_run_duration_seconds",
					Help:    "Agent run duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			agentIterations: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "agent_iterations",
					Help:    "Model invocations per agent run.",
					Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
				},
			),
			planParseFailTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "plan_parse_failures_total",
					Help: "Total plan/route parse failures by payload kind.",
				},
				[]string{"kind"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			modelBlocked: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "model_blocked",
					Help: "Rate-limit block active state by provider and model (1 blocked).",
				},
				[]string{"provider", "model"},
			),
			rateLimitedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "model_rate_limited_total",
					Help: "Total rate-limit events by provider and model.",
				},
				[]string{"provider", "model"},
			),
			reminderRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reminder_run_total",
					Help: "Total nightly reminder runs by status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.pendingDepth,
			m.activeRunners,
			m.enqueueTotal,
			m.droppedTotal,
			m.batchTotal,
			m.batchSize,
			m.agentRunTotal,
			m.agentRunDuration,
			m.agentIterations,
			m.planParseFailTotal,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.modelBlocked,
			m.rateLimitedTotal,
			m.reminderRunTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler returns the HTTP handler serving the metrics endpoint.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// SetPendingDepth records the pending queue depth for a coordinator key.
func SetPendingDepth(key string, depth int) {
	getMetrics().pendingDepth.WithLabelValues(key).Set(float64(depth))
}

// SetActiveRunners records the number of keys with an active runner.
func SetActiveRunners(n int) {
	getMetrics().activeRunners.Set(float64(n))
}

// RecordEnqueue records an accepted inbound message.
func RecordEnqueue(outcome string) {
	getMetrics().enqueueTotal.WithLabelValues(outcome).Inc()
}

// RecordDropped records messages displaced by a drop policy.
func RecordDropped(policy string, n int) {
	getMetrics().droppedTotal.WithLabelValues(policy).Add(float64(n))
}

// RecordBatch records a batch handed off for processing.
func RecordBatch(origin string, size int) {
	m := getMetrics()
	m.batchTotal.WithLabelValues(origin).Inc()
	m.batchSize.Observe(float64(size))
}

// RecordAgentRun records an agent run outcome.
func RecordAgentRun(provider string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m := getMetrics()
	m.agentRunTotal.WithLabelValues(provider, status).Inc()
	m.agentRunDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordAgentIterations records how many model invocations a run used.
func RecordAgentIterations(n int) {
	getMetrics().agentIterations.Observe(float64(n))
}

// RecordParseFailure records a plan or route parse failure.
func RecordParseFailure(kind string) {
	getMetrics().planParseFailTotal.WithLabelValues(kind).Inc()
}

// RecordToolExecution records a tool execution outcome.
func RecordToolExecution(tool string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// SetModelBlocked records the block state for a provider+model pair.
func SetModelBlocked(provider, model string, blocked bool) {
	v := 0.0
	if blocked {
		v = 1.0
	}
	getMetrics().modelBlocked.WithLabelValues(provider, model).Set(v)
}

// RecordRateLimited records a rate-limit event for a provider+model pair.
func RecordRateLimited(provider, model string) {
	getMetrics().rateLimitedTotal.WithLabelValues(provider, model).Inc()
}

// RecordReminderRun records a nightly reminder run.
func RecordReminderRun(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	getMetrics().reminderRunTotal.WithLabelValues(status).Inc()
}
