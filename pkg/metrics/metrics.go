// Package metrics holds the Prometheus collectors for workflow executions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nodebase"

type Metrics struct {
	registry           *prometheus.Registry
	nodeExecutions     *prometheus.CounterVec
	executionDuration  *prometheus.HistogramVec
	stepRetries        *prometheus.CounterVec
	executionsInFlight prometheus.Gauge
}

// New registers the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		nodeExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_executions_total",
				Help:      "Node executions by node type and terminal status.",
			},
			[]string{"node_type", "status"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Workflow execution duration by final status.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"status"},
		),
		stepRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_retries_total",
				Help:      "Retried step attempts by step name.",
			},
			[]string{"step"},
		),
		executionsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "executions_in_flight",
			Help:      "Executions currently being traversed.",
		}),
	}

	m.registry.MustRegister(
		m.nodeExecutions,
		m.executionDuration,
		m.stepRetries,
		m.executionsInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) NodeExecuted(nodeType, status string) {
	m.nodeExecutions.WithLabelValues(nodeType, status).Inc()
}

// ExecutionStarted marks an execution in flight and returns the function that
// records its duration under the final status.
func (m *Metrics) ExecutionStarted() func(status string) {
	start := time.Now()

	m.executionsInFlight.Inc()

	return func(status string) {
		m.executionsInFlight.Dec()
		m.executionDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) StepRetried(step string) {
	m.stepRetries.WithLabelValues(step).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
