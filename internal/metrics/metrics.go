// ============================================================================
// stepflow Metrics - Prometheus instrumentation
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Function: Collect and expose scheduler metrics for Prometheus
//
// Metrics:
//
//   1. Counters:
//      - stepflow_runs_total{mode}: completed runs per mode (order, makespan, execute)
//      - stepflow_failures_total{reason}: rejected runs (invalid_config, cycle, execution)
//      - stepflow_tasks_scheduled_total: tasks placed by successful runs
//      - stepflow_tasks_executed_total{result}: replayed tasks (success, failure)
//
//   2. Histogram:
//      - stepflow_planning_seconds: time spent computing an order or schedule
//
//   3. Gauges:
//      - stepflow_last_makespan_ticks: makespan of the latest makespan/execute run
//      - stepflow_busy_workers: workers executing a task during a replay
//
// Example queries:
//
//   # cycle rejections per minute
//   rate(stepflow_failures_total{reason="cycle"}[1m])
//
//   # 95th percentile planning latency
//   histogram_quantile(0.95, rate(stepflow_planning_seconds_bucket[5m]))
//
// HTTP endpoint:
//   /metrics, default port 9090
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Failure reasons.
const (
	ReasonInvalidConfig = "invalid_config"
	ReasonCycle         = "cycle"
	ReasonExecution     = "execution"
	ReasonInput         = "input"
	ReasonCancelled     = "cancelled"
)

// Collector holds the scheduler's Prometheus metrics.
type Collector struct {
	// run metrics
	runs           *prometheus.CounterVec
	failures       *prometheus.CounterVec
	tasksScheduled prometheus.Counter
	planning       prometheus.Histogram

	// execution metrics
	tasksExecuted *prometheus.CounterVec
	lastMakespan  prometheus.Gauge
	busyWorkers   prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewCollector creates the metrics and registers them with
// prometheus.DefaultRegisterer.
func NewCollector() *Collector {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stepflow_runs_total",
			Help: "Total number of successful scheduling runs",
		}, []string{"mode"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stepflow_failures_total",
			Help: "Total number of rejected scheduling runs",
		}, []string{"reason"}),
		tasksScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stepflow_tasks_scheduled_total",
			Help: "Total number of tasks placed by successful runs",
		}),
		planning: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stepflow_planning_seconds",
			Help:    "Time spent computing an order or a schedule",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		tasksExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stepflow_tasks_executed_total",
			Help: "Total number of tasks replayed on workers",
		}, []string{"result"}),
		lastMakespan: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stepflow_last_makespan_ticks",
			Help: "Makespan of the most recent simulation",
		}),
		busyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stepflow_busy_workers",
			Help: "Workers currently executing a task",
		}),
		gatherer: prometheus.DefaultGatherer,
	}

	prometheus.MustRegister(
		c.runs,
		c.failures,
		c.tasksScheduled,
		c.planning,
		c.tasksExecuted,
		c.lastMakespan,
		c.busyWorkers,
	)

	// Serve whatever registry the metrics were registered with.
	if g, ok := prometheus.DefaultRegisterer.(prometheus.Gatherer); ok {
		c.gatherer = g
	}
	return c
}

// RecordRun records a successful run of the given mode.
func (c *Collector) RecordRun(mode string, tasks int, planningSeconds float64) {
	c.runs.WithLabelValues(mode).Inc()
	c.tasksScheduled.Add(float64(tasks))
	c.planning.Observe(planningSeconds)
}

// RecordFailure records a rejected run.
func (c *Collector) RecordFailure(reason string) {
	c.failures.WithLabelValues(reason).Inc()
}

// SetMakespan records the makespan of the latest simulation.
func (c *Collector) SetMakespan(ticks int) {
	c.lastMakespan.Set(float64(ticks))
}

// WorkerBusy and WorkerIdle track workers executing during a replay.
func (c *Collector) WorkerBusy() { c.busyWorkers.Inc() }
func (c *Collector) WorkerIdle() { c.busyWorkers.Dec() }

// RecordTaskResult records the outcome of one replayed task.
func (c *Collector) RecordTaskResult(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.tasksExecuted.WithLabelValues(result).Inc()
}

// Handler serves the registry this collector was registered with.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on port. It blocks until the server fails.
func (c *Collector) StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, mux)
}
