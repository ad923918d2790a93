// ============================================================================
// stepflow Controller - run coordinator
// ============================================================================
//
// Package: internal/controller
// File: controller.go
// Function: Runs scheduling requests end to end
//
// Responsibilities:
//   1. Build the dependency graph and call the scheduler (order or makespan)
//   2. Journal every run to the WAL (RUN, ORDER, START, FINISH events)
//   3. Record Prometheus metrics for successes and failures
//   4. Persist the latest PlanReport through the snapshot manager
//   5. Replay a simulated schedule on the worker pool (execute.go)
//
// Run lifecycle:
//   RUN event -> scheduler -> per task events -> flush -> report -> metrics
//   A rejected run still flushes its RUN event so the journal shows the attempt.
//
// Concurrency:
//   Runs are serialised by mu; the scheduler core itself keeps no shared
//   state, so the lock only protects the journal and the report file.
//
// ============================================================================

package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ChuLiYu/stepflow/internal/graph"
	"github.com/ChuLiYu/stepflow/internal/metrics"
	"github.com/ChuLiYu/stepflow/internal/scheduler"
	"github.com/ChuLiYu/stepflow/internal/snapshot"
	"github.com/ChuLiYu/stepflow/internal/storage/wal"
	"github.com/ChuLiYu/stepflow/pkg/types"
)

var log = slog.Default()

// ErrClosed is returned by runs started after Close.
var ErrClosed = errors.New("controller is closed")

// Config controls the controller.
type Config struct {
	Workers        int           // default worker count for makespan and execute
	DurationPolicy string        // letter, rank or unit
	DurationBase   int           // added to every policy duration except unit
	Tick           time.Duration // wall time of one tick during execute
	TaskTimeout    time.Duration // per task deadline during execute, zero means none
	WALPath        string        // journal file, empty disables journaling
	WALBufferSize  int           // buffered journal events before a flush
	WALSync        bool          // fsync on every journal flush
	ReportPath     string        // report file, empty disables reports
	ReportBackups  int           // previous reports kept next to ReportPath
}

// Options are the per-run scheduling parameters.
type Options struct {
	Workers int    // concurrent worker slots
	Policy  string // duration policy name
	Base    int    // duration base
}

// Controller coordinates scheduling runs.
type Controller struct {
	mu       sync.Mutex         // serialises runs
	wal      *wal.WAL           // nil when journaling is disabled
	snapshot *snapshot.Manager  // nil when reports are disabled
	metrics  *metrics.Collector // nil when metrics are disabled
	config   Config
	closed   bool
}

// NewController opens the journal and report store named in config.
// m may be nil.
func NewController(config Config, m *metrics.Collector) (*Controller, error) {
	c := &Controller{
		config:  config,
		metrics: m,
	}

	if config.WALPath != "" {
		w, err := wal.NewWAL(config.WALPath, config.WALSync, config.WALBufferSize)
		if err != nil {
			return nil, fmt.Errorf("failed to open WAL: %w", err)
		}
		c.wal = w
	}
	if config.ReportPath != "" {
		c.snapshot = snapshot.NewManager(config.ReportPath)
	}

	log.Debug("Controller created",
		"wal", config.WALPath,
		"report", config.ReportPath,
		"workers", config.Workers)
	return c, nil
}

// DefaultOptions returns the scheduling options from the controller config.
func (c *Controller) DefaultOptions() Options {
	return Options{
		Workers: c.config.Workers,
		Policy:  c.config.DurationPolicy,
		Base:    c.config.DurationBase,
	}
}

// Order computes the canonical order of the tasks in edges plus isolated.
func (c *Controller) Order(edges []types.Edge[types.TaskID], isolated []types.TaskID) (*types.PlanReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	run := c.beginRun(types.ModeOrder)
	g := graph.New(edges, isolated...)

	start := time.Now()
	order, err := scheduler.Order(g, run)
	elapsed := time.Since(start)
	if err != nil {
		return nil, c.failRun(run, err)
	}

	report := run.report(g.Len())
	report.Order = order
	if err := c.finishRun(run, report, elapsed); err != nil {
		return nil, err
	}
	return report, nil
}

// Makespan simulates the tasks in edges plus isolated on opts.Workers workers.
func (c *Controller) Makespan(edges []types.Edge[types.TaskID], isolated []types.TaskID, opts Options) (*types.PlanReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	run := c.beginRun(types.ModeMakespan)
	sched, g, elapsed, err := c.simulate(run, edges, isolated, opts)
	if err != nil {
		return nil, c.failRun(run, err)
	}

	report := run.report(g.Len())
	fillSchedule(report, sched)
	if err := c.finishRun(run, report, elapsed); err != nil {
		return nil, err
	}
	return report, nil
}

// LastReport returns the most recently persisted report.
func (c *Controller) LastReport() (types.PlanReport, error) {
	if c.snapshot == nil {
		return types.PlanReport{}, snapshot.ErrSnapshotNotFound
	}
	return c.snapshot.Load()
}

// Close flushes and closes the journal. Later runs fail with ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.wal != nil {
		if err := c.wal.Close(); err != nil {
			return fmt.Errorf("failed to close WAL: %w", err)
		}
	}
	log.Info("Controller closed")
	return nil
}

// ============================================================================
// Run helpers
// ============================================================================

func (c *Controller) simulate(run *runJournal, edges []types.Edge[types.TaskID], isolated []types.TaskID, opts Options) (*scheduler.Schedule[types.TaskID], *graph.Graph[types.TaskID], time.Duration, error) {
	g := graph.New(edges, isolated...)

	fn, err := scheduler.PolicyByName(opts.Policy, opts.Base, g.Tasks())
	if err != nil {
		return nil, nil, 0, err
	}

	start := time.Now()
	sched, err := scheduler.Simulate(g, scheduler.Config[types.TaskID]{
		Workers:  opts.Workers,
		Duration: fn,
		Observer: run,
	})
	if err != nil {
		return nil, nil, 0, err
	}
	return sched, g, time.Since(start), nil
}

func fillSchedule(report *types.PlanReport, sched *scheduler.Schedule[types.TaskID]) {
	report.Workers = sched.Workers
	report.Makespan = sched.Makespan
	report.Order = sched.StartOrder()
	report.Timeline = sched.Timeline
}

func (c *Controller) beginRun(mode string) *runJournal {
	run := &runJournal{
		id:      uuid.NewString(),
		mode:    mode,
		wal:     c.wal,
		created: time.Now(),
	}
	run.append(wal.EventRun, mode, 0)
	return run
}

// failRun flushes the journal, counts the failure and returns err unchanged.
func (c *Controller) failRun(run *runJournal, err error) error {
	if flushErr := run.flush(); flushErr != nil {
		log.Warn("Failed to flush journal", "run", run.id, "error", flushErr)
	}

	reason := failureReason(err)
	if c.metrics != nil {
		c.metrics.RecordFailure(reason)
	}
	log.Warn("Run rejected", "run", run.id, "mode", run.mode, "reason", reason, "error", err)
	return err
}

func (c *Controller) finishRun(run *runJournal, report *types.PlanReport, elapsed time.Duration) error {
	if err := run.flush(); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}

	if c.snapshot != nil {
		if err := c.snapshot.WriteWithBackup(*report, c.config.ReportBackups); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if c.metrics != nil {
		c.metrics.RecordRun(run.mode, report.Tasks, elapsed.Seconds())
		if run.mode != types.ModeOrder {
			c.metrics.SetMakespan(report.Makespan)
		}
	}

	log.Info("Run completed",
		"run", run.id,
		"mode", run.mode,
		"tasks", report.Tasks,
		"makespan", report.Makespan,
		"duration", elapsed)
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.ReasonCancelled
	case errors.Is(err, scheduler.ErrInvalidConfiguration):
		return metrics.ReasonInvalidConfig
	case errors.Is(err, scheduler.ErrCyclicDependency):
		return metrics.ReasonCycle
	default:
		return metrics.ReasonExecution
	}
}

// RejectInput records a request that could not be decoded before any run
// began.
func (c *Controller) RejectInput(source string, err error) {
	if c.metrics != nil {
		c.metrics.RecordFailure(metrics.ReasonInput)
	}
	log.Warn("Rejected input", "source", source, "error", err)
}

// OptionsFor overlays the fields set in req on DefaultOptions.
func (c *Controller) OptionsFor(req types.PlanRequest) Options {
	opts := c.DefaultOptions()
	if req.Workers != nil {
		opts.Workers = *req.Workers
	}
	if req.Policy != "" {
		opts.Policy = req.Policy
	}
	if req.Base != nil {
		opts.Base = *req.Base
	}
	return opts
}

// Ready returns the tasks that can start once completed have finished.
func (c *Controller) Ready(req types.PlanRequest) ([]types.TaskID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	ready := graph.ReadyAfter(req.Edges, req.Tasks, req.Completed)
	if ready == nil {
		ready = []types.TaskID{}
	}
	return ready, nil
}
