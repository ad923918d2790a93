package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ChuLiYu/stepflow/internal/worker"
	"github.com/ChuLiYu/stepflow/pkg/types"
)

// ErrExecutionFailed is returned by Execute when at least one task failed.
var ErrExecutionFailed = errors.New("task execution failed")

// Execute simulates the run, then replays the simulated schedule on a real
// worker pool of opts.Workers goroutines. Tasks are submitted in the order
// the simulation started them; before a task starting at tick t is
// submitted, every earlier task due to finish by t must have reported.
// The returned report carries the simulated makespan and the wall time.
func (c *Controller) Execute(ctx context.Context, edges []types.Edge[types.TaskID], isolated []types.TaskID, opts Options, exec worker.Executor) (*types.PlanReport, []types.ExecutionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, nil, ErrClosed
	}
	if exec == nil {
		exec = worker.SleepExecutor(c.config.Tick)
	}

	run := c.beginRun(types.ModeExecute)
	sched, g, elapsed, err := c.simulate(run, edges, isolated, opts)
	if err != nil {
		return nil, nil, c.failRun(run, err)
	}

	wallStart := time.Now()
	results, err := c.replay(ctx, run.started, opts.Workers, exec)
	if err != nil {
		return nil, results, c.failRun(run, err)
	}

	report := run.report(g.Len())
	fillSchedule(report, sched)
	report.ElapsedMs = time.Since(wallStart).Milliseconds()
	if err := c.finishRun(run, report, elapsed); err != nil {
		return nil, results, err
	}
	return report, results, nil
}

// replay runs rows on a pool of workers goroutines and returns one result per
// row, in row order.
func (c *Controller) replay(ctx context.Context, rows []types.ScheduledTask[types.TaskID], workers int, exec worker.Executor) ([]types.ExecutionResult, error) {
	pool := worker.NewPool(len(rows) + 1)
	if err := pool.StartContext(ctx, workers, c.instrument(exec)); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}
	defer pool.Stop()

	done := make(map[types.TaskID]worker.Result, len(rows))
	receive := func() error {
		result, err := pool.ReceiveResult(ctx)
		if err != nil {
			return err
		}
		done[result.Task] = result
		if c.metrics != nil {
			c.metrics.RecordTaskResult(result.Success)
		}
		if !result.Success {
			log.Warn("Task failed", "task", result.Task, "error", result.Error)
		}
		return nil
	}

	for i, row := range rows {
		// Wait for everything the simulation had finished by this start tick.
		for _, prev := range rows[:i] {
			for prev.Finish <= row.Start {
				if _, ok := done[prev.Task]; ok {
					break
				}
				if err := receive(); err != nil {
					return collect(rows, done), err
				}
			}
		}

		task := worker.Task{ID: row.Task, Ticks: row.Finish - row.Start, Timeout: c.config.TaskTimeout}
		if err := pool.Submit(task); err != nil {
			return collect(rows, done), fmt.Errorf("failed to submit %s: %w", row.Task, err)
		}
		log.Debug("Task submitted", "task", row.Task, "tick", row.Start)
	}

	for len(done) < len(rows) {
		if err := receive(); err != nil {
			return collect(rows, done), err
		}
	}

	results := collect(rows, done)
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		return results, fmt.Errorf("%w: %d of %d tasks", ErrExecutionFailed, failed, len(results))
	}
	return results, nil
}

// instrument tracks busy workers around exec.
func (c *Controller) instrument(exec worker.Executor) worker.Executor {
	if c.metrics == nil {
		return exec
	}
	return func(ctx context.Context, task worker.Task) error {
		c.metrics.WorkerBusy()
		defer c.metrics.WorkerIdle()
		return exec(ctx, task)
	}
}

func collect(rows []types.ScheduledTask[types.TaskID], done map[types.TaskID]worker.Result) []types.ExecutionResult {
	out := make([]types.ExecutionResult, 0, len(done))
	for _, row := range rows {
		r, ok := done[row.Task]
		if !ok {
			continue
		}
		er := types.ExecutionResult{
			Task:       r.Task,
			Success:    r.Success,
			DurationMs: r.Duration.Milliseconds(),
		}
		if r.Error != nil {
			er.Error = r.Error.Error()
		}
		out = append(out, er)
	}
	return out
}
