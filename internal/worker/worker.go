// ============================================================================
// stepflow Worker - Task Execution Unit
// ============================================================================
//
// Package: internal/worker
// File: worker.go
// Function: Runs tasks from the shared channel, one goroutine per worker
//
// How it works:
//   Each Worker loops until taskCh is closed:
//   1. Receive task from taskCh
//   2. Execute it through the pool's Executor under the pool context,
//      bounded by task.Timeout
//   3. Send the Result to resultCh
//
// Error Handling:
//   - Timeout: ctx.Err() returns DeadlineExceeded
//   - Pool stopped or its parent context ended: ctx.Err() returns Canceled
//   - A panicking executor is reported as a failed Result
//
// ============================================================================

package worker

import (
	"context"
	"fmt"
	"time"
)

// Worker is a single execution slot.
type Worker struct {
	id       int             // used for logging
	ctx      context.Context // pool context, cancelled by Stop
	execute  Executor        // task body
	taskCh   <-chan Task     // shared task channel
	resultCh chan<- Result   // shared result channel
	stopCh   <-chan struct{}
}

func newWorker(ctx context.Context, id int, execute Executor, taskCh <-chan Task, resultCh chan<- Result, stopCh <-chan struct{}) *Worker {
	return &Worker{
		id:       id,
		ctx:      ctx,
		execute:  execute,
		taskCh:   taskCh,
		resultCh: resultCh,
		stopCh:   stopCh,
	}
}

// Run receives tasks until the task channel is closed.
func (w *Worker) Run() {
	for task := range w.taskCh {
		start := time.Now()
		err := w.runOne(task)

		result := Result{
			Task:     task.ID,
			Success:  err == nil,
			Error:    err,
			Duration: time.Since(start),
		}

		select {
		case w.resultCh <- result:
		case <-w.stopCh:
			// Pool is shutting down and nobody is reading results.
			log.Warn("dropping result after stop", "worker", w.id, "task", task.ID)
		}
	}
}

func (w *Worker) runOne(task Task) (err error) {
	ctx := w.ctx
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.ID, r)
		}
	}()
	return w.execute(ctx, task)
}

// SleepExecutor returns an Executor that sleeps task.Ticks × tick, stopping
// early if the context ends.
func SleepExecutor(tick time.Duration) Executor {
	return func(ctx context.Context, task Task) error {
		timer := time.NewTimer(time.Duration(task.Ticks) * tick)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}
