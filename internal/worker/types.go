package worker

import (
	"context"
	"time"

	"github.com/ChuLiYu/stepflow/pkg/types"
)

// Task is one scheduled task handed to a worker.
type Task struct {
	ID      types.TaskID  // task identifier
	Ticks   int           // simulated duration in ticks
	Timeout time.Duration // execution deadline, zero means none
}

// Result is the outcome of executing a Task.
type Result struct {
	Task     types.TaskID  // task identifier
	Success  bool          // whether the executor returned nil
	Error    error         // executor error, if any
	Duration time.Duration // wall time spent executing
}

// Executor performs the work of one task. It must honour ctx cancellation.
type Executor func(ctx context.Context, task Task) error
