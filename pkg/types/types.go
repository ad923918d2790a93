// Package types defines the core domain model shared by stepflow's packages.
package types

import (
	"cmp"
)

// TaskID identifies a task in the outer layers (CLI, RPC, journal).
// The scheduling core itself is generic over any ordered token.
type TaskID string

// TaskStatus is the lifecycle state of a task inside one scheduling run.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"     // at least one prerequisite has not finished
	StatusReady      TaskStatus = "ready"       // prerequisites satisfied, waiting for a worker
	StatusInProgress TaskStatus = "in_progress" // bound to a worker until its finish tick
	StatusDone       TaskStatus = "done"        // finish tick reached
)

// Run modes recorded in reports and metrics.
const (
	ModeOrder    = "order"
	ModeMakespan = "makespan"
	ModeExecute  = "execute"
)

// Edge is a precedence constraint: Dependent cannot start until
// Prerequisite has completed.
type Edge[T cmp.Ordered] struct {
	Prerequisite T `json:"before" yaml:"before"`
	Dependent    T `json:"after" yaml:"after"`
}

// NewEdge builds an Edge from a (before, after) pair.
func NewEdge[T cmp.Ordered](before, after T) Edge[T] {
	return Edge[T]{Prerequisite: before, Dependent: after}
}

// ScheduledTask is one row of a simulated timeline.
type ScheduledTask[T cmp.Ordered] struct {
	Task   T   `json:"task"`
	Start  int `json:"start"`  // tick the task was bound to a worker
	Finish int `json:"finish"` // tick the task completed
}

// PlanReport is the persisted outcome of a single scheduling run.
type PlanReport struct {
	RunID     string                  `json:"run_id"`
	Mode      string                  `json:"mode"`
	CreatedAt int64                   `json:"created_at"` // Unix milliseconds
	Tasks     int                     `json:"tasks"`
	Order     []TaskID                `json:"order"`
	Workers   int                     `json:"workers,omitempty"`
	Makespan  int                     `json:"makespan,omitempty"`
	Timeline  []ScheduledTask[TaskID] `json:"timeline,omitempty"`
	ElapsedMs int64                   `json:"elapsed_ms,omitempty"` // wall time of an execute run
	SchemaVer int                     `json:"schema_ver"`
}

// ExecutionResult records how one task behaved when replayed on real workers.
type ExecutionResult struct {
	Task       TaskID `json:"task"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// PlanRequest is the body of an order, makespan or ready request over RPC
// or HTTP. Pointer fields distinguish "not given" from zero.
type PlanRequest struct {
	Edges     []Edge[TaskID] `json:"edges"`
	Tasks     []TaskID       `json:"tasks,omitempty"`     // isolated tasks
	Workers   *int           `json:"workers,omitempty"`   // makespan only
	Policy    string         `json:"policy,omitempty"`    // makespan only
	Base      *int           `json:"base,omitempty"`      // makespan only
	Completed []TaskID       `json:"completed,omitempty"` // ready only
}

// ReadyResponse lists the tasks ready once the completed set has finished.
type ReadyResponse struct {
	Ready []TaskID `json:"ready"`
}
