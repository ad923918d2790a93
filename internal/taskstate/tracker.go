// ============================================================================
// stepflow task state tracker
// ============================================================================
//
// Package: internal/taskstate
// File: tracker.go
// Purpose: Tracks every task of one scheduling run through its lifecycle
//
// State machine:
//   Pending
//      ↓ MarkReady()       last prerequisite retired
//   Ready
//      ↓ MarkInProgress()  a worker slot is free and the task wins the tie-break
//   InProgress
//      ↓ MarkDone()        simulated clock reaches the finish tick
//   Done
//
// Data layout:
//   status map[T]TaskStatus - single source of truth for each task
//   records map[T]*record   - start/finish ticks once a task is started
//   counts                  - per-status counters so Remaining() is O(1)
//
// Ownership:
//   A Tracker belongs to exactly one run and is never shared, so it carries no
//   lock. Runs that need concurrency create their own Tracker.
//
// ============================================================================

package taskstate

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/ChuLiYu/stepflow/pkg/types"
)

var (
	// ErrTaskNotFound is returned for a task outside the tracked set.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNotPending is returned when a non-pending task is marked ready.
	ErrNotPending = errors.New("task not pending")
	// ErrNotReady is returned when a task that is not ready is started.
	ErrNotReady = errors.New("task not ready")
	// ErrNotInProgress is returned when a task that is not running is finished.
	ErrNotInProgress = errors.New("task not in progress")
)

type record struct {
	start  int
	finish int
}

// Tracker holds the lifecycle state of every task in one run.
type Tracker[T cmp.Ordered] struct {
	status  map[T]types.TaskStatus
	records map[T]*record
	counts  map[types.TaskStatus]int
}

// New returns a Tracker with every task Pending.
func New[T cmp.Ordered](tasks []T) *Tracker[T] {
	tr := &Tracker[T]{
		status:  make(map[T]types.TaskStatus, len(tasks)),
		records: make(map[T]*record, len(tasks)),
		counts:  make(map[types.TaskStatus]int, 4),
	}
	for _, t := range tasks {
		if _, ok := tr.status[t]; ok {
			continue
		}
		tr.status[t] = types.StatusPending
		tr.counts[types.StatusPending]++
	}
	return tr
}

func (tr *Tracker[T]) transition(t T, from, to types.TaskStatus, wrong error) error {
	cur, ok := tr.status[t]
	if !ok {
		return fmt.Errorf("%w: %v", ErrTaskNotFound, t)
	}
	if cur != from {
		return fmt.Errorf("%w: %v is %s", wrong, t, cur)
	}
	tr.status[t] = to
	tr.counts[from]--
	tr.counts[to]++
	return nil
}

// MarkReady moves a task from Pending to Ready.
func (tr *Tracker[T]) MarkReady(t T) error {
	return tr.transition(t, types.StatusPending, types.StatusReady, ErrNotPending)
}

// MarkInProgress binds a Ready task to a worker from start until finish.
func (tr *Tracker[T]) MarkInProgress(t T, start, finish int) error {
	if err := tr.transition(t, types.StatusReady, types.StatusInProgress, ErrNotReady); err != nil {
		return err
	}
	tr.records[t] = &record{start: start, finish: finish}
	return nil
}

// MarkDone completes an InProgress task.
func (tr *Tracker[T]) MarkDone(t T) error {
	return tr.transition(t, types.StatusInProgress, types.StatusDone, ErrNotInProgress)
}

// Status returns the current status of t and whether it is tracked.
func (tr *Tracker[T]) Status(t T) (types.TaskStatus, bool) {
	s, ok := tr.status[t]
	return s, ok
}

// Remaining returns how many tasks have not reached Done.
func (tr *Tracker[T]) Remaining() int {
	return len(tr.status) - tr.counts[types.StatusDone]
}

// InProgress returns how many tasks currently occupy a worker.
func (tr *Tracker[T]) InProgress() int {
	return tr.counts[types.StatusInProgress]
}

// Unfinished returns every task not yet Done, ascending.
func (tr *Tracker[T]) Unfinished() []T {
	var out []T
	for t, s := range tr.status {
		if s != types.StatusDone {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

// Stats returns the number of tasks in each status.
func (tr *Tracker[T]) Stats() map[string]int {
	return map[string]int{
		string(types.StatusPending):    tr.counts[types.StatusPending],
		string(types.StatusReady):      tr.counts[types.StatusReady],
		string(types.StatusInProgress): tr.counts[types.StatusInProgress],
		string(types.StatusDone):       tr.counts[types.StatusDone],
	}
}

// Timeline returns every started task ordered by start tick, then task.
func (tr *Tracker[T]) Timeline() []types.ScheduledTask[T] {
	out := make([]types.ScheduledTask[T], 0, len(tr.records))
	for t, r := range tr.records {
		out = append(out, types.ScheduledTask[T]{Task: t, Start: r.start, Finish: r.finish})
	}
	slices.SortFunc(out, func(a, b types.ScheduledTask[T]) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.Task, b.Task)
	})
	return out
}
