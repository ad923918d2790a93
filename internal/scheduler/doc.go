// Package scheduler computes schedules for a set of tasks linked by
// precedence edges.
//
// It has two modes over the same graph:
//
//   - Order produces the canonical serial order: repeatedly take the smallest
//     ready task, retire it, and recompute readiness. ComputeOrder is the
//     edge-list entry point.
//   - Simulate runs a discrete-event simulation with a fixed number of
//     anonymous workers and a deterministic duration per task, and reports
//     the makespan and timeline. ComputeMakespan is the edge-list entry point.
//
// Both modes are single-threaded and own all of their state for the duration
// of one call. A cyclic edge set is reported as ErrCyclicDependency instead
// of looping forever, and a worker count below one or a negative duration is
// reported as ErrInvalidConfiguration.
package scheduler
