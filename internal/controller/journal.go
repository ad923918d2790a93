package controller

import (
	"errors"
	"time"

	"github.com/ChuLiYu/stepflow/internal/snapshot"
	"github.com/ChuLiYu/stepflow/internal/storage/wal"
	"github.com/ChuLiYu/stepflow/pkg/types"
)

// runJournal is the scheduler.Observer of one run. It writes each event to
// the WAL and remembers the simulated start sequence for execute replays.
type runJournal struct {
	id      string
	mode    string
	wal     *wal.WAL // nil disables journaling
	created time.Time
	started []types.ScheduledTask[types.TaskID] // in the order the simulation started them
	err     error                               // first journal error
}

func (r *runJournal) TaskOrdered(task types.TaskID, position int) {
	r.append(wal.EventOrder, string(task), position)
}

func (r *runJournal) TaskStarted(task types.TaskID, start, finish int) {
	r.started = append(r.started, types.ScheduledTask[types.TaskID]{Task: task, Start: start, Finish: finish})
	r.append(wal.EventStart, string(task), start)
}

func (r *runJournal) TaskFinished(task types.TaskID, at int) {
	r.append(wal.EventFinish, string(task), at)
}

func (r *runJournal) append(eventType wal.EventType, task string, tick int) {
	if r.wal == nil || r.err != nil {
		return
	}
	r.err = r.wal.Append(eventType, r.id, task, tick, false)
}

// flush writes buffered events and reports the first journal error.
func (r *runJournal) flush() error {
	if r.wal == nil {
		return r.err
	}
	return errors.Join(r.err, r.wal.Flush())
}

func (r *runJournal) report(tasks int) *types.PlanReport {
	return &types.PlanReport{
		RunID:     r.id,
		Mode:      r.mode,
		CreatedAt: r.created.UnixMilli(),
		Tasks:     tasks,
		SchemaVer: snapshot.SchemaVersion,
	}
}
