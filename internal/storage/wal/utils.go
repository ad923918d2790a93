package wal

// ============================================================================
// WAL utilities
// Responsibility: inspection helpers used by the CLI and tests
// ============================================================================

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/ChuLiYu/stepflow/pkg/types"
)

// GetLastEvent returns the last event in the journal, or ErrEmptyWAL when it
// holds none.
func GetLastEvent(path string) (*Event, error) {
	var last *Event
	err := scan(path, func(_ int, event Event) error {
		last = &event
		return nil
	})
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ErrEmptyWAL
	}
	return last, nil
}

// CountEvents returns the number of events in the journal.
func CountEvents(path string) (int, error) {
	count := 0
	err := scan(path, func(int, Event) error {
		count++
		return nil
	})
	return count, err
}

// ValidateWAL checks that every record parses, every checksum matches and
// sequence numbers increase by exactly one.
func ValidateWAL(path string) error {
	var prev uint64
	first := true
	return scan(path, func(line int, event Event) error {
		if err := checkEvent(event); err != nil {
			return err
		}
		if !first && event.Seq != prev+1 {
			return fmt.Errorf("%w: line %d has seq=%d after seq=%d", ErrSequenceGap, line, event.Seq, prev)
		}
		first = false
		prev = event.Seq
		return nil
	})
}

// DumpWAL writes a human-readable line per event:
//
//	[Seq:3] START    run=9f0c… task=C tick=0 at 2026-01-02T15:04:05Z (checksum:0x12345678)
//
// Events failing verification are flagged rather than aborting the dump.
func DumpWAL(path string, w io.Writer) error {
	return scan(path, func(_ int, e Event) error {
		flag := ""
		if !VerifyChecksum(e) {
			flag = " CORRUPT"
		}
		_, err := fmt.Fprintf(w, "[Seq:%d] %-6s run=%s task=%s tick=%d at %s (checksum:0x%08x)%s\n",
			e.Seq, e.Type, e.RunID, e.Task, e.Tick,
			time.UnixMilli(e.Timestamp).UTC().Format(time.RFC3339), e.Checksum, flag)
		return err
	})
}

// RunIDs lists the runs recorded in the journal in the order they began.
func RunIDs(path string) ([]string, error) {
	var ids []string
	err := scan(path, func(_ int, e Event) error {
		if e.Type == EventRun {
			ids = append(ids, e.RunID)
		}
		return nil
	})
	return ids, err
}

// RunTimeline rebuilds the simulated timeline of one run from its START and
// FINISH events, ordered by start tick then task. Tasks that never finished
// are reported with Finish equal to -1.
func RunTimeline(path, runID string) ([]types.ScheduledTask[types.TaskID], error) {
	rows := make(map[string]*types.ScheduledTask[types.TaskID])
	seen := false

	err := scan(path, func(_ int, e Event) error {
		if e.RunID != runID {
			return nil
		}
		if err := checkEvent(e); err != nil {
			return err
		}
		seen = true

		switch e.Type {
		case EventStart:
			rows[e.Task] = &types.ScheduledTask[types.TaskID]{Task: types.TaskID(e.Task), Start: e.Tick, Finish: -1}
		case EventFinish:
			if row, ok := rows[e.Task]; ok {
				row.Finish = e.Tick
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !seen {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	out := make([]types.ScheduledTask[types.TaskID], 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	slices.SortFunc(out, func(a, b types.ScheduledTask[types.TaskID]) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.Task, b.Task)
	})
	return out, nil
}

// WALStats summarises a journal.
type WALStats struct {
	TotalEvents    int               // number of records
	EventTypes     map[EventType]int // records per type
	Runs           int               // RUN records
	FirstSeq       uint64            // seq of the first record
	LastSeq        uint64            // seq of the last record
	TimeRange      [2]int64          // earliest and latest timestamp
	CorruptedCount int               // records failing checksum verification
}

// GetWALStats scans the journal and collects WALStats.
func GetWALStats(path string) (*WALStats, error) {
	stats := &WALStats{EventTypes: make(map[EventType]int)}
	err := scan(path, func(_ int, e Event) error {
		if stats.TotalEvents == 0 {
			stats.FirstSeq = e.Seq
			stats.TimeRange[0] = e.Timestamp
		}
		stats.TotalEvents++
		stats.EventTypes[e.Type]++
		stats.LastSeq = e.Seq
		stats.TimeRange[0] = min(stats.TimeRange[0], e.Timestamp)
		stats.TimeRange[1] = max(stats.TimeRange[1], e.Timestamp)
		if e.Type == EventRun {
			stats.Runs++
		}
		if !VerifyChecksum(e) {
			stats.CorruptedCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
