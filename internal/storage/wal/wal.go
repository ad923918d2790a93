package wal

// ============================================================================
// WAL core
// Responsibilities:
// 1. Append scheduling events to the journal file (append-only, JSON lines)
// 2. Buffer events and flush them at run boundaries
// 3. Replay the journal with checksum verification
// ============================================================================

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileInterface is the subset of *os.File the WAL writes through, so tests
// can substitute a failing file.
type FileInterface interface {
	Write(p []byte) (n int, err error)
	Sync() error
	Close() error
}

// WAL is an append-only scheduling journal.
type WAL struct {
	mu           sync.Mutex    // guards everything below
	file         FileInterface // open journal file
	encoder      *json.Encoder // writes one JSON object per line
	path         string        // journal path
	seq          uint64        // last assigned sequence number
	syncOnAppend bool          // fsync on every flush
	closed       bool

	buffer     []Event // events not yet written
	bufferSize int     // flush threshold
}

/*
NewWAL opens or creates the journal at path.

Behaviour:
- a new file starts at seq 0
- an existing file continues from its last event's seq
- the file is opened O_APPEND so earlier runs are never overwritten

bufferSize is the number of buffered events that triggers a flush; values
below 1 mean every Append is written immediately.
*/
func NewWAL(path string, syncOnAppend bool, bufferSize int) (*WAL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("wal: create directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}

	var seq uint64
	if stat, statErr := file.Stat(); statErr == nil && stat.Size() > 0 {
		last, err := GetLastEvent(path)
		if err != nil {
			file.Close()
			return nil, err
		}
		seq = last.Seq
	}

	if bufferSize < 1 {
		bufferSize = 1
	}

	return &WAL{
		file:         file,
		encoder:      json.NewEncoder(file),
		path:         path,
		seq:          seq,
		syncOnAppend: syncOnAppend,
		buffer:       make([]Event, 0, bufferSize),
		bufferSize:   bufferSize,
	}, nil
}

// Append records one event. The event is buffered unless forceFlush is set
// or the buffer is full.
func (w *WAL) Append(eventType EventType, runID, task string, tick int, forceFlush bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWALClosed
	}

	w.seq++
	event := Event{
		Seq:       w.seq,
		Type:      eventType,
		RunID:     runID,
		Task:      task,
		Tick:      tick,
		Timestamp: time.Now().UnixMilli(),
	}
	event.Checksum = CalculateChecksum(event)
	w.buffer = append(w.buffer, event)

	if forceFlush || len(w.buffer) >= w.bufferSize {
		return w.flushLocked()
	}
	return nil
}

// Flush writes every buffered event.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWALClosed
	}
	return w.flushLocked()
}

// Replay reads the journal from the beginning, verifying each checksum, and
// calls handler for every event. Buffered events are flushed first.
func (w *WAL) Replay(handler EventHandler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		if err := w.flushLocked(); err != nil {
			return err
		}
	}

	return scan(w.path, func(_ int, event Event) error {
		if err := checkEvent(event); err != nil {
			return err
		}
		return handler(event)
	})
}

// Close flushes and closes the journal. A closed WAL cannot be reused.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	flushErr := w.flushLocked()
	w.closed = true
	return errors.Join(flushErr, w.file.Close())
}

// GetLastSeq returns the last assigned sequence number.
func (w *WAL) GetLastSeq() uint64 {
	if w == nil {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// Path returns the journal file path.
func (w *WAL) Path() string {
	return w.path
}

// flushLocked assumes w.mu is held.
func (w *WAL) flushLocked() error {
	if len(w.buffer) == 0 {
		return nil
	}
	for _, event := range w.buffer {
		if err := w.encoder.Encode(event); err != nil {
			return fmt.Errorf("wal: write seq=%d: %w", event.Seq, err)
		}
	}
	w.buffer = w.buffer[:0]

	if w.syncOnAppend {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("wal: sync: %w", err)
		}
	}
	return nil
}

// scan decodes path line by line. Blank lines are skipped; an unparsable
// line stops the scan with a *CorruptionError.
func scan(path string, fn func(line int, event Event) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("wal: open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return &CorruptionError{Line: line, Cause: err}
		}
		if err := fn(line, event); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return &CorruptionError{Line: line + 1, Cause: err}
	}
	return nil
}
