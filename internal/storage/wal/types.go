package wal

// ============================================================================
// WAL Type Definitions
// Responsibility: Define the scheduling journal's record format
// ============================================================================

// EventType defines journal event types
type EventType string

const (
	EventRun    EventType = "RUN"    // A scheduling run began; Task holds the mode
	EventOrder  EventType = "ORDER"  // Task emitted by the canonical order; Tick is its position
	EventStart  EventType = "START"  // Task bound to a worker at Tick
	EventFinish EventType = "FINISH" // Task completed at Tick
)

// Event represents one journal record
type Event struct {
	Seq       uint64    `json:"seq"`       // Event sequence number (monotonically increasing)
	Type      EventType `json:"type"`      // Event type
	RunID     string    `json:"run_id"`    // Run the event belongs to
	Task      string    `json:"task"`      // Task identifier, or the run mode for RUN
	Tick      int       `json:"tick"`      // Logical time or order position
	Timestamp int64     `json:"timestamp"` // Unix millisecond timestamp
	Checksum  uint32    `json:"checksum"`  // CRC32 checksum
}

// EventHandler processes journal events during Replay.
// Returning an error aborts the replay.
type EventHandler func(event Event) error
