package snapshot

// ============================================================================
// Responsibilities:
// 1. Persist the latest PlanReport as a JSON file
// 2. Atomic writes (temp file + rename) so a crash never leaves half a report
// 3. Validate the schema version on load
// ============================================================================

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/ChuLiYu/stepflow/pkg/types"
)

// SchemaVersion is the PlanReport layout written by this package.
const SchemaVersion = 1

var (
	ErrCorruptedSnapshot   = errors.New("snapshot file is corrupted")
	ErrIncompatibleVersion = errors.New("snapshot schema version is incompatible")
	ErrSnapshotNotFound    = errors.New("snapshot file not found")
)

// Manager stores the latest report at a single path.
type Manager struct {
	path string     // report file path
	mu   sync.Mutex // serialises file operations
}

func NewManager(path string) *Manager {
	return &Manager{
		path: path,
	}
}

// Write atomically replaces the stored report.
//
// Flow:
// 1. write <path>.tmp
// 2. os.Rename onto <path>
func (m *Manager) Write(report types.PlanReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(report)
}

func (m *Manager) writeLocked(report types.PlanReport) error {
	report.SchemaVer = SchemaVersion

	jsonBytes, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	tmpPath := m.path + ".tmp"
	if err := os.WriteFile(tmpPath, jsonBytes, 0644); err != nil {
		return fmt.Errorf("failed to write temp report: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename report: %w", err)
	}
	return nil
}

// Load reads the stored report.
//
// Errors:
//   - ErrSnapshotNotFound when nothing has been written yet
//   - ErrCorruptedSnapshot when the file is not valid JSON
//   - ErrIncompatibleVersion when the schema version differs
func (m *Manager) Load() (types.PlanReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var report types.PlanReport

	jsonBytes, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return report, ErrSnapshotNotFound
		}
		return report, fmt.Errorf("failed to read report: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, &report); err != nil {
		return report, fmt.Errorf("%w: %v", ErrCorruptedSnapshot, err)
	}
	if report.SchemaVer != SchemaVersion {
		return report, fmt.Errorf("%w: got %d, want %d", ErrIncompatibleVersion, report.SchemaVer, SchemaVersion)
	}
	return report, nil
}

// Exists reports whether a report file is present.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// GetPath returns the report file path.
func (m *Manager) GetPath() string {
	return m.path
}

// WriteWithBackup renames the current report to <path>.<timestamp> before
// writing, and keeps at most keepBackups such backups (oldest removed first).
// keepBackups below 1 behaves like Write.
func (m *Manager) WriteWithBackup(report types.PlanReport, keepBackups int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if keepBackups < 1 {
		return m.writeLocked(report)
	}

	if _, err := os.Stat(m.path); err == nil {
		backupPath := fmt.Sprintf("%s.%s", m.path, time.Now().Format("20060102_150405.000000000"))
		if err := os.Rename(m.path, backupPath); err != nil {
			return fmt.Errorf("failed to backup old report: %w", err)
		}
	}

	if err := m.writeLocked(report); err != nil {
		return err
	}
	return m.pruneBackupsLocked(keepBackups)
}

// Backups lists backup files, oldest first.
func (m *Manager) Backups() ([]string, error) {
	matches, err := filepath.Glob(m.path + ".2*")
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	return matches, nil
}

func (m *Manager) pruneBackupsLocked(keep int) error {
	backups, err := m.Backups()
	if err != nil {
		return err
	}
	for len(backups) > keep {
		if err := os.Remove(backups[0]); err != nil {
			return fmt.Errorf("failed to prune backup: %w", err)
		}
		backups = backups[1:]
	}
	return nil
}
