package wal

// ============================================================================
// Checksum
// Responsibility: compute and verify CRC32 checksums of journal events
// ============================================================================

import (
	"hash/crc32"
	"strconv"
	"strings"
)

// CalculateChecksum computes the CRC32-IEEE checksum of an event's content
// fields. Timestamp is excluded.
func CalculateChecksum(e Event) uint32 {
	var b strings.Builder
	b.WriteString(string(e.Type))
	b.WriteByte('|')
	b.WriteString(e.RunID)
	b.WriteByte('|')
	b.WriteString(e.Task)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(e.Tick))
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(e.Seq, 10))
	return crc32.ChecksumIEEE([]byte(b.String()))
}

// VerifyChecksum reports whether the stored checksum matches the content.
func VerifyChecksum(e Event) bool {
	return e.Checksum == CalculateChecksum(e)
}

// checkEvent returns a *ChecksumError when e fails verification.
func checkEvent(e Event) error {
	if want := CalculateChecksum(e); want != e.Checksum {
		return &ChecksumError{Seq: e.Seq, Expected: want, Actual: e.Checksum}
	}
	return nil
}
