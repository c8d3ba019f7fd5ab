package cachefile

import (
	"fmt"
	"hash/crc32"
)

// CRC32 (IEEE) is used for payload integrity: fast, hardware-accelerated
// on modern CPUs, and good at detecting accidental storage corruption.
// It is not cryptographically secure and not meant for tamper detection.

// Checksum computes the CRC32 checksum of data.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// ChecksumMismatchError is returned when payload verification fails.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// Is makes the error match ErrCorrupt in errors.Is chains: a bad
// checksum is one flavor of corruption.
func (e *ChecksumMismatchError) Is(target error) bool {
	return target == ErrCorrupt
}
