// Package cachefile implements the versioned binary cache format the
// label store is loaded from.
//
// A cache file is a 64-byte little-endian header followed by a
// block-compressed payload. The payload holds one fixed-size record per
// label (position, threshold, id, priority, size factor, name length)
// and then the concatenated UTF-8 names. A CRC32 of the payload in the
// header detects storage corruption.
//
// The layout is private to labelgo: it is produced by the offline
// conversion step (see the ceformat package and cmd/labelgo) and
// consumed only by the store loader, so it is versioned but not a wire
// contract.
package cachefile

import "errors"

const (
	// MagicNumber identifies labelgo cache files (ASCII "LBC1").
	MagicNumber = 0x4C424331

	// Version is the current format version (v1.0.0).
	Version = 0x00010000

	// HeaderSize is the fixed size of the file header in bytes.
	HeaderSize = 64

	// RecordSize is the fixed size of one label record in the payload.
	RecordSize = 48
)

// Header flags.
const (
	// FlagGeographic marks datasets whose coordinates are lon/lat degrees.
	FlagGeographic = 1 << 0
)

var (
	// ErrInvalidMagic is returned when the file does not start with the
	// cache magic number.
	ErrInvalidMagic = errors.New("invalid magic number")

	// ErrVersionMismatch is returned for unsupported format versions.
	ErrVersionMismatch = errors.New("unsupported cache format version")

	// ErrCorrupt is returned when the file structure is malformed beyond
	// the header (truncated payload, out-of-bounds record, bad block).
	ErrCorrupt = errors.New("corrupt cache file")
)

// Header is the 64-byte header at the start of every cache file.
type Header struct {
	Magic       uint32
	Version     uint32
	Flags       uint32
	Compression uint8
	Padding1    [3]byte
	Count       uint64
	MinX        float64
	MinY        float64
	MaxX        float64
	MaxY        float64
	Checksum    uint32 // CRC32 (IEEE) of the payload following the header
	Padding2    [4]byte
}

// Geographic reports whether the dataset coordinates are lon/lat degrees.
func (h *Header) Geographic() bool {
	return h.Flags&FlagGeographic != 0
}
