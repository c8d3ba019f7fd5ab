package cachefile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/labelgo/label"
)

// Decode reads a complete cache file from r.
func Decode(r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(data)
}

// ReadHeader reads and validates the header only, without touching the
// payload. Useful for cheap dataset introspection.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: file smaller than header", ErrCorrupt)
	}

	var header Header
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrVersionMismatch, header.Version)
	}
	return &header, nil
}

// DecodeBytes decodes a cache file held in memory (or memory-mapped).
// The returned dataset does not alias data; it remains valid after the
// backing mapping is closed.
func DecodeBytes(data []byte) (*Dataset, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: file smaller than header", ErrCorrupt)
	}

	var header Header
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrVersionMismatch, header.Version)
	}
	compression := CompressionType(header.Compression)
	if compression > CompressionZSTD {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, header.Compression)
	}

	payload := data[HeaderSize:]
	if actual := Checksum(payload); actual != header.Checksum {
		return nil, &ChecksumMismatchError{Expected: header.Checksum, Actual: actual}
	}

	refs, total, err := scanBlocks(payload)
	if err != nil {
		return nil, err
	}

	raw, err := decompressPayload(payload, refs, total, compression)
	if err != nil {
		return nil, err
	}

	labels, err := parsePayload(raw, header.Count)
	if err != nil {
		return nil, err
	}

	return &Dataset{
		Labels:     labels,
		Geographic: header.Geographic(),
		Bounds:     label.NewBBox(header.MinX, header.MinY, header.MaxX, header.MaxY),
	}, nil
}

// decompressPayload expands all payload blocks. Blocks are independent,
// so they decode in parallel; each writes a disjoint region of the
// output buffer.
func decompressPayload(payload []byte, refs []blockRef, total int, ct CompressionType) ([]byte, error) {
	out := make([]byte, total)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, ref := range refs {
		g.Go(func() error {
			dst := out[ref.dstOff : ref.dstOff+ref.dstLen : ref.dstOff+ref.dstLen]
			return decompressInto(dst, payload, ref, ct)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// parsePayload materializes labels from the decompressed record and name
// sections.
func parsePayload(raw []byte, count uint64) ([]label.Label, error) {
	if count > uint64(len(raw))/RecordSize {
		return nil, fmt.Errorf("%w: record section exceeds payload", ErrCorrupt)
	}
	n := int(count)
	names := raw[n*RecordSize:]

	labels := make([]label.Label, n)
	nameOff := 0
	for i := 0; i < n; i++ {
		rec := raw[i*RecordSize : (i+1)*RecordSize]

		nameLen := int(binary.LittleEndian.Uint32(rec[44:]))
		if nameLen < 0 || nameOff+nameLen > len(names) {
			return nil, fmt.Errorf("%w: name section exceeds payload", ErrCorrupt)
		}

		labels[i] = label.Label{
			X:      math.Float64frombits(binary.LittleEndian.Uint64(rec[0:])),
			Y:      math.Float64frombits(binary.LittleEndian.Uint64(rec[8:])),
			T:      math.Float64frombits(binary.LittleEndian.Uint64(rec[16:])),
			ID:     int64(binary.LittleEndian.Uint64(rec[24:])),
			Factor: math.Float64frombits(binary.LittleEndian.Uint64(rec[32:])),
			Prio:   int32(binary.LittleEndian.Uint32(rec[40:])),
			Name:   string(names[nameOff : nameOff+nameLen]),
		}
		nameOff += nameLen
	}

	if nameOff != len(names) {
		return nil, fmt.Errorf("%w: trailing bytes after name section", ErrCorrupt)
	}
	return labels, nil
}
