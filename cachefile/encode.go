package cachefile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/hupe1980/labelgo/label"
)

// Dataset is the decoded content of a cache file.
type Dataset struct {
	Labels []label.Label

	// Geographic marks lon/lat coordinates (enables antimeridian
	// wraparound queries downstream).
	Geographic bool

	// Bounds spans all label positions. Derived from Labels on encode.
	Bounds label.BBox
}

// EncodeOptions control cache file encoding.
type EncodeOptions struct {
	// Compression selects the payload block compression. Default LZ4.
	Compression CompressionType

	// BlockSize is the uncompressed payload block size. Default 256 KiB.
	BlockSize int
}

// Encode writes ds to w in cache file format.
func Encode(w io.Writer, ds *Dataset, optFns ...func(o *EncodeOptions)) error {
	opts := EncodeOptions{
		Compression: CompressionLZ4,
		BlockSize:   defaultBlockSize,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = defaultBlockSize
	}

	raw := appendPayload(nil, ds.Labels)

	var payload []byte
	for off := 0; off < len(raw); off += opts.BlockSize {
		end := min(off+opts.BlockSize, len(raw))
		var err error
		payload, err = compressBlock(payload, raw[off:end], opts.Compression)
		if err != nil {
			return fmt.Errorf("compress block: %w", err)
		}
	}

	bounds := label.EmptyBBox()
	for _, l := range ds.Labels {
		bounds.Extend(l.X, l.Y)
	}

	header := Header{
		Magic:       MagicNumber,
		Version:     Version,
		Compression: uint8(opts.Compression),
		Count:       uint64(len(ds.Labels)),
		MinX:        bounds.MinX,
		MinY:        bounds.MinY,
		MaxX:        bounds.MaxX,
		MaxY:        bounds.MaxY,
		Checksum:    Checksum(payload),
	}
	if ds.Geographic {
		header.Flags |= FlagGeographic
	}

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// EncodeFile writes ds to path atomically: the file is staged in the
// same directory and renamed into place, so readers never observe a
// partially written cache.
func EncodeFile(path string, ds *Dataset, optFns ...func(o *EncodeOptions)) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	var buf bytes.Buffer
	if err := Encode(&buf, ds, optFns...); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// appendPayload serializes labels as fixed-size records followed by the
// concatenated names, appending to dst.
func appendPayload(dst []byte, labels []label.Label) []byte {
	var rec [RecordSize]byte
	for _, l := range labels {
		binary.LittleEndian.PutUint64(rec[0:], math.Float64bits(l.X))
		binary.LittleEndian.PutUint64(rec[8:], math.Float64bits(l.Y))
		binary.LittleEndian.PutUint64(rec[16:], math.Float64bits(l.T))
		binary.LittleEndian.PutUint64(rec[24:], uint64(l.ID))
		binary.LittleEndian.PutUint64(rec[32:], math.Float64bits(l.Factor))
		binary.LittleEndian.PutUint32(rec[40:], uint32(l.Prio))
		binary.LittleEndian.PutUint32(rec[44:], uint32(len(l.Name)))
		dst = append(dst, rec[:]...)
	}
	for _, l := range labels {
		dst = append(dst, l.Name...)
	}
	return dst
}
