package cachefile

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType selects the payload block compression algorithm.
type CompressionType uint8

const (
	// CompressionNone stores payload blocks raw.
	CompressionNone CompressionType = 0
	// CompressionLZ4 uses LZ4 block compression (fast decode, the default).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD uses zstd block compression (better ratio).
	CompressionZSTD CompressionType = 2
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Each payload block is prefixed with an 8-byte header:
// [UncompressedSize uint32][CompressedSize uint32]. CompressedSize == 0
// means the block is stored raw (incompressible data, or CompressionNone).
const blockHeaderSize = 8

// defaultBlockSize is the uncompressed size of payload blocks.
const defaultBlockSize = 256 * 1024

// compressBlock appends one framed block for data to dst and returns the
// extended slice. Blocks that do not compress below 90% of their input
// are stored raw.
func compressBlock(dst, data []byte, ct CompressionType) ([]byte, error) {
	var compressed []byte

	switch ct {
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		buf := make([]byte, bound)
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n] // n == 0 means incompressible
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	}

	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(data)))

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		binary.LittleEndian.PutUint32(hdr[4:], 0)
		dst = append(dst, hdr[:]...)
		return append(dst, data...), nil
	}

	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(compressed)))
	dst = append(dst, hdr[:]...)
	return append(dst, compressed...), nil
}

// blockRef locates one block inside the framed payload and its target
// region in the decompressed stream.
type blockRef struct {
	srcOff int
	srcLen int
	dstOff int
	dstLen int
	raw    bool
}

// scanBlocks walks the framed payload and returns block locations plus
// the total decompressed size.
func scanBlocks(payload []byte) ([]blockRef, int, error) {
	var refs []blockRef
	off, dstOff := 0, 0

	for off < len(payload) {
		if len(payload)-off < blockHeaderSize {
			return nil, 0, fmt.Errorf("%w: truncated block header", ErrCorrupt)
		}
		uncompressed := int(binary.LittleEndian.Uint32(payload[off:]))
		compressed := int(binary.LittleEndian.Uint32(payload[off+4:]))
		off += blockHeaderSize

		srcLen := compressed
		raw := false
		if compressed == 0 {
			srcLen = uncompressed
			raw = true
		}
		if srcLen < 0 || off+srcLen > len(payload) {
			return nil, 0, fmt.Errorf("%w: block exceeds payload", ErrCorrupt)
		}

		refs = append(refs, blockRef{
			srcOff: off,
			srcLen: srcLen,
			dstOff: dstOff,
			dstLen: uncompressed,
			raw:    raw,
		})
		off += srcLen
		dstOff += uncompressed
	}

	return refs, dstOff, nil
}

// decompressInto decodes one block into dst, which must be exactly
// ref.dstLen bytes.
func decompressInto(dst []byte, payload []byte, ref blockRef, ct CompressionType) error {
	src := payload[ref.srcOff : ref.srcOff+ref.srcLen]

	if ref.raw {
		copy(dst, src)
		return nil
	}

	switch ct {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if n != ref.dstLen {
			return fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
	case CompressionZSTD:
		dec := getZstdDecoder()
		decoded, err := dec.DecodeAll(src, dst[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if len(decoded) != ref.dstLen {
			return fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		if ref.dstLen > 0 && &decoded[0] != &dst[0] {
			copy(dst, decoded)
		}
	default:
		return fmt.Errorf("%w: compressed block in uncompressed file", ErrCorrupt)
	}

	return nil
}
