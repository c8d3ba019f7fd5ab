package cachefile

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/labelgo/label"
)

func testLabels(n int) []label.Label {
	rng := rand.New(rand.NewSource(1))
	labels := make([]label.Label, n)
	for i := range labels {
		labels[i] = label.Label{
			X:      rng.Float64()*360 - 180,
			Y:      rng.Float64()*180 - 90,
			T:      rng.Float64() * 10,
			ID:     int64(i + 1),
			Prio:   int32(rng.Intn(5) + 1),
			Factor: 1 + rng.Float64(),
			Name:   strings.Repeat("name", rng.Intn(4)+1),
		}
	}
	return labels
}

func encode(t *testing.T, ds *Dataset, optFns ...func(o *EncodeOptions)) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ds, optFns...))
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		compression CompressionType
	}{
		{"none", CompressionNone},
		{"lz4", CompressionLZ4},
		{"zstd", CompressionZSTD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := &Dataset{Labels: testLabels(500), Geographic: true}
			data := encode(t, ds, func(o *EncodeOptions) {
				o.Compression = tt.compression
			})

			got, err := DecodeBytes(data)
			require.NoError(t, err)

			assert.Equal(t, ds.Labels, got.Labels)
			assert.True(t, got.Geographic)
			assert.False(t, got.Bounds.Degenerate())
		})
	}
}

func TestRoundTripEmptyDataset(t *testing.T) {
	data := encode(t, &Dataset{})

	got, err := DecodeBytes(data)
	require.NoError(t, err)

	assert.Empty(t, got.Labels)
	assert.False(t, got.Geographic)
	assert.True(t, got.Bounds.Degenerate())
}

func TestRoundTripMultipleBlocks(t *testing.T) {
	// A tiny block size forces the payload through many blocks and the
	// parallel decompression path.
	ds := &Dataset{Labels: testLabels(2000)}
	data := encode(t, ds, func(o *EncodeOptions) {
		o.Compression = CompressionZSTD
		o.BlockSize = 1024
	})

	got, err := DecodeBytes(data)
	require.NoError(t, err)
	assert.Equal(t, ds.Labels, got.Labels)
}

func TestRoundTripUnicodeNames(t *testing.T) {
	ds := &Dataset{Labels: []label.Label{
		{ID: 1, Name: "Тимашёвск"},
		{ID: 2, Name: "東京"},
		{ID: 3, Name: ""},
		{ID: 4, Name: "Müllheim'sche Höfe"},
	}}
	data := encode(t, ds)

	got, err := DecodeBytes(data)
	require.NoError(t, err)
	assert.Equal(t, ds.Labels, got.Labels)
}

func TestDecodeTooSmall(t *testing.T) {
	_, err := DecodeBytes(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeInvalidMagic(t *testing.T) {
	data := encode(t, &Dataset{Labels: testLabels(5)})
	data[0] ^= 0xff

	_, err := DecodeBytes(data)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestDecodeVersionMismatch(t *testing.T) {
	data := encode(t, &Dataset{Labels: testLabels(5)})
	data[4] ^= 0xff // low byte of the version field

	_, err := DecodeBytes(data)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestDecodeChecksumMismatch(t *testing.T) {
	data := encode(t, &Dataset{Labels: testLabels(50)})
	data[len(data)-1] ^= 0xff

	_, err := DecodeBytes(data)
	assert.ErrorIs(t, err, ErrCorrupt)

	var mismatch *ChecksumMismatchError
	assert.ErrorAs(t, err, &mismatch)
	assert.NotEqual(t, mismatch.Expected, mismatch.Actual)
}

func TestDecodeTruncatedPayload(t *testing.T) {
	data := encode(t, &Dataset{Labels: testLabels(50)})

	// Truncating invalidates the checksum, which is the first line of
	// defense against torn writes.
	_, err := DecodeBytes(data[:len(data)-10])
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeCountBeyondPayload(t *testing.T) {
	// Uncompressed payload with a header lying about the record count.
	ds := &Dataset{Labels: testLabels(3)}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ds, func(o *EncodeOptions) {
		o.Compression = CompressionNone
	}))
	data := buf.Bytes()

	// Count sits at header offset 16 and is not covered by the payload
	// checksum, so the bounds check itself is exercised.
	data[16] = 0xff

	_, err := DecodeBytes(data)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestReadHeader(t *testing.T) {
	ds := &Dataset{Labels: testLabels(7), Geographic: true}
	data := encode(t, ds)

	h, err := ReadHeader(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, uint32(MagicNumber), h.Magic)
	assert.Equal(t, uint64(7), h.Count)
	assert.True(t, h.Geographic())
}

func TestEncodeFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.bin")

	ds := &Dataset{Labels: testLabels(100), Geographic: true}
	require.NoError(t, EncodeFile(path, ds))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	got, err := DecodeBytes(data)
	require.NoError(t, err)
	assert.Equal(t, ds.Labels, got.Labels)

	// No stray temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestChecksum(t *testing.T) {
	a := Checksum([]byte("hello"))
	b := Checksum([]byte("hellp"))

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Checksum([]byte("hello")))
}
