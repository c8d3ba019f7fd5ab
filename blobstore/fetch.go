package blobstore

import (
	"context"

	"golang.org/x/time/rate"
)

// fetchChunkSize is the granularity of remote reads (and of rate
// accounting) when materializing a blob.
const fetchChunkSize = 1 << 20

// ReadAll materializes the full content of a blob.
//
// Blobs already resident in memory (Mappable) are returned zero-copy.
// Remote blobs are pulled in chunks; if limiter is non-nil, the download
// is throttled to the limiter's byte-per-second budget, so bulk cache
// loads do not saturate shared egress.
func ReadAll(ctx context.Context, b Blob, limiter *rate.Limiter) ([]byte, error) {
	if mb, ok := b.(Mappable); ok {
		return mb.Bytes()
	}

	size := b.Size()
	data := make([]byte, size)

	for off := int64(0); off < size; off += fetchChunkSize {
		end := min(off+fetchChunkSize, size)

		if limiter != nil {
			if err := limiter.WaitN(ctx, int(end-off)); err != nil {
				return nil, err
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := b.ReadAt(ctx, data[off:end], off); err != nil {
			return nil, err
		}
	}

	return data, nil
}
