// Package blobstore abstracts where cache files live.
//
// The engine only ever reads whole, immutable cache blobs; the offline
// conversion side writes them. Implementations cover the local file
// system (memory-mapped), process memory (tests), and S3-compatible
// object storage (see the s3 and minio subpackages).
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error satisfying errors.Is(err, ErrNotFound).
// The default maps to os.ErrNotExist so local-path and blob loads fail
// the same way.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for storing and retrieving immutable
// cache blobs.
type BlobStore interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to an immutable blob.
type Blob interface {
	io.Closer

	// ReadAt reads len(p) bytes at offset off, io.ReaderAt style.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// Size returns the blob size in bytes.
	Size() int64
}

// Mappable is an optional interface for blobs whose content is already
// resident in memory. Bytes is zero-copy; the slice is valid until the
// blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}
