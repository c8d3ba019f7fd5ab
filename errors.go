package labelgo

import "errors"

var (
	// ErrInvalidHandle is returned by queries on a handle whose dataset
	// failed to load. The load failure itself is available via Err.
	ErrInvalidHandle = errors.New("invalid handle: dataset not loaded")

	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.New("handle is closed")
)
