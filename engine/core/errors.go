package core

import (
	"errors"
)

var (
	// ErrNotFound is returned when a handle does not resolve to any live
	// resource table entry. Callers should treat it as "nothing to draw".
	ErrNotFound = errors.New("resource not found")
	// ErrStaleHandle is returned when a handle's index is live but its
	// generation does not match: the slot was released and reissued since
	// the handle was obtained.
	ErrStaleHandle = errors.New("stale resource handle")
	// ErrSizeMismatch is returned by in-place updates whose payload does not
	// match the original allocation size. The caller must reallocate instead.
	ErrSizeMismatch = errors.New("resource size mismatch")
	// ErrOutOfDeviceMemory is returned when the device cannot satisfy an
	// allocation. Recoverable: callers may flush the deferred destruction
	// queue and retry.
	ErrOutOfDeviceMemory = errors.New("out of device memory")
)
