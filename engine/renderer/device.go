package renderer

import "time"

// Buffer is a device-resident memory block. Implementations are created by a
// Device and owned by exactly one caller, which must destroy the buffer
// through the owning Device.
type Buffer interface {
	// Capacity returns the buffer size in bytes.
	Capacity() uint64
	// Upload overwrites buffer contents starting at offset. The caller is
	// responsible for making sure no in-flight work still reads the range.
	Upload(offset uint64, data []byte) error
}

// CompletionSignal is set by the device once all work submitted with it has
// finished executing. The host polls or waits on it to bound how many frames
// are in flight.
type CompletionSignal interface {
	// Wait blocks until the signal is set or the timeout expires, returning
	// false on timeout. A zero timeout waits indefinitely.
	Wait(timeout time.Duration) bool
	// Signaled reports the current state without blocking.
	Signaled() bool
	// Reset returns the signal to the unset state.
	Reset() error
	Destroy()
}

// Device abstracts the asynchronous execution context that consumes recorded
// work some number of frames behind the host. All methods except
// CompletionSignal reads are host-thread only.
type Device interface {
	Initialize(appName string) error
	Shutdown() error

	// CreateBuffer allocates a host-writable, device-readable buffer.
	// Returns core.ErrOutOfDeviceMemory when the allocation cannot be
	// satisfied.
	CreateBuffer(size uint64) (Buffer, error)
	DestroyBuffer(buffer Buffer)

	// CreateSignal makes a new completion signal, optionally already set.
	CreateSignal(signaled bool) (CompletionSignal, error)
	// Submit hands the frame's recorded work to the device and arranges for
	// signal to be set once that work finishes executing.
	Submit(signal CompletionSignal) error

	// WaitIdle blocks until the device has finished all submitted work.
	// This is a full pipeline drain; only shutdown and out-of-memory
	// recovery should need it.
	WaitIdle() error
}
