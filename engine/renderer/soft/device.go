// Package soft provides a host-memory implementation of renderer.Device.
//
// Buffers are plain byte slices and "device execution" is simulated: a
// submission is considered finished once the host has submitted a
// configurable number of later frames (the device's latency), or as soon as
// the host waits for it. This keeps the temporal behavior of a real device,
// where completion signals lag submissions, while staying fully deterministic,
// which is what the engine's tests and headless tools run against.
package soft

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer"
)

var _ renderer.Device = (*Device)(nil)

type pendingSubmit struct {
	signal      *Signal
	submitIndex uint64
}

// Device simulates an asynchronous device on host memory. Like every other
// backend it is host-thread only.
type Device struct {
	// Total byte budget for buffers; 0 means unlimited.
	budget uint64
	// How many frames behind the host the simulated device runs.
	latency int

	allocated   uint64
	submitCount uint64
	pending     []pendingSubmit
	initialized bool
}

// New creates a soft device with the given byte budget (0 = unlimited) and
// completion latency in frames.
func New(budget uint64, latency int) *Device {
	return &Device{
		budget:  budget,
		latency: latency,
	}
}

func (d *Device) Initialize(appName string) error {
	d.initialized = true
	core.LogInfo("soft device initialized for '%s' (budget=%d bytes, latency=%d frames)", appName, d.budget, d.latency)
	return nil
}

func (d *Device) Shutdown() error {
	if err := d.WaitIdle(); err != nil {
		return err
	}
	if d.allocated != 0 {
		core.LogWarn("soft device shutting down with %d bytes still allocated", d.allocated)
	}
	d.initialized = false
	return nil
}

func (d *Device) CreateBuffer(size uint64) (renderer.Buffer, error) {
	if d.budget != 0 && d.allocated+size > d.budget {
		return nil, fmt.Errorf("buffer of %d bytes exceeds device budget (%d of %d in use): %w",
			size, d.allocated, d.budget, core.ErrOutOfDeviceMemory)
	}
	d.allocated += size
	return &Buffer{data: make([]byte, size)}, nil
}

func (d *Device) DestroyBuffer(buffer renderer.Buffer) {
	b, ok := buffer.(*Buffer)
	if !ok || b == nil || b.destroyed {
		return
	}
	d.allocated -= uint64(len(b.data))
	b.destroyed = true
	b.data = nil
}

func (d *Device) CreateSignal(signaled bool) (renderer.CompletionSignal, error) {
	return &Signal{device: d, signaled: signaled}, nil
}

// Submit records one frame boundary. The signal is set once the device has
// "caught up", i.e. after `latency` further submissions or on the next wait.
func (d *Device) Submit(signal renderer.CompletionSignal) error {
	s, ok := signal.(*Signal)
	if !ok {
		return fmt.Errorf("signal was not created by this device")
	}
	d.pending = append(d.pending, pendingSubmit{signal: s, submitIndex: d.submitCount})
	d.submitCount++
	d.advance()
	return nil
}

func (d *Device) WaitIdle() error {
	for _, p := range d.pending {
		p.signal.signaled = true
	}
	d.pending = d.pending[:0]
	return nil
}

// Allocated returns the bytes currently held by live buffers.
func (d *Device) Allocated() uint64 {
	return d.allocated
}

// advance completes every pending submission the simulated device is done
// with, given its latency.
func (d *Device) advance() {
	keep := d.pending[:0]
	for _, p := range d.pending {
		if p.submitIndex+uint64(d.latency) < d.submitCount {
			p.signal.signaled = true
		} else {
			keep = append(keep, p)
		}
	}
	d.pending = keep
}

// catchUpTo forces completion of the given signal's submission and everything
// submitted before it, simulating the host blocking until the device reaches
// that point in the stream.
func (d *Device) catchUpTo(signal *Signal) bool {
	found := false
	var boundary uint64
	for _, p := range d.pending {
		if p.signal == signal {
			boundary = p.submitIndex
			found = true
			break
		}
	}
	if !found {
		return false
	}
	keep := d.pending[:0]
	for _, p := range d.pending {
		if p.submitIndex <= boundary {
			p.signal.signaled = true
		} else {
			keep = append(keep, p)
		}
	}
	d.pending = keep
	return true
}

// Buffer is a host-memory block standing in for a device allocation.
type Buffer struct {
	data      []byte
	destroyed bool
}

func (b *Buffer) Capacity() uint64 {
	return uint64(len(b.data))
}

func (b *Buffer) Upload(offset uint64, data []byte) error {
	if b.destroyed {
		return fmt.Errorf("upload to destroyed buffer: %w", core.ErrNotFound)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("upload of %d bytes at offset %d overflows buffer of %d bytes: %w",
			len(data), offset, len(b.data), core.ErrSizeMismatch)
	}
	copy(b.data[offset:], data)
	return nil
}

// Bytes exposes the buffer contents for assertions in tests and tools.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Signal is the soft device's completion signal.
type Signal struct {
	device   *Device
	signaled bool
}

func (s *Signal) Wait(timeout time.Duration) bool {
	if s.signaled {
		return true
	}
	// The simulated device catches up as soon as the host blocks on it.
	if s.device.catchUpTo(s) {
		return true
	}
	// Not signaled and not pending: nothing will ever set this signal.
	core.LogWarn("wait on a signal with no pending submission (timeout=%s)", timeout)
	return false
}

func (s *Signal) Signaled() bool {
	return s.signaled
}

func (s *Signal) Reset() error {
	s.signaled = false
	return nil
}

func (s *Signal) Destroy() {}
