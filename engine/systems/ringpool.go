package systems

import (
	"fmt"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer"
)

// RingSlot is one of the pre-allocated scratch buffers in a RingBufferPool.
// Slots are claimed transiently per draw call and never owned by callers.
type RingSlot struct {
	// Index of this slot within its pool, in [0, SlotCount).
	Index  int
	Buffer renderer.Buffer
	// Bytes written by the most recent Write.
	WrittenBytes uint64
}

type RingBufferPoolConfig struct {
	Name string
	// SlotCount must be at least framesInFlight+1 for rotation to outlast
	// in-flight command streams.
	SlotCount int
	// SlotCapacity is sized for the largest expected ephemeral draw.
	SlotCapacity uint64
}

// RingBufferPool hands out a fixed set of persistently-writable scratch
// buffers in strict round-robin order. Ephemeral per-draw geometry (debug
// lines, picked-point markers, selection index lists) is regenerated into the
// claimed slot every time it is drawn, so nothing is ever freed per draw; the
// rotation alone keeps a still-executing frame's slot from being overwritten.
//
// Usage contract: claiming more than SlotCount times within the in-flight
// window defeats the rotation margin and corrupts whatever the device is
// still reading. That shows up as flickering or garbled ephemeral geometry,
// not as an error.
type RingBufferPool struct {
	name      string
	device    renderer.Device
	telemetry *TelemetryCounter
	slots     []RingSlot
	next      int
}

func NewRingBufferPool(config *RingBufferPoolConfig, device renderer.Device, telemetry *TelemetryCounter, framesInFlight int) (*RingBufferPool, error) {
	if config.SlotCount <= 0 || config.SlotCapacity == 0 {
		return nil, fmt.Errorf("ring buffer pool '%s' needs a positive slot count and capacity", config.Name)
	}
	if config.SlotCount < framesInFlight+1 {
		core.LogWarn("ring buffer pool '%s' has %d slots for %d frames in flight; rotation cannot outlast in-flight reads",
			config.Name, config.SlotCount, framesInFlight)
	}

	pool := &RingBufferPool{
		name:      config.Name,
		device:    device,
		telemetry: telemetry,
		slots:     make([]RingSlot, config.SlotCount),
	}
	for i := range pool.slots {
		buffer, err := device.CreateBuffer(config.SlotCapacity)
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("slot %d of ring buffer pool '%s': %w", i, config.Name, err)
		}
		pool.slots[i] = RingSlot{Index: i, Buffer: buffer}
		telemetry.RecordAlloc(pool.identity(i), int64(config.SlotCapacity))
	}
	core.LogDebug("ring buffer pool '%s' created with %d slots of %d bytes", config.Name, config.SlotCount, config.SlotCapacity)
	return pool, nil
}

// ClaimNext returns the next slot in the rotation, wrapping after SlotCount.
func (rp *RingBufferPool) ClaimNext() *RingSlot {
	slot := &rp.slots[rp.next]
	rp.next = (rp.next + 1) % len(rp.slots)
	return slot
}

// Write overwrites the slot's contents. Callers write once per claim,
// immediately before recording the draw that references the slot.
func (rp *RingBufferPool) Write(slot *RingSlot, data []byte) error {
	if uint64(len(data)) > slot.Buffer.Capacity() {
		return fmt.Errorf("write of %d bytes into slot %d of pool '%s' (capacity %d): %w",
			len(data), slot.Index, rp.name, slot.Buffer.Capacity(), core.ErrSizeMismatch)
	}
	if err := slot.Buffer.Upload(0, data); err != nil {
		return err
	}
	slot.WrittenBytes = uint64(len(data))
	return nil
}

func (rp *RingBufferPool) Name() string {
	return rp.name
}

func (rp *RingBufferPool) SlotCount() int {
	return len(rp.slots)
}

// Destroy frees the whole pool. There is no per-slot destroy; slots live for
// the lifetime of the pool.
func (rp *RingBufferPool) Destroy() {
	for i := range rp.slots {
		if rp.slots[i].Buffer == nil {
			continue
		}
		rp.device.DestroyBuffer(rp.slots[i].Buffer)
		rp.telemetry.RecordFree(rp.identity(i))
		rp.slots[i].Buffer = nil
	}
}

func (rp *RingBufferPool) identity(slotIndex int) string {
	return fmt.Sprintf("ringpool:%s:%d", rp.name, slotIndex)
}
