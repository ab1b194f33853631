package systems_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/soft"
	"github.com/spaghettifunk/aurora/engine/systems"
)

func newSystemManager(c *qt.C, device *soft.Device, pools ...systems.RingBufferPoolConfig) *systems.SystemManager {
	sm, err := systems.NewSystemManager(&systems.SystemManagerConfig{
		FramesInFlight:    2,
		BeginFrameTimeout: time.Second,
		MaxResourceCount:  64,
		RingPools:         pools,
	}, device)
	c.Assert(err, qt.IsNil)
	return sm
}

func TestSystemManagerWiring(t *testing.T) {
	c := qt.New(t)
	sm := newSystemManager(c, soft.New(0, 0), systems.RingBufferPoolConfig{
		Name: "debug_lines", SlotCount: 3, SlotCapacity: 256,
	})

	c.Assert(sm.Pool("debug_lines"), qt.IsNotNil)
	c.Assert(sm.Pool("missing"), qt.IsNil)

	slot, err := sm.ClaimRingSlot("debug_lines")
	c.Assert(err, qt.IsNil)
	c.Assert(slot.Index, qt.Equals, 0)

	_, err = sm.ClaimRingSlot("missing")
	c.Assert(err, qt.ErrorIs, core.ErrNotFound)

	c.Assert(sm.Shutdown(), qt.IsNil)
}

func TestSystemManagerRejectsDuplicatePoolNames(t *testing.T) {
	c := qt.New(t)
	sm := newSystemManager(c, soft.New(0, 0), systems.RingBufferPoolConfig{
		Name: "debug_lines", SlotCount: 3, SlotCapacity: 256,
	})

	_, err := sm.CreateRingPool(&systems.RingBufferPoolConfig{
		Name: "debug_lines", SlotCount: 3, SlotCapacity: 256,
	})
	c.Assert(err, qt.IsNotNil)
	c.Assert(sm.Shutdown(), qt.IsNil)
}

func TestSystemManagerAllocateOrEvict(t *testing.T) {
	c := qt.New(t)
	device := soft.New(1000, 0)
	sm := newSystemManager(c, device)

	// Fill most of the budget, then retire the allocation without freeing it.
	old, err := sm.Resources().Allocate(vertexData(0x01, 600), 50, nil, 0, "old_chunk")
	c.Assert(err, qt.IsNil)
	sm.Deferred().Enqueue(old)

	// A plain allocate cannot fit until the countdown expires.
	_, err = sm.Resources().Allocate(vertexData(0x02, 600), 50, nil, 0, "new_chunk")
	c.Assert(err, qt.ErrorIs, core.ErrOutOfDeviceMemory)

	// The evicting path flushes the deferred queue and retries.
	handle, err := sm.AllocateOrEvict(vertexData(0x02, 600), 50, nil, 0, "new_chunk")
	c.Assert(err, qt.IsNil)

	resource, err := sm.Resources().Get(handle)
	c.Assert(err, qt.IsNil)
	c.Assert(resource.Name, qt.Equals, "new_chunk")
	c.Assert(sm.Resources().LiveCount(), qt.Equals, uint32(1))
	c.Assert(sm.Telemetry().CurrentTotal(), qt.Equals, int64(600))

	c.Assert(sm.Shutdown(), qt.IsNil)
	c.Assert(device.Allocated(), qt.Equals, uint64(0))
}

func TestSystemManagerAllocateOrEvictStillFails(t *testing.T) {
	c := qt.New(t)
	sm := newSystemManager(c, soft.New(100, 0))

	// Nothing queued to evict: the retry hits the same wall.
	_, err := sm.AllocateOrEvict(vertexData(0x01, 200), 10, nil, 0, "too_big")
	c.Assert(err, qt.ErrorIs, core.ErrOutOfDeviceMemory)
	c.Assert(sm.Shutdown(), qt.IsNil)
}

func TestSystemManagerShutdownReleasesEverything(t *testing.T) {
	c := qt.New(t)
	device := soft.New(0, 2)
	sm := newSystemManager(c, device, systems.RingBufferPoolConfig{
		Name: "markers", SlotCount: 3, SlotCapacity: 128,
	})

	_, err := sm.Resources().Allocate(vertexData(0x01, 512), 32, nil, 0, "leaked")
	c.Assert(err, qt.IsNil)
	retiring, err := sm.Resources().Allocate(vertexData(0x02, 512), 32, nil, 0, "retiring")
	c.Assert(err, qt.IsNil)
	sm.Deferred().Enqueue(retiring)

	c.Assert(sm.Shutdown(), qt.IsNil)
	c.Assert(sm.Telemetry().CurrentTotal(), qt.Equals, int64(0))
	c.Assert(device.Allocated(), qt.Equals, uint64(0))
}
