package systems_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/soft"
	"github.com/spaghettifunk/aurora/engine/systems"
)

func newDeferredQueue(c *qt.C, framesInFlight int) (*systems.DeferredDestructionQueue, *systems.ResourceSystem) {
	device := soft.New(0, 0)
	rs, err := systems.NewResourceSystem(&systems.ResourceSystemConfig{MaxResourceCount: 64}, device, systems.NewTelemetryCounter())
	c.Assert(err, qt.IsNil)
	dq, err := systems.NewDeferredDestructionQueue(rs, device, framesInFlight)
	c.Assert(err, qt.IsNil)
	return dq, rs
}

func TestDeferredFreeCountdown(t *testing.T) {
	c := qt.New(t)
	dq, rs := newDeferredQueue(c, 2)

	handle, err := rs.Allocate(vertexData(0x01, 64), 4, nil, 0, "retiring")
	c.Assert(err, qt.IsNil)

	dq.EnqueueFor(handle, 2)
	c.Assert(dq.Len(), qt.Equals, 1)

	// Still resolvable after the first frame boundary.
	dq.Tick()
	_, err = rs.Get(handle)
	c.Assert(err, qt.IsNil)
	c.Assert(dq.Len(), qt.Equals, 1)

	// Gone after the second: the slot's generation has moved on.
	dq.Tick()
	_, err = rs.Get(handle)
	c.Assert(err, qt.ErrorIs, core.ErrStaleHandle)
	c.Assert(dq.Len(), qt.Equals, 0)
	c.Assert(rs.LiveCount(), qt.Equals, uint32(0))
}

func TestDeferredDefaultGraceIsFramesInFlight(t *testing.T) {
	c := qt.New(t)
	dq, rs := newDeferredQueue(c, 3)

	handle, err := rs.Allocate(vertexData(0x01, 64), 4, nil, 0, "")
	c.Assert(err, qt.IsNil)
	dq.Enqueue(handle)

	for i := 0; i < 2; i++ {
		dq.Tick()
		_, err = rs.Get(handle)
		c.Assert(err, qt.IsNil)
	}
	dq.Tick()
	_, err = rs.Get(handle)
	c.Assert(err, qt.IsNotNil)
}

func TestDeferredClampsBelowOneFrame(t *testing.T) {
	c := qt.New(t)
	dq, rs := newDeferredQueue(c, 2)

	handle, err := rs.Allocate(vertexData(0x01, 64), 4, nil, 0, "")
	c.Assert(err, qt.IsNil)

	// Never freed within the current frame, even when asked to.
	dq.EnqueueFor(handle, 0)
	_, err = rs.Get(handle)
	c.Assert(err, qt.IsNil)

	dq.Tick()
	_, err = rs.Get(handle)
	c.Assert(err, qt.IsNotNil)
}

func TestDeferredFlushReleasesImmediately(t *testing.T) {
	c := qt.New(t)
	dq, rs := newDeferredQueue(c, 2)

	a, err := rs.Allocate(vertexData(0x01, 64), 4, nil, 0, "a")
	c.Assert(err, qt.IsNil)
	b, err := rs.Allocate(vertexData(0x02, 64), 4, nil, 0, "b")
	c.Assert(err, qt.IsNil)

	dq.Enqueue(a)
	dq.Enqueue(b)
	c.Assert(dq.Flush(), qt.IsNil)
	c.Assert(dq.Len(), qt.Equals, 0)
	c.Assert(rs.LiveCount(), qt.Equals, uint32(0))
}

func TestDeferredToleratesDirectRelease(t *testing.T) {
	c := qt.New(t)
	dq, rs := newDeferredQueue(c, 2)

	handle, err := rs.Allocate(vertexData(0x01, 64), 4, nil, 0, "")
	c.Assert(err, qt.IsNil)
	dq.EnqueueFor(handle, 1)

	// Released out from under the queue; the expired entry is dropped with a
	// warning instead of freeing a reissued slot.
	c.Assert(rs.Release(handle), qt.IsNil)
	reissued, err := rs.Allocate(vertexData(0x02, 64), 4, nil, 0, "reissued")
	c.Assert(err, qt.IsNil)
	c.Assert(reissued.Index, qt.Equals, handle.Index)

	dq.Tick()
	c.Assert(dq.Len(), qt.Equals, 0)
	_, err = rs.Get(reissued)
	c.Assert(err, qt.IsNil)
}

func TestDeferredRejectsZeroFramesInFlight(t *testing.T) {
	c := qt.New(t)
	device := soft.New(0, 0)
	rs, err := systems.NewResourceSystem(&systems.ResourceSystemConfig{MaxResourceCount: 4}, device, systems.NewTelemetryCounter())
	c.Assert(err, qt.IsNil)

	_, err = systems.NewDeferredDestructionQueue(rs, device, 0)
	c.Assert(err, qt.IsNotNil)
}
