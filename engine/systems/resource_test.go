package systems_test

import (
	"bytes"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/metadata"
	"github.com/spaghettifunk/aurora/engine/renderer/soft"
	"github.com/spaghettifunk/aurora/engine/systems"
)

func newResourceSystem(c *qt.C, budget uint64) (*systems.ResourceSystem, *soft.Device, *systems.TelemetryCounter) {
	device := soft.New(budget, 0)
	telemetry := systems.NewTelemetryCounter()
	rs, err := systems.NewResourceSystem(&systems.ResourceSystemConfig{MaxResourceCount: 64}, device, telemetry)
	c.Assert(err, qt.IsNil)
	return rs, device, telemetry
}

func vertexData(fill byte, size int) []byte {
	return bytes.Repeat([]byte{fill}, size)
}

func TestResourceAllocateAndGet(t *testing.T) {
	c := qt.New(t)
	rs, _, telemetry := newResourceSystem(c, 0)

	vertices := vertexData(0xAA, 120)
	handle, err := rs.Allocate(vertices, 10, nil, 0, "terrain_chunk_0")
	c.Assert(err, qt.IsNil)
	c.Assert(handle.IsNil(), qt.IsFalse)

	resource, err := rs.Get(handle)
	c.Assert(err, qt.IsNil)
	c.Assert(resource.Name, qt.Equals, "terrain_chunk_0")
	c.Assert(resource.VertexCount, qt.Equals, uint32(10))
	c.Assert(resource.IndexBuffer, qt.IsNil)

	buffer, ok := resource.VertexBuffer.(*soft.Buffer)
	c.Assert(ok, qt.IsTrue)
	c.Assert(buffer.Bytes(), qt.DeepEquals, vertices)

	c.Assert(telemetry.CurrentTotal(), qt.Equals, int64(120))
	c.Assert(rs.LiveCount(), qt.Equals, uint32(1))
}

func TestResourceIndexedAllocation(t *testing.T) {
	c := qt.New(t)
	rs, _, telemetry := newResourceSystem(c, 0)

	handle, err := rs.Allocate(vertexData(0x01, 96), 8, vertexData(0x02, 24), 12, "quad")
	c.Assert(err, qt.IsNil)

	resource, err := rs.Get(handle)
	c.Assert(err, qt.IsNil)
	c.Assert(resource.IndexCount, qt.Equals, uint32(12))
	c.Assert(resource.TotalBytes(), qt.Equals, int64(120))
	c.Assert(telemetry.CurrentTotal(), qt.Equals, int64(120))
}

func TestResourceSlotReuseBumpsGeneration(t *testing.T) {
	c := qt.New(t)
	rs, _, _ := newResourceSystem(c, 0)

	first, err := rs.Allocate(vertexData(0x01, 32), 2, nil, 0, "first")
	c.Assert(err, qt.IsNil)
	c.Assert(first, qt.Equals, metadata.Handle{Index: 0, Generation: 0})

	second, err := rs.Allocate(vertexData(0x02, 32), 2, nil, 0, "second")
	c.Assert(err, qt.IsNil)
	c.Assert(second, qt.Equals, metadata.Handle{Index: 1, Generation: 0})

	c.Assert(rs.Release(first), qt.IsNil)

	// The freed slot is reused for the next allocation, at a new generation.
	third, err := rs.Allocate(vertexData(0x03, 48), 3, nil, 0, "third")
	c.Assert(err, qt.IsNil)
	c.Assert(third, qt.Equals, metadata.Handle{Index: 0, Generation: 1})

	// The reissued slot never aliases the released resource.
	resource, err := rs.Get(third)
	c.Assert(err, qt.IsNil)
	c.Assert(resource.Name, qt.Equals, "third")

	// The old handle to the same slot is rejected, not silently remapped.
	_, err = rs.Get(first)
	c.Assert(err, qt.ErrorIs, core.ErrStaleHandle)

	// Unrelated live handles are unaffected.
	resource, err = rs.Get(second)
	c.Assert(err, qt.IsNil)
	c.Assert(resource.Name, qt.Equals, "second")
}

func TestResourceGetRejectsUnknownHandles(t *testing.T) {
	c := qt.New(t)
	rs, _, _ := newResourceSystem(c, 0)

	_, err := rs.Get(metadata.NilHandle)
	c.Assert(err, qt.ErrorIs, core.ErrNotFound)

	_, err = rs.Get(metadata.Handle{Index: 99})
	c.Assert(err, qt.ErrorIs, core.ErrNotFound)

	handle, err := rs.Allocate(vertexData(0x01, 16), 1, nil, 0, "")
	c.Assert(err, qt.IsNil)
	c.Assert(rs.Release(handle), qt.IsNil)

	// Released but not yet reissued: the slot is empty.
	_, err = rs.Get(metadata.Handle{Index: handle.Index, Generation: handle.Generation + 1})
	c.Assert(err, qt.ErrorIs, core.ErrNotFound)
}

func TestResourceUpdate(t *testing.T) {
	c := qt.New(t)
	rs, _, _ := newResourceSystem(c, 0)

	handle, err := rs.Allocate(vertexData(0x0F, 64), 4, nil, 0, "editable")
	c.Assert(err, qt.IsNil)

	err = rs.Update(handle, vertexData(0x00, 32))
	c.Assert(err, qt.ErrorIs, core.ErrSizeMismatch)

	replacement := vertexData(0xF0, 64)
	c.Assert(rs.Update(handle, replacement), qt.IsNil)

	resource, err := rs.Get(handle)
	c.Assert(err, qt.IsNil)
	c.Assert(resource.VertexBuffer.(*soft.Buffer).Bytes(), qt.DeepEquals, replacement)
}

func TestResourceAllocateOutOfMemory(t *testing.T) {
	c := qt.New(t)
	rs, _, _ := newResourceSystem(c, 100)

	handle, err := rs.Allocate(vertexData(0x01, 200), 10, nil, 0, "too_big")
	c.Assert(err, qt.ErrorIs, core.ErrOutOfDeviceMemory)
	c.Assert(handle, qt.Equals, metadata.NilHandle)
	c.Assert(rs.LiveCount(), qt.Equals, uint32(0))
}

func TestResourceTableFull(t *testing.T) {
	c := qt.New(t)
	device := soft.New(0, 0)
	rs, err := systems.NewResourceSystem(&systems.ResourceSystemConfig{MaxResourceCount: 1}, device, systems.NewTelemetryCounter())
	c.Assert(err, qt.IsNil)

	_, err = rs.Allocate(vertexData(0x01, 8), 1, nil, 0, "")
	c.Assert(err, qt.IsNil)
	_, err = rs.Allocate(vertexData(0x02, 8), 1, nil, 0, "")
	c.Assert(err, qt.IsNotNil)
}

func TestResourceTelemetryConservation(t *testing.T) {
	c := qt.New(t)
	rs, device, telemetry := newResourceSystem(c, 0)

	a, err := rs.Allocate(vertexData(0x01, 1024), 64, nil, 0, "a")
	c.Assert(err, qt.IsNil)
	b, err := rs.Allocate(vertexData(0x02, 2048), 128, nil, 0, "b")
	c.Assert(err, qt.IsNil)
	c.Assert(telemetry.CurrentTotal(), qt.Equals, int64(3072))

	c.Assert(rs.Release(a), qt.IsNil)
	c.Assert(telemetry.CurrentTotal(), qt.Equals, int64(2048))

	c.Assert(rs.Release(b), qt.IsNil)
	c.Assert(telemetry.CurrentTotal(), qt.Equals, int64(0))
	c.Assert(device.Allocated(), qt.Equals, uint64(0))
}

func TestResourceShutdownReleasesLeaks(t *testing.T) {
	c := qt.New(t)
	rs, device, telemetry := newResourceSystem(c, 0)

	for i := 0; i < 3; i++ {
		_, err := rs.Allocate(vertexData(byte(i), 256), 16, nil, 0, "")
		c.Assert(err, qt.IsNil)
	}
	c.Assert(rs.Shutdown(), qt.IsNil)
	c.Assert(rs.LiveCount(), qt.Equals, uint32(0))
	c.Assert(telemetry.CurrentTotal(), qt.Equals, int64(0))
	c.Assert(device.Allocated(), qt.Equals, uint64(0))
}
