package systems

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/aurora/engine/containers"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer"
	"github.com/spaghettifunk/aurora/engine/renderer/metadata"
)

// BufferResource is the payload behind a resource table handle: an owned
// vertex buffer, an optional index buffer, and their element counts. The
// table entry is the exclusive owner of the underlying device memory.
type BufferResource struct {
	Name         string
	VertexBuffer renderer.Buffer
	VertexCount  uint32
	// IndexBuffer is nil for non-indexed resources.
	IndexBuffer renderer.Buffer
	IndexCount  uint32
}

// TotalBytes is the device memory held by this resource.
func (br *BufferResource) TotalBytes() int64 {
	total := int64(br.VertexBuffer.Capacity())
	if br.IndexBuffer != nil {
		total += int64(br.IndexBuffer.Capacity())
	}
	return total
}

type resourceSlot struct {
	resource   *BufferResource
	generation uint32
	live       bool
}

type ResourceSystemConfig struct {
	// MaxResourceCount bounds how many table entries may be live at once.
	MaxResourceCount uint32
}

// ResourceSystem owns the long-lived device buffers (uploaded meshes, terrain
// chunks, texture storage) behind generation-tagged handles with free-list
// slot reuse. Host-thread only.
type ResourceSystem struct {
	config    *ResourceSystemConfig
	device    renderer.Device
	telemetry *TelemetryCounter
	slots     []resourceSlot
	freeList  *containers.FreeList
	liveCount uint32
}

func NewResourceSystem(config *ResourceSystemConfig, device renderer.Device, telemetry *TelemetryCounter) (*ResourceSystem, error) {
	if config.MaxResourceCount == 0 {
		err := fmt.Errorf("func NewResourceSystem - config.MaxResourceCount must be > 0")
		core.LogWarn(err.Error())
		return nil, err
	}
	return &ResourceSystem{
		config:    config,
		device:    device,
		telemetry: telemetry,
		freeList:  containers.NewFreeList(),
	}, nil
}

// Allocate copies the caller-supplied data into newly created device-resident
// buffers and returns a handle to the table entry. Released slots are reused
// before the table grows. indices may be nil for non-indexed geometry.
//
// Failure to satisfy the device allocation is reported as
// core.ErrOutOfDeviceMemory; callers may flush the deferred destruction queue
// and retry.
func (rs *ResourceSystem) Allocate(vertices []byte, vertexCount uint32, indices []byte, indexCount uint32, name string) (metadata.Handle, error) {
	if len(vertices) == 0 {
		return metadata.NilHandle, fmt.Errorf("cannot allocate a resource with no vertex data")
	}
	if rs.liveCount >= rs.config.MaxResourceCount {
		return metadata.NilHandle, fmt.Errorf("resource table is full (%d entries). Adjust configuration to allow more space", rs.config.MaxResourceCount)
	}
	if name == "" {
		name = uuid.New().String()
	}

	vertexBuffer, err := rs.device.CreateBuffer(uint64(len(vertices)))
	if err != nil {
		return metadata.NilHandle, fmt.Errorf("vertex buffer for '%s': %w", name, err)
	}
	if err := vertexBuffer.Upload(0, vertices); err != nil {
		rs.device.DestroyBuffer(vertexBuffer)
		return metadata.NilHandle, fmt.Errorf("vertex upload for '%s': %w", name, err)
	}

	var indexBuffer renderer.Buffer
	if len(indices) > 0 {
		indexBuffer, err = rs.device.CreateBuffer(uint64(len(indices)))
		if err != nil {
			rs.device.DestroyBuffer(vertexBuffer)
			return metadata.NilHandle, fmt.Errorf("index buffer for '%s': %w", name, err)
		}
		if err := indexBuffer.Upload(0, indices); err != nil {
			rs.device.DestroyBuffer(indexBuffer)
			rs.device.DestroyBuffer(vertexBuffer)
			return metadata.NilHandle, fmt.Errorf("index upload for '%s': %w", name, err)
		}
	}

	resource := &BufferResource{
		Name:         name,
		VertexBuffer: vertexBuffer,
		VertexCount:  vertexCount,
		IndexBuffer:  indexBuffer,
		IndexCount:   indexCount,
	}

	index, reused := rs.freeList.Pop()
	if !reused {
		rs.slots = append(rs.slots, resourceSlot{})
		index = uint32(len(rs.slots) - 1)
	}

	slot := &rs.slots[index]
	slot.resource = resource
	slot.live = true
	rs.liveCount++

	handle := metadata.Handle{Index: index, Generation: slot.generation}
	rs.telemetry.RecordAlloc(rs.identity(handle), resource.TotalBytes())
	core.LogDebug("allocated resource '%s' as %s (%d bytes)", name, handle, resource.TotalBytes())
	return handle, nil
}

// Get resolves a handle to its resource. Returns core.ErrNotFound for a
// handle that was never issued or whose slot is empty, and
// core.ErrStaleHandle when the slot was released and reissued since the
// handle was obtained.
func (rs *ResourceSystem) Get(handle metadata.Handle) (*BufferResource, error) {
	slot, err := rs.resolve(handle)
	if err != nil {
		return nil, err
	}
	return slot.resource, nil
}

// Update overwrites the resource's vertex contents in place. The payload must
// match the original allocation size exactly; resizing requires a new
// allocation.
//
// This blocks on a full device drain before writing, trading latency for
// simplicity on frequently edited resources. Callers that update every frame
// should use a RingBufferPool instead.
func (rs *ResourceSystem) Update(handle metadata.Handle, vertices []byte) error {
	slot, err := rs.resolve(handle)
	if err != nil {
		return err
	}
	if uint64(len(vertices)) != slot.resource.VertexBuffer.Capacity() {
		return fmt.Errorf("update of '%s' with %d bytes, allocation holds %d: %w",
			slot.resource.Name, len(vertices), slot.resource.VertexBuffer.Capacity(), core.ErrSizeMismatch)
	}
	if err := rs.device.WaitIdle(); err != nil {
		return fmt.Errorf("drain before update of '%s': %w", slot.resource.Name, err)
	}
	return slot.resource.VertexBuffer.Upload(0, vertices)
}

// Release immediately frees the resource's device memory and returns the slot
// to the free list. Only safe when no submitted command stream can still
// reference the resource: either after a full pipeline drain, or from the
// deferred destruction queue once its countdown expires.
func (rs *ResourceSystem) Release(handle metadata.Handle) error {
	slot, err := rs.resolve(handle)
	if err != nil {
		return err
	}

	resource := slot.resource
	rs.telemetry.RecordFree(rs.identity(handle))
	rs.device.DestroyBuffer(resource.VertexBuffer)
	if resource.IndexBuffer != nil {
		rs.device.DestroyBuffer(resource.IndexBuffer)
	}

	slot.resource = nil
	slot.live = false
	slot.generation++
	rs.liveCount--
	rs.freeList.Push(handle.Index)

	core.LogDebug("released resource '%s' (%s)", resource.Name, handle)
	return nil
}

// LiveCount returns the number of live table entries.
func (rs *ResourceSystem) LiveCount() uint32 {
	return rs.liveCount
}

// Shutdown releases everything still live. The caller must have drained the
// device first.
func (rs *ResourceSystem) Shutdown() error {
	released := 0
	for i := range rs.slots {
		if !rs.slots[i].live {
			continue
		}
		handle := metadata.Handle{Index: uint32(i), Generation: rs.slots[i].generation}
		if err := rs.Release(handle); err != nil {
			return err
		}
		released++
	}
	if released > 0 {
		core.LogWarn("resource system released %d leaked resources at shutdown", released)
	}
	return nil
}

func (rs *ResourceSystem) resolve(handle metadata.Handle) (*resourceSlot, error) {
	if handle.IsNil() || handle.Index >= uint32(len(rs.slots)) {
		return nil, fmt.Errorf("%s: %w", handle, core.ErrNotFound)
	}
	slot := &rs.slots[handle.Index]
	if slot.generation != handle.Generation {
		return nil, fmt.Errorf("%s superseded by generation %d: %w", handle, slot.generation, core.ErrStaleHandle)
	}
	if !slot.live {
		return nil, fmt.Errorf("%s: %w", handle, core.ErrNotFound)
	}
	return slot, nil
}

// identity keys telemetry records. Index and generation make the key unique
// even when callers reuse resource names.
func (rs *ResourceSystem) identity(handle metadata.Handle) string {
	return fmt.Sprintf("resource:%d.%d", handle.Index, handle.Generation)
}
