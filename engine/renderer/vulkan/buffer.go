package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/aurora/engine/core"
)

// VulkanBuffer is a host-visible, persistently mapped device buffer. The
// lifecycle systems rewrite mapped contents directly, so the memory is
// allocated host-coherent and stays mapped until destruction.
type VulkanBuffer struct {
	context  *VulkanContext
	Handle   vk.Buffer
	Memory   vk.DeviceMemory
	capacity uint64
	mapped   unsafe.Pointer
}

func NewBuffer(context *VulkanContext, size uint64) (*VulkanBuffer, error) {
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageIndexBufferBit | vk.BufferUsageTransferDstBit),
		SharingMode: vk.SharingModeExclusive,
	}

	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferCreateInfo, context.Allocator, &handle); res != vk.Success {
		return nil, wrapAllocResult("create buffer", res)
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryIndex := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits,
		uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if memoryIndex < 0 {
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		return nil, fmt.Errorf("no host-visible memory type for buffer of %d bytes", size)
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		return nil, wrapAllocResult("allocate buffer memory", res)
	}

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(context.Device.LogicalDevice, memory, context.Allocator)
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		return nil, fmt.Errorf("failed to bind buffer memory with error `%s`", VulkanResultString(res))
	}

	var mapped unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, memory, 0, vk.DeviceSize(size), 0, &mapped); res != vk.Success {
		vk.FreeMemory(context.Device.LogicalDevice, memory, context.Allocator)
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		return nil, fmt.Errorf("failed to map buffer memory with error `%s`", VulkanResultString(res))
	}

	return &VulkanBuffer{
		context:  context,
		Handle:   handle,
		Memory:   memory,
		capacity: size,
		mapped:   mapped,
	}, nil
}

func (vb *VulkanBuffer) Capacity() uint64 {
	return vb.capacity
}

func (vb *VulkanBuffer) Upload(offset uint64, data []byte) error {
	if vb.Handle == vk.NullBuffer {
		return fmt.Errorf("upload to destroyed buffer: %w", core.ErrNotFound)
	}
	if offset+uint64(len(data)) > vb.capacity {
		return fmt.Errorf("upload of %d bytes at offset %d overflows buffer of %d bytes: %w",
			len(data), offset, vb.capacity, core.ErrSizeMismatch)
	}
	dst := unsafe.Pointer(uintptr(vb.mapped) + uintptr(offset))
	vk.Memcopy(dst, data)
	return nil
}

func (vb *VulkanBuffer) destroy() {
	if vb.mapped != nil {
		vk.UnmapMemory(vb.context.Device.LogicalDevice, vb.Memory)
		vb.mapped = nil
	}
	if vb.Handle != vk.NullBuffer {
		vk.DestroyBuffer(vb.context.Device.LogicalDevice, vb.Handle, vb.context.Allocator)
		vb.Handle = vk.NullBuffer
	}
	if vb.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(vb.context.Device.LogicalDevice, vb.Memory, vb.context.Allocator)
		vb.Memory = vk.NullDeviceMemory
	}
}

func wrapAllocResult(op string, res vk.Result) error {
	if res == vk.ErrorOutOfDeviceMemory || res == vk.ErrorOutOfHostMemory {
		return fmt.Errorf("%s failed with `%s`: %w", op, VulkanResultString(res), core.ErrOutOfDeviceMemory)
	}
	return fmt.Errorf("%s failed with `%s`", op, VulkanResultString(res))
}
