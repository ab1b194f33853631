package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/aurora/engine/core"
)

// VulkanDevice holds the selected physical device and the logical device
// created on it. Only a graphics-capable queue is required; this backend is
// headless and never presents.
type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex int32
	GraphicsQueue      vk.Queue
	CommandPool        vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties
}

func DeviceCreate(context *VulkanContext) error {
	if !selectPhysicalDevice(context) {
		return fmt.Errorf("no physical device meets the requirements")
	}

	core.LogInfo("Creating logical device...")

	queuePriority := float32(1.0)
	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		QueueCount:       1,
		PQueuePriorities: []float32{queuePriority},
	}}

	// The portability subset must be enabled when the implementation offers it.
	portabilityRequired := false
	var availableExtensionCount uint32
	if res := vk.EnumerateDeviceExtensionProperties(context.Device.PhysicalDevice, "", &availableExtensionCount, nil); res != vk.Success {
		err := fmt.Errorf("error in EnumerateDeviceExtensionProperties")
		core.LogError(err.Error())
		return err
	}
	if availableExtensionCount != 0 {
		availableExtensions := make([]vk.ExtensionProperties, availableExtensionCount)
		if res := vk.EnumerateDeviceExtensionProperties(context.Device.PhysicalDevice, "", &availableExtensionCount, availableExtensions); res != vk.Success {
			err := fmt.Errorf("error in EnumerateDeviceExtensionProperties")
			core.LogError(err.Error())
			return err
		}
		for i := 0; i < int(availableExtensionCount); i++ {
			availableExtensions[i].Deref()
			if FindFirstZeroInByteArray(availableExtensions[i].ExtensionName[:]) >= 0 &&
				string(availableExtensions[i].ExtensionName[:FindFirstZeroInByteArray(availableExtensions[i].ExtensionName[:])]) == "VK_KHR_portability_subset" {
				core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
				portabilityRequired = true
				break
			}
		}
	}

	extensionNames := []string{}
	if portabilityRequired {
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	if res := vk.CreateDevice(
		context.Device.PhysicalDevice,
		&deviceCreateInfo,
		context.Allocator,
		&context.Device.LogicalDevice); res != vk.Success {
		err := fmt.Errorf("failed to create logical device with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(
		context.Device.LogicalDevice,
		uint32(context.Device.GraphicsQueueIndex),
		0,
		&context.Device.GraphicsQueue)
	core.LogInfo("Queue obtained.")

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		err := fmt.Errorf("failed to create command pool with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	context.Device.CommandPool = pool
	core.LogInfo("Command pool created.")

	return nil
}

func DeviceDestroy(context *VulkanContext) {
	if context.Device.CommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(context.Device.LogicalDevice, context.Device.CommandPool, context.Allocator)
		context.Device.CommandPool = vk.NullCommandPool
	}
	if context.Device.LogicalDevice != nil {
		vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
		context.Device.LogicalDevice = nil
	}
	context.Device.PhysicalDevice = nil
	context.Device.GraphicsQueue = nil
	context.Device.GraphicsQueueIndex = -1
}

func selectPhysicalDevice(context *VulkanContext) bool {
	var physicalDeviceCount uint32 = 0
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return false
	}
	if physicalDeviceCount == 0 {
		core.LogError("No devices which support Vulkan were found.")
		return false
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return false
	}

	preferDiscrete := runtime.GOOS != "darwin"

	var fallback vk.PhysicalDevice
	var fallbackQueueIndex int32 = -1
	for i := 0; i < int(physicalDeviceCount); i++ {
		properties := vk.PhysicalDeviceProperties{}
		vk.GetPhysicalDeviceProperties(physicalDevices[i], &properties)
		properties.Deref()

		queueIndex := graphicsQueueIndex(physicalDevices[i])
		if queueIndex < 0 {
			continue
		}

		if preferDiscrete && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
			if fallback == nil {
				fallback = physicalDevices[i]
				fallbackQueueIndex = queueIndex
			}
			continue
		}

		return adoptDevice(context, physicalDevices[i], queueIndex, &properties)
	}

	if fallback != nil {
		properties := vk.PhysicalDeviceProperties{}
		vk.GetPhysicalDeviceProperties(fallback, &properties)
		properties.Deref()
		return adoptDevice(context, fallback, fallbackQueueIndex, &properties)
	}

	core.LogError("No physical device with a graphics queue was found.")
	return false
}

func adoptDevice(context *VulkanContext, device vk.PhysicalDevice, queueIndex int32, properties *vk.PhysicalDeviceProperties) bool {
	memory := vk.PhysicalDeviceMemoryProperties{}
	vk.GetPhysicalDeviceMemoryProperties(device, &memory)
	memory.Deref()

	name := properties.DeviceName[:]
	if end := FindFirstZeroInByteArray(name); end >= 0 {
		name = name[:end]
	}
	core.LogInfo("Selected device: '%s'.", string(name))

	switch properties.DeviceType {
	default:
		fallthrough
	case vk.PhysicalDeviceTypeOther:
		core.LogInfo("GPU type is Unknown.")
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	}

	for j := 0; j < int(memory.MemoryHeapCount); j++ {
		memory.MemoryHeaps[j].Deref()
		memorySizeGib := memory.MemoryHeaps[j].Size / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit > 0 {
			core.LogInfo("Local GPU memory: %d GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %d GiB", memorySizeGib)
		}
	}

	context.Device.PhysicalDevice = device
	context.Device.GraphicsQueueIndex = queueIndex
	context.Device.Properties = *properties
	context.Device.Memory = memory
	return true
}

func graphicsQueueIndex(device vk.PhysicalDevice) int32 {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	if queueFamilyCount == 0 {
		return -1
	}
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)
	for i := uint32(0); i < queueFamilyCount; i++ {
		queueFamilies[i].Deref()
		if vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit != 0 {
			return int32(i)
		}
	}
	return -1
}
