package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer"
)

// VulkanBackend implements renderer.Device on a headless Vulkan device: no
// surface, no swapchain, just buffer memory and fence-tracked submissions.
type VulkanBackend struct {
	context *VulkanContext
	debug   bool
}

var _ renderer.Device = (*VulkanBackend)(nil)

func New() *VulkanBackend {
	return &VulkanBackend{
		context: &VulkanContext{
			// TODO: custom allocator.
			Allocator: nil,
			Device:    &VulkanDevice{GraphicsQueueIndex: -1},
		},
		debug: true,
	}
}

func (vb *VulkanBackend) Initialize(appName string) error {
	// Headless: resolve the loader from the system Vulkan library instead of
	// a windowing layer.
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		core.LogError("failed to locate the Vulkan loader: %s", err)
		return err
	}
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Aurora Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{}
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
	}
	if vb.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers should only be enabled on non-release builds.
	requiredValidationLayerNames := []string{}
	if vb.debug {
		requiredValidationLayerNames = append(requiredValidationLayerNames, "VK_LAYER_KHRONOS_validation")
	}
	createInfo.EnabledLayerCount = uint32(len(requiredValidationLayerNames))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredValidationLayerNames)

	if res := vk.CreateInstance(&createInfo, vb.context.Allocator, &vb.context.Instance); res != vk.Success {
		err := fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vb.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if err := DeviceCreate(vb.context); err != nil {
		core.LogError("Failed to create device!")
		return err
	}

	return nil
}

func (vb *VulkanBackend) Shutdown() error {
	if err := vb.WaitIdle(); err != nil {
		return err
	}
	DeviceDestroy(vb.context)
	if vb.context.Instance != nil {
		vk.DestroyInstance(vb.context.Instance, vb.context.Allocator)
		vb.context.Instance = nil
	}
	return nil
}

func (vb *VulkanBackend) CreateBuffer(size uint64) (renderer.Buffer, error) {
	return NewBuffer(vb.context, size)
}

func (vb *VulkanBackend) DestroyBuffer(buffer renderer.Buffer) {
	b, ok := buffer.(*VulkanBuffer)
	if !ok || b == nil {
		return
	}
	b.destroy()
}

func (vb *VulkanBackend) CreateSignal(signaled bool) (renderer.CompletionSignal, error) {
	return NewFence(vb.context, signaled)
}

// Submit marks a frame boundary on the graphics queue. The engine records no
// drawing here; the fence-only submission is what ties the completion signal
// to everything the queue has consumed so far.
func (vb *VulkanBackend) Submit(signal renderer.CompletionSignal) error {
	fence, ok := signal.(*VulkanFence)
	if !ok {
		return fmt.Errorf("signal was not created by this device")
	}
	submitInfo := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
	}
	if res := vk.QueueSubmit(vb.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle); res != vk.Success {
		err := fmt.Errorf("queue submit failed with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (vb *VulkanBackend) WaitIdle() error {
	if vb.context.Device.LogicalDevice == nil {
		return nil
	}
	if res := vk.DeviceWaitIdle(vb.context.Device.LogicalDevice); res != vk.Success {
		return fmt.Errorf("device wait idle failed with error `%s`", VulkanResultString(res))
	}
	return nil
}
