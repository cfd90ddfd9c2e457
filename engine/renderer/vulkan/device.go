// Package vulkan implements the renderer's device interfaces on Vulkan.
// Descriptor heaps are shadowed on the CPU and turned into descriptor sets at
// draw time, render passes are derived from the bound targets, and resource
// states map onto image layouts and access masks.
package vulkan

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
)

type Options struct {
	ApplicationName string
	Surface         SurfaceProvider
	// Validation enables VK_LAYER_KHRONOS_validation when it is installed.
	Validation bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	ComputeFamilyIndex  int32
	// ComputeQueueIndex is 1 when compute shares the graphics family and the
	// family exposes a second queue.
	ComputeQueueIndex uint32
}

type Device struct {
	context *VulkanContext

	PhysicalDevice   vk.PhysicalDevice
	LogicalDevice    vk.Device
	SwapchainSupport VulkanSwapchainSupportInfo
	Queues           VulkanPhysicalDeviceQueueFamilyInfo
	Properties       vk.PhysicalDeviceProperties
	Memory           vk.PhysicalDeviceMemoryProperties

	graphicsQueue vk.Queue
	computeQueue  vk.Queue
	locks         *VulkanLockPool

	// transferPool records one-shot layout initialisation on the graphics queue.
	transferPool vk.CommandPool
	transferMu   sync.Mutex

	mu           sync.Mutex
	heaps        []*descriptorHeap
	resources    map[core.ResourceID]*resource
	nextVA       uint64
	renderPasses map[string]vk.RenderPass
	framebuffers map[string]*VulkanFramebuffer
	lost         error
}

var _ device.Device = (*Device)(nil)

func NewDevice(opts Options) (*Device, error) {
	vc, err := NewVulkanContext(opts.ApplicationName, opts.Surface, opts.Validation)
	if err != nil {
		return nil, err
	}
	d := &Device{
		context:      vc,
		locks:        NewVulkanLockPool(),
		resources:    make(map[core.ResourceID]*resource),
		nextVA:       0x0000_7F00_0000_0000,
		renderPasses: make(map[string]vk.RenderPass),
		framebuffers: make(map[string]*VulkanFramebuffer),
	}
	if err := d.selectPhysicalDevice(); err != nil {
		vc.Destroy()
		return nil, err
	}
	if err := d.createLogicalDevice(); err != nil {
		vc.Destroy()
		return nil, err
	}
	return d, nil
}

func (d *Device) selectPhysicalDevice() error {
	var count uint32
	if err := resultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(d.context.Instance, &count, nil)); err != nil {
		return err
	}
	if count == 0 {
		return apiError("vkEnumeratePhysicalDevices", "no devices which support Vulkan were found")
	}
	physicalDevices := make([]vk.PhysicalDevice, count)
	if err := resultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(d.context.Instance, &count, physicalDevices)); err != nil {
		return err
	}

	bestScore := -1
	for _, pd := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()
		properties.Limits.Deref()

		var support VulkanSwapchainSupportInfo
		queues, ok := PhysicalDeviceMeetsRequirements(pd, d.context.Surface, &properties, &support)
		if !ok {
			continue
		}
		score := 0
		if properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			score += 2
		}
		if queues.ComputeFamilyIndex != queues.GraphicsFamilyIndex || queues.ComputeQueueIndex > 0 {
			score++
		}
		if score > bestScore {
			bestScore = score
			d.PhysicalDevice = pd
			d.Properties = properties
			d.Queues = queues
			d.SwapchainSupport = support
		}
	}
	if d.PhysicalDevice == nil {
		return apiError("SelectPhysicalDevice", "no physical devices meet the requirements")
	}

	vk.GetPhysicalDeviceMemoryProperties(d.PhysicalDevice, &d.Memory)
	d.Memory.Deref()

	core.LogInfo("Selected device: '%s'.", cString(d.Properties.DeviceName[:]))
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version.Major(vk.Version(d.Properties.ApiVersion)),
		vk.Version.Minor(vk.Version(d.Properties.ApiVersion)),
		vk.Version.Patch(vk.Version(d.Properties.ApiVersion)),
	)
	for j := uint32(0); j < d.Memory.MemoryHeapCount; j++ {
		d.Memory.MemoryHeaps[j].Deref()
		gib := float64(d.Memory.MemoryHeaps[j].Size) / (1 << 30)
		if vk.MemoryHeapFlagBits(d.Memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", gib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", gib)
		}
	}
	return nil
}

/**
 * @brief Checks a device for a graphics family that can present, a compute
 * family and swap chain support. A family with compute but no graphics is
 * preferred for the compute queue.
 */
func PhysicalDeviceMeetsRequirements(pd vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, outSupport *VulkanSwapchainSupportInfo) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	info := VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, ComputeFamilyIndex: -1}
	name := cString(properties.DeviceName[:])

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, families)

	graphicsQueueCount := uint32(0)
	for i := range families {
		families[i].Deref()
		flags := vk.QueueFlagBits(families[i].QueueFlags)
		graphics := flags&vk.QueueGraphicsBit != 0
		compute := flags&vk.QueueComputeBit != 0

		var present vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), surface, &present)

		if graphics && compute && present == vk.True && info.GraphicsFamilyIndex < 0 {
			info.GraphicsFamilyIndex = int32(i)
			graphicsQueueCount = families[i].QueueCount
		}
		if compute && !graphics && info.ComputeFamilyIndex < 0 {
			info.ComputeFamilyIndex = int32(i)
		}
	}
	if info.GraphicsFamilyIndex < 0 {
		core.LogInfo("%s: no graphics queue family can present, skipping.", name)
		return info, false
	}
	if info.ComputeFamilyIndex < 0 {
		info.ComputeFamilyIndex = info.GraphicsFamilyIndex
		if graphicsQueueCount > 1 {
			info.ComputeQueueIndex = 1
		}
	}

	if !deviceExtensionAvailable(pd, vk.KhrSwapchainExtensionName) {
		core.LogInfo("%s: %s not found, skipping.", name, vk.KhrSwapchainExtensionName)
		return info, false
	}
	if err := DeviceQuerySwapchainSupport(pd, surface, outSupport); err != nil {
		return info, false
	}
	if len(outSupport.Formats) == 0 || len(outSupport.PresentModes) == 0 {
		core.LogInfo("%s: required swapchain support not present, skipping.", name)
		return info, false
	}

	core.LogDebug("%s: graphics family %d, compute family %d queue %d",
		name, info.GraphicsFamilyIndex, info.ComputeFamilyIndex, info.ComputeQueueIndex)
	return info, true
}

func deviceExtensionAvailable(pd vk.PhysicalDevice, name string) bool {
	name = strings.TrimRight(name, "\x00")
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil); res != vk.Success {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

func (d *Device) createLogicalDevice() error {
	q := d.Queues
	priorities := []float32{1.0, 1.0}
	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: uint32(q.GraphicsFamilyIndex),
		QueueCount:       1 + q.ComputeQueueIndex,
		PQueuePriorities: priorities[:1+q.ComputeQueueIndex],
	}}
	if q.ComputeFamilyIndex != q.GraphicsFamilyIndex {
		queueCreateInfos = append(queueCreateInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(q.ComputeFamilyIndex),
			QueueCount:       1,
			PQueuePriorities: priorities[:1],
		})
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	if runtime.GOOS == "darwin" && deviceExtensionAvailable(d.PhysicalDevice, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensions = append(extensions, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}
	if err := resultError("vkCreateDevice", vk.CreateDevice(d.PhysicalDevice, &deviceCreateInfo, d.context.Allocator, &d.LogicalDevice)); err != nil {
		return err
	}
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(d.LogicalDevice, uint32(q.GraphicsFamilyIndex), 0, &d.graphicsQueue)
	vk.GetDeviceQueue(d.LogicalDevice, uint32(q.ComputeFamilyIndex), q.ComputeQueueIndex, &d.computeQueue)

	pool, err := d.createCommandPool(uint32(q.GraphicsFamilyIndex))
	if err != nil {
		vk.DestroyDevice(d.LogicalDevice, d.context.Allocator)
		d.LogicalDevice = nil
		return err
	}
	d.transferPool = pool
	return nil
}

func (d *Device) createCommandPool(family uint32) (vk.CommandPool, error) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	err := resultError("vkCreateCommandPool", vk.CreateCommandPool(d.LogicalDevice, &poolCreateInfo, d.context.Allocator, &pool))
	return pool, err
}

func (d *Device) family(kind device.QueueKind) uint32 {
	if kind == device.QueueCompute {
		return uint32(d.Queues.ComputeFamilyIndex)
	}
	return uint32(d.Queues.GraphicsFamilyIndex)
}

func (d *Device) vkQueue(kind device.QueueKind) vk.Queue {
	if kind == device.QueueCompute {
		return d.computeQueue
	}
	return d.graphicsQueue
}

// sharedFamilies lists the distinct queue families resources are shared across.
func (d *Device) sharedFamilies() []uint32 {
	if d.Queues.ComputeFamilyIndex == d.Queues.GraphicsFamilyIndex {
		return nil
	}
	return []uint32{uint32(d.Queues.GraphicsFamilyIndex), uint32(d.Queues.ComputeFamilyIndex)}
}

// FindMemoryIndex returns the first memory type in typeFilter with every
// requested property, or -1.
func (d *Device) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	for i := uint32(0); i < d.Memory.MemoryTypeCount; i++ {
		d.Memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && d.Memory.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// markLost records the first failure seen while executing on a queue.
func (d *Device) markLost(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost == nil {
		d.lost = err
	}
}

func (d *Device) lostErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}

func (d *Device) CreateCommandQueue(kind device.QueueKind) (device.CommandQueue, error) {
	return newQueue(d, kind)
}

func (d *Device) CreateCommandList(kind device.QueueKind) (device.CommandList, error) {
	return newCommandList(d, kind)
}

func (d *Device) CreateFence(initialValue uint64) (device.Fence, error) {
	return newFence(initialValue), nil
}

func (d *Device) CreateSwapChain(queue device.CommandQueue, desc device.SwapChainDesc) (device.SwapChain, error) {
	q, ok := queue.(*commandQueue)
	if !ok || q.kind != device.QueueGraphics {
		return nil, apiError("CreateSwapChain", "swap chain needs a graphics queue")
	}
	return SwapchainCreate(d, q, desc)
}

// resourceAt resolves a GPU virtual address to the buffer containing it.
func (d *Device) resourceAt(address uint64) *resource {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buffers []*resource
	for _, r := range d.resources {
		if r.address != 0 && !r.released {
			buffers = append(buffers, r)
		}
	}
	sort.Slice(buffers, func(i, j int) bool { return buffers[i].address < buffers[j].address })
	i := sort.Search(len(buffers), func(i int) bool { return buffers[i].address+buffers[i].desc.Width > address })
	if i < len(buffers) && buffers[i].address <= address {
		return buffers[i]
	}
	return nil
}

// WaitIdle blocks until every queue has drained.
func (d *Device) WaitIdle() {
	if d.LogicalDevice != nil {
		vk.DeviceWaitIdle(d.LogicalDevice)
	}
}

// Release destroys the device. Live resources at this point are leaks.
func (d *Device) Release() {
	d.WaitIdle()

	d.mu.Lock()
	live := 0
	for _, r := range d.resources {
		if !r.released {
			live++
		}
	}
	framebuffers := d.framebuffers
	renderPasses := d.renderPasses
	d.framebuffers = make(map[string]*VulkanFramebuffer)
	d.renderPasses = make(map[string]vk.RenderPass)
	d.heaps = nil
	d.mu.Unlock()

	if live > 0 {
		core.LogWarn("vulkan device released with %d live resources", live)
	}
	for _, fb := range framebuffers {
		fb.Destroy(d)
	}
	for _, rp := range renderPasses {
		vk.DestroyRenderPass(d.LogicalDevice, rp, d.context.Allocator)
	}
	if d.transferPool != nil {
		vk.DestroyCommandPool(d.LogicalDevice, d.transferPool, d.context.Allocator)
		d.transferPool = nil
	}
	if d.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(d.LogicalDevice, d.context.Allocator)
		d.LogicalDevice = nil
	}
	d.context.Destroy()
}

func (d *Device) String() string {
	return fmt.Sprintf("vulkan(%s)", cString(d.Properties.DeviceName[:]))
}
