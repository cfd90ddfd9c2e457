package vulkan

import (
	"fmt"
	"math"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	// Surface capabilities
	if err := resultError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities)); err != nil {
		return err
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	// Surface formats
	var formatCount uint32
	if err := resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil)); err != nil {
		return err
	}
	supportInfo.Formats = make([]vk.SurfaceFormat, formatCount)
	if formatCount != 0 {
		if err := resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, supportInfo.Formats)); err != nil {
			return err
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	// Present modes
	var presentModeCount uint32
	if err := resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, nil)); err != nil {
		return err
	}
	supportInfo.PresentModes = make([]vk.PresentMode, presentModeCount)
	if presentModeCount != 0 {
		if err := resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, supportInfo.PresentModes)); err != nil {
			return err
		}
	}
	return nil
}

/**
 * @brief A FIFO or mailbox swap chain. The next image is acquired as soon as
 * the previous one is presented, so CurrentBackBufferIndex is always the
 * image the next frame renders into.
 */
type VulkanSwapchain struct {
	device      *Device
	queue       *commandQueue
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	Extent      vk.Extent2D

	buffers []*resource
	acquire *VulkanFence

	mu      sync.Mutex
	current uint32
}

var _ device.SwapChain = (*VulkanSwapchain)(nil)

func choosePresentMode(modes []vk.PresentMode, vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	for _, preferred := range []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeImmediate} {
		for _, mode := range modes {
			if mode == preferred {
				return mode
			}
		}
	}
	return vk.PresentModeFifo
}

func SwapchainCreate(d *Device, q *commandQueue, desc device.SwapChainDesc) (*VulkanSwapchain, error) {
	// Capabilities change with the window, query them again.
	support := &d.SwapchainSupport
	if err := DeviceQuerySwapchainSupport(d.PhysicalDevice, d.context.Surface, support); err != nil {
		return nil, err
	}

	swapchain := &VulkanSwapchain{device: d, queue: q}
	want := vkFormat(desc.Format)
	found := false
	for _, format := range support.Formats {
		if format.Format == want && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			swapchain.ImageFormat = format
			found = true
		}
	}
	if !found {
		return nil, apiError("vkCreateSwapchainKHR", "surface does not offer %s", desc.Format)
	}

	swapchain.Extent = vk.Extent2D{Width: desc.Width, Height: desc.Height}
	capabilities := support.Capabilities
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		swapchain.Extent = capabilities.CurrentExtent
	}
	if swapchain.Extent.Width != desc.Width || swapchain.Extent.Height != desc.Height {
		core.LogWarn("surface is %dx%d, swap chain requested %dx%d",
			swapchain.Extent.Width, swapchain.Extent.Height, desc.Width, desc.Height)
	}
	if desc.BufferCount < capabilities.MinImageCount ||
		(capabilities.MaxImageCount > 0 && desc.BufferCount > capabilities.MaxImageCount) {
		return nil, apiError("vkCreateSwapchainKHR", "%d buffers outside surface range [%d, %d]",
			desc.BufferCount, capabilities.MinImageCount, capabilities.MaxImageCount)
	}

	// Swapchain create info
	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.context.Surface,
		MinImageCount:    desc.BufferCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) | vk.ImageUsageFlags(vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      choosePresentMode(support.PresentModes, desc.VSync),
		Clipped:          vk.True,
	}
	if families := d.sharedFamilies(); families != nil {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = uint32(len(families))
		swapchainCreateInfo.PQueueFamilyIndices = families
	}
	if err := resultError("vkCreateSwapchainKHR", vk.CreateSwapchain(d.LogicalDevice, &swapchainCreateInfo, d.context.Allocator, &swapchain.Handle)); err != nil {
		return nil, err
	}

	// Images
	var imageCount uint32
	if err := resultError("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(d.LogicalDevice, swapchain.Handle, &imageCount, nil)); err != nil {
		swapchain.Release()
		return nil, err
	}
	if imageCount != desc.BufferCount {
		swapchain.Release()
		return nil, apiError("vkGetSwapchainImagesKHR", "driver created %d images, want %d", imageCount, desc.BufferCount)
	}
	images := make([]vk.Image, imageCount)
	if err := resultError("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(d.LogicalDevice, swapchain.Handle, &imageCount, images)); err != nil {
		swapchain.Release()
		return nil, err
	}

	// Only the views are ours. The images belong to the swap chain.
	for i, image := range images {
		r := &resource{
			device: d,
			id:     core.NewResourceID(),
			desc: metadata.NewTexture2DDesc(fmt.Sprintf("BackBuffer[%d]", i),
				swapchain.Extent.Width, swapchain.Extent.Height, desc.Format, metadata.ResourceFlagAllowRenderTarget),
			image:     image,
			state:     metadata.ResourceStatePresent,
			undefined: true,
		}
		view, err := d.createImageView(image, swapchain.ImageFormat.Format, r.aspect())
		if err != nil {
			swapchain.Release()
			return nil, err
		}
		r.view = view
		swapchain.buffers = append(swapchain.buffers, r)
		d.mu.Lock()
		d.resources[r.id] = r
		d.mu.Unlock()
	}

	fence, err := NewFence(d)
	if err != nil {
		swapchain.Release()
		return nil, err
	}
	swapchain.acquire = fence
	if err := swapchain.acquireNext(); err != nil {
		swapchain.Release()
		return nil, err
	}

	core.LogInfo("Swapchain created successfully (%dx%d, %d buffers, %s).",
		swapchain.Extent.Width, swapchain.Extent.Height, imageCount, VulkanPresentModeString(swapchainCreateInfo.PresentMode))
	return swapchain, nil
}

// acquireNext blocks until the next image is available to render into.
func (vs *VulkanSwapchain) acquireNext() error {
	d := vs.device
	var index uint32
	result := vk.AcquireNextImage(d.LogicalDevice, vs.Handle, noTimeout, nil, vs.acquire.Handle, &index)
	if result == vk.Suboptimal {
		core.LogDebug("swap chain is suboptimal")
	} else if err := resultError("vkAcquireNextImageKHR", result); err != nil {
		return err
	}
	if err := vs.acquire.WaitAndReset(d); err != nil {
		return err
	}
	vs.mu.Lock()
	vs.current = index
	vs.mu.Unlock()
	return nil
}

func (vs *VulkanSwapchain) BufferCount() uint32 { return uint32(len(vs.buffers)) }

func (vs *VulkanSwapchain) Buffer(index uint32) (device.Resource, error) {
	if index >= uint32(len(vs.buffers)) {
		return nil, apiError("GetBuffer", "back buffer %d of %d", index, len(vs.buffers))
	}
	return vs.buffers[index], nil
}

func (vs *VulkanSwapchain) CurrentBackBufferIndex() uint32 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.current
}

// Present queues the current image behind all work already submitted to the
// graphics queue, then acquires the next image.
func (vs *VulkanSwapchain) Present() error {
	d := vs.device
	if err := d.lostErr(); err != nil {
		return fmt.Errorf("device lost: %w", err)
	}
	return vs.queue.runSync(func() error {
		presentInfo := vk.PresentInfo{
			SType:          vk.StructureTypePresentInfo,
			SwapchainCount: 1,
			PSwapchains:    []vk.Swapchain{vs.Handle},
			PImageIndices:  []uint32{vs.CurrentBackBufferIndex()},
		}
		var result vk.Result
		_ = d.locks.SafeQueueCall(vs.queue.handle, func() error {
			result = vk.QueuePresent(vs.queue.handle, &presentInfo)
			return nil
		})
		if result == vk.Suboptimal {
			core.LogDebug("swap chain is suboptimal")
		} else if err := resultError("vkQueuePresentKHR", result); err != nil {
			d.markLost(err)
			return err
		}
		return vs.acquireNext()
	})
}

func (vs *VulkanSwapchain) Release() {
	d := vs.device
	d.WaitIdle()
	for _, r := range vs.buffers {
		r.Release()
		d.mu.Lock()
		delete(d.resources, r.id)
		d.mu.Unlock()
	}
	vs.buffers = nil
	if vs.acquire != nil {
		vs.acquire.Destroy(d)
		vs.acquire = nil
	}
	if vs.Handle != nil {
		vk.DestroySwapchain(d.LogicalDevice, vs.Handle, d.context.Allocator)
		vs.Handle = nil
	}
}

func VulkanPresentModeString(mode vk.PresentMode) string {
	switch mode {
	case vk.PresentModeFifo:
		return "FIFO"
	case vk.PresentModeMailbox:
		return "MAILBOX"
	case vk.PresentModeImmediate:
		return "IMMEDIATE"
	case vk.PresentModeFifoRelaxed:
		return "FIFO_RELAXED"
	}
	return "UNKNOWN"
}
