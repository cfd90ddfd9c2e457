package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

/**
 * @brief A committed buffer or 2D image with its own memory. Images carry a
 * single view used for every descriptor kind.
 */
type resource struct {
	device  *Device
	id      core.ResourceID
	desc    metadata.ResourceDesc
	heap    metadata.HeapType
	address uint64

	buffer vk.Buffer
	image  vk.Image
	view   vk.ImageView
	memory vk.DeviceMemory
	mapped []byte
	// owned is false for swap chain images.
	owned bool

	// Guarded by device.mu; advanced as barriers are recorded.
	state     metadata.ResourceState
	undefined bool
	released  bool
}

var _ device.Resource = (*resource)(nil)

func (r *resource) ID() core.ResourceID         { return r.id }
func (r *resource) Desc() metadata.ResourceDesc { return r.desc }
func (r *resource) GPUVirtualAddress() uint64   { return r.address }

func (r *resource) isDepth() bool { return r.desc.Format.IsDepth() }

func (r *resource) aspect() vk.ImageAspectFlags {
	if r.isDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func (r *resource) Map() ([]byte, error) {
	if r.heap != metadata.HeapTypeUpload || r.mapped == nil {
		return nil, apiError("Map", "%q is not in an upload heap", r.desc.Name)
	}
	return r.mapped, nil
}

// Unmap is a no-op. Upload memory stays mapped until Release.
func (r *resource) Unmap() {}

func (r *resource) Release() {
	d := r.device
	d.mu.Lock()
	if r.released {
		d.mu.Unlock()
		return
	}
	r.released = true
	stale := d.takeFramebuffersLocked(r.id)
	d.mu.Unlock()

	for _, fb := range stale {
		fb.Destroy(d)
	}
	if r.view != nil {
		vk.DestroyImageView(d.LogicalDevice, r.view, d.context.Allocator)
		r.view = nil
	}
	if !r.owned {
		return
	}
	if r.mapped != nil {
		vk.UnmapMemory(d.LogicalDevice, r.memory)
		r.mapped = nil
	}
	if r.buffer != nil {
		vk.DestroyBuffer(d.LogicalDevice, r.buffer, d.context.Allocator)
		r.buffer = nil
	}
	if r.image != nil {
		vk.DestroyImage(d.LogicalDevice, r.image, d.context.Allocator)
		r.image = nil
	}
	if r.memory != nil {
		vk.FreeMemory(d.LogicalDevice, r.memory, d.context.Allocator)
		r.memory = nil
	}
}

// recordedState is the state the last recorded barrier left r in.
func (r *resource) recordedState() metadata.ResourceState {
	r.device.mu.Lock()
	defer r.device.mu.Unlock()
	return r.state
}

func (d *Device) CreateCommittedResource(desc metadata.ResourceDesc, heap metadata.HeapType, initial metadata.ResourceState, clear *metadata.ClearValue) (device.Resource, error) {
	if desc.ByteSize() == 0 {
		return nil, apiError("CreateCommittedResource", "%q has zero size", desc.Name)
	}
	if heap == metadata.HeapTypeUpload && initial != metadata.ResourceStateGenericRead {
		return nil, apiError("CreateCommittedResource", "upload heap resource %q must start in %s, got %s",
			desc.Name, metadata.ResourceStateGenericRead, initial)
	}
	if clear != nil && desc.Dimension == metadata.ResourceDimensionBuffer {
		return nil, apiError("CreateCommittedResource", "buffer %q cannot have a clear value", desc.Name)
	}

	r := &resource{
		device: d,
		id:     core.NewResourceID(),
		desc:   desc,
		heap:   heap,
		state:  initial,
		owned:  true,
	}
	var err error
	if desc.Dimension == metadata.ResourceDimensionBuffer {
		err = d.createBuffer(r)
	} else {
		err = d.createImage(r, initial)
	}
	if err != nil {
		r.Release()
		return nil, err
	}

	d.mu.Lock()
	if desc.Dimension == metadata.ResourceDimensionBuffer {
		r.address = d.nextVA
		d.nextVA += (desc.Width + 0xFFFF) &^ 0xFFFF
	}
	d.resources[r.id] = r
	d.mu.Unlock()
	return r, nil
}

func (d *Device) allocate(reqs vk.MemoryRequirements, heap metadata.HeapType) (vk.DeviceMemory, error) {
	props := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if heap == metadata.HeapTypeUpload {
		props = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
	}
	index := d.FindMemoryIndex(reqs.MemoryTypeBits, props)
	if index < 0 {
		return nil, apiError("vkAllocateMemory", "no memory type with flags %#x", uint32(props))
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: uint32(index),
	}
	var memory vk.DeviceMemory
	err := resultError("vkAllocateMemory", vk.AllocateMemory(d.LogicalDevice, &allocateInfo, d.context.Allocator, &memory))
	return memory, err
}

func (d *Device) createBuffer(r *resource) error {
	usage := vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit) |
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit) |
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit) |
		vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit) |
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit) |
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(r.desc.Width),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	if families := d.sharedFamilies(); families != nil {
		bufferInfo.SharingMode = vk.SharingModeConcurrent
		bufferInfo.QueueFamilyIndexCount = uint32(len(families))
		bufferInfo.PQueueFamilyIndices = families
	}
	if err := resultError("vkCreateBuffer", vk.CreateBuffer(d.LogicalDevice, &bufferInfo, d.context.Allocator, &r.buffer)); err != nil {
		return err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.LogicalDevice, r.buffer, &reqs)
	reqs.Deref()
	memory, err := d.allocate(reqs, r.heap)
	if err != nil {
		return err
	}
	r.memory = memory
	if err := resultError("vkBindBufferMemory", vk.BindBufferMemory(d.LogicalDevice, r.buffer, r.memory, 0)); err != nil {
		return err
	}

	if r.heap == metadata.HeapTypeUpload {
		var data unsafe.Pointer
		if err := resultError("vkMapMemory", vk.MapMemory(d.LogicalDevice, r.memory, 0, vk.DeviceSize(r.desc.Width), 0, &data)); err != nil {
			return err
		}
		r.mapped = unsafe.Slice((*byte)(data), int(r.desc.Width))
	}
	return nil
}

func imageUsage(flags metadata.ResourceFlags) vk.ImageUsageFlags {
	usage := vk.ImageUsageFlags(vk.ImageUsageSampledBit) |
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit) |
		vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit)
	if flags&metadata.ResourceFlagAllowRenderTarget != 0 {
		usage |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	if flags&metadata.ResourceFlagAllowDepthStencil != 0 {
		usage |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	}
	if flags&metadata.ResourceFlagAllowUnorderedAccess != 0 {
		usage |= vk.ImageUsageFlags(vk.ImageUsageStorageBit)
	}
	return usage
}

func (d *Device) createImage(r *resource, initial metadata.ResourceState) error {
	format := vkFormat(r.desc.Format)
	if format == vk.FormatUndefined {
		return apiError("vkCreateImage", "%q has unsupported format %s", r.desc.Name, r.desc.Format)
	}
	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  uint32(r.desc.Width),
			Height: r.desc.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         imageUsage(r.desc.Flags),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if families := d.sharedFamilies(); families != nil {
		imageInfo.SharingMode = vk.SharingModeConcurrent
		imageInfo.QueueFamilyIndexCount = uint32(len(families))
		imageInfo.PQueueFamilyIndices = families
	}
	if err := resultError("vkCreateImage", vk.CreateImage(d.LogicalDevice, &imageInfo, d.context.Allocator, &r.image)); err != nil {
		return err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.LogicalDevice, r.image, &reqs)
	reqs.Deref()
	memory, err := d.allocate(reqs, r.heap)
	if err != nil {
		return err
	}
	r.memory = memory
	if err := resultError("vkBindImageMemory", vk.BindImageMemory(d.LogicalDevice, r.image, r.memory, 0)); err != nil {
		return err
	}
	if r.view, err = d.createImageView(r.image, format, r.aspect()); err != nil {
		return err
	}

	// Move the image out of UNDEFINED so the first barrier names a real layout.
	to := usageOf(initial, r.isDepth())
	return d.oneShot(func(cb vk.CommandBuffer) {
		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			DstAccessMask:       to.access,
			OldLayout:           vk.ImageLayoutUndefined,
			NewLayout:           to.layout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               r.image,
			SubresourceRange:    subresourceRange(r.aspect()),
		}
		vk.CmdPipelineBarrier(cb,
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	})
}

func subresourceRange(aspect vk.ImageAspectFlags) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     aspect,
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func (d *Device) createImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            image,
		ViewType:         vk.ImageViewType2d,
		Format:           format,
		SubresourceRange: subresourceRange(aspect),
	}
	var view vk.ImageView
	err := resultError("vkCreateImageView", vk.CreateImageView(d.LogicalDevice, &viewInfo, d.context.Allocator, &view))
	return view, err
}
