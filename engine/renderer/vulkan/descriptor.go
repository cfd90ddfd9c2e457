package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

type viewKind uint8

const (
	viewNone viewKind = iota
	viewRTV
	viewDSV
	viewSRV
	viewUAV
	viewCBV
)

func (k viewKind) String() string {
	return [...]string{"Empty", "RenderTargetView", "DepthStencilView", "ShaderResourceView", "UnorderedAccessView", "ConstantBufferView"}[k]
}

/**
 * @brief One heap slot as written by a Create*View call. Only constant
 * buffer views use offset and size.
 */
type descriptor struct {
	kind   viewKind
	res    *resource
	offset uint64
	size   uint32
}

/**
 * @brief A descriptor heap shadowed on the CPU. Slots are copied into
 * descriptor sets when a table is bound for a draw or dispatch.
 */
type descriptorHeap struct {
	desc      metadata.DescriptorHeapDesc
	increment uint32
	cpuStart  uint64
	gpuStart  uint64
	slots     []descriptor
}

var _ device.DescriptorHeap = (*descriptorHeap)(nil)

func (h *descriptorHeap) Desc() metadata.DescriptorHeapDesc { return h.desc }
func (h *descriptorHeap) IncrementSize() uint32             { return h.increment }
func (h *descriptorHeap) CPUStart() uint64                  { return h.cpuStart }
func (h *descriptorHeap) GPUStart() uint64                  { return h.gpuStart }
func (h *descriptorHeap) Release()                          {}

func (h *descriptorHeap) span() uint64 { return uint64(h.desc.Capacity) * uint64(h.increment) }

func (d *Device) CreateDescriptorHeap(desc metadata.DescriptorHeapDesc) (device.DescriptorHeap, error) {
	if desc.Capacity == 0 {
		return nil, apiError("CreateDescriptorHeap", "heap %s with zero capacity", desc.Type)
	}
	if desc.ShaderVisible && desc.Type != metadata.DescriptorHeapTypeCBVSRVUAV {
		return nil, apiError("CreateDescriptorHeap", "%s heaps cannot be shader visible", desc.Type)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	n := uint64(len(d.heaps) + 1)
	h := &descriptorHeap{
		desc:      desc,
		increment: descriptorIncrements[desc.Type],
		cpuStart:  n << 32,
		slots:     make([]descriptor, desc.Capacity),
	}
	if desc.ShaderVisible {
		h.gpuStart = n << 40
	}
	d.heaps = append(d.heaps, h)
	return h, nil
}

// slotLocked resolves a CPU (gpu false) or GPU handle. Callers hold d.mu.
func (d *Device) slotLocked(handle uint64, gpu bool) (*descriptorHeap, int) {
	for _, h := range d.heaps {
		start := h.cpuStart
		if gpu {
			start = h.gpuStart
		}
		if start != 0 && handle >= start && handle < start+h.span() {
			return h, int((handle - start) / uint64(h.increment))
		}
	}
	return nil, -1
}

func (d *Device) createView(kind viewKind, res device.Resource, dest metadata.DescriptorHandle, heapType metadata.DescriptorHeapType, offset uint64, size uint32) error {
	r, ok := res.(*resource)
	if !ok || r == nil {
		return apiError("Create"+kind.String(), "foreign resource")
	}
	if kind != viewCBV && r.view == nil {
		return apiError("Create"+kind.String(), "%q is not a texture", r.desc.Name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h, i := d.slotLocked(dest.CPU, false)
	if h == nil || h.desc.Type != heapType {
		return apiError("Create"+kind.String(), "handle %#x is not in a %s heap", dest.CPU, heapType)
	}
	h.slots[i] = descriptor{kind: kind, res: r, offset: offset, size: size}
	return nil
}

func (d *Device) CreateRenderTargetView(res device.Resource, dest metadata.DescriptorHandle) error {
	return d.createView(viewRTV, res, dest, metadata.DescriptorHeapTypeRTV, 0, 0)
}

func (d *Device) CreateDepthStencilView(res device.Resource, dest metadata.DescriptorHandle) error {
	return d.createView(viewDSV, res, dest, metadata.DescriptorHeapTypeDSV, 0, 0)
}

func (d *Device) CreateShaderResourceView(res device.Resource, dest metadata.DescriptorHandle) error {
	return d.createView(viewSRV, res, dest, metadata.DescriptorHeapTypeCBVSRVUAV, 0, 0)
}

func (d *Device) CreateUnorderedAccessView(res device.Resource, dest metadata.DescriptorHandle) error {
	if res != nil && res.Desc().Flags&metadata.ResourceFlagAllowUnorderedAccess == 0 {
		return apiError("CreateUnorderedAccessView", "%q does not allow unordered access", res.Desc().Name)
	}
	return d.createView(viewUAV, res, dest, metadata.DescriptorHeapTypeCBVSRVUAV, 0, 0)
}

func (d *Device) CreateConstantBufferView(res device.Resource, offset uint64, size uint32, dest metadata.DescriptorHandle) error {
	if size%metadata.ConstantBufferAlignment != 0 || offset%metadata.ConstantBufferAlignment != 0 {
		return apiError("CreateConstantBufferView", "offset %d size %d not %d aligned", offset, size, metadata.ConstantBufferAlignment)
	}
	if res != nil && offset+uint64(size) > res.Desc().Width {
		return apiError("CreateConstantBufferView", "view exceeds %q", res.Desc().Name)
	}
	return d.createView(viewCBV, res, dest, metadata.DescriptorHeapTypeCBVSRVUAV, offset, size)
}

// targetAt resolves a render target or depth stencil handle to its image.
func (d *Device) targetAt(handle metadata.DescriptorHandle, kind viewKind) *resource {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, i := d.slotLocked(handle.CPU, false)
	if h == nil || h.slots[i].kind != kind {
		return nil
	}
	return h.slots[i].res
}

var rangeTypes = map[metadata.DescriptorRangeKind]vk.DescriptorType{
	metadata.DescriptorRangeSRV: vk.DescriptorTypeSampledImage,
	metadata.DescriptorRangeUAV: vk.DescriptorTypeStorageImage,
	metadata.DescriptorRangeCBV: vk.DescriptorTypeUniformBuffer,
}

var rangeViews = map[metadata.DescriptorRangeKind]viewKind{
	metadata.DescriptorRangeSRV: viewSRV,
	metadata.DescriptorRangeUAV: viewUAV,
	metadata.DescriptorRangeCBV: viewCBV,
}

/**
 * @brief The pipeline layout of a root signature. Root parameter i is
 * descriptor set i; root constants get an empty set and a slice of the push
 * constant block.
 */
type rootLayout struct {
	params      []metadata.RootParameter
	setLayouts  []vk.DescriptorSetLayout
	handle      vk.PipelineLayout
	pushOffsets []uint32
	pushSize    uint32
	stages      vk.ShaderStageFlags
}

func rootBindings(p metadata.RootParameter, stages vk.ShaderStageFlags) []vk.DescriptorSetLayoutBinding {
	var bindings []vk.DescriptorSetLayoutBinding
	switch p.Kind {
	case metadata.RootParameterCBV:
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      stages,
		})
	case metadata.RootParameterDescriptorTable:
		binding := uint32(0)
		for _, r := range p.Ranges {
			for j := uint32(0); j < r.Count; j++ {
				bindings = append(bindings, vk.DescriptorSetLayoutBinding{
					Binding:         binding,
					DescriptorType:  rangeTypes[r.Kind],
					DescriptorCount: 1,
					StageFlags:      stages,
				})
				binding++
			}
		}
	}
	return bindings
}

func (d *Device) createRootLayout(desc metadata.RootSignatureDesc, stages vk.ShaderStageFlags) (*rootLayout, error) {
	l := &rootLayout{
		params:      desc.Parameters,
		pushOffsets: make([]uint32, len(desc.Parameters)),
		stages:      stages,
	}
	for i, p := range desc.Parameters {
		if p.Kind == metadata.RootParameterConstants {
			l.pushOffsets[i] = l.pushSize
			l.pushSize += 4 * p.Num32BitValues
		}
		bindings := rootBindings(p, stages)
		layoutInfo := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(bindings)),
			PBindings:    bindings,
		}
		var setLayout vk.DescriptorSetLayout
		if err := resultError("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(d.LogicalDevice, &layoutInfo, d.context.Allocator, &setLayout)); err != nil {
			l.destroy(d)
			return nil, err
		}
		l.setLayouts = append(l.setLayouts, setLayout)
	}
	if l.pushSize > VULKAN_MAX_PUSH_CONSTANTS_SIZE {
		l.destroy(d)
		return nil, apiError("vkCreatePipelineLayout", "%d bytes of root constants exceed %d", l.pushSize, VULKAN_MAX_PUSH_CONSTANTS_SIZE)
	}

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(l.setLayouts)),
		PSetLayouts:    l.setLayouts,
	}
	if l.pushSize > 0 {
		pipelineLayoutCreateInfo.PushConstantRangeCount = 1
		pipelineLayoutCreateInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: stages,
			Offset:     0,
			Size:       l.pushSize,
		}}
	}
	if err := resultError("vkCreatePipelineLayout", vk.CreatePipelineLayout(d.LogicalDevice, &pipelineLayoutCreateInfo, d.context.Allocator, &l.handle)); err != nil {
		l.destroy(d)
		return nil, err
	}
	return l, nil
}

func (l *rootLayout) destroy(d *Device) {
	if l.handle != nil {
		vk.DestroyPipelineLayout(d.LogicalDevice, l.handle, d.context.Allocator)
		l.handle = nil
	}
	for _, s := range l.setLayouts {
		vk.DestroyDescriptorSetLayout(d.LogicalDevice, s, d.context.Allocator)
	}
	l.setLayouts = nil
}

// maxUniformRange caps root constant buffer views at the device limit.
func (d *Device) maxUniformRange() uint64 {
	return uint64(d.Properties.Limits.MaxUniformBufferRange)
}

// writeRootCBV points binding 0 of set at the buffer holding address.
func (d *Device) writeRootCBV(set vk.DescriptorSet, address uint64) error {
	r := d.resourceAt(address)
	if r == nil {
		return apiError("SetRootConstantBufferView", "address %#x is not in a live buffer", address)
	}
	offset := address - r.address
	size := r.desc.Width - offset
	if limit := d.maxUniformRange(); limit > 0 && size > limit {
		size = limit
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: r.buffer,
			Offset: vk.DeviceSize(offset),
			Range:  vk.DeviceSize(size),
		}},
	}
	vk.UpdateDescriptorSets(d.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return nil
}

// writeTable copies the heap slots starting at base into set, one binding
// per descriptor, using the layout each image was last transitioned to.
func (d *Device) writeTable(set vk.DescriptorSet, param metadata.RootParameter, base uint64) error {
	d.mu.Lock()
	h, first := d.slotLocked(base, true)
	if h == nil {
		d.mu.Unlock()
		return apiError("SetRootDescriptorTable", "handle %#x is not in a shader visible heap", base)
	}
	if first+int(param.TableSize()) > len(h.slots) {
		d.mu.Unlock()
		return apiError("SetRootDescriptorTable", "table of %d at slot %d overruns the heap", param.TableSize(), first)
	}

	writes := make([]vk.WriteDescriptorSet, 0, param.TableSize())
	binding, slot := uint32(0), first
	for _, rng := range param.Ranges {
		for j := uint32(0); j < rng.Count; j++ {
			desc := h.slots[slot]
			if desc.kind != rangeViews[rng.Kind] || desc.res == nil || desc.res.released {
				d.mu.Unlock()
				return apiError("SetRootDescriptorTable", "slot %d holds %s, table expects %s",
					slot, desc.kind, rangeViews[rng.Kind])
			}
			write := vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      binding,
				DescriptorCount: 1,
				DescriptorType:  rangeTypes[rng.Kind],
			}
			switch desc.kind {
			case viewCBV:
				write.PBufferInfo = []vk.DescriptorBufferInfo{{
					Buffer: desc.res.buffer,
					Offset: vk.DeviceSize(desc.offset),
					Range:  vk.DeviceSize(desc.size),
				}}
			case viewUAV:
				write.PImageInfo = []vk.DescriptorImageInfo{{
					ImageView:   desc.res.view,
					ImageLayout: vk.ImageLayoutGeneral,
				}}
			default:
				write.PImageInfo = []vk.DescriptorImageInfo{{
					ImageView:   desc.res.view,
					ImageLayout: usageOf(desc.res.state, desc.res.isDepth()).layout,
				}}
			}
			writes = append(writes, write)
			binding++
			slot++
		}
	}
	d.mu.Unlock()

	if len(writes) > 0 {
		vk.UpdateDescriptorSets(d.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	}
	return nil
}
