package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

func NewVulkanCommandBuffer(d *Device, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State: COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}
	handles := make([]vk.CommandBuffer, 1)
	if err := resultError("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(d.LogicalDevice, &allocateInfo, handles)); err != nil {
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY
	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(d *Device, pool vk.CommandPool) {
	if v.Handle != nil {
		vk.FreeCommandBuffers(d.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	}
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if err := resultError("vkBeginCommandBuffer", vk.BeginCommandBuffer(v.Handle, &beginInfo)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := resultError("vkEndCommandBuffer", vk.EndCommandBuffer(v.Handle)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

// Recording reports whether the buffer is open for commands.
func (v *VulkanCommandBuffer) Recording() bool {
	return v.State == COMMAND_BUFFER_STATE_RECORDING || v.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() error {
	if err := resultError("vkResetCommandBuffer", vk.ResetCommandBuffer(v.Handle, 0)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

/**
 * Allocates and begins recording a one time submit command buffer.
 */
func AllocateAndBeginSingleUse(d *Device, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(d, pool)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true); err != nil {
		cb.Free(d, pool)
		return nil, err
	}
	return cb, nil
}

/**
 * Ends recording, submits to and waits for queue operation and frees the provided command buffer.
 */
func (v *VulkanCommandBuffer) EndSingleUse(d *Device, pool vk.CommandPool, queue vk.Queue) error {
	defer v.Free(d, pool)
	if err := v.End(); err != nil {
		return err
	}
	fence, err := NewFence(d)
	if err != nil {
		return err
	}
	defer fence.Destroy(d)

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	if err := d.locks.SafeQueueCall(queue, func() error {
		return resultError("vkQueueSubmit", vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle))
	}); err != nil {
		return err
	}
	v.UpdateSubmitted()
	return fence.WaitAndReset(d)
}

// oneShot records work with record and runs it to completion on the graphics queue.
func (d *Device) oneShot(record func(cb vk.CommandBuffer)) error {
	d.transferMu.Lock()
	defer d.transferMu.Unlock()
	cb, err := AllocateAndBeginSingleUse(d, d.transferPool)
	if err != nil {
		return err
	}
	record(cb.Handle)
	return cb.EndSingleUse(d, d.transferPool, d.graphicsQueue)
}

// rootArgument is what was last set on one root signature slot.
type rootArgument struct {
	address   uint64
	table     uint64
	constants []uint32
}

/**
 * @brief A command list records into one primary command buffer with its own
 * command and descriptor pools. Render passes are opened lazily from the
 * bound targets and closed by anything that cannot run inside one.
 */
type commandList struct {
	device      *Device
	kind        device.QueueKind
	pool        vk.CommandPool
	descriptors vk.DescriptorPool
	buffer      *VulkanCommandBuffer

	pso       *pipelineState
	roots     []rootArgument
	dirty     []bool
	pushDirty bool

	rtvs []*resource
	dsv  *resource

	// err is the first recording error, returned by Close.
	err error
}

var _ device.CommandList = (*commandList)(nil)

func newCommandList(d *Device, kind device.QueueKind) (*commandList, error) {
	pool, err := d.createCommandPool(d.family(kind))
	if err != nil {
		return nil, err
	}
	l := &commandList{device: d, kind: kind, pool: pool}

	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: VULKAN_MAX_UNIFORM_BUFFERS},
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: VULKAN_MAX_SAMPLED_IMAGES},
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: VULKAN_MAX_STORAGE_IMAGES},
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       VULKAN_MAX_DESCRIPTOR_SETS,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	if err := resultError("vkCreateDescriptorPool", vk.CreateDescriptorPool(d.LogicalDevice, &poolInfo, d.context.Allocator, &l.descriptors)); err != nil {
		l.Release()
		return nil, err
	}
	if l.buffer, err = NewVulkanCommandBuffer(d, pool); err != nil {
		l.Release()
		return nil, err
	}
	if err := l.buffer.Begin(false); err != nil {
		l.Release()
		return nil, err
	}
	return l, nil
}

func (l *commandList) Kind() device.QueueKind { return l.kind }

func (l *commandList) cb() vk.CommandBuffer { return l.buffer.Handle }

func (l *commandList) fail(op string, format string, args ...interface{}) {
	if l.err == nil {
		l.err = apiError(op, format, args...)
	}
}

func (l *commandList) Reset(initial device.PipelineState) error {
	if l.buffer.Recording() {
		return apiError("Reset", "command list is still open")
	}
	if err := l.buffer.Reset(); err != nil {
		return err
	}
	if err := resultError("vkResetDescriptorPool", vk.ResetDescriptorPool(l.device.LogicalDevice, l.descriptors, 0)); err != nil {
		return err
	}
	l.pso, l.roots, l.dirty, l.pushDirty = nil, nil, nil, false
	l.rtvs, l.dsv, l.err = nil, nil, nil
	if err := l.buffer.Begin(false); err != nil {
		return err
	}
	if initial != nil {
		l.SetPipelineState(initial)
	}
	return nil
}

func (l *commandList) Close() error {
	if !l.buffer.Recording() {
		return apiError("Close", "command list is not open")
	}
	l.endPass()
	if err := l.buffer.End(); err != nil {
		return err
	}
	err := l.err
	l.err = nil
	return err
}

func (l *commandList) inPass() bool {
	return l.buffer.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (l *commandList) endPass() {
	if l.inPass() {
		vk.CmdEndRenderPass(l.cb())
		l.buffer.State = COMMAND_BUFFER_STATE_RECORDING
	}
}

// beginPass opens a render pass over colors and depth in their current layouts.
func (l *commandList) beginPass(colors []*resource, depth *resource) bool {
	l.endPass()
	d := l.device
	config := VulkanRenderpassConfig{}
	targets := make([]*resource, 0, len(colors)+1)

	d.mu.Lock()
	for _, c := range colors {
		config.Colors = append(config.Colors, VulkanAttachment{Format: vkFormat(c.desc.Format), Layout: usageOf(c.state, false).layout})
		targets = append(targets, c)
	}
	if depth != nil {
		config.Depth = &VulkanAttachment{Format: vkFormat(depth.desc.Format), Layout: usageOf(depth.state, true).layout}
		targets = append(targets, depth)
	}
	d.mu.Unlock()

	if len(targets) == 0 {
		l.fail("BeginRenderPass", "no render targets bound")
		return false
	}
	rp, err := d.renderPassFor(config)
	if err != nil {
		l.fail("BeginRenderPass", "%v", err)
		return false
	}
	fb, err := d.framebufferFor(rp, targets)
	if err != nil {
		l.fail("BeginRenderPass", "%v", err)
		return false
	}
	renderPassBegin(l.cb(), rp, fb)
	l.buffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
	return true
}

func (l *commandList) ensurePass() bool {
	if l.inPass() {
		return true
	}
	return l.beginPass(l.rtvs, l.dsv)
}

func (l *commandList) resource(op string, res device.Resource) *resource {
	r, ok := res.(*resource)
	if !ok || r == nil {
		l.fail(op, "foreign resource")
		return nil
	}
	return r
}

func (l *commandList) ResourceBarrier(barriers ...device.Barrier) {
	l.endPass()
	d := l.device
	var images []vk.ImageMemoryBarrier
	var buffers bool
	access := func(flags vk.AccessFlags) vk.AccessFlags {
		if l.kind == device.QueueCompute {
			return flags & computeAccess
		}
		return flags
	}

	d.mu.Lock()
	for _, br := range barriers {
		r := l.resource("ResourceBarrier", br.Resource)
		if r == nil {
			continue
		}
		r.state = br.After
		if r.image == nil {
			buffers = true
			continue
		}
		before, after := usageOf(br.Before, r.isDepth()), usageOf(br.After, r.isDepth())
		if r.undefined {
			before = usage{layout: vk.ImageLayoutUndefined}
			r.undefined = false
		}
		images = append(images, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       access(before.access),
			DstAccessMask:       access(after.access),
			OldLayout:           before.layout,
			NewLayout:           after.layout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               r.image,
			SubresourceRange:    subresourceRange(r.aspect()),
		})
	}
	d.mu.Unlock()

	var memory []vk.MemoryBarrier
	if buffers {
		anything := access(vk.AccessFlags(vk.AccessMemoryReadBit) | vk.AccessFlags(vk.AccessMemoryWriteBit))
		memory = append(memory, vk.MemoryBarrier{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: anything,
			DstAccessMask: anything,
		})
	}
	if len(images) == 0 && len(memory) == 0 {
		return
	}
	vk.CmdPipelineBarrier(l.cb(),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, uint32(len(memory)), memory, 0, nil, uint32(len(images)), images)
}

func (l *commandList) CopyBufferRegion(dst device.Resource, dstOffset uint64, src device.Resource, srcOffset uint64, size uint64) {
	l.endPass()
	to, from := l.resource("CopyBufferRegion", dst), l.resource("CopyBufferRegion", src)
	if to == nil || from == nil {
		return
	}
	if to.buffer == nil || from.buffer == nil {
		l.fail("CopyBufferRegion", "%q to %q is not a buffer copy", from.desc.Name, to.desc.Name)
		return
	}
	vk.CmdCopyBuffer(l.cb(), from.buffer, to.buffer, 1, []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	}})
}

// CopyBufferToTexture copies tightly packed texels into the whole of dst,
// which must be in the copy destination state.
func (l *commandList) CopyBufferToTexture(dst device.Resource, src device.Resource, srcOffset uint64) {
	l.endPass()
	to, from := l.resource("CopyBufferToTexture", dst), l.resource("CopyBufferToTexture", src)
	if to == nil || from == nil {
		return
	}
	if to.image == nil || from.buffer == nil {
		l.fail("CopyBufferToTexture", "%q to %q is not a buffer to texture copy", from.desc.Name, to.desc.Name)
		return
	}
	region := vk.BufferImageCopy{
		BufferOffset: vk.DeviceSize(srcOffset),
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     to.aspect(),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{Width: uint32(to.desc.Width), Height: to.desc.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(l.cb(), from.buffer, to.image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (l *commandList) SetPipelineState(pso device.PipelineState) {
	p, ok := pso.(*pipelineState)
	if !ok || p == nil {
		l.fail("SetPipelineState", "foreign pipeline state")
		return
	}
	if p.compute {
		l.endPass()
	}
	l.pso = p
	vk.CmdBindPipeline(l.cb(), p.bindPoint(), p.handle)
	// A new layout invalidates every bound set.
	for i := range l.dirty {
		l.dirty[i] = true
	}
	l.pushDirty = true
}

func (l *commandList) SetDescriptorHeaps(heaps ...device.DescriptorHeap) {
	for _, h := range heaps {
		if _, ok := h.(*descriptorHeap); !ok {
			l.fail("SetDescriptorHeaps", "foreign descriptor heap")
		}
	}
}

// SetViewport flips the viewport vertically so clip space keeps +Y up.
func (l *commandList) SetViewport(viewport metadata.Viewport) {
	vk.CmdSetViewport(l.cb(), 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y + viewport.Height,
		Width:    viewport.Width,
		Height:   -viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

func (l *commandList) SetScissorRect(rect metadata.Rect) {
	vk.CmdSetScissor(l.cb(), 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: rect.Left, Y: rect.Top},
		Extent: vk.Extent2D{Width: uint32(rect.Right - rect.Left), Height: uint32(rect.Bottom - rect.Top)},
	}})
}

func (l *commandList) SetRenderTargets(rtvs []metadata.DescriptorHandle, dsv *metadata.DescriptorHandle) {
	l.endPass()
	l.rtvs, l.dsv = l.rtvs[:0], nil
	for _, h := range rtvs {
		r := l.device.targetAt(h, viewRTV)
		if r == nil {
			l.fail("SetRenderTargets", "handle %#x holds no render target view", h.CPU)
			continue
		}
		l.rtvs = append(l.rtvs, r)
	}
	if dsv != nil {
		if l.dsv = l.device.targetAt(*dsv, viewDSV); l.dsv == nil {
			l.fail("SetRenderTargets", "handle %#x holds no depth stencil view", dsv.CPU)
		}
	}
}

// clearTarget clears attachment inside a pass over the bound targets, or
// inside a throwaway pass over target alone when it is not bound.
func (l *commandList) clearTarget(target *resource, clear vk.ClearAttachment) {
	bound := -1
	if target.isDepth() {
		if l.dsv == target {
			bound = 0
		}
	} else {
		for i, r := range l.rtvs {
			if r == target {
				bound = i
			}
		}
	}

	if bound >= 0 {
		if !l.ensurePass() {
			return
		}
		clear.ColorAttachment = uint32(bound)
	} else {
		var ok bool
		if target.isDepth() {
			ok = l.beginPass(nil, target)
		} else {
			ok = l.beginPass([]*resource{target}, nil)
		}
		if !ok {
			return
		}
		clear.ColorAttachment = 0
		defer l.endPass()
	}

	rect := vk.ClearRect{
		Rect: vk.Rect2D{
			Extent: vk.Extent2D{Width: uint32(target.desc.Width), Height: target.desc.Height},
		},
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
	vk.CmdClearAttachments(l.cb(), 1, []vk.ClearAttachment{clear}, 1, []vk.ClearRect{rect})
}

func (l *commandList) ClearRenderTargetView(rtv metadata.DescriptorHandle, color [4]float32) {
	target := l.device.targetAt(rtv, viewRTV)
	if target == nil {
		l.fail("ClearRenderTargetView", "handle %#x holds no render target view", rtv.CPU)
		return
	}
	var clearValue vk.ClearValue
	clearValue.SetColor(color[:])
	l.clearTarget(target, vk.ClearAttachment{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		ClearValue: clearValue,
	})
}

func (l *commandList) ClearDepthStencilView(dsv metadata.DescriptorHandle, depth float32) {
	target := l.device.targetAt(dsv, viewDSV)
	if target == nil {
		l.fail("ClearDepthStencilView", "handle %#x holds no depth stencil view", dsv.CPU)
		return
	}
	var clearValue vk.ClearValue
	clearValue.SetDepthStencil(depth, 0)
	l.clearTarget(target, vk.ClearAttachment{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
		ClearValue: clearValue,
	})
}

func (l *commandList) root(slot uint32) *rootArgument {
	for uint32(len(l.roots)) <= slot {
		l.roots = append(l.roots, rootArgument{})
		l.dirty = append(l.dirty, false)
	}
	return &l.roots[slot]
}

func (l *commandList) SetRootConstantBufferView(slot uint32, address uint64) {
	l.root(slot).address = address
	l.dirty[slot] = true
}

func (l *commandList) SetRootDescriptorTable(slot uint32, base metadata.DescriptorHandle) {
	if base.GPU == 0 {
		l.fail("SetRootDescriptorTable", "slot %d: handle is not shader visible", slot)
		return
	}
	l.root(slot).table = base.GPU
	l.dirty[slot] = true
}

func (l *commandList) SetRoot32BitConstant(slot uint32, value uint32, offset uint32) {
	arg := l.root(slot)
	for uint32(len(arg.constants)) <= offset {
		arg.constants = append(arg.constants, 0)
	}
	arg.constants[offset] = value
	l.pushDirty = true
}

// flush turns the root arguments the bound pipeline uses into descriptor sets
// and push constants.
func (l *commandList) flush(op string, compute bool) bool {
	if l.pso == nil {
		l.fail(op, "no pipeline state set")
		return false
	}
	if l.pso.compute != compute {
		l.fail(op, "pipeline %q has the wrong kind", l.pso.name)
		return false
	}
	d := l.device
	layout := l.pso.root
	for i, p := range layout.params {
		if p.Kind == metadata.RootParameterConstants || i >= len(l.roots) || !l.dirty[i] {
			continue
		}
		set, err := l.allocateSet(layout.setLayouts[i])
		if err == nil {
			if p.Kind == metadata.RootParameterCBV {
				err = d.writeRootCBV(set, l.roots[i].address)
			} else {
				err = d.writeTable(set, p, l.roots[i].table)
			}
		}
		if err != nil {
			l.fail(op, "root slot %d: %v", i, err)
			return false
		}
		vk.CmdBindDescriptorSets(l.cb(), l.pso.bindPoint(), layout.handle, uint32(i), 1, []vk.DescriptorSet{set}, 0, nil)
		l.dirty[i] = false
	}

	if l.pushDirty && layout.pushSize > 0 {
		values := make([]uint32, layout.pushSize/4)
		for i, p := range layout.params {
			if p.Kind != metadata.RootParameterConstants || i >= len(l.roots) {
				continue
			}
			copy(values[layout.pushOffsets[i]/4:layout.pushOffsets[i]/4+p.Num32BitValues], l.roots[i].constants)
		}
		vk.CmdPushConstants(l.cb(), layout.handle, layout.stages, 0, layout.pushSize, unsafe.Pointer(&values[0]))
	}
	l.pushDirty = false
	return true
}

func (l *commandList) allocateSet(setLayout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     l.descriptors,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{setLayout},
	}
	var set vk.DescriptorSet
	err := resultError("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(l.device.LogicalDevice, &allocateInfo, &set))
	return set, err
}

func (l *commandList) SetVertexBuffers(views ...metadata.VertexBufferView) {
	buffers := make([]vk.Buffer, 0, len(views))
	offsets := make([]vk.DeviceSize, 0, len(views))
	for i, v := range views {
		r := l.device.resourceAt(v.BufferLocation)
		if r == nil {
			l.fail("SetVertexBuffers", "slot %d: address %#x is not in a live buffer", i, v.BufferLocation)
			return
		}
		if l.pso != nil {
			if stride, ok := l.pso.strides[uint32(i)]; ok && stride != v.StrideInBytes {
				l.fail("SetVertexBuffers", "slot %d: stride %d, pipeline %q expects %d", i, v.StrideInBytes, l.pso.name, stride)
				return
			}
		}
		buffers = append(buffers, r.buffer)
		offsets = append(offsets, vk.DeviceSize(v.BufferLocation-r.address))
	}
	if len(buffers) > 0 {
		vk.CmdBindVertexBuffers(l.cb(), 0, uint32(len(buffers)), buffers, offsets)
	}
}

func (l *commandList) SetIndexBuffer(view metadata.IndexBufferView) {
	if view.Format != metadata.FormatR32Uint {
		l.fail("SetIndexBuffer", "index format %s, only %s is supported", view.Format, metadata.FormatR32Uint)
		return
	}
	r := l.device.resourceAt(view.BufferLocation)
	if r == nil {
		l.fail("SetIndexBuffer", "address %#x is not in a live buffer", view.BufferLocation)
		return
	}
	vk.CmdBindIndexBuffer(l.cb(), r.buffer, vk.DeviceSize(view.BufferLocation-r.address), vk.IndexTypeUint32)
}

func (l *commandList) DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32) {
	if !l.flush("DrawInstanced", false) || !l.ensurePass() {
		return
	}
	vk.CmdDraw(l.cb(), vertexCount, instanceCount, startVertex, startInstance)
}

func (l *commandList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	if !l.flush("DrawIndexedInstanced", false) || !l.ensurePass() {
		return
	}
	vk.CmdDrawIndexed(l.cb(), indexCount, instanceCount, startIndex, baseVertex, startInstance)
}

func (l *commandList) Dispatch(x, y, z uint32) {
	l.endPass()
	if !l.flush("Dispatch", true) {
		return
	}
	vk.CmdDispatch(l.cb(), x, y, z)
}

func (l *commandList) Release() {
	d := l.device
	if l.buffer != nil {
		l.buffer.Free(d, l.pool)
		l.buffer = nil
	}
	if l.descriptors != nil {
		vk.DestroyDescriptorPool(d.LogicalDevice, l.descriptors, d.context.Allocator)
		l.descriptors = nil
	}
	if l.pool != nil {
		vk.DestroyCommandPool(d.LogicalDevice, l.pool, d.context.Allocator)
		l.pool = nil
	}
	core.LogDebug("%s command list released", l.kind)
}

func (l *commandList) String() string {
	return fmt.Sprintf("%s command list", l.kind)
}
