package vulkan

import (
	"encoding/binary"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

func TestUsageOf(t *testing.T) {
	tests := []struct {
		state  metadata.ResourceState
		depth  bool
		layout vk.ImageLayout
	}{
		{metadata.ResourceStateRenderTarget, false, vk.ImageLayoutColorAttachmentOptimal},
		{metadata.ResourceStatePixelShaderResource, false, vk.ImageLayoutShaderReadOnlyOptimal},
		{metadata.ResourceStateNonPixelShaderResource, false, vk.ImageLayoutShaderReadOnlyOptimal},
		{metadata.ResourceStateDepthWrite, true, vk.ImageLayoutDepthStencilAttachmentOptimal},
		{metadata.ResourceStateDepthRead, true, vk.ImageLayoutDepthStencilReadOnlyOptimal},
		{metadata.ResourceStateUnorderedAccess, false, vk.ImageLayoutGeneral},
		{metadata.ResourceStateGenericRead, false, vk.ImageLayoutShaderReadOnlyOptimal},
		{metadata.ResourceStateGenericRead, true, vk.ImageLayoutDepthStencilReadOnlyOptimal},
		{metadata.ResourceStateCopyDest, false, vk.ImageLayoutTransferDstOptimal},
		{metadata.ResourceStateCopySource, false, vk.ImageLayoutTransferSrcOptimal},
		{metadata.ResourceStatePresent, false, vk.ImageLayoutPresentSrc},
		{metadata.ResourceStateCommon, false, vk.ImageLayoutGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.layout, usageOf(tt.state, tt.depth).layout)
		})
	}
}

func TestComputeAccessDropsGraphicsOnlyBits(t *testing.T) {
	rt := usageOf(metadata.ResourceStateRenderTarget, false).access
	assert.NotZero(t, rt)
	assert.Zero(t, rt&computeAccess)

	uav := usageOf(metadata.ResourceStateUnorderedAccess, false).access
	assert.Equal(t, uav, uav&computeAccess)
}

func TestVkFormat(t *testing.T) {
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, vkFormat(metadata.FormatR8G8B8A8Unorm))
	assert.Equal(t, vk.FormatD32Sfloat, vkFormat(metadata.FormatD32Float))
	assert.Equal(t, vk.FormatR16g16Sfloat, vkFormat(metadata.FormatR16G16Float))
	assert.Equal(t, vk.FormatUndefined, vkFormat(metadata.FormatUnknown))
}

func spirv(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

func TestSpirvWords(t *testing.T) {
	words, err := spirvWords(spirv(spirvMagic, 0x00010300, 7))
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 0x00010300, 7}, words)

	_, err = spirvWords(nil)
	assert.Error(t, err)
	_, err = spirvWords([]byte{0x03, 0x02, 0x23})
	assert.Error(t, err)
	_, err = spirvWords(spirv(0xDEADBEEF))
	assert.ErrorContains(t, err, "magic")
}

func TestVulkanSafeString(t *testing.T) {
	assert.Equal(t, "VSMain\x00", VulkanSafeString("VSMain"))
	assert.Equal(t, "VSMain\x00", VulkanSafeString("VSMain\x00"))
	assert.Equal(t, "\x00", VulkanSafeString(""))

	in := []string{"a", "b\x00"}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"a\x00", "b\x00"}, out)
	assert.Equal(t, "a", in[0])
}

func TestCString(t *testing.T) {
	var name [16]byte
	copy(name[:], "llvmpipe")
	assert.Equal(t, "llvmpipe", cString(name[:]))
	assert.Equal(t, "full", cString([]byte("full")))
}

func TestChoosePresentMode(t *testing.T) {
	all := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeImmediate, vk.PresentModeMailbox}
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode(all, true))
	assert.Equal(t, vk.PresentModeMailbox, choosePresentMode(all, false))
	assert.Equal(t, vk.PresentModeImmediate, choosePresentMode([]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeImmediate}, false))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode([]vk.PresentMode{vk.PresentModeFifo}, false))
}

func TestVertexInputMatchesPackedVertex(t *testing.T) {
	bindings, attributes, strides := vertexInput(metadata.VertexInputLayout)
	require.Len(t, bindings, 1)
	assert.Equal(t, metadata.VertexStride, bindings[0].Stride)
	assert.Equal(t, metadata.VertexStride, strides[0])
	require.Len(t, attributes, len(metadata.VertexInputLayout))
	for i, a := range attributes {
		assert.Equal(t, uint32(i), a.Location)
		assert.Equal(t, metadata.VertexInputLayout[i].AlignedByteOffset, a.Offset)
	}
}

func TestRootBindings(t *testing.T) {
	stages := vk.ShaderStageFlags(vk.ShaderStageComputeBit)

	table := metadata.RootParameter{
		Kind: metadata.RootParameterDescriptorTable,
		Ranges: []metadata.DescriptorRange{
			{Kind: metadata.DescriptorRangeSRV, Count: 2},
			{Kind: metadata.DescriptorRangeUAV, Count: 1},
		},
	}
	bindings := rootBindings(table, stages)
	require.Len(t, bindings, 3)
	for i, b := range bindings {
		assert.Equal(t, uint32(i), b.Binding)
		assert.Equal(t, stages, b.StageFlags)
	}
	assert.Equal(t, vk.DescriptorTypeSampledImage, bindings[1].DescriptorType)
	assert.Equal(t, vk.DescriptorTypeStorageImage, bindings[2].DescriptorType)

	cbv := rootBindings(metadata.RootParameter{Kind: metadata.RootParameterCBV}, stages)
	require.Len(t, cbv, 1)
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, cbv[0].DescriptorType)

	assert.Empty(t, rootBindings(metadata.RootParameter{Kind: metadata.RootParameterConstants, Num32BitValues: 4}, stages))
}

func testDevice() *Device {
	return &Device{
		resources:    make(map[core.ResourceID]*resource),
		renderPasses: make(map[string]vk.RenderPass),
		framebuffers: make(map[string]*VulkanFramebuffer),
	}
}

func TestDescriptorHeapAddressing(t *testing.T) {
	d := testDevice()

	_, err := d.CreateDescriptorHeap(metadata.DescriptorHeapDesc{Type: metadata.DescriptorHeapTypeRTV})
	assert.ErrorIs(t, err, core.ErrAPI)
	_, err = d.CreateDescriptorHeap(metadata.DescriptorHeapDesc{Type: metadata.DescriptorHeapTypeRTV, Capacity: 4, ShaderVisible: true})
	assert.ErrorIs(t, err, core.ErrAPI)

	rtv, err := d.CreateDescriptorHeap(metadata.DescriptorHeapDesc{Type: metadata.DescriptorHeapTypeRTV, Capacity: 4})
	require.NoError(t, err)
	srv, err := d.CreateDescriptorHeap(metadata.DescriptorHeapDesc{Type: metadata.DescriptorHeapTypeCBVSRVUAV, Capacity: 8, ShaderVisible: true})
	require.NoError(t, err)

	assert.Zero(t, rtv.GPUStart())
	assert.NotZero(t, srv.GPUStart())
	assert.NotEqual(t, rtv.CPUStart(), srv.CPUStart())

	d.mu.Lock()
	defer d.mu.Unlock()
	h, slot := d.slotLocked(srv.CPUStart()+5*uint64(srv.IncrementSize()), false)
	assert.Same(t, srv, h)
	assert.Equal(t, 5, slot)
	h, slot = d.slotLocked(srv.GPUStart()+2*uint64(srv.IncrementSize()), true)
	assert.Same(t, srv, h)
	assert.Equal(t, 2, slot)
	h, _ = d.slotLocked(srv.CPUStart()+8*uint64(srv.IncrementSize()), false)
	assert.Nil(t, h)
}

func TestConstantBufferView(t *testing.T) {
	d := testDevice()
	heap, err := d.CreateDescriptorHeap(metadata.DescriptorHeapDesc{Type: metadata.DescriptorHeapTypeCBVSRVUAV, Capacity: 4, ShaderVisible: true})
	require.NoError(t, err)
	rtv, err := d.CreateDescriptorHeap(metadata.DescriptorHeapDesc{Type: metadata.DescriptorHeapTypeRTV, Capacity: 4})
	require.NoError(t, err)

	cb := &resource{device: d, id: core.NewResourceID(), desc: metadata.NewBufferDesc("cb", 1024)}
	dest := metadata.DescriptorHandle{CPU: heap.CPUStart() + 3*uint64(heap.IncrementSize())}
	require.NoError(t, d.CreateConstantBufferView(cb, 256, 512, dest))

	slot := heap.(*descriptorHeap).slots[3]
	assert.Equal(t, viewCBV, slot.kind)
	assert.Same(t, cb, slot.res)
	assert.Equal(t, uint64(256), slot.offset)
	assert.Equal(t, uint32(512), slot.size)

	assert.ErrorIs(t, d.CreateConstantBufferView(cb, 0, 100, dest), core.ErrAPI)
	assert.ErrorIs(t, d.CreateConstantBufferView(cb, 768, 512, dest), core.ErrAPI)
	assert.ErrorIs(t, d.CreateConstantBufferView(cb, 0, 256, metadata.DescriptorHandle{CPU: rtv.CPUStart()}), core.ErrAPI)
	assert.ErrorIs(t, d.CreateShaderResourceView(cb, dest), core.ErrAPI, "buffers have no image view")
}

func TestRenderpassConfigKey(t *testing.T) {
	color := VulkanRenderpassConfig{Colors: []VulkanAttachment{{Format: vk.FormatR8g8b8a8Unorm, Layout: vk.ImageLayoutColorAttachmentOptimal}}}
	other := VulkanRenderpassConfig{Colors: []VulkanAttachment{{Format: vk.FormatR8g8b8a8Unorm, Layout: vk.ImageLayoutPresentSrc}}}
	withDepth := color
	withDepth.Depth = &VulkanAttachment{Format: vk.FormatD32Sfloat, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}

	assert.NotEqual(t, color.key(), other.key())
	assert.NotEqual(t, color.key(), withDepth.key())
	assert.Equal(t, vk.ImageLayoutDepthStencilReadOnlyOptimal, depthReference(vk.ImageLayoutDepthStencilReadOnlyOptimal))
	assert.Equal(t, vk.ImageLayoutDepthStencilAttachmentOptimal, depthReference(vk.ImageLayoutShaderReadOnlyOptimal))
}

func TestTakeFramebuffersEvictsByResource(t *testing.T) {
	d := testDevice()
	a, b := core.NewResourceID(), core.NewResourceID()
	d.framebuffers["gbuffer"] = &VulkanFramebuffer{Resources: []core.ResourceID{a, b}}
	d.framebuffers["backbuffer"] = &VulkanFramebuffer{Resources: []core.ResourceID{b}}
	d.framebuffers["other"] = &VulkanFramebuffer{Resources: []core.ResourceID{core.NewResourceID()}}

	stale := d.takeFramebuffersLocked(b)
	assert.Len(t, stale, 2)
	assert.Len(t, d.framebuffers, 1)
	assert.Contains(t, d.framebuffers, "other")
	assert.Empty(t, d.takeFramebuffersLocked(a))
}
