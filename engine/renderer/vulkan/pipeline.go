package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

/**
 * @brief Holds a Vulkan pipeline and the layout derived from its root
 * signature.
 */
type pipelineState struct {
	device *Device
	name   string
	/** @brief The internal pipeline handle. */
	handle vk.Pipeline
	/** @brief The pipeline layout and its descriptor set layouts. */
	root *rootLayout
	/** @brief Vertex stride per input slot. Empty for compute. */
	strides map[uint32]uint32
	compute bool
}

var _ device.PipelineState = (*pipelineState)(nil)

func (p *pipelineState) Name() string    { return p.name }
func (p *pipelineState) IsCompute() bool { return p.compute }

func (p *pipelineState) bindPoint() vk.PipelineBindPoint {
	if p.compute {
		return vk.PipelineBindPointCompute
	}
	return vk.PipelineBindPointGraphics
}

func (p *pipelineState) Release() {
	d := p.device
	if p.handle != nil {
		vk.DestroyPipeline(d.LogicalDevice, p.handle, d.context.Allocator)
		p.handle = nil
	}
	if p.root != nil {
		p.root.destroy(d)
		p.root = nil
	}
}

// vertexInput groups the input layout by slot. Each slot's stride is the end
// of its furthest element, so elements must be tightly packed.
func vertexInput(layout []metadata.InputElementDesc) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription, map[uint32]uint32) {
	strides := make(map[uint32]uint32)
	var slots []uint32
	attributes := make([]vk.VertexInputAttributeDescription, 0, len(layout))
	for _, e := range layout {
		if _, ok := strides[e.InputSlot]; !ok {
			slots = append(slots, e.InputSlot)
		}
		strides[e.InputSlot] = max(strides[e.InputSlot], e.AlignedByteOffset+e.Format.Size())
		attributes = append(attributes, vk.VertexInputAttributeDescription{
			Location: e.Location,
			Binding:  e.InputSlot,
			Format:   vkFormat(e.Format),
			Offset:   e.AlignedByteOffset,
		})
	}
	bindings := make([]vk.VertexInputBindingDescription, 0, len(slots))
	for _, slot := range slots {
		bindings = append(bindings, vk.VertexInputBindingDescription{
			Binding:   slot,
			Stride:    strides[slot],
			InputRate: vk.VertexInputRateVertex,
		})
	}
	return bindings, attributes, strides
}

func (d *Device) CreateGraphicsPipelineState(desc metadata.GraphicsPipelineDesc) (device.PipelineState, error) {
	if len(desc.VS.Code) == 0 || len(desc.PS.Code) == 0 {
		return nil, apiError("CreateGraphicsPipelineState", "%s: missing shader bytecode", desc.Name)
	}
	if desc.VS.Stage != metadata.ShaderStageVertex || desc.PS.Stage != metadata.ShaderStagePixel {
		return nil, apiError("CreateGraphicsPipelineState", "%s: shader stages out of order", desc.Name)
	}

	// Render pass used only for compatibility: formats must match the
	// targets bound when drawing.
	config := VulkanRenderpassConfig{}
	for _, f := range desc.RTVFormats {
		config.Colors = append(config.Colors, VulkanAttachment{Format: vkFormat(f), Layout: vk.ImageLayoutColorAttachmentOptimal})
	}
	if desc.DSVFormat != metadata.FormatUnknown {
		config.Depth = &VulkanAttachment{Format: vkFormat(desc.DSVFormat), Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
	}
	renderPass, err := d.renderPassFor(config)
	if err != nil {
		return nil, err
	}

	vs, err := NewShaderModule(d, desc.VS)
	if err != nil {
		return nil, err
	}
	defer vs.Destroy(d)
	ps, err := NewShaderModule(d, desc.PS)
	if err != nil {
		return nil, err
	}
	defer ps.Destroy(d)

	stages := vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	root, err := d.createRootLayout(desc.RootSignature, stages)
	if err != nil {
		return nil, err
	}
	out := &pipelineState{device: d, name: desc.Name, root: root}

	// Viewport and scissor are dynamic.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:   vk.FrontFaceClockwise,
		LineWidth:   1.0,
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if desc.DepthEnable {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthWriteEnable = vk.True
		depthStencil.DepthCompareOp = compareOps[desc.DepthFunc]
	}

	colorWriteMask := vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
		vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit)
	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(desc.RTVFormats))
	for i := range blendAttachments {
		blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:    vk.False,
			ColorWriteMask: colorWriteMask,
		}
	}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	bindings, attributes, strides := vertexInput(desc.InputLayout)
	out.strides = strides
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          2,
		PStages:             []vk.PipelineShaderStageCreateInfo{vs.ShaderStageCreateInfo, ps.ShaderStageCreateInfo},
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              root.handle,
		RenderPass:          renderPass,
		Subpass:             0,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := resultError("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(d.LogicalDevice, nil, 1,
		[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, d.context.Allocator, pPipelines)); err != nil {
		out.Release()
		return nil, err
	}
	out.handle = pPipelines[0]

	core.LogDebug("Graphics pipeline %q created.", desc.Name)
	return out, nil
}

func (d *Device) CreateComputePipelineState(desc metadata.ComputePipelineDesc) (device.PipelineState, error) {
	if len(desc.CS.Code) == 0 || desc.CS.Stage != metadata.ShaderStageCompute {
		return nil, apiError("CreateComputePipelineState", "%s: missing compute bytecode", desc.Name)
	}
	cs, err := NewShaderModule(d, desc.CS)
	if err != nil {
		return nil, err
	}
	defer cs.Destroy(d)

	root, err := d.createRootLayout(desc.RootSignature, vk.ShaderStageFlags(vk.ShaderStageComputeBit))
	if err != nil {
		return nil, err
	}
	out := &pipelineState{device: d, name: desc.Name, root: root, compute: true}

	pipelineCreateInfo := vk.ComputePipelineCreateInfo{
		SType:             vk.StructureTypeComputePipelineCreateInfo,
		Stage:             cs.ShaderStageCreateInfo,
		Layout:            root.handle,
		BasePipelineIndex: -1,
	}
	pPipelines := make([]vk.Pipeline, 1)
	if err := resultError("vkCreateComputePipelines", vk.CreateComputePipelines(d.LogicalDevice, nil, 1,
		[]vk.ComputePipelineCreateInfo{pipelineCreateInfo}, d.context.Allocator, pPipelines)); err != nil {
		out.Release()
		return nil, err
	}
	out.handle = pPipelines[0]

	core.LogDebug("Compute pipeline %q created.", desc.Name)
	return out, nil
}
