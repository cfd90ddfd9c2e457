package vulkan

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"
)

/**
 * @brief One render pass attachment. Layout is the layout the image is in
 * before and after the pass; the pass never changes it.
 */
type VulkanAttachment struct {
	Format vk.Format
	Layout vk.ImageLayout
}

/**
 * @brief Describes the attachments of a single-subpass render pass. Contents
 * are always loaded and stored, clears are recorded inside the pass.
 */
type VulkanRenderpassConfig struct {
	Colors []VulkanAttachment
	Depth  *VulkanAttachment
}

func (c VulkanRenderpassConfig) key() string {
	var sb strings.Builder
	for _, a := range c.Colors {
		fmt.Fprintf(&sb, "c%d:%d;", a.Format, a.Layout)
	}
	if c.Depth != nil {
		fmt.Fprintf(&sb, "d%d:%d", c.Depth.Format, c.Depth.Layout)
	}
	return sb.String()
}

// depthReference picks the subpass layout for a depth attachment.
func depthReference(layout vk.ImageLayout) vk.ImageLayout {
	if layout == vk.ImageLayoutDepthStencilReadOnlyOptimal {
		return layout
	}
	return vk.ImageLayoutDepthStencilAttachmentOptimal
}

// renderPassFor returns the cached render pass for config, creating it on
// first use. Passes live until the device is released.
func (d *Device) renderPassFor(config VulkanRenderpassConfig) (vk.RenderPass, error) {
	key := config.key()
	d.mu.Lock()
	defer d.mu.Unlock()
	if rp, ok := d.renderPasses[key]; ok {
		return rp, nil
	}

	attachmentDescriptions := make([]vk.AttachmentDescription, 0, len(config.Colors)+1)
	colorReferences := make([]vk.AttachmentReference, 0, len(config.Colors))
	for _, a := range config.Colors {
		colorReferences = append(colorReferences, vk.AttachmentReference{
			Attachment: uint32(len(attachmentDescriptions)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         a.Format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  a.Layout,
			FinalLayout:    a.Layout,
		})
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorReferences)),
		PColorAttachments:    colorReferences,
	}

	// Depth attachment, if there is one
	if config.Depth != nil {
		depthAttachmentReference := vk.AttachmentReference{
			Attachment: uint32(len(attachmentDescriptions)),
			Layout:     depthReference(config.Depth.Layout),
		}
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         config.Depth.Format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  config.Depth.Layout,
			FinalLayout:    config.Depth.Layout,
		})
		subpass.PDepthStencilAttachment = &depthAttachmentReference
	}

	// Barriers are recorded explicitly, so the pass only orders itself
	// against everything around it.
	anything := vk.AccessFlags(vk.AccessMemoryReadBit) | vk.AccessFlags(vk.AccessMemoryWriteBit)
	dependencies := []vk.SubpassDependency{
		{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
			SrcAccessMask: anything,
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
			DstAccessMask: anything,
		},
		{
			SrcSubpass:    0,
			DstSubpass:    vk.SubpassExternal,
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
			SrcAccessMask: anything,
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
			DstAccessMask: anything,
		},
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var pRenderPass vk.RenderPass
	if err := resultError("vkCreateRenderPass", vk.CreateRenderPass(d.LogicalDevice, &renderpassCreateInfo, d.context.Allocator, &pRenderPass)); err != nil {
		return nil, err
	}
	d.renderPasses[key] = pRenderPass
	return pRenderPass, nil
}

// renderPassBegin starts rp on cb over the whole framebuffer. Attachments are
// loaded, so no clear values are passed.
func renderPassBegin(cb vk.CommandBuffer, rp vk.RenderPass, fb *VulkanFramebuffer) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp,
		Framebuffer: fb.Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: fb.Width, Height: fb.Height},
		},
	}
	vk.CmdBeginRenderPass(cb, &beginInfo, vk.SubpassContentsInline)
}
