package vulkan

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/hawk/engine/core"
)

/**
 * @brief A framebuffer over the views of a set of bound targets. Resources
 * lists the images behind Attachments so releasing one evicts the framebuffer.
 */
type VulkanFramebuffer struct {
	Handle        vk.Framebuffer
	Width, Height uint32
	Attachments   []vk.ImageView
	Resources     []core.ResourceID
}

func framebufferKey(rp vk.RenderPass, attachments []vk.ImageView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%p", rp)
	for _, v := range attachments {
		fmt.Fprintf(&sb, "/%p", v)
	}
	return sb.String()
}

// framebufferFor returns the cached framebuffer for targets under rp.
func (d *Device) framebufferFor(rp vk.RenderPass, targets []*resource) (*VulkanFramebuffer, error) {
	attachments := make([]vk.ImageView, len(targets))
	ids := make([]core.ResourceID, len(targets))
	for i, t := range targets {
		attachments[i] = t.view
		ids[i] = t.id
	}
	key := framebufferKey(rp, attachments)

	d.mu.Lock()
	defer d.mu.Unlock()
	if fb, ok := d.framebuffers[key]; ok {
		return fb, nil
	}

	outFramebuffer := &VulkanFramebuffer{
		Width:       uint32(targets[0].desc.Width),
		Height:      targets[0].desc.Height,
		Attachments: attachments,
		Resources:   ids,
	}
	// The render area is the intersection of all targets.
	for _, t := range targets[1:] {
		outFramebuffer.Width = min(outFramebuffer.Width, uint32(t.desc.Width))
		outFramebuffer.Height = min(outFramebuffer.Height, t.desc.Height)
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           outFramebuffer.Width,
		Height:          outFramebuffer.Height,
		Layers:          1,
	}
	if err := resultError("vkCreateFramebuffer", vk.CreateFramebuffer(d.LogicalDevice, &framebufferCreateInfo, d.context.Allocator, &outFramebuffer.Handle)); err != nil {
		return nil, err
	}
	d.framebuffers[key] = outFramebuffer
	return outFramebuffer, nil
}

// takeFramebuffersLocked removes every cached framebuffer that uses id and
// returns them for destruction. Callers hold d.mu.
func (d *Device) takeFramebuffersLocked(id core.ResourceID) []*VulkanFramebuffer {
	var stale []*VulkanFramebuffer
	for key, fb := range d.framebuffers {
		for _, rid := range fb.Resources {
			if rid == id {
				stale = append(stale, fb)
				delete(d.framebuffers, key)
				break
			}
		}
	}
	return stale
}

func (vfb *VulkanFramebuffer) Destroy(d *Device) {
	if vfb.Handle != nil {
		vk.DestroyFramebuffer(d.LogicalDevice, vfb.Handle, d.context.Allocator)
		vfb.Handle = nil
	}
	vfb.Attachments = nil
	vfb.Resources = nil
}
