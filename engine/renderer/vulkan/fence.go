package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/hawk/engine/renderer/device"
)

// VulkanFence wraps a binary VkFence used to wait for one submission.
type VulkanFence struct {
	Handle vk.Fence
}

func NewFence(d *Device) (*VulkanFence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var handle vk.Fence
	if err := resultError("vkCreateFence", vk.CreateFence(d.LogicalDevice, &fenceCreateInfo, d.context.Allocator, &handle)); err != nil {
		return nil, err
	}
	return &VulkanFence{Handle: handle}, nil
}

// WaitAndReset blocks until the fence is signaled and rearms it.
func (vf *VulkanFence) WaitAndReset(d *Device) error {
	if err := resultError("vkWaitForFences", vk.WaitForFences(d.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, noTimeout)); err != nil {
		return err
	}
	return resultError("vkResetFences", vk.ResetFences(d.LogicalDevice, 1, []vk.Fence{vf.Handle}))
}

func (vf *VulkanFence) Destroy(d *Device) {
	if vf.Handle != nil {
		vk.DestroyFence(d.LogicalDevice, vf.Handle, d.context.Allocator)
		vf.Handle = nil
	}
}

/**
 * @brief A monotonically increasing timeline. Queues advance it from their
 * submission goroutine once all earlier work on the GPU has completed.
 */
type timelineFence struct {
	mu        sync.Mutex
	cond      *sync.Cond
	completed uint64
}

var _ device.Fence = (*timelineFence)(nil)

func newFence(initial uint64) *timelineFence {
	f := &timelineFence{completed: initial}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *timelineFence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

func (f *timelineFence) Wait(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.completed < value {
		f.cond.Wait()
	}
	return nil
}

func (f *timelineFence) signal(value uint64) {
	f.mu.Lock()
	if value > f.completed {
		f.completed = value
	}
	f.mu.Unlock()
	f.cond.Broadcast()
}

func (f *timelineFence) Release() {}
