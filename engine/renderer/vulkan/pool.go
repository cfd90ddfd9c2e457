package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"
)

// VulkanLockPool serialises use of externally synchronised handles. Both
// device queues wrap the same VkQueue when the hardware exposes only one.
type VulkanLockPool struct {
	mu           sync.Mutex
	queueMutexes map[vk.Queue]*sync.Mutex
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{queueMutexes: make(map[vk.Queue]*sync.Mutex)}
}

func (vs *VulkanLockPool) queueLock(queue vk.Queue) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	l, ok := vs.queueMutexes[queue]
	if !ok {
		l = &sync.Mutex{}
		vs.queueMutexes[queue] = l
	}
	return l
}

// SafeQueueCall runs fn while holding the lock of queue.
func (vs *VulkanLockPool) SafeQueueCall(queue vk.Queue, fn func() error) error {
	l := vs.queueLock(queue)
	l.Lock()
	defer l.Unlock()
	return fn()
}
