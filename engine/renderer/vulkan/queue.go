package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
)

/**
 * @brief One device queue. Work runs in submission order on its own
 * goroutine: each batch of command buffers is submitted and waited on before
 * the next item, so fence signals and waits resolve on the CPU timeline.
 */
type commandQueue struct {
	device *Device
	kind   device.QueueKind
	handle vk.Queue
	done   *VulkanFence

	work     chan func()
	finished chan struct{}
	once     sync.Once
}

var _ device.CommandQueue = (*commandQueue)(nil)

func newQueue(d *Device, kind device.QueueKind) (*commandQueue, error) {
	fence, err := NewFence(d)
	if err != nil {
		return nil, err
	}
	q := &commandQueue{
		device:   d,
		kind:     kind,
		handle:   d.vkQueue(kind),
		done:     fence,
		work:     make(chan func(), 64),
		finished: make(chan struct{}),
	}
	go q.run()
	return q, nil
}

func (q *commandQueue) run() {
	defer close(q.finished)
	for fn := range q.work {
		fn()
	}
}

func (q *commandQueue) Kind() device.QueueKind { return q.kind }

func (q *commandQueue) ExecuteCommandLists(lists ...device.CommandList) error {
	if err := q.device.lostErr(); err != nil {
		return fmt.Errorf("device lost: %w", err)
	}
	buffers := make([]vk.CommandBuffer, 0, len(lists))
	for _, l := range lists {
		cl, ok := l.(*commandList)
		if !ok {
			return apiError("ExecuteCommandLists", "foreign command list")
		}
		if cl.buffer == nil || cl.buffer.Recording() {
			return apiError("ExecuteCommandLists", "command list is still open")
		}
		if cl.kind != q.kind {
			return apiError("ExecuteCommandLists", "%s list on %s queue", cl.kind, q.kind)
		}
		buffers = append(buffers, cl.buffer.Handle)
	}
	for _, l := range lists {
		l.(*commandList).buffer.UpdateSubmitted()
	}
	q.work <- func() {
		if err := q.submit(buffers); err != nil {
			q.device.markLost(err)
		}
	}
	return nil
}

func (q *commandQueue) submit(buffers []vk.CommandBuffer) error {
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: uint32(len(buffers)),
		PCommandBuffers:    buffers,
	}
	if err := q.device.locks.SafeQueueCall(q.handle, func() error {
		return resultError("vkQueueSubmit", vk.QueueSubmit(q.handle, 1, []vk.SubmitInfo{submitInfo}, q.done.Handle))
	}); err != nil {
		return err
	}
	return q.done.WaitAndReset(q.device)
}

func (q *commandQueue) Signal(f device.Fence, value uint64) error {
	tf, ok := f.(*timelineFence)
	if !ok {
		return apiError("Signal", "foreign fence")
	}
	q.work <- func() { tf.signal(value) }
	return nil
}

func (q *commandQueue) Wait(f device.Fence, value uint64) error {
	tf, ok := f.(*timelineFence)
	if !ok {
		return apiError("Wait", "foreign fence")
	}
	q.work <- func() { _ = tf.Wait(value) }
	return nil
}

// runSync executes fn on the queue goroutine and waits for it.
func (q *commandQueue) runSync(fn func() error) error {
	result := make(chan error, 1)
	q.work <- func() { result <- fn() }
	return <-result
}

// Release drains the queue and stops its goroutine.
func (q *commandQueue) Release() {
	q.once.Do(func() {
		close(q.work)
		<-q.finished
		q.done.Destroy(q.device)
		core.LogDebug("%s queue released", q.kind)
	})
}
