package headless

import (
	"sync"
	"time"

	"github.com/spaghettifunk/hawk/engine/renderer/device"
)

// queue executes work in submission order on its own goroutine, standing in
// for one hardware queue.
type queue struct {
	device *Device
	kind   device.QueueKind
	work   chan func()
	done   chan struct{}
	once   sync.Once
}

var _ device.CommandQueue = (*queue)(nil)

func newQueue(d *Device, kind device.QueueKind) *queue {
	q := &queue{
		device: d,
		kind:   kind,
		work:   make(chan func(), 64),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *queue) run() {
	defer close(q.done)
	for fn := range q.work {
		fn()
	}
}

func (q *queue) Kind() device.QueueKind { return q.kind }

func (q *queue) ExecuteCommandLists(lists ...device.CommandList) error {
	if q.device.removed() {
		return q.device.apiError("ExecuteCommandLists", ResultDeviceRemoved, "device removed after validation errors")
	}
	for _, l := range lists {
		cl, ok := l.(*commandList)
		if !ok {
			return q.device.apiError("ExecuteCommandLists", ResultInvalidArg, "foreign command list")
		}
		if cl.open {
			return q.device.apiError("ExecuteCommandLists", ResultInvalidArg, "command list is still open")
		}
		if cl.kind != q.kind {
			return q.device.apiError("ExecuteCommandLists", ResultInvalidArg, "%s list on %s queue", cl.kind, q.kind)
		}
	}
	for _, l := range lists {
		cl := l.(*commandList)
		cmds := append([]Command(nil), cl.commands...)
		cl.pending.Add(1)
		q.work <- func() {
			defer cl.pending.Add(-1)
			if delay := q.device.opts.ExecutionDelay; delay > 0 {
				time.Sleep(delay)
			}
			q.device.execute(q.kind, cmds)
		}
	}
	return nil
}

func (q *queue) Signal(f device.Fence, value uint64) error {
	hf, ok := f.(*fence)
	if !ok {
		return q.device.apiError("Signal", ResultInvalidArg, "foreign fence")
	}
	q.work <- func() { hf.signal(value) }
	return nil
}

func (q *queue) Wait(f device.Fence, value uint64) error {
	hf, ok := f.(*fence)
	if !ok {
		return q.device.apiError("Wait", ResultInvalidArg, "foreign fence")
	}
	q.work <- func() { _ = hf.Wait(value) }
	return nil
}

// Release drains the queue and stops its goroutine.
func (q *queue) Release() {
	q.once.Do(func() {
		close(q.work)
		<-q.done
	})
}
