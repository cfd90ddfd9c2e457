package headless

import (
	"sync"

	"github.com/spaghettifunk/hawk/engine/renderer/device"
)

type fence struct {
	mu        sync.Mutex
	cond      *sync.Cond
	completed uint64
}

var _ device.Fence = (*fence)(nil)

func newFence(initial uint64) *fence {
	f := &fence{completed: initial}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

func (f *fence) Wait(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.completed < value {
		f.cond.Wait()
	}
	return nil
}

func (f *fence) signal(value uint64) {
	f.mu.Lock()
	if value > f.completed {
		f.completed = value
	}
	f.mu.Unlock()
	f.cond.Broadcast()
}

func (f *fence) Release() {}
