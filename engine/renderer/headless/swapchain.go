package headless

import (
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

type swapChain struct {
	device  *Device
	queue   *queue
	buffers []*resource
	current uint32
}

var _ device.SwapChain = (*swapChain)(nil)

func (s *swapChain) BufferCount() uint32 { return uint32(len(s.buffers)) }

func (s *swapChain) Buffer(index uint32) (device.Resource, error) {
	if index >= uint32(len(s.buffers)) {
		return nil, s.device.apiError("SwapChain.GetBuffer", ResultInvalidArg, "buffer %d of %d", index, len(s.buffers))
	}
	return s.buffers[index], nil
}

func (s *swapChain) CurrentBackBufferIndex() uint32 { return s.current }

// Present queues the flip behind all submitted work and advances the back
// buffer index immediately.
func (s *swapChain) Present() error {
	if s.device.removed() {
		return s.device.apiError("Present", ResultDeviceRemoved, "device removed after validation errors")
	}
	buf := s.buffers[s.current]
	s.queue.work <- func() {
		s.device.mu.Lock()
		defer s.device.mu.Unlock()
		if buf.state != metadata.ResourceStatePresent {
			s.device.validationf("Present: %s is in state %s", buf.desc.Name, buf.state)
		}
		s.device.presents++
	}
	s.current = (s.current + 1) % uint32(len(s.buffers))
	return nil
}

func (s *swapChain) Release() {
	for _, b := range s.buffers {
		b.Release()
	}
}
