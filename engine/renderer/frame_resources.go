package renderer

import (
	"fmt"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

// FrameCount is the depth of the swap chain ring.
const FrameCount = 2

/**
 * @brief Per swap-chain buffer render target, depth target and persistently
 * mapped constant buffer. Sized once at startup, never resized.
 */
type FrameResourceSet struct {
	RenderTargets   [FrameCount]device.Resource
	RTVs            [FrameCount]metadata.DescriptorHandle
	DepthTargets    [FrameCount]device.Resource
	DSVs            [FrameCount]metadata.DescriptorHandle
	ConstantBuffers [FrameCount]device.Resource
	CBVs            [FrameCount]metadata.DescriptorHandle

	mapped  [FrameCount][]byte
	width   uint32
	height  uint32
	tracker *StateTracker
}

func NewFrameResourceSet(dev device.Device, swap device.SwapChain, heaps *DescriptorHeaps, tracker *StateTracker, width, height uint32) (*FrameResourceSet, error) {
	core.Assert(swap.BufferCount() == FrameCount, "swap chain has %d buffers, want %d", swap.BufferCount(), FrameCount)

	f := &FrameResourceSet{width: width, height: height, tracker: tracker}
	fail := func(err error) (*FrameResourceSet, error) {
		core.LogError("%s", err)
		f.Release()
		return nil, err
	}

	for i := uint32(0); i < FrameCount; i++ {
		rt, err := swap.Buffer(i)
		if err != nil {
			return fail(fmt.Errorf("failed to get back buffer %d: %w", i, err))
		}
		f.RenderTargets[i] = rt
		f.RTVs[i] = heaps.RTV.Allocate()
		if err := dev.CreateRenderTargetView(rt, f.RTVs[i]); err != nil {
			return fail(fmt.Errorf("failed to create RTV for back buffer %d: %w", i, err))
		}
		tracker.Register(rt, metadata.ResourceStatePresent)
	}

	for i := 0; i < FrameCount; i++ {
		depth, err := dev.CreateCommittedResource(
			metadata.NewTexture2DDesc(fmt.Sprintf("DepthTarget[%d]", i), width, height, metadata.FormatD32Float, metadata.ResourceFlagAllowDepthStencil),
			metadata.HeapTypeDefault,
			metadata.ResourceStateDepthWrite,
			&metadata.ClearValue{Format: metadata.FormatD32Float, Depth: 0},
		)
		if err != nil {
			return fail(fmt.Errorf("failed to create depth target %d: %w", i, err))
		}
		f.DepthTargets[i] = depth
		f.DSVs[i] = heaps.DSV.Allocate()
		if err := dev.CreateDepthStencilView(depth, f.DSVs[i]); err != nil {
			return fail(fmt.Errorf("failed to create DSV %d: %w", i, err))
		}
		tracker.Register(depth, metadata.ResourceStateDepthWrite)
	}

	for i := 0; i < FrameCount; i++ {
		cb, err := dev.CreateCommittedResource(
			metadata.NewBufferDesc(fmt.Sprintf("ConstantBuffer[%d]", i), metadata.ConstantBufferSize),
			metadata.HeapTypeUpload,
			metadata.ResourceStateGenericRead,
			nil,
		)
		if err != nil {
			return fail(fmt.Errorf("failed to create constant buffer %d: %w", i, err))
		}
		f.ConstantBuffers[i] = cb
		if f.mapped[i], err = cb.Map(); err != nil {
			return fail(fmt.Errorf("failed to map constant buffer %d: %w", i, err))
		}
		f.CBVs[i] = heaps.CBVSRVUAV.Allocate()
		if err := dev.CreateConstantBufferView(cb, 0, metadata.AlignConstantBuffer(metadata.FrameConstantsSize), f.CBVs[i]); err != nil {
			return fail(fmt.Errorf("failed to create CBV %d: %w", i, err))
		}
	}
	return f, nil
}

func (f *FrameResourceSet) Width() uint32  { return f.width }
func (f *FrameResourceSet) Height() uint32 { return f.height }

// FrameConstantsAddress is the GPU address of frame i's FrameConstantBuffer.
func (f *FrameResourceSet) FrameConstantsAddress(i uint32) uint64 {
	return f.ConstantBuffers[i].GPUVirtualAddress()
}

// ObjectConstantsAddress is the GPU address of frame i's ObjectConstantBuffer.
func (f *FrameResourceSet) ObjectConstantsAddress(i uint32) uint64 {
	return f.ConstantBuffers[i].GPUVirtualAddress() + uint64(metadata.ObjectConstantsOffset)
}

// WriteConstants copies into upload memory. The caller guarantees the GPU
// is no longer reading frame i.
func (f *FrameResourceSet) WriteConstants(i uint32, frame *metadata.FrameConstantBuffer, object *metadata.ObjectConstantBuffer) {
	copy(f.mapped[i][0:], frame.Bytes())
	copy(f.mapped[i][metadata.ObjectConstantsOffset:], object.Bytes())
}

// Constants returns a copy of what frame i's constant buffer holds.
func (f *FrameResourceSet) Constants(i uint32) []byte {
	end := metadata.ObjectConstantsOffset + metadata.ObjectConstantsSize
	return append([]byte(nil), f.mapped[i][:end]...)
}

func (f *FrameResourceSet) Release() {
	for i := 0; i < FrameCount; i++ {
		if cb := f.ConstantBuffers[i]; cb != nil {
			cb.Unmap()
			cb.Release()
		}
		if d := f.DepthTargets[i]; d != nil {
			f.tracker.Unregister(d)
			d.Release()
		}
		if rt := f.RenderTargets[i]; rt != nil {
			// Back buffers belong to the swap chain.
			f.tracker.Unregister(rt)
		}
	}
	f.mapped = [FrameCount][]byte{}
}
