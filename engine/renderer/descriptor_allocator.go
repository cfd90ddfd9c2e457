package renderer

import (
	"fmt"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

/**
 * @brief Monotonic bump allocator over one fixed-capacity descriptor heap.
 * Handles stay valid for the lifetime of the allocator; there is no free.
 */
type DescriptorAllocator struct {
	heap     device.DescriptorHeap
	heapType metadata.DescriptorHeapType
	capacity uint32
	size     uint32
	stride   uint32
	cpuStart uint64
	gpuStart uint64
}

func NewDescriptorAllocator(dev device.Device, desc metadata.DescriptorHeapDesc) (*DescriptorAllocator, error) {
	heap, err := dev.CreateDescriptorHeap(desc)
	if err != nil {
		err = fmt.Errorf("failed to create %s descriptor heap: %w", desc.Type, err)
		core.LogError("%s", err)
		return nil, err
	}
	return &DescriptorAllocator{
		heap:     heap,
		heapType: desc.Type,
		capacity: desc.Capacity,
		stride:   heap.IncrementSize(),
		cpuStart: heap.CPUStart(),
		gpuStart: heap.GPUStart(),
	}, nil
}

// Allocate hands out the next slot. Exhausting the heap is a programmer error.
func (a *DescriptorAllocator) Allocate() metadata.DescriptorHandle {
	core.Assert(a.size < a.capacity, "%s descriptor heap exhausted (capacity %d)", a.heapType, a.capacity)

	offset := uint64(a.size) * uint64(a.stride)
	handle := metadata.DescriptorHandle{CPU: a.cpuStart + offset}
	if a.gpuStart != 0 {
		handle.GPU = a.gpuStart + offset
	}
	a.size++
	return handle
}

func (a *DescriptorAllocator) Size() uint32                      { return a.size }
func (a *DescriptorAllocator) Capacity() uint32                  { return a.capacity }
func (a *DescriptorAllocator) Stride() uint32                    { return a.stride }
func (a *DescriptorAllocator) Heap() device.DescriptorHeap       { return a.heap }
func (a *DescriptorAllocator) Type() metadata.DescriptorHeapType { return a.heapType }

func (a *DescriptorAllocator) Release() {
	if a.heap != nil {
		a.heap.Release()
		a.heap = nil
	}
}

type HeapCapacities struct {
	RTV       uint32 `toml:"rtv"`
	DSV       uint32 `toml:"dsv"`
	CBVSRVUAV uint32 `toml:"cbv_srv_uav"`
}

func DefaultHeapCapacities() HeapCapacities {
	return HeapCapacities{RTV: 128, DSV: 32, CBVSRVUAV: 256}
}

// DescriptorHeaps holds one allocator per heap kind the renderer uses.
type DescriptorHeaps struct {
	RTV       *DescriptorAllocator
	DSV       *DescriptorAllocator
	CBVSRVUAV *DescriptorAllocator
}

func NewDescriptorHeaps(dev device.Device, caps HeapCapacities) (*DescriptorHeaps, error) {
	var err error
	h := &DescriptorHeaps{}
	if h.RTV, err = NewDescriptorAllocator(dev, metadata.DescriptorHeapDesc{
		Type: metadata.DescriptorHeapTypeRTV, Capacity: caps.RTV,
	}); err != nil {
		return nil, err
	}
	if h.DSV, err = NewDescriptorAllocator(dev, metadata.DescriptorHeapDesc{
		Type: metadata.DescriptorHeapTypeDSV, Capacity: caps.DSV,
	}); err != nil {
		h.Release()
		return nil, err
	}
	if h.CBVSRVUAV, err = NewDescriptorAllocator(dev, metadata.DescriptorHeapDesc{
		Type: metadata.DescriptorHeapTypeCBVSRVUAV, Capacity: caps.CBVSRVUAV, ShaderVisible: true,
	}); err != nil {
		h.Release()
		return nil, err
	}
	return h, nil
}

func (h *DescriptorHeaps) Release() {
	for _, a := range []*DescriptorAllocator{h.CBVSRVUAV, h.DSV, h.RTV} {
		if a != nil {
			a.Release()
		}
	}
}
