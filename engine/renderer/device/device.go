// Package device declares the explicit GPU model the renderer is written
// against: descriptor heaps addressed by CPU/GPU handles, command lists
// recorded on one thread and executed on a queue, monotonically increasing
// fences, and resources whose usage state changes only through barriers.
package device

import (
	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

type QueueKind uint8

const (
	QueueGraphics QueueKind = iota
	QueueCompute
)

func (k QueueKind) String() string {
	if k == QueueCompute {
		return "compute"
	}
	return "graphics"
}

type Device interface {
	CreateCommandQueue(kind QueueKind) (CommandQueue, error)
	CreateCommandList(kind QueueKind) (CommandList, error)
	CreateFence(initialValue uint64) (Fence, error)
	CreateDescriptorHeap(desc metadata.DescriptorHeapDesc) (DescriptorHeap, error)
	CreateCommittedResource(desc metadata.ResourceDesc, heap metadata.HeapType, initial metadata.ResourceState, clear *metadata.ClearValue) (Resource, error)

	CreateRenderTargetView(res Resource, dest metadata.DescriptorHandle) error
	CreateDepthStencilView(res Resource, dest metadata.DescriptorHandle) error
	CreateShaderResourceView(res Resource, dest metadata.DescriptorHandle) error
	CreateUnorderedAccessView(res Resource, dest metadata.DescriptorHandle) error
	CreateConstantBufferView(res Resource, offset uint64, size uint32, dest metadata.DescriptorHandle) error

	CreateGraphicsPipelineState(desc metadata.GraphicsPipelineDesc) (PipelineState, error)
	CreateComputePipelineState(desc metadata.ComputePipelineDesc) (PipelineState, error)

	CreateSwapChain(queue CommandQueue, desc SwapChainDesc) (SwapChain, error)

	Release()
}

type Resource interface {
	ID() core.ResourceID
	Desc() metadata.ResourceDesc
	GPUVirtualAddress() uint64
	// Map returns the persistently mapped contents of an upload heap resource.
	Map() ([]byte, error)
	Unmap()
	Release()
}

type DescriptorHeap interface {
	Desc() metadata.DescriptorHeapDesc
	IncrementSize() uint32
	CPUStart() uint64
	// GPUStart is zero unless the heap is shader visible.
	GPUStart() uint64
	Release()
}

type Fence interface {
	CompletedValue() uint64
	// Wait blocks until the fence reaches value. There is no timeout.
	Wait(value uint64) error
	Release()
}

type CommandQueue interface {
	Kind() QueueKind
	// ExecuteCommandLists enqueues closed lists in order and returns without waiting.
	ExecuteCommandLists(lists ...CommandList) error
	// Signal sets fence to value once all previously submitted work completes.
	Signal(fence Fence, value uint64) error
	// Wait stalls this queue, not the CPU, until fence reaches value.
	Wait(fence Fence, value uint64) error
	Release()
}

type Barrier struct {
	Resource Resource
	Before   metadata.ResourceState
	After    metadata.ResourceState
}

type CommandList interface {
	Kind() QueueKind
	// Reset reopens the list for recording. The previous recording must have
	// finished executing.
	Reset(initial PipelineState) error
	Close() error

	ResourceBarrier(barriers ...Barrier)
	CopyBufferRegion(dst Resource, dstOffset uint64, src Resource, srcOffset uint64, size uint64)
	CopyBufferToTexture(dst Resource, src Resource, srcOffset uint64)

	SetPipelineState(pso PipelineState)
	SetDescriptorHeaps(heaps ...DescriptorHeap)
	SetViewport(viewport metadata.Viewport)
	SetScissorRect(rect metadata.Rect)
	SetRenderTargets(rtvs []metadata.DescriptorHandle, dsv *metadata.DescriptorHandle)
	ClearRenderTargetView(rtv metadata.DescriptorHandle, color [4]float32)
	ClearDepthStencilView(dsv metadata.DescriptorHandle, depth float32)

	SetRootConstantBufferView(slot uint32, address uint64)
	SetRootDescriptorTable(slot uint32, base metadata.DescriptorHandle)
	SetRoot32BitConstant(slot uint32, value uint32, offset uint32)

	SetVertexBuffers(views ...metadata.VertexBufferView)
	SetIndexBuffer(view metadata.IndexBufferView)
	DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32)
	DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32)
	Dispatch(x, y, z uint32)

	Release()
}

type PipelineState interface {
	Name() string
	IsCompute() bool
	Release()
}

type SwapChainDesc struct {
	Width       uint32
	Height      uint32
	BufferCount uint32
	Format      metadata.Format
	VSync       bool
}

type SwapChain interface {
	BufferCount() uint32
	// Buffer returns back buffer i, initially in the present state.
	Buffer(index uint32) (Resource, error)
	CurrentBackBufferIndex() uint32
	Present() error
	Release()
}
