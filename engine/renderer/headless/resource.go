package headless

import (
	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

type resource struct {
	device  *Device
	id      core.ResourceID
	desc    metadata.ResourceDesc
	heap    metadata.HeapType
	address uint64
	data    []byte

	// Guarded by device.mu; advanced only by executed barriers.
	state    metadata.ResourceState
	released bool
}

var _ device.Resource = (*resource)(nil)

func (r *resource) ID() core.ResourceID         { return r.id }
func (r *resource) Desc() metadata.ResourceDesc { return r.desc }
func (r *resource) GPUVirtualAddress() uint64   { return r.address }

func (r *resource) Map() ([]byte, error) {
	if r.heap != metadata.HeapTypeUpload {
		return nil, r.device.apiError("Map", ResultInvalidArg, "%q is not in an upload heap", r.desc.Name)
	}
	return r.data, nil
}

func (r *resource) Unmap() {}

func (r *resource) Release() {
	r.device.mu.Lock()
	defer r.device.mu.Unlock()
	r.released = true
}

// Contents returns a copy of what the simulated GPU holds for res.
func Contents(res device.Resource) []byte {
	r := res.(*resource)
	r.device.mu.Lock()
	defer r.device.mu.Unlock()
	return append([]byte(nil), r.data...)
}

type viewKind uint8

const (
	viewRTV viewKind = iota
	viewDSV
	viewSRV
	viewUAV
	viewCBV
)

func (k viewKind) String() string {
	return [...]string{"RenderTargetView", "DepthStencilView", "ShaderResourceView", "UnorderedAccessView", "ConstantBufferView"}[k]
}

type view struct {
	kind     viewKind
	resource *resource
}

type descriptorHeap struct {
	desc      metadata.DescriptorHeapDesc
	increment uint32
	cpuStart  uint64
	gpuStart  uint64
}

var _ device.DescriptorHeap = (*descriptorHeap)(nil)

func (h *descriptorHeap) Desc() metadata.DescriptorHeapDesc { return h.desc }
func (h *descriptorHeap) IncrementSize() uint32             { return h.increment }
func (h *descriptorHeap) CPUStart() uint64                  { return h.cpuStart }
func (h *descriptorHeap) GPUStart() uint64                  { return h.gpuStart }
func (h *descriptorHeap) Release()                          {}

type pipelineState struct {
	name    string
	root    metadata.RootSignatureDesc
	compute bool
}

var _ device.PipelineState = (*pipelineState)(nil)

func (p *pipelineState) Name() string    { return p.name }
func (p *pipelineState) IsCompute() bool { return p.compute }
func (p *pipelineState) Release()        {}
