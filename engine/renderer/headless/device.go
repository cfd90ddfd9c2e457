// Package headless implements the renderer's device interfaces without a GPU.
// Each queue runs on its own goroutine so submissions complete asynchronously,
// and every executed command is checked against the tracked resource states
// the way a graphics debug layer would.
package headless

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

// Result codes reported through core.APIError. They mirror the HRESULTs of
// the explicit API the renderer targets.
const (
	ResultInvalidArg    int32 = -2147024809 // 0x80070057
	ResultFail          int32 = -2147467259 // 0x80004005
	ResultDeviceRemoved int32 = -2005270523 // 0x887A0005
)

type Options struct {
	// ExecutionDelay is added to every executed command list.
	ExecutionDelay time.Duration
	// DescriptorIncrements overrides the per-slot stride of each heap type.
	DescriptorIncrements map[metadata.DescriptorHeapType]uint32
}

func DefaultOptions() Options {
	return Options{
		DescriptorIncrements: map[metadata.DescriptorHeapType]uint32{
			metadata.DescriptorHeapTypeRTV:       32,
			metadata.DescriptorHeapTypeDSV:       8,
			metadata.DescriptorHeapTypeCBVSRVUAV: 32,
		},
	}
}

type Device struct {
	opts Options

	mu        sync.Mutex
	heaps     []*descriptorHeap
	resources map[core.ResourceID]*resource
	views     map[uint64]*view
	nextVA    uint64

	validation []error
	trace      []Command
	presents   int
}

var _ device.Device = (*Device)(nil)

func NewDevice(opts Options) *Device {
	if opts.DescriptorIncrements == nil {
		opts.DescriptorIncrements = DefaultOptions().DescriptorIncrements
	}
	core.LogInfo("headless device created")
	return &Device{
		opts:      opts,
		resources: make(map[core.ResourceID]*resource),
		views:     make(map[uint64]*view),
		nextVA:    0x0000_7F00_0000_0000,
	}
}

func (d *Device) apiError(op string, code int32, format string, args ...interface{}) error {
	err := core.NewAPIError(op, code, fmt.Sprintf(format, args...))
	core.LogError("%s", err)
	return err
}

func (d *Device) CreateCommandQueue(kind device.QueueKind) (device.CommandQueue, error) {
	return newQueue(d, kind), nil
}

func (d *Device) CreateCommandList(kind device.QueueKind) (device.CommandList, error) {
	// Lists are created open, ready to record.
	return &commandList{device: d, kind: kind, open: true}, nil
}

func (d *Device) CreateFence(initialValue uint64) (device.Fence, error) {
	return newFence(initialValue), nil
}

func (d *Device) CreateDescriptorHeap(desc metadata.DescriptorHeapDesc) (device.DescriptorHeap, error) {
	if desc.Capacity == 0 {
		return nil, d.apiError("CreateDescriptorHeap", ResultInvalidArg, "heap %s with zero capacity", desc.Type)
	}
	if desc.ShaderVisible && desc.Type != metadata.DescriptorHeapTypeCBVSRVUAV {
		return nil, d.apiError("CreateDescriptorHeap", ResultInvalidArg, "%s heaps cannot be shader visible", desc.Type)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	n := uint64(len(d.heaps) + 1)
	h := &descriptorHeap{
		desc:      desc,
		increment: d.opts.DescriptorIncrements[desc.Type],
		cpuStart:  n << 32,
	}
	if h.increment == 0 {
		h.increment = 32
	}
	if desc.ShaderVisible {
		h.gpuStart = n << 40
	}
	d.heaps = append(d.heaps, h)
	return h, nil
}

func (d *Device) CreateCommittedResource(desc metadata.ResourceDesc, heap metadata.HeapType, initial metadata.ResourceState, clear *metadata.ClearValue) (device.Resource, error) {
	if desc.ByteSize() == 0 {
		return nil, d.apiError("CreateCommittedResource", ResultInvalidArg, "%q has zero size", desc.Name)
	}
	if heap == metadata.HeapTypeUpload && initial != metadata.ResourceStateGenericRead {
		return nil, d.apiError("CreateCommittedResource", ResultInvalidArg,
			"upload heap resource %q must start in %s, got %s", desc.Name, metadata.ResourceStateGenericRead, initial)
	}
	if clear != nil && desc.Dimension == metadata.ResourceDimensionBuffer {
		return nil, d.apiError("CreateCommittedResource", ResultInvalidArg, "buffer %q cannot have a clear value", desc.Name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	res := &resource{
		device: d,
		id:     core.NewResourceID(),
		desc:   desc,
		heap:   heap,
		state:  initial,
		data:   make([]byte, desc.ByteSize()),
	}
	if desc.Dimension == metadata.ResourceDimensionBuffer {
		res.address = d.nextVA
		d.nextVA += (desc.Width + 0xFFFF) &^ 0xFFFF
	}
	d.resources[res.id] = res
	return res, nil
}

func (d *Device) createView(kind viewKind, res device.Resource, dest metadata.DescriptorHandle, heapType metadata.DescriptorHeapType) error {
	r, ok := res.(*resource)
	if !ok || r == nil {
		return d.apiError("Create"+kind.String(), ResultInvalidArg, "foreign resource")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.heapForCPU(dest.CPU)
	if h == nil || h.desc.Type != heapType {
		return d.apiError("Create"+kind.String(), ResultInvalidArg, "handle %#x is not in a %s heap", dest.CPU, heapType)
	}
	d.views[dest.CPU] = &view{kind: kind, resource: r}
	return nil
}

func (d *Device) CreateRenderTargetView(res device.Resource, dest metadata.DescriptorHandle) error {
	return d.createView(viewRTV, res, dest, metadata.DescriptorHeapTypeRTV)
}

func (d *Device) CreateDepthStencilView(res device.Resource, dest metadata.DescriptorHandle) error {
	return d.createView(viewDSV, res, dest, metadata.DescriptorHeapTypeDSV)
}

func (d *Device) CreateShaderResourceView(res device.Resource, dest metadata.DescriptorHandle) error {
	return d.createView(viewSRV, res, dest, metadata.DescriptorHeapTypeCBVSRVUAV)
}

func (d *Device) CreateUnorderedAccessView(res device.Resource, dest metadata.DescriptorHandle) error {
	if res != nil && res.Desc().Flags&metadata.ResourceFlagAllowUnorderedAccess == 0 {
		return d.apiError("CreateUnorderedAccessView", ResultInvalidArg, "%q does not allow unordered access", res.Desc().Name)
	}
	return d.createView(viewUAV, res, dest, metadata.DescriptorHeapTypeCBVSRVUAV)
}

func (d *Device) CreateConstantBufferView(res device.Resource, offset uint64, size uint32, dest metadata.DescriptorHandle) error {
	if size%metadata.ConstantBufferAlignment != 0 || offset%metadata.ConstantBufferAlignment != 0 {
		return d.apiError("CreateConstantBufferView", ResultInvalidArg, "offset %d size %d not %d aligned", offset, size, metadata.ConstantBufferAlignment)
	}
	if res != nil && offset+uint64(size) > res.Desc().Width {
		return d.apiError("CreateConstantBufferView", ResultInvalidArg, "view exceeds %q", res.Desc().Name)
	}
	return d.createView(viewCBV, res, dest, metadata.DescriptorHeapTypeCBVSRVUAV)
}

func (d *Device) CreateGraphicsPipelineState(desc metadata.GraphicsPipelineDesc) (device.PipelineState, error) {
	if len(desc.VS.Code) == 0 || len(desc.PS.Code) == 0 {
		return nil, d.apiError("CreateGraphicsPipelineState", ResultInvalidArg, "%s: missing shader bytecode", desc.Name)
	}
	if desc.VS.Stage != metadata.ShaderStageVertex || desc.PS.Stage != metadata.ShaderStagePixel {
		return nil, d.apiError("CreateGraphicsPipelineState", ResultInvalidArg, "%s: shader stages out of order", desc.Name)
	}
	return &pipelineState{name: desc.Name, root: desc.RootSignature}, nil
}

func (d *Device) CreateComputePipelineState(desc metadata.ComputePipelineDesc) (device.PipelineState, error) {
	if len(desc.CS.Code) == 0 || desc.CS.Stage != metadata.ShaderStageCompute {
		return nil, d.apiError("CreateComputePipelineState", ResultInvalidArg, "%s: missing compute shader", desc.Name)
	}
	return &pipelineState{name: desc.Name, root: desc.RootSignature, compute: true}, nil
}

func (d *Device) CreateSwapChain(cq device.CommandQueue, desc device.SwapChainDesc) (device.SwapChain, error) {
	q, ok := cq.(*queue)
	if !ok || q.kind != device.QueueGraphics {
		return nil, d.apiError("CreateSwapChain", ResultInvalidArg, "swap chain needs a graphics queue")
	}
	sc := &swapChain{device: d, queue: q}
	for i := uint32(0); i < desc.BufferCount; i++ {
		buf, err := d.CreateCommittedResource(
			metadata.NewTexture2DDesc(fmt.Sprintf("BackBuffer[%d]", i), desc.Width, desc.Height, desc.Format, metadata.ResourceFlagAllowRenderTarget),
			metadata.HeapTypeDefault, metadata.ResourceStatePresent, nil)
		if err != nil {
			return nil, err
		}
		sc.buffers = append(sc.buffers, buf.(*resource))
	}
	return sc, nil
}

// Release drops every tracked object. Live resources at this point are leaks.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := d.liveLocked(); n > 0 {
		core.LogWarn("headless device released with %d live resources", n)
	}
	d.views = make(map[uint64]*view)
	d.heaps = nil
}

// LiveResources counts resources that have not been released.
func (d *Device) LiveResources() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveLocked()
}

func (d *Device) liveLocked() int {
	n := 0
	for _, r := range d.resources {
		if !r.released {
			n++
		}
	}
	return n
}

// ValidationErrors returns the debug layer messages gathered so far.
func (d *Device) ValidationErrors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.validation...)
}

// Trace returns every executed command in execution order.
func (d *Device) Trace() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.trace...)
}

func (d *Device) ResetTrace() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trace = nil
}

// Presents counts completed presents.
func (d *Device) Presents() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presents
}

// StateOf reports the state a resource is in on the simulated GPU timeline.
func (d *Device) StateOf(res device.Resource) metadata.ResourceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return res.(*resource).state
}

func (d *Device) removed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.validation) > 0
}

// validationf records a debug layer error. Callers hold d.mu.
func (d *Device) validationf(format string, args ...interface{}) {
	err := fmt.Errorf("validation: "+format, args...)
	core.LogError("%s", err)
	d.validation = append(d.validation, err)
}

func (d *Device) heapForCPU(cpu uint64) *descriptorHeap {
	for _, h := range d.heaps {
		if cpu >= h.cpuStart && cpu < h.cpuStart+uint64(h.desc.Capacity)*uint64(h.increment) {
			return h
		}
	}
	return nil
}

func (d *Device) heapForGPU(gpu uint64) *descriptorHeap {
	for _, h := range d.heaps {
		if h.gpuStart != 0 && gpu >= h.gpuStart && gpu < h.gpuStart+uint64(h.desc.Capacity)*uint64(h.increment) {
			return h
		}
	}
	return nil
}

// resourceAt resolves a GPU virtual address to the buffer containing it.
func (d *Device) resourceAt(address uint64) *resource {
	var buffers []*resource
	for _, r := range d.resources {
		if r.address != 0 && !r.released {
			buffers = append(buffers, r)
		}
	}
	sort.Slice(buffers, func(i, j int) bool { return buffers[i].address < buffers[j].address })
	i := sort.Search(len(buffers), func(i int) bool { return buffers[i].address+buffers[i].desc.Width > address })
	if i < len(buffers) && buffers[i].address <= address {
		return buffers[i]
	}
	return nil
}
