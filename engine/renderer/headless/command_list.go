package headless

import (
	"sync/atomic"

	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

type CommandKind uint8

const (
	CmdBarrier CommandKind = iota
	CmdCopyBuffer
	CmdCopyTexture
	CmdSetPipelineState
	CmdSetDescriptorHeaps
	CmdSetViewport
	CmdSetScissor
	CmdSetRenderTargets
	CmdClearRenderTarget
	CmdClearDepth
	CmdRootConstantBuffer
	CmdRootDescriptorTable
	CmdRootConstant
	CmdSetVertexBuffers
	CmdSetIndexBuffer
	CmdDraw
	CmdDrawIndexed
	CmdDispatch
)

var commandNames = [...]string{
	"ResourceBarrier", "CopyBufferRegion", "CopyBufferToTexture", "SetPipelineState",
	"SetDescriptorHeaps", "SetViewport", "SetScissorRect", "SetRenderTargets",
	"ClearRenderTargetView", "ClearDepthStencilView", "SetRootConstantBufferView",
	"SetRootDescriptorTable", "SetRoot32BitConstant", "SetVertexBuffers",
	"SetIndexBuffer", "DrawInstanced", "DrawIndexedInstanced", "Dispatch",
}

func (k CommandKind) String() string { return commandNames[k] }

// Command is one recorded call, kept for validation and inspection.
type Command struct {
	Kind       CommandKind
	Queue      device.QueueKind
	Barrier    device.Barrier
	Dst, Src   device.Resource
	DstOffset  uint64
	SrcOffset  uint64
	Size       uint64
	Handles    []metadata.DescriptorHandle
	DSV        *metadata.DescriptorHandle
	Color      [4]float32
	Depth      float32
	Slot       uint32
	Value      uint32
	Address    uint64
	Counts     [3]uint32
	BaseVertex int32
	PSO        device.PipelineState
	Viewport   metadata.Viewport
	Rect       metadata.Rect
	Vertex     metadata.VertexBufferView
	Index      metadata.IndexBufferView
}

type commandList struct {
	device   *Device
	kind     device.QueueKind
	open     bool
	commands []Command
	pending  atomic.Int32
}

var _ device.CommandList = (*commandList)(nil)

func (l *commandList) Kind() device.QueueKind { return l.kind }

func (l *commandList) Reset(initial device.PipelineState) error {
	if l.open {
		return l.device.apiError("CommandList.Reset", ResultFail, "list is already recording")
	}
	if l.pending.Load() > 0 {
		return l.device.apiError("CommandList.Reset", ResultFail, "command allocator is still executing")
	}
	l.open = true
	l.commands = l.commands[:0]
	if initial != nil {
		l.record(Command{Kind: CmdSetPipelineState, PSO: initial})
	}
	return nil
}

func (l *commandList) Close() error {
	if !l.open {
		return l.device.apiError("CommandList.Close", ResultFail, "list is not recording")
	}
	l.open = false
	return nil
}

func (l *commandList) record(c Command) {
	if !l.open {
		l.device.mu.Lock()
		l.device.validationf("%s recorded on a closed %s list", c.Kind, l.kind)
		l.device.mu.Unlock()
		return
	}
	c.Queue = l.kind
	l.commands = append(l.commands, c)
}

func (l *commandList) ResourceBarrier(barriers ...device.Barrier) {
	for _, b := range barriers {
		l.record(Command{Kind: CmdBarrier, Barrier: b})
	}
}

func (l *commandList) CopyBufferRegion(dst device.Resource, dstOffset uint64, src device.Resource, srcOffset uint64, size uint64) {
	l.record(Command{Kind: CmdCopyBuffer, Dst: dst, DstOffset: dstOffset, Src: src, SrcOffset: srcOffset, Size: size})
}

func (l *commandList) CopyBufferToTexture(dst device.Resource, src device.Resource, srcOffset uint64) {
	l.record(Command{Kind: CmdCopyTexture, Dst: dst, Src: src, SrcOffset: srcOffset, Size: dst.Desc().ByteSize()})
}

func (l *commandList) SetPipelineState(pso device.PipelineState) {
	l.record(Command{Kind: CmdSetPipelineState, PSO: pso})
}

func (l *commandList) SetDescriptorHeaps(heaps ...device.DescriptorHeap) {
	c := Command{Kind: CmdSetDescriptorHeaps}
	for _, h := range heaps {
		c.Handles = append(c.Handles, metadata.DescriptorHandle{CPU: h.CPUStart(), GPU: h.GPUStart()})
	}
	l.record(c)
}

func (l *commandList) SetViewport(viewport metadata.Viewport) {
	l.record(Command{Kind: CmdSetViewport, Viewport: viewport})
}

func (l *commandList) SetScissorRect(rect metadata.Rect) {
	l.record(Command{Kind: CmdSetScissor, Rect: rect})
}

func (l *commandList) SetRenderTargets(rtvs []metadata.DescriptorHandle, dsv *metadata.DescriptorHandle) {
	c := Command{Kind: CmdSetRenderTargets, Handles: append([]metadata.DescriptorHandle(nil), rtvs...)}
	if dsv != nil {
		h := *dsv
		c.DSV = &h
	}
	l.record(c)
}

func (l *commandList) ClearRenderTargetView(rtv metadata.DescriptorHandle, color [4]float32) {
	l.record(Command{Kind: CmdClearRenderTarget, Handles: []metadata.DescriptorHandle{rtv}, Color: color})
}

func (l *commandList) ClearDepthStencilView(dsv metadata.DescriptorHandle, depth float32) {
	l.record(Command{Kind: CmdClearDepth, Handles: []metadata.DescriptorHandle{dsv}, Depth: depth})
}

func (l *commandList) SetRootConstantBufferView(slot uint32, address uint64) {
	l.record(Command{Kind: CmdRootConstantBuffer, Slot: slot, Address: address})
}

func (l *commandList) SetRootDescriptorTable(slot uint32, base metadata.DescriptorHandle) {
	l.record(Command{Kind: CmdRootDescriptorTable, Slot: slot, Handles: []metadata.DescriptorHandle{base}})
}

func (l *commandList) SetRoot32BitConstant(slot uint32, value uint32, offset uint32) {
	l.record(Command{Kind: CmdRootConstant, Slot: slot, Value: value, Counts: [3]uint32{offset}})
}

func (l *commandList) SetVertexBuffers(views ...metadata.VertexBufferView) {
	for _, v := range views {
		l.record(Command{Kind: CmdSetVertexBuffers, Vertex: v})
	}
}

func (l *commandList) SetIndexBuffer(view metadata.IndexBufferView) {
	l.record(Command{Kind: CmdSetIndexBuffer, Index: view})
}

func (l *commandList) DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32) {
	l.record(Command{Kind: CmdDraw, Counts: [3]uint32{vertexCount, instanceCount, startVertex}, Value: startInstance})
}

func (l *commandList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	l.record(Command{Kind: CmdDrawIndexed, Counts: [3]uint32{indexCount, instanceCount, startIndex}, BaseVertex: baseVertex, Value: startInstance})
}

func (l *commandList) Dispatch(x, y, z uint32) {
	l.record(Command{Kind: CmdDispatch, Counts: [3]uint32{x, y, z}})
}

func (l *commandList) Release() {}
