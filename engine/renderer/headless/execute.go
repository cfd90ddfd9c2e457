package headless

import (
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

// binding is the pipeline state a command list accumulates while executing.
type binding struct {
	pso     *pipelineState
	tables  map[uint32]uint64
	rtvs    []*resource
	dsv     *resource
	vertex  *resource
	index   *resource
	heapSet bool
}

// execute replays one command list on the simulated GPU, applying barriers
// and copies and reporting every state violation.
func (d *Device) execute(kind device.QueueKind, cmds []Command) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b := binding{tables: make(map[uint32]uint64)}
	for _, c := range cmds {
		d.trace = append(d.trace, c)
		switch c.Kind {
		case CmdBarrier:
			d.applyBarrier(c.Barrier)
		case CmdCopyBuffer:
			dst, src := d.live(c.Dst, c.Kind), d.live(c.Src, c.Kind)
			if dst == nil || src == nil {
				continue
			}
			d.expectState(dst, c.Kind, metadata.ResourceStateCopyDest)
			if c.DstOffset+c.Size > uint64(len(dst.data)) || c.SrcOffset+c.Size > uint64(len(src.data)) {
				d.validationf("%s: region out of bounds (%s <- %s)", c.Kind, dst.desc.Name, src.desc.Name)
				continue
			}
			copy(dst.data[c.DstOffset:c.DstOffset+c.Size], src.data[c.SrcOffset:c.SrcOffset+c.Size])
		case CmdCopyTexture:
			dst, src := d.live(c.Dst, c.Kind), d.live(c.Src, c.Kind)
			if dst == nil || src == nil {
				continue
			}
			d.expectState(dst, c.Kind, metadata.ResourceStateCopyDest)
			if c.SrcOffset+c.Size > uint64(len(src.data)) {
				d.validationf("%s: staging buffer %s too small for %s", c.Kind, src.desc.Name, dst.desc.Name)
				continue
			}
			copy(dst.data, src.data[c.SrcOffset:c.SrcOffset+c.Size])
		case CmdSetPipelineState:
			pso, _ := c.PSO.(*pipelineState)
			if pso != nil && !pso.compute && kind == device.QueueCompute {
				d.validationf("graphics pipeline %s bound on a compute queue", pso.name)
			}
			b.pso = pso
		case CmdSetDescriptorHeaps:
			b.heapSet = true
		case CmdSetRenderTargets:
			b.rtvs = b.rtvs[:0]
			b.dsv = nil
			for _, h := range c.Handles {
				if r := d.viewResource(h, viewRTV, c.Kind); r != nil {
					b.rtvs = append(b.rtvs, r)
				}
			}
			if c.DSV != nil {
				b.dsv = d.viewResource(*c.DSV, viewDSV, c.Kind)
			}
		case CmdClearRenderTarget:
			if r := d.viewResource(c.Handles[0], viewRTV, c.Kind); r != nil {
				d.expectState(r, c.Kind, metadata.ResourceStateRenderTarget)
			}
		case CmdClearDepth:
			if r := d.viewResource(c.Handles[0], viewDSV, c.Kind); r != nil {
				d.expectState(r, c.Kind, metadata.ResourceStateDepthWrite)
			}
		case CmdRootConstantBuffer:
			r := d.resourceAt(c.Address)
			if r == nil {
				d.validationf("%s: slot %d address %#x is not inside a live buffer", c.Kind, c.Slot, c.Address)
				continue
			}
			d.expectState(r, c.Kind, metadata.ResourceStateGenericRead, metadata.ResourceStateVertexAndConstantBuffer)
		case CmdRootDescriptorTable:
			if !b.heapSet {
				d.validationf("%s: no descriptor heap bound", c.Kind)
			}
			b.tables[c.Slot] = c.Handles[0].GPU
		case CmdSetVertexBuffers:
			b.vertex = d.resourceAt(c.Vertex.BufferLocation)
		case CmdSetIndexBuffer:
			b.index = d.resourceAt(c.Index.BufferLocation)
		case CmdDraw, CmdDrawIndexed:
			d.validateDraw(&b, c)
		case CmdDispatch:
			if b.pso == nil || !b.pso.compute {
				d.validationf("%s without a compute pipeline", c.Kind)
				continue
			}
			if c.Counts[0] == 0 || c.Counts[1] == 0 || c.Counts[2] == 0 {
				d.validationf("%s with an empty grid %v", c.Kind, c.Counts)
			}
			d.validateTables(&b, c.Kind)
		}
	}
}

func (d *Device) applyBarrier(br device.Barrier) {
	r := d.live(br.Resource, CmdBarrier)
	if r == nil {
		return
	}
	if br.Before == br.After {
		d.validationf("%s: %s transitions from %s to itself", CmdBarrier, r.desc.Name, br.Before)
		return
	}
	if r.state != br.Before {
		d.validationf("%s: before state %s of %s does not match its current state %s",
			CmdBarrier, br.Before, r.desc.Name, r.state)
	}
	r.state = br.After
}

func (d *Device) validateDraw(b *binding, c Command) {
	if b.pso == nil || b.pso.compute {
		d.validationf("%s without a graphics pipeline", c.Kind)
		return
	}
	for _, rt := range b.rtvs {
		d.expectState(rt, c.Kind, metadata.ResourceStateRenderTarget)
	}
	if b.dsv != nil {
		d.expectState(b.dsv, c.Kind, metadata.ResourceStateDepthWrite, metadata.ResourceStateDepthRead)
	}
	if c.Kind == CmdDrawIndexed {
		if b.vertex == nil || b.index == nil {
			d.validationf("%s without vertex and index buffers", c.Kind)
			return
		}
		d.expectState(b.vertex, c.Kind, metadata.ResourceStateVertexAndConstantBuffer)
		d.expectState(b.index, c.Kind, metadata.ResourceStateIndexBuffer)
		end := uint64(c.Counts[2]+c.Counts[0]) * uint64(metadata.IndexStride)
		if end > b.index.desc.Width {
			d.validationf("%s reads past the end of %s", c.Kind, b.index.desc.Name)
		}
	}
	d.validateTables(b, c.Kind)
}

// validateTables checks every descriptor the bound pipeline can reach.
func (d *Device) validateTables(b *binding, kind CommandKind) {
	for slot, param := range b.pso.root.Parameters {
		if param.Kind != metadata.RootParameterDescriptorTable {
			continue
		}
		base, ok := b.tables[uint32(slot)]
		if !ok {
			d.validationf("%s: table %d of %s is not bound", kind, slot, b.pso.name)
			continue
		}
		h := d.heapForGPU(base)
		if h == nil {
			d.validationf("%s: table %d base %#x is not in a shader visible heap", kind, slot, base)
			continue
		}
		i := uint64(0)
		for _, rng := range param.Ranges {
			for n := uint32(0); n < rng.Count; n, i = n+1, i+1 {
				cpu := h.cpuStart + (base - h.gpuStart) + i*uint64(h.increment)
				v := d.views[cpu]
				if v == nil {
					d.validationf("%s: descriptor %d of table %d is uninitialized", kind, i, slot)
					continue
				}
				switch rng.Kind {
				case metadata.DescriptorRangeSRV:
					if v.kind != viewSRV {
						d.validationf("%s: descriptor %d of table %d is a %s, want a ShaderResourceView", kind, i, slot, v.kind)
					} else if !v.resource.state.IsShaderReadable() {
						d.validationf("%s: %s is read in state %s", kind, v.resource.desc.Name, v.resource.state)
					}
				case metadata.DescriptorRangeUAV:
					if v.kind != viewUAV {
						d.validationf("%s: descriptor %d of table %d is a %s, want an UnorderedAccessView", kind, i, slot, v.kind)
					} else {
						d.expectState(v.resource, kind, metadata.ResourceStateUnorderedAccess)
					}
				case metadata.DescriptorRangeCBV:
					if v.kind != viewCBV {
						d.validationf("%s: descriptor %d of table %d is a %s, want a ConstantBufferView", kind, i, slot, v.kind)
					}
				}
			}
		}
	}
}

func (d *Device) live(res device.Resource, kind CommandKind) *resource {
	r, ok := res.(*resource)
	if !ok || r == nil {
		d.validationf("%s: foreign or nil resource", kind)
		return nil
	}
	if r.released {
		d.validationf("%s: %s used after release", kind, r.desc.Name)
		return nil
	}
	return r
}

func (d *Device) viewResource(h metadata.DescriptorHandle, want viewKind, kind CommandKind) *resource {
	v := d.views[h.CPU]
	if v == nil || v.kind != want {
		d.validationf("%s: handle %#x is not a %s", kind, h.CPU, want)
		return nil
	}
	return d.live(v.resource, kind)
}

func (d *Device) expectState(r *resource, kind CommandKind, allowed ...metadata.ResourceState) {
	for _, s := range allowed {
		if r.state == s {
			return
		}
	}
	d.validationf("%s: %s is in state %s, expected %v", kind, r.desc.Name, r.state, allowed)
}
