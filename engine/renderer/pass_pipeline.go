package renderer

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

// ErrInvalidDispatch reports a compute pass that would dispatch an empty grid.
var ErrInvalidDispatch = errors.New("invalid dispatch dimensions")

// Shader files of the pass pipeline, relative to the shader directory.
const (
	FillShaderFile             = "fill_gbuffer.wgsl"
	AmbientOcclusionShaderFile = "ambient_occlusion.wgsl"
	ReflectionShaderFile       = "reflection.wgsl"
	CompositeShaderFile        = "composite.wgsl"
)

// Root parameter slots of the fill pass.
const (
	FillSlotMaterial uint32 = iota
	FillSlotFrame
	FillSlotObject
	FillSlotTextures
)

// Root parameter slots of the compute passes.
const (
	ComputeSlotFrame uint32 = iota
	ComputeSlotTargets
)

// CompositeSlotInputs is the composite pass table over the five G-buffer views.
const CompositeSlotInputs uint32 = 0

// postFillTable covers UAV ambient, UAV reflection, SRV diffuse, SRV normal
// and SRV depth in heap order.
var postFillTable = metadata.RootParameter{
	Kind: metadata.RootParameterDescriptorTable,
	Ranges: []metadata.DescriptorRange{
		{Kind: metadata.DescriptorRangeUAV, Count: 2},
		{Kind: metadata.DescriptorRangeSRV, Count: 3},
	},
}

var (
	FillRootSignature = metadata.RootSignatureDesc{Parameters: []metadata.RootParameter{
		{Kind: metadata.RootParameterConstants, Num32BitValues: 1},
		{Kind: metadata.RootParameterCBV},
		{Kind: metadata.RootParameterCBV},
		{Kind: metadata.RootParameterDescriptorTable, Ranges: []metadata.DescriptorRange{
			{Kind: metadata.DescriptorRangeSRV, Count: metadata.DescriptorsPerMaterial},
		}},
	}}
	ComputeRootSignature = metadata.RootSignatureDesc{Parameters: []metadata.RootParameter{
		{Kind: metadata.RootParameterCBV},
		postFillTable,
	}}
	CompositeRootSignature = metadata.RootSignatureDesc{Parameters: []metadata.RootParameter{
		postFillTable,
	}}
)

/**
 * @brief Records the final pass of a frame into list. The back buffer is
 * bound as the only render target and inputs is the base of a table holding
 * the ambient, reflection, diffuse, normal and depth views in that order.
 */
type Compositor func(list device.CommandList, inputs metadata.DescriptorHandle)

// PassPipelineConfig sizes the pipeline and locates its shaders.
type PassPipelineConfig struct {
	ShaderDir string
	Width     uint32
	Height    uint32
}

/**
 * @brief The fixed per-frame pass sequence: G-buffer fill on the graphics
 * queue, ambient occlusion and reflection on the compute queue, then the
 * composite on the graphics queue. Queue hand-offs are ordered with fences
 * so the CPU only waits once per frame.
 */
type PassPipeline struct {
	dev       device.Device
	graphics  *CommandContext
	compute   *CommandContext
	composite *CommandContext
	heaps     *DescriptorHeaps
	tracker   *StateTracker
	frames    *FrameResourceSet
	gbuffer   *GBufferResourceSet
	model     *Model

	config PassPipelineConfig

	fillPSO       device.PipelineState
	ambientPSO    device.PipelineState
	reflectionPSO device.PipelineState
	compositePSO  device.PipelineState

	ambientGroups    [3]uint32
	reflectionGroups [3]uint32

	compositor Compositor
}

func NewPassPipeline(dev device.Device, graphics, compute *CommandContext, heaps *DescriptorHeaps, tracker *StateTracker, frames *FrameResourceSet, gbuffer *GBufferResourceSet, config PassPipelineConfig) (*PassPipeline, error) {
	p := &PassPipeline{
		dev:      dev,
		graphics: graphics,
		compute:  compute,
		heaps:    heaps,
		tracker:  tracker,
		frames:   frames,
		gbuffer:  gbuffer,
		config:   config,
	}
	fail := func(err error) (*PassPipeline, error) {
		p.Release()
		return nil, err
	}

	var err error
	if p.composite, err = NewCommandContextOnQueue(dev, graphics.Queue(), "composite"); err != nil {
		return fail(err)
	}
	for _, file := range passShaderFiles {
		if err := p.build(file); err != nil {
			return fail(err)
		}
	}
	p.compositor = p.fullscreenComposite
	return p, nil
}

// DispatchSize is the thread-group grid covering width x height.
func DispatchSize(width, height uint32, workgroup [3]uint32) ([3]uint32, error) {
	if width == 0 || height == 0 || workgroup[0] == 0 || workgroup[1] == 0 {
		err := fmt.Errorf("%w: %dx%d target with workgroup %v", ErrInvalidDispatch, width, height, workgroup)
		core.LogError("%s", err)
		return [3]uint32{}, err
	}
	return [3]uint32{
		(width + workgroup[0] - 1) / workgroup[0],
		(height + workgroup[1] - 1) / workgroup[1],
		1,
	}, nil
}

func (p *PassPipeline) shader(file, entry string, profile metadata.ShaderProfile) (*ShaderModule, error) {
	return CompileShader(ShaderSource{
		Path:       filepath.Join(p.config.ShaderDir, file),
		EntryPoint: entry,
		Profile:    profile,
	})
}

// build compiles file and replaces the pipeline it feeds. On failure the
// previous pipeline stays in place.
func (p *PassPipeline) build(file string) error {
	switch file {
	case FillShaderFile, CompositeShaderFile:
		vs, err := p.shader(file, metadata.EntryPointVS, metadata.ShaderProfileVS)
		if err != nil {
			return err
		}
		ps, err := p.shader(file, metadata.EntryPointPS, metadata.ShaderProfilePS)
		if err != nil {
			return err
		}
		desc := metadata.GraphicsPipelineDesc{VS: vs.Bytes(), PS: ps.Bytes(), InputLayout: vs.InputLayout}
		target := &p.compositePSO
		if file == FillShaderFile {
			desc.Name = "FillGBuffer"
			desc.RootSignature = FillRootSignature
			desc.RTVFormats = []metadata.Format{GBufferDiffuseFormat, GBufferNormalFormat}
			desc.DSVFormat = GBufferDepthFormat
			desc.DepthEnable = true
			desc.DepthFunc = metadata.CompareFuncGreaterEqual
			target = &p.fillPSO
		} else {
			desc.Name = "Composite"
			desc.RootSignature = CompositeRootSignature
			desc.RTVFormats = []metadata.Format{metadata.FormatR8G8B8A8Unorm}
			desc.DSVFormat = metadata.FormatD32Float
			desc.DepthFunc = metadata.CompareFuncAlways
		}
		pso, err := p.dev.CreateGraphicsPipelineState(desc)
		if err != nil {
			return err
		}
		p.replace(target, pso)

	case AmbientOcclusionShaderFile, ReflectionShaderFile:
		cs, err := p.shader(file, metadata.EntryPointCS, metadata.ShaderProfileCS)
		if err != nil {
			return err
		}
		groups, err := DispatchSize(p.config.Width, p.config.Height, cs.Workgroup)
		if err != nil {
			return err
		}
		target, size, name := &p.ambientPSO, &p.ambientGroups, "AmbientOcclusion"
		if file == ReflectionShaderFile {
			target, size, name = &p.reflectionPSO, &p.reflectionGroups, "Reflection"
		}
		pso, err := p.dev.CreateComputePipelineState(metadata.ComputePipelineDesc{
			Name:          name,
			RootSignature: ComputeRootSignature,
			CS:            cs.Bytes(),
		})
		if err != nil {
			return err
		}
		p.replace(target, pso)
		*size = groups

	default:
		return fmt.Errorf("%s does not feed any pass", file)
	}
	return nil
}

func (p *PassPipeline) replace(target *device.PipelineState, pso device.PipelineState) {
	if *target != nil {
		(*target).Release()
	}
	*target = pso
}

var passShaderFiles = []string{FillShaderFile, AmbientOcclusionShaderFile, ReflectionShaderFile, CompositeShaderFile}

/**
 * @brief Recompiles the pass fed by the shader at path. Must only be called
 * between frames, after the GPU has drained. A CompileError leaves the
 * running pipeline untouched. Files that feed no pass are ignored.
 */
func (p *PassPipeline) ReloadShader(path string) error {
	file := filepath.Base(path)
	if !slices.Contains(passShaderFiles, file) {
		core.LogDebug("%s does not feed any pass, nothing to reload", file)
		return nil
	}
	if err := p.build(file); err != nil {
		core.LogWarn("keeping the previous %s pipeline", file)
		return err
	}
	core.LogInfo("reloaded %s", file)
	return nil
}

// SetCompositor replaces the composite pass. nil restores the fullscreen default.
func (p *PassPipeline) SetCompositor(c Compositor) {
	if c == nil {
		c = p.fullscreenComposite
	}
	p.compositor = c
}

// SetModel selects what the fill pass draws. A nil model leaves the G-buffer cleared.
func (p *PassPipeline) SetModel(m *Model) { p.model = m }

func (p *PassPipeline) AmbientGroups() [3]uint32    { return p.ambientGroups }
func (p *PassPipeline) ReflectionGroups() [3]uint32 { return p.reflectionGroups }

func (p *PassPipeline) viewport() (metadata.Viewport, metadata.Rect) {
	return metadata.Viewport{Width: float32(p.config.Width), Height: float32(p.config.Height), MaxDepth: 1},
		metadata.Rect{Right: int32(p.config.Width), Bottom: int32(p.config.Height)}
}

/**
 * @brief Records and submits every pass for one frame, presents, and blocks
 * until both queues have drained.
 * @param frameIndex The back buffer the composite pass renders into.
 */
func (p *PassPipeline) Render(swap device.SwapChain, frameIndex uint32) error {
	for _, ctx := range []*CommandContext{p.graphics, p.compute, p.composite} {
		if err := ctx.Reset(); err != nil {
			return err
		}
	}

	if err := p.fill(p.graphics.List(), frameIndex); err != nil {
		return err
	}
	filled, err := p.submit(p.graphics)
	if err != nil {
		return err
	}

	if err := p.compute.WaitFor(p.graphics, filled); err != nil {
		return err
	}
	if err := p.ambientOcclusion(p.compute.List(), frameIndex); err != nil {
		return err
	}
	if err := p.reflection(p.compute.List(), frameIndex); err != nil {
		return err
	}
	computed, err := p.submit(p.compute)
	if err != nil {
		return err
	}

	if err := p.composite.WaitFor(p.compute, computed); err != nil {
		return err
	}
	if err := p.final(p.composite.List(), frameIndex); err != nil {
		return err
	}
	if err := p.composite.Close(); err != nil {
		return err
	}
	if err := p.composite.Execute(); err != nil {
		return err
	}
	if err := swap.Present(); err != nil {
		return err
	}
	return p.WaitForGPU()
}

// WaitForGPU blocks until every context has drained.
func (p *PassPipeline) WaitForGPU() error {
	for _, ctx := range []*CommandContext{p.composite, p.compute, p.graphics} {
		if ctx == nil {
			continue
		}
		if err := ctx.WaitForGPU(); err != nil {
			return err
		}
	}
	return nil
}

func (p *PassPipeline) submit(ctx *CommandContext) (uint64, error) {
	if err := ctx.Close(); err != nil {
		return 0, err
	}
	if err := ctx.Execute(); err != nil {
		return 0, err
	}
	return ctx.Signal()
}

func (p *PassPipeline) fill(list device.CommandList, frameIndex uint32) error {
	g := p.gbuffer
	if err := p.tracker.apply(list,
		transition{g.Diffuse, metadata.ResourceStatePixelShaderResource, metadata.ResourceStateRenderTarget},
		transition{g.Normal, metadata.ResourceStatePixelShaderResource, metadata.ResourceStateRenderTarget},
		transition{g.Depth, metadata.ResourceStatePixelShaderResource, metadata.ResourceStateDepthWrite},
	); err != nil {
		return err
	}

	viewport, scissor := p.viewport()
	list.SetViewport(viewport)
	list.SetScissorRect(scissor)
	list.SetRenderTargets([]metadata.DescriptorHandle{g.RTVDiffuse, g.RTVNormal}, &g.DSVDepth)
	list.ClearRenderTargetView(g.RTVDiffuse, [4]float32{0, 0, 0, 1})
	list.ClearRenderTargetView(g.RTVNormal, [4]float32{0, 0, 0, 1})
	list.ClearDepthStencilView(g.DSVDepth, 0)

	list.SetPipelineState(p.fillPSO)
	list.SetDescriptorHeaps(p.heaps.CBVSRVUAV.Heap())
	list.SetRootConstantBufferView(FillSlotFrame, p.frames.FrameConstantsAddress(frameIndex))
	list.SetRootConstantBufferView(FillSlotObject, p.frames.ObjectConstantsAddress(frameIndex))
	if p.model != nil {
		p.model.Draw(list, FillSlotTextures)
	}

	return p.tracker.apply(list,
		transition{g.Normal, metadata.ResourceStateRenderTarget, metadata.ResourceStateGenericRead},
		transition{g.Depth, metadata.ResourceStateDepthWrite, metadata.ResourceStateDepthRead},
		transition{g.Diffuse, metadata.ResourceStateRenderTarget, metadata.ResourceStatePixelShaderResource},
	)
}

// requireComputeInputs checks the states the fill pass leaves behind.
func (p *PassPipeline) requireComputeInputs() error {
	g := p.gbuffer
	for _, r := range []struct {
		res   device.Resource
		state metadata.ResourceState
	}{
		{g.Diffuse, metadata.ResourceStatePixelShaderResource},
		{g.Normal, metadata.ResourceStateGenericRead},
		{g.Depth, metadata.ResourceStateDepthRead},
		{g.Ambient, metadata.ResourceStateUnorderedAccess},
		{g.Reflection, metadata.ResourceStateUnorderedAccess},
	} {
		if err := p.tracker.Require(r.res, r.state); err != nil {
			return err
		}
	}
	return nil
}

func (p *PassPipeline) dispatch(list device.CommandList, frameIndex uint32, pso device.PipelineState, groups [3]uint32) error {
	if err := p.requireComputeInputs(); err != nil {
		return err
	}
	list.SetPipelineState(pso)
	list.SetDescriptorHeaps(p.heaps.CBVSRVUAV.Heap())
	list.SetRootConstantBufferView(ComputeSlotFrame, p.frames.FrameConstantsAddress(frameIndex))
	list.SetRootDescriptorTable(ComputeSlotTargets, p.gbuffer.UAVAmbient)
	list.Dispatch(groups[0], groups[1], groups[2])
	return nil
}

func (p *PassPipeline) ambientOcclusion(list device.CommandList, frameIndex uint32) error {
	return p.dispatch(list, frameIndex, p.ambientPSO, p.ambientGroups)
}

func (p *PassPipeline) reflection(list device.CommandList, frameIndex uint32) error {
	return p.dispatch(list, frameIndex, p.reflectionPSO, p.reflectionGroups)
}

func (p *PassPipeline) final(list device.CommandList, frameIndex uint32) error {
	g := p.gbuffer
	backBuffer := p.frames.RenderTargets[frameIndex]
	if err := p.requireComputeInputs(); err != nil {
		return err
	}
	if err := p.tracker.Transition(list, backBuffer, metadata.ResourceStatePresent, metadata.ResourceStateRenderTarget); err != nil {
		return err
	}

	viewport, scissor := p.viewport()
	list.SetViewport(viewport)
	list.SetScissorRect(scissor)
	list.SetRenderTargets([]metadata.DescriptorHandle{p.frames.RTVs[frameIndex]}, &p.frames.DSVs[frameIndex])
	list.ClearRenderTargetView(p.frames.RTVs[frameIndex], [4]float32{0, 0, 0, 1})
	list.ClearDepthStencilView(p.frames.DSVs[frameIndex], 0)
	list.SetDescriptorHeaps(p.heaps.CBVSRVUAV.Heap())
	p.compositor(list, g.UAVAmbient)

	// Hand the G-buffer back in the states the next fill pass expects.
	return p.tracker.apply(list,
		transition{backBuffer, metadata.ResourceStateRenderTarget, metadata.ResourceStatePresent},
		transition{g.Normal, metadata.ResourceStateGenericRead, metadata.ResourceStatePixelShaderResource},
		transition{g.Depth, metadata.ResourceStateDepthRead, metadata.ResourceStatePixelShaderResource},
	)
}

func (p *PassPipeline) fullscreenComposite(list device.CommandList, inputs metadata.DescriptorHandle) {
	list.SetPipelineState(p.compositePSO)
	list.SetRootDescriptorTable(CompositeSlotInputs, inputs)
	list.DrawInstanced(3, 1, 0, 0)
}

func (p *PassPipeline) Release() {
	if p.composite != nil {
		p.composite.Release()
		p.composite = nil
	}
	for _, pso := range []*device.PipelineState{&p.compositePSO, &p.reflectionPSO, &p.ambientPSO, &p.fillPSO} {
		if *pso != nil {
			(*pso).Release()
			*pso = nil
		}
	}
}
