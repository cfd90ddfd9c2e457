package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/hawk/engine/assets"
	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/math"
	"github.com/spaghettifunk/hawk/engine/renderer/components"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

type RendererType uint8

const (
	Vulkan RendererType = iota
	Headless
)

func (t RendererType) String() string {
	if t == Headless {
		return "headless"
	}
	return "vulkan"
}

// BackBufferFormat is the swap chain format the composite pass writes.
const BackBufferFormat = metadata.FormatR8G8B8A8Unorm

type RendererConfig struct {
	Width     uint32
	Height    uint32
	ShaderDir string
	Heaps     HeapCapacities
	VSync     bool
}

/**
 * @brief Owns every GPU object of the frame graph and drives one frame per
 * DrawFrame call. Objects are created in dependency order and released in
 * reverse.
 */
type Renderer struct {
	dev      device.Device
	config   RendererConfig
	heaps    *DescriptorHeaps
	tracker  *StateTracker
	graphics *CommandContext
	compute  *CommandContext
	swap     device.SwapChain
	frames   *FrameResourceSet
	gbuffer  *GBufferResourceSet
	pipeline *PassPipeline
	model    *Model

	frameIndex  uint32
	frameNumber uint64
}

func NewRenderer(dev device.Device, config RendererConfig) (*Renderer, error) {
	r := &Renderer{dev: dev, config: config, tracker: NewStateTracker()}
	fail := func(err error) (*Renderer, error) {
		core.LogError("renderer initialization failed: %s", err)
		r.Shutdown()
		return nil, err
	}

	var err error
	if r.heaps, err = NewDescriptorHeaps(dev, config.Heaps); err != nil {
		return fail(err)
	}
	if r.graphics, err = NewCommandContext(dev, device.QueueGraphics, "graphics"); err != nil {
		return fail(err)
	}
	if r.compute, err = NewCommandContext(dev, device.QueueCompute, "compute"); err != nil {
		return fail(err)
	}
	r.swap, err = dev.CreateSwapChain(r.graphics.Queue(), device.SwapChainDesc{
		Width:       config.Width,
		Height:      config.Height,
		BufferCount: FrameCount,
		Format:      BackBufferFormat,
		VSync:       config.VSync,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to create swap chain: %w", err))
	}
	if r.frames, err = NewFrameResourceSet(dev, r.swap, r.heaps, r.tracker, config.Width, config.Height); err != nil {
		return fail(err)
	}
	if r.gbuffer, err = NewGBufferResourceSet(dev, r.heaps, r.tracker, config.Width, config.Height); err != nil {
		return fail(err)
	}
	r.pipeline, err = NewPassPipeline(dev, r.graphics, r.compute, r.heaps, r.tracker, r.frames, r.gbuffer, PassPipelineConfig{
		ShaderDir: config.ShaderDir,
		Width:     config.Width,
		Height:    config.Height,
	})
	if err != nil {
		return fail(err)
	}
	r.frameIndex = r.swap.CurrentBackBufferIndex()

	core.LogInfo("renderer initialized %dx%d, shaders from %s", config.Width, config.Height, config.ShaderDir)
	return r, nil
}

// LoadModel uploads scene and makes it the model the fill pass draws,
// releasing the previous one.
func (r *Renderer) LoadModel(scene *metadata.Scene, textures assets.TextureSource) error {
	model, err := NewModel(r.dev, r.graphics, r.heaps, r.tracker, scene, textures)
	if err != nil {
		return err
	}
	if r.model != nil {
		r.model.Release()
	}
	r.model = model
	r.pipeline.SetModel(model)
	core.LogInfo("loaded %s: %d meshes, %d materials, %d indices",
		model.Name(), len(model.Meshes()), len(model.Materials()), model.IndexCount())
	return nil
}

// UpdateConstants writes the camera constants for the frame about to be
// recorded. The GPU must not be reading that frame's buffer.
func (r *Renderer) UpdateConstants(camera *components.Camera) {
	frame, object := camera.Constants(math.NewMat4Identity())
	r.frames.WriteConstants(r.frameIndex, &frame, &object)
}

/**
 * @brief Renders and presents one frame, waits for the GPU, then writes the
 * next frame's constants from camera.
 */
func (r *Renderer) DrawFrame(camera *components.Camera) error {
	if err := r.pipeline.Render(r.swap, r.frameIndex); err != nil {
		return err
	}
	r.frameNumber++
	r.frameIndex = r.swap.CurrentBackBufferIndex()
	r.UpdateConstants(camera)
	return nil
}

// ReloadShaders recompiles each changed shader. Call between frames only.
func (r *Renderer) ReloadShaders(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := r.pipeline.WaitForGPU(); err != nil {
		return err
	}
	var errs []error
	for _, path := range paths {
		if err := r.pipeline.ReloadShader(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Renderer) SetCompositor(c Compositor) { r.pipeline.SetCompositor(c) }

func (r *Renderer) FrameIndex() uint32           { return r.frameIndex }
func (r *Renderer) FrameNumber() uint64          { return r.frameNumber }
func (r *Renderer) Frames() *FrameResourceSet    { return r.frames }
func (r *Renderer) GBuffer() *GBufferResourceSet { return r.gbuffer }
func (r *Renderer) Pipeline() *PassPipeline      { return r.pipeline }
func (r *Renderer) Model() *Model                { return r.model }
func (r *Renderer) Tracker() *StateTracker       { return r.tracker }

// Shutdown drains both queues and releases everything in reverse creation order.
func (r *Renderer) Shutdown() {
	if r.pipeline != nil {
		if err := r.pipeline.WaitForGPU(); err != nil {
			core.LogWarn("drain before shutdown failed: %s", err)
		}
	}
	if r.model != nil {
		r.model.Release()
		r.model = nil
	}
	if r.pipeline != nil {
		r.pipeline.Release()
		r.pipeline = nil
	}
	if r.gbuffer != nil {
		r.gbuffer.Release()
		r.gbuffer = nil
	}
	if r.frames != nil {
		r.frames.Release()
		r.frames = nil
	}
	if r.swap != nil {
		r.swap.Release()
		r.swap = nil
	}
	if r.compute != nil {
		r.compute.Release()
		r.compute = nil
	}
	if r.graphics != nil {
		r.graphics.Release()
		r.graphics = nil
	}
	if r.heaps != nil {
		r.heaps.Release()
		r.heaps = nil
	}
	core.LogInfo("renderer shut down after %d frames", r.frameNumber)
}
