package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/hawk/engine/assets"
	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/platform"
	"github.com/spaghettifunk/hawk/engine/renderer"
	"github.com/spaghettifunk/hawk/engine/renderer/components"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/headless"
	"github.com/spaghettifunk/hawk/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageBooting:
		return "booting"
	case EngineStageBootComplete:
		return "boot complete"
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

/**
 * @brief Owns the window, the device and the renderer, and drives one frame
 * per loop iteration. Shader reloads and input are handled between frames.
 */
type Engine struct {
	currentStage Stage
	config       *ApplicationConfig

	events     *core.EventBus
	input      *core.InputState
	platform   *platform.Platform
	dev        device.Device
	renderer   *renderer.Renderer
	controller *components.CameraController
	watcher    *assets.ShaderWatcher
	clock      *core.Clock
	metrics    *core.Metrics

	isRunning   atomic.Bool
	isSuspended bool
	width       uint32
	height      uint32
	lastTime    float64
}

func New(config *ApplicationConfig) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	core.SetLogLevel(config.LogLevel)

	e := &Engine{
		currentStage: EngineStageBooting,
		config:       config,
		events:       core.NewEventBus(),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		width:        config.StartWidth,
		height:       config.StartHeight,
	}
	e.input = core.NewInputState(e.events)
	if !config.Headless {
		e.platform = platform.New(e.input, e.events)
	}
	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Stage() Stage { return e.currentStage }

func (e *Engine) Renderer() *renderer.Renderer { return e.renderer }

// Quit stops the loop after the current frame. Safe from any goroutine.
func (e *Engine) Quit() { e.isRunning.Store(false) }

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("cannot initialize engine in stage %s", e.currentStage)
	}
	e.currentStage = EngineStageInitializing

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.events.Register(core.EVENT_CODE_SHADER_CHANGED, e, e.onShaderChanged)

	if e.platform != nil {
		if err := e.platform.Startup(e.config.Name,
			e.config.StartPosX,
			e.config.StartPosY,
			e.config.StartWidth,
			e.config.StartHeight); err != nil {
			return err
		}
	}

	dev, err := e.createDevice()
	if err != nil {
		return err
	}
	e.dev = dev

	if e.renderer, err = renderer.NewRenderer(e.dev, e.config.rendererConfig()); err != nil {
		return err
	}
	scene, err := assets.NewDefaultSource().LoadScene(e.config.Scene)
	if err != nil {
		return err
	}
	if err := e.renderer.LoadModel(scene, assets.NewTextureSource(e.config.TextureDir)); err != nil {
		return err
	}

	camera := components.NewCamera(float32(e.config.StartWidth) / float32(e.config.StartHeight))
	e.controller = components.NewCameraController(camera, e.input)
	e.renderer.UpdateConstants(camera)

	if e.config.HotReload {
		if e.watcher, err = assets.NewShaderWatcher(e.config.ShaderDir, e.events); err != nil {
			// Rendering works without it.
			core.LogWarn("shader hot reload disabled: %s", err)
			e.watcher = nil
		}
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized with the %s renderer", e.config.rendererType())
	return nil
}

func (e *Engine) createDevice() (device.Device, error) {
	if e.config.rendererType() == renderer.Headless {
		return headless.NewDevice(headless.DefaultOptions()), nil
	}
	dev, err := vulkan.NewDevice(vulkan.Options{
		ApplicationName: e.config.Name,
		Surface:         e.platform,
		Validation:      e.config.Validation,
	})
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// Run renders until the window closes, escape is pressed, ctx is cancelled
// or the frame limit is reached. ctx is checked between frames only.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("cannot run engine in stage %s", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		if err := ctx.Err(); err != nil {
			core.LogInfo("context done, stopping: %s", err)
			break
		}
		if e.platform != nil {
			e.platform.PumpMessages()
		}
		if !e.isRunning.Load() {
			break
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if !e.isSuspended {
			if err := e.reloadShaders(); err != nil {
				return err
			}
			e.controller.Update()
			if err := e.renderer.DrawFrame(e.controller.Camera()); err != nil {
				err = fmt.Errorf("frame %d failed: %w", e.renderer.FrameNumber(), err)
				core.LogError("%s", err)
				return err
			}
			if e.metrics.Update(delta) {
				core.LogInfo("FPS: %.0f, frame time: %.3fms", e.metrics.FPS(), e.metrics.FrameTime())
			}
		}

		// Input is the last thing updated before the frame ends.
		e.input.Update()
		e.lastTime = currentTime

		if limit := e.config.FrameLimit; limit > 0 && e.renderer.FrameNumber() >= limit {
			core.LogInfo("frame limit %d reached", limit)
			break
		}
	}
	e.isRunning.Store(false)
	e.currentStage = EngineStageInitialized
	return nil
}

// reloadShaders applies queued shader edits. A shader that fails to compile
// keeps its previous pipeline.
func (e *Engine) reloadShaders() error {
	if e.watcher == nil {
		return nil
	}
	err := e.renderer.ReloadShaders(e.watcher.Drain())
	if err == nil || onlyCompileErrors(err) {
		if err != nil {
			core.LogError("shader reload failed, keeping the previous pipelines: %s", err)
		}
		return nil
	}
	core.LogError("%s", err)
	return err
}

func onlyCompileErrors(err error) bool {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !errors.Is(e, core.ErrShaderCompile) {
				return false
			}
		}
		return true
	}
	return errors.Is(err, core.ErrShaderCompile)
}

// Shutdown releases everything in reverse creation order. It can be called
// after a failed Initialize.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var errs []error
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
		e.watcher = nil
	}
	if e.renderer != nil {
		e.renderer.Shutdown()
		e.renderer = nil
	}
	if e.dev != nil {
		e.dev.Release()
		e.dev = nil
	}
	if e.platform != nil && e.platform.Window != nil {
		if err := e.platform.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	e.events.Shutdown()

	e.currentStage = EngineStageUninitialized
	core.LogInfo("engine shut down")
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(ec core.EventContext, listener interface{}) bool {
	if ec.Type == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.Quit()
		return true
	}
	return false
}

func (e *Engine) onKey(ec core.EventContext, listener interface{}) bool {
	ke, ok := ec.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", ec.Type)
		return false
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		// Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
		return true
	}
	return false
}

// onResized only logs. Render targets keep their startup size.
func (e *Engine) onResized(ec core.EventContext, listener interface{}) bool {
	re, ok := ec.Data.(*core.ResizeEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", ec.Type)
		return false
	}
	if re.Width == e.width && re.Height == e.height {
		return false
	}
	e.width, e.height = re.Width, re.Height
	core.LogDebug("Window resize: %d, %d", re.Width, re.Height)

	if re.Width == 0 || re.Height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if re.Width != e.config.StartWidth || re.Height != e.config.StartHeight {
		core.LogWarn("resize to %dx%d is not supported, still rendering %dx%d",
			re.Width, re.Height, e.config.StartWidth, e.config.StartHeight)
	}
	return false
}

func (e *Engine) onShaderChanged(ec core.EventContext, listener interface{}) bool {
	if sc, ok := ec.Data.(*core.ShaderChangedEvent); ok {
		core.LogInfo("shader %s changed, reloading at the next frame", sc.Path)
	}
	return false
}
