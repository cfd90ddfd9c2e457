package platform

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/hawk/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

var keyCodes = map[glfw.Key]core.KeyCode{
	glfw.KeyEscape:    core.KEY_ESCAPE,
	glfw.KeySpace:     core.KEY_SPACE,
	glfw.KeyA:         core.KEY_A,
	glfw.KeyD:         core.KEY_D,
	glfw.KeyE:         core.KEY_E,
	glfw.KeyQ:         core.KEY_Q,
	glfw.KeyR:         core.KEY_R,
	glfw.KeyS:         core.KEY_S,
	glfw.KeyW:         core.KEY_W,
	glfw.KeyLeftShift: core.KEY_LSHIFT,
}

var buttons = map[glfw.MouseButton]core.Button{
	glfw.MouseButtonLeft:   core.BUTTON_LEFT,
	glfw.MouseButtonRight:  core.BUTTON_RIGHT,
	glfw.MouseButtonMiddle: core.BUTTON_MIDDLE,
}

/**
 * @brief The application window. Input is pushed into an InputState as
 * glfw reports it; window events go to the event bus.
 */
type Platform struct {
	Window *glfw.Window
	input  *core.InputState
	events *core.EventBus
}

func New(input *core.InputState, events *core.EventBus) *Platform {
	return &Platform{input: input, events: events}
}

func (p *Platform) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		err = fmt.Errorf("failed to initialize glfw: %w", err)
		core.LogError("%s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		err := fmt.Errorf("glfw reports no Vulkan loader")
		core.LogError("%s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		err = fmt.Errorf("failed to create window: %w", err)
		core.LogError("%s", err)
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetMouseButtonCallback(p.mouseButtonCallback)
	p.Window.SetCursorPosCallback(p.cursorPosCallback)
	p.Window.SetScrollCallback(p.scrollCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	core.LogInfo("window %q created (%dx%d)", applicationName, width, height)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages dispatches pending window events to the callbacks.
func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

func (p *Platform) GetTime() float64 {
	return glfw.GetTime()
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// RequiredInstanceExtensions lists the Vulkan instance extensions the window surface needs.
func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// CreateWindowSurface creates a VkSurfaceKHR for instance, a VkInstance handle.
func (p *Platform) CreateWindowSurface(instance interface{}) (uintptr, error) {
	return p.Window.CreateWindowSurface(instance, nil)
}

// VulkanProcAddress is vkGetInstanceProcAddr as resolved by glfw.
func (p *Platform) VulkanProcAddress() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	code, ok := keyCodes[key]
	if !ok || action == glfw.Repeat {
		return
	}
	p.input.ProcessKey(code, action == glfw.Press)
}

func (p *Platform) mouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	if b, ok := buttons[button]; ok {
		p.input.ProcessButton(b, action == glfw.Press)
	}
}

func (p *Platform) cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	p.input.ProcessMouseMove(xpos, ypos)
}

func (p *Platform) scrollCallback(w *glfw.Window, xoff, yoff float64) {
	p.input.ProcessMouseWheel(yoff)
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.events.Fire(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.ResizeEvent{Width: uint32(width), Height: uint32(height)},
	})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}
