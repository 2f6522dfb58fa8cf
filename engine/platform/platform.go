package platform

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/charmbracelet/log"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/prism/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Window is a glfw window created without a client API, for Vulkan.
type Window struct {
	logger *log.Logger
	handle *glfw.Window
	input  *core.Input
	resize resizeListeners
}

// NewWindow initializes glfw and opens a window. input may be nil.
func NewWindow(logger *log.Logger, cfg core.WindowConfig, input *core.Input) (*Window, error) {
	logger = core.OrDiscard(logger).WithPrefix("platform")
	if err := glfw.Init(); err != nil {
		logger.Error("failed to initialize glfw", "err", err)
		return nil, fmt.Errorf("glfw init: %w", err)
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, fmt.Errorf("glfw: no Vulkan loader found")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	handle, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		logger.Error("failed to create window", "err", err)
		glfw.Terminate()
		return nil, err
	}
	w := &Window{logger: logger, handle: handle, input: input}

	handle.SetKeyCallback(w.keyCallback)
	handle.SetMouseButtonCallback(w.mouseButtonCallback)
	handle.SetCursorPosCallback(w.cursorPosCallback)
	handle.SetFramebufferSizeCallback(w.framebufferSizeCallback)
	handle.Show()

	logger.Info("window created", "title", cfg.Title, "width", cfg.Width, "height", cfg.Height)
	return w, nil
}

func (w *Window) Width() int {
	width, _ := w.FramebufferSize()
	return width
}

func (w *Window) Height() int {
	_, height := w.FramebufferSize()
	return height
}

func (w *Window) FramebufferSize() (int, int) { return w.handle.GetFramebufferSize() }

func (w *Window) IsOpen() bool { return !w.handle.ShouldClose() }

func (w *Window) OnResize(fn func(width, height int)) { w.resize.add(fn) }

func (w *Window) PollEvents() { glfw.PollEvents() }

func (w *Window) Close() {
	if w.handle == nil {
		return
	}
	w.handle.Destroy()
	w.handle = nil
	glfw.Terminate()
}

// GetRequiredInstanceExtensions lists the Vulkan instance extensions the
// window surface needs.
func (w *Window) GetRequiredInstanceExtensions() []string {
	return w.handle.GetRequiredInstanceExtensions()
}

// CreateWindowSurface creates a VkSurfaceKHR for the window.
func (w *Window) CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error) {
	return w.handle.CreateWindowSurface(instance, allocCallbacks)
}

func (w *Window) keyCallback(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if w.input == nil || action == glfw.Repeat {
		return
	}
	if code, ok := keyCodes[key]; ok {
		w.input.ProcessKey(code, action == glfw.Press)
	}
}

func (w *Window) mouseButtonCallback(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
	if w.input == nil {
		return
	}
	switch button {
	case glfw.MouseButtonLeft:
		w.input.ProcessButton(core.BUTTON_LEFT, action == glfw.Press)
	case glfw.MouseButtonRight:
		w.input.ProcessButton(core.BUTTON_RIGHT, action == glfw.Press)
	case glfw.MouseButtonMiddle:
		w.input.ProcessButton(core.BUTTON_MIDDLE, action == glfw.Press)
	}
}

func (w *Window) cursorPosCallback(_ *glfw.Window, x, y float64) {
	if w.input != nil {
		w.input.ProcessMouseMove(float32(x), float32(y))
	}
}

func (w *Window) framebufferSizeCallback(_ *glfw.Window, width, height int) {
	w.logger.Debug("framebuffer resized", "width", width, "height", height)
	w.resize.fire(width, height)
}

var keyCodes = map[glfw.Key]core.KeyCode{
	glfw.KeyTab:       core.KEY_TAB,
	glfw.KeyLeftShift: core.KEY_SHIFT,
	glfw.KeyEscape:    core.KEY_ESCAPE,
	glfw.KeySpace:     core.KEY_SPACE,
	glfw.KeyLeft:      core.KEY_LEFT,
	glfw.KeyUp:        core.KEY_UP,
	glfw.KeyRight:     core.KEY_RIGHT,
	glfw.KeyDown:      core.KEY_DOWN,
	glfw.KeyA:         core.KEY_A,
	glfw.KeyD:         core.KEY_D,
	glfw.KeyE:         core.KEY_E,
	glfw.KeyQ:         core.KEY_Q,
	glfw.KeyS:         core.KEY_S,
	glfw.KeyW:         core.KEY_W,
}
