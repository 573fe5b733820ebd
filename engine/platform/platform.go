package platform

import (
	"runtime"
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/continuum/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the window whose framebuffer is the device back buffer.
type Platform struct {
	Window *glfw.Window

	mu            sync.Mutex
	width, height uint32
	resized       bool
	startTime     float64
}

func New() *Platform {
	return &Platform{}
}

func (p *Platform) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window
	p.width, p.height = width, height

	p.Window.SetKeyCallback(keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	p.startTime = glfw.GetTime()
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

// PumpMessages processes pending window events. It returns false once the
// window was asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// GetAbsoluteTime returns the seconds elapsed since Startup.
func (p *Platform) GetAbsoluteTime() float64 {
	return glfw.GetTime() - p.startTime
}

// FramebufferSize returns the last known framebuffer size.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

// TakeResize reports a framebuffer size change since the previous call.
// A minimized window has a zero size and is not reported.
func (p *Platform) TakeResize() (uint32, uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.resized || p.width == 0 || p.height == 0 {
		return p.width, p.height, false
	}
	p.resized = false
	return p.width, p.height, true
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.width, p.height = uint32(width), uint32(height)
	p.resized = true
	core.LogDebug("framebuffer resized to %dx%d", width, height)
}

func keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.SetShouldClose(true)
	}
}
