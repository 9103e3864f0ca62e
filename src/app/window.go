package app

import (
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/ibd1279/vks"
)

// Window wraps the GLFW window and satisfies render.Window. GLFW owns all
// event delivery; everything here must run on the main OS thread.
type Window struct {
	win *glfw.Window
}

func newWindow(width, height int, title string) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, err
	}

	// No client API: the surface belongs to Vulkan, not OpenGL.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, err
	}
	return &Window{win: win}, nil
}

// OnResize registers the resize-intent callback. The callback only raises a
// flag; the frame scheduler consumes it at its own pace.
func (w *Window) OnResize(fn func()) {
	w.win.SetFramebufferSizeCallback(func(*glfw.Window, int, int) {
		fn()
	})
}

func (w *Window) FramebufferSize() (int, int) {
	return w.win.GetFramebufferSize()
}

func (w *Window) WaitEvents() {
	glfw.WaitEvents()
}

func (w *Window) ShouldClose() bool {
	return w.win.ShouldClose()
}

// RequiredExtensions are the instance extensions GLFW needs for surface
// creation on this platform.
func (w *Window) RequiredExtensions() []string {
	return w.win.GetRequiredInstanceExtensions()
}

// CreateSurface makes the presentation surface for an instance.
func (w *Window) CreateSurface(instance vks.Instance) (vks.SurfaceKHR, error) {
	surface, err := w.win.CreateWindowSurface(instance, nil)
	if err != nil {
		return vks.NullSurfaceKHR, err
	}
	return *(*vks.SurfaceKHR)(unsafe.Pointer(surface)), nil
}

func (w *Window) Destroy() {
	if w.win != nil {
		w.win.Destroy()
		w.win = nil
	}
	glfw.Terminate()
}
