// Package egl is a thin driver over libEGL and libwayland-egl. Handles are
// opaque integers; the driver only accepts native Wayland handles that are
// libwayland C pointers.
package egl

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned when the binary was built without cgo.
	ErrUnsupported = errors.New("egl: built without cgo")
	// ErrForeignHandle is returned for native handles that are not
	// libwayland C pointers, e.g. objects of a pure Go Wayland client.
	ErrForeignHandle = errors.New("egl: native handle is not a libwayland pointer")
	// ErrNoConfig is returned when no framebuffer config matches.
	ErrNoConfig = errors.New("egl: no matching config")
)

type (
	Display uintptr
	Config  uintptr
	Context uintptr
	Surface uintptr
)

// PlatformWaylandKHR is EGL_PLATFORM_WAYLAND_KHR, also valid for the EXT
// variant.
const PlatformWaylandKHR uint32 = 0x31D8

// Client extensions that make GetPlatformDisplay usable.
const (
	ExtPlatformWaylandKHR = "EGL_KHR_platform_wayland"
	ExtPlatformWaylandEXT = "EGL_EXT_platform_wayland"
)

// Error is an EGL call that failed with eglGetError's code.
type Error struct {
	Op   string
	Code int
}

func (e *Error) Error() string {
	return fmt.Sprintf("egl: %s failed (0x%x)", e.Op, e.Code)
}

// NativeWindow is a wl_egl_window.
type NativeWindow interface {
	Handle() uintptr
	// Resize changes the window size; dx and dy move the buffer origin.
	Resize(width, height, dx, dy int)
	Destroy()
}

// Driver is the set of EGL entry points the render context needs.
type Driver interface {
	// ClientExtensions lists the client extensions of EGL_NO_DISPLAY.
	ClientExtensions() []string
	GetPlatformDisplay(platform uint32, native any) (Display, error)
	GetDisplay(native any) (Display, error)
	Initialize(d Display) (major, minor int, err error)
	ChooseConfig(d Display, attribs ConfigAttribs) (Config, error)
	CreateContext(d Display, c Config, attribs ContextAttribs) (Context, error)
	CreateWindow(surface any, width, height int) (NativeWindow, error)
	CreateWindowSurface(d Display, c Config, w NativeWindow) (Surface, error)
	MakeCurrent(d Display, s Surface, c Context) error
	SwapBuffers(d Display, s Surface) error
	DestroySurface(d Display, s Surface) error
	DestroyContext(d Display, c Context) error
	Terminate(d Display) error
}

// HasPlatformWayland reports whether d can open a display from a
// wl_display with GetPlatformDisplay.
func HasPlatformWayland(d Driver) bool {
	for _, e := range d.ClientExtensions() {
		if e == ExtPlatformWaylandKHR || e == ExtPlatformWaylandEXT {
			return true
		}
	}
	return false
}
