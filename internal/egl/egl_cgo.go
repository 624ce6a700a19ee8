//go:build linux && cgo

package egl

/*
#cgo LDFLAGS: -lEGL -lwayland-egl

#define EGL_NO_X11
#include <stdlib.h>
#include <EGL/egl.h>
#include <EGL/eglext.h>
#include <wayland-egl.h>

static EGLDisplay emuwlGetPlatformDisplay(EGLenum platform, void *native) {
	PFNEGLGETPLATFORMDISPLAYEXTPROC get =
		(PFNEGLGETPLATFORMDISPLAYEXTPROC)eglGetProcAddress("eglGetPlatformDisplayEXT");
	if (get == NULL) {
		return EGL_NO_DISPLAY;
	}
	return get(platform, native, NULL);
}

static EGLDisplay emuwlGetDisplay(void *native) {
	return eglGetDisplay((EGLNativeDisplayType)native);
}

static EGLSurface emuwlCreateWindowSurface(EGLDisplay d, EGLConfig c, void *win) {
	return eglCreateWindowSurface(d, c, (EGLNativeWindowType)win, NULL);
}
*/
import "C"

import (
	"strings"
	"unsafe"
)

type driver struct{}

// NewDriver returns the libEGL driver.
func NewDriver() (Driver, error) {
	return driver{}, nil
}

func lastError(op string) error {
	return &Error{Op: op, Code: int(C.eglGetError())}
}

// nativePointer unwraps handles that point into C memory.
func nativePointer(h any) (unsafe.Pointer, error) {
	switch p := h.(type) {
	case unsafe.Pointer:
		if p != nil {
			return p, nil
		}
	case uintptr:
		if p != 0 {
			return unsafe.Pointer(p), nil //nolint:govet // C-owned memory
		}
	}
	return nil, ErrForeignHandle
}

func (driver) ClientExtensions() []string {
	s := C.eglQueryString(C.EGLDisplay(unsafe.Pointer(nil)), C.EGL_EXTENSIONS)
	if s == nil {
		return nil
	}
	return strings.Fields(C.GoString(s))
}

func (driver) GetPlatformDisplay(platform uint32, native any) (Display, error) {
	p, err := nativePointer(native)
	if err != nil {
		return 0, err
	}
	d := C.emuwlGetPlatformDisplay(C.EGLenum(platform), p)
	if d == nil {
		return 0, lastError("eglGetPlatformDisplayEXT")
	}
	return Display(uintptr(unsafe.Pointer(d))), nil
}

func (driver) GetDisplay(native any) (Display, error) {
	p, err := nativePointer(native)
	if err != nil {
		return 0, err
	}
	d := C.emuwlGetDisplay(p)
	if d == nil {
		return 0, lastError("eglGetDisplay")
	}
	return Display(uintptr(unsafe.Pointer(d))), nil
}

func cDisplay(d Display) C.EGLDisplay { return C.EGLDisplay(unsafe.Pointer(uintptr(d))) }
func cConfig(c Config) C.EGLConfig    { return C.EGLConfig(unsafe.Pointer(uintptr(c))) }
func cContext(c Context) C.EGLContext { return C.EGLContext(unsafe.Pointer(uintptr(c))) }
func cSurface(s Surface) C.EGLSurface { return C.EGLSurface(unsafe.Pointer(uintptr(s))) }

func (driver) Initialize(d Display) (int, int, error) {
	var major, minor C.EGLint
	if C.eglInitialize(cDisplay(d), &major, &minor) == C.EGL_FALSE {
		return 0, 0, lastError("eglInitialize")
	}
	return int(major), int(minor), nil
}

func attribList(l []int32) *C.EGLint {
	return (*C.EGLint)(unsafe.Pointer(&l[0]))
}

func (driver) ChooseConfig(d Display, attribs ConfigAttribs) (Config, error) {
	if C.eglBindAPI(C.EGLenum(attribs.API())) == C.EGL_FALSE {
		return 0, lastError("eglBindAPI")
	}
	list := attribs.List()
	var cfg C.EGLConfig
	var n C.EGLint
	if C.eglChooseConfig(cDisplay(d), attribList(list), &cfg, 1, &n) == C.EGL_FALSE {
		return 0, lastError("eglChooseConfig")
	}
	if n == 0 {
		return 0, ErrNoConfig
	}
	return Config(uintptr(unsafe.Pointer(cfg))), nil
}

func (driver) CreateContext(d Display, c Config, attribs ContextAttribs) (Context, error) {
	list := attribs.List()
	ctx := C.eglCreateContext(cDisplay(d), cConfig(c), nil, attribList(list))
	if ctx == nil {
		return 0, lastError("eglCreateContext")
	}
	return Context(uintptr(unsafe.Pointer(ctx))), nil
}

type window struct {
	w *C.struct_wl_egl_window
}

func (w *window) Handle() uintptr { return uintptr(unsafe.Pointer(w.w)) }

func (w *window) Resize(width, height, dx, dy int) {
	C.wl_egl_window_resize(w.w, C.int(width), C.int(height), C.int(dx), C.int(dy))
}

func (w *window) Destroy() {
	if w.w != nil {
		C.wl_egl_window_destroy(w.w)
		w.w = nil
	}
}

func (driver) CreateWindow(surface any, width, height int) (NativeWindow, error) {
	p, err := nativePointer(surface)
	if err != nil {
		return nil, err
	}
	w := C.wl_egl_window_create((*C.struct_wl_surface)(p), C.int(width), C.int(height))
	if w == nil {
		return nil, &Error{Op: "wl_egl_window_create"}
	}
	return &window{w: w}, nil
}

func (driver) CreateWindowSurface(d Display, c Config, w NativeWindow) (Surface, error) {
	s := C.emuwlCreateWindowSurface(cDisplay(d), cConfig(c), unsafe.Pointer(w.Handle())) //nolint:govet // C-owned memory
	if s == nil {
		return 0, lastError("eglCreateWindowSurface")
	}
	return Surface(uintptr(unsafe.Pointer(s))), nil
}

func (driver) MakeCurrent(d Display, s Surface, c Context) error {
	if C.eglMakeCurrent(cDisplay(d), cSurface(s), cSurface(s), cContext(c)) == C.EGL_FALSE {
		return lastError("eglMakeCurrent")
	}
	return nil
}

func (driver) SwapBuffers(d Display, s Surface) error {
	if C.eglSwapBuffers(cDisplay(d), cSurface(s)) == C.EGL_FALSE {
		return lastError("eglSwapBuffers")
	}
	return nil
}

func (driver) DestroySurface(d Display, s Surface) error {
	if C.eglDestroySurface(cDisplay(d), cSurface(s)) == C.EGL_FALSE {
		return lastError("eglDestroySurface")
	}
	return nil
}

func (driver) DestroyContext(d Display, c Context) error {
	C.eglMakeCurrent(cDisplay(d), nil, nil, nil)
	if C.eglDestroyContext(cDisplay(d), cContext(c)) == C.EGL_FALSE {
		return lastError("eglDestroyContext")
	}
	return nil
}

func (driver) Terminate(d Display) error {
	if C.eglTerminate(cDisplay(d)) == C.EGL_FALSE {
		return lastError("eglTerminate")
	}
	C.eglReleaseThread()
	return nil
}
