// Package glinterface creates the emulator's GL context on a Wayland
// surface through EGL.
package glinterface

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"go.uber.org/multierr"

	"github.com/bnema/emuwl/internal/egl"
	"github.com/bnema/emuwl/internal/logger"
	"github.com/bnema/emuwl/internal/wsi"
)

// ErrNoSurface is returned when no render surface was supplied and there is
// no renderer to wait on.
var ErrNoSurface = errors.New("glinterface: no render surface")

// Renderer is the part of the renderer the context reads sizes from.
type Renderer interface {
	NewWidth() int
	NewHeight() int
	// WaitForNewSurface blocks until a render surface handle is assigned.
	WaitForNewSurface() any
}

// BootstrapSizer reports the size the compositor configured before any
// renderer existed.
type BootstrapSizer interface {
	BootstrapSize() (width, height int)
}

// Options tune display and context creation.
type Options struct {
	// PreferPlatformDisplay uses eglGetPlatformDisplay when the client
	// extensions allow it.
	PreferPlatformDisplay bool
	Config                egl.ConfigAttribs
	Context               egl.ContextAttribs
}

// DefaultOptions asks for a desktop GL 3.3 core context.
func DefaultOptions() Options {
	return Options{
		PreferPlatformDisplay: true,
		Config:                egl.DefaultConfigAttribs(),
		Context:               egl.ContextAttribs{Major: 3, Minor: 3},
	}
}

// EGLWayland is a GL context bound to a wl_surface through a wl_egl_window.
type EGLWayland struct {
	driver    egl.Driver
	wsi       wsi.Info
	bootstrap BootstrapSizer
	renderer  Renderer
	opts      Options
	log       *log.Logger

	display egl.Display
	config  egl.Config
	context egl.Context
	surface egl.Surface
	window  egl.NativeWindow

	backbufferWidth, backbufferHeight int
}

// NewEGLWayland prepares a context for the handles in info. Nothing is
// created until Initialize.
func NewEGLWayland(d egl.Driver, info wsi.Info, bootstrap BootstrapSizer, opts Options) *EGLWayland {
	return &EGLWayland{
		driver:    d,
		wsi:       info,
		bootstrap: bootstrap,
		opts:      opts,
		log:       logger.WithPrefix("egl"),
	}
}

// SetRenderer attaches the renderer sizes are read from. nil detaches it.
func (g *EGLWayland) SetRenderer(r Renderer) {
	g.renderer = r
}

// OpenDisplay opens the EGL display for the Wayland connection.
func (g *EGLWayland) OpenDisplay() (egl.Display, error) {
	native := g.wsi.DisplayConnection
	if g.opts.PreferPlatformDisplay && egl.HasPlatformWayland(g.driver) {
		d, err := g.driver.GetPlatformDisplay(egl.PlatformWaylandKHR, native)
		if err == nil {
			return d, nil
		}
		if errors.Is(err, egl.ErrForeignHandle) {
			return 0, err
		}
		g.log.Debugf("Platform display unavailable, falling back to eglGetDisplay: %v", err)
	}
	return g.driver.GetDisplay(native)
}

func (g *EGLWayland) bootstrapSize() (int, int) {
	if g.bootstrap == nil {
		return g.wsi.Width, g.wsi.Height
	}
	return g.bootstrap.BootstrapSize()
}

// NativeWindow recreates the wl_egl_window at the bootstrap size. When no
// render surface was supplied it waits for the renderer to assign one.
func (g *EGLWayland) NativeWindow(cfg egl.Config) (egl.NativeWindow, error) {
	if g.window != nil {
		g.window.Destroy()
		g.window = nil
	}

	if g.wsi.RenderSurface == nil {
		if g.renderer == nil {
			return nil, ErrNoSurface
		}
		g.wsi.RenderSurface = g.renderer.WaitForNewSurface()
		if g.wsi.RenderSurface == nil {
			return nil, ErrNoSurface
		}
	}

	w, h := g.bootstrapSize()
	w, h = max(w, 1), max(h, 1)
	win, err := g.driver.CreateWindow(g.wsi.RenderSurface, w, h)
	if err != nil {
		return nil, fmt.Errorf("create native window: %w", err)
	}
	g.window = win
	g.backbufferWidth, g.backbufferHeight = w, h
	return win, nil
}

// Update resizes the native window to the renderer's latest size. The
// buffer origin never moves.
func (g *EGLWayland) Update() {
	var w, h int
	if g.renderer != nil {
		w, h = g.renderer.NewWidth(), g.renderer.NewHeight()
	} else {
		w, h = g.bootstrapSize()
	}
	w, h = max(w, 1), max(h, 1)

	if g.window != nil {
		g.window.Resize(w, h, 0, 0)
	}
	g.backbufferWidth, g.backbufferHeight = w, h
}

// BackbufferSize is the size of the window as last created or resized.
func (g *EGLWayland) BackbufferSize() (width, height int) {
	return g.backbufferWidth, g.backbufferHeight
}

// Initialize opens the display, creates the context and the window surface
// and makes the context current.
func (g *EGLWayland) Initialize() error {
	d, err := g.OpenDisplay()
	if err != nil {
		return fmt.Errorf("open display: %w", err)
	}
	g.display = d

	major, minor, err := g.driver.Initialize(d)
	if err != nil {
		return fmt.Errorf("initialize display: %w", err)
	}
	g.log.Infof("EGL %d.%d", major, minor)

	if g.config, err = g.driver.ChooseConfig(d, g.opts.Config); err != nil {
		return fmt.Errorf("choose config: %w", err)
	}
	if g.context, err = g.driver.CreateContext(d, g.config, g.opts.Context); err != nil {
		return fmt.Errorf("create context: %w", err)
	}

	win, err := g.NativeWindow(g.config)
	if err != nil {
		return err
	}
	if g.surface, err = g.driver.CreateWindowSurface(d, g.config, win); err != nil {
		return fmt.Errorf("create window surface: %w", err)
	}
	if err := g.driver.MakeCurrent(d, g.surface, g.context); err != nil {
		return fmt.Errorf("make current: %w", err)
	}
	return nil
}

// SwapBuffers presents the back buffer.
func (g *EGLWayland) SwapBuffers() error {
	if g.surface == 0 {
		return ErrNoSurface
	}
	return g.driver.SwapBuffers(g.display, g.surface)
}

// Close destroys the window surface, then the context, then the native
// window, then terminates the display. The context has to go before the
// window it renders to.
func (g *EGLWayland) Close() error {
	var err error
	if g.surface != 0 {
		err = multierr.Append(err, g.driver.DestroySurface(g.display, g.surface))
		g.surface = 0
	}
	if g.context != 0 {
		err = multierr.Append(err, g.driver.DestroyContext(g.display, g.context))
		g.context = 0
	}
	if g.window != nil {
		g.window.Destroy()
		g.window = nil
	}
	if g.display != 0 {
		err = multierr.Append(err, g.driver.Terminate(g.display))
		g.display = 0
	}
	return err
}
