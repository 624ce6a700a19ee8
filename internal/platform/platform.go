// Package platform is the NoGUI host's window system layer: it owns the
// display connection, the render window and its lifecycle, and runs the
// host's main loop.
package platform

import (
	"context"
	"errors"

	"github.com/bnema/emuwl/internal/config"
	"github.com/bnema/emuwl/internal/wl"
	"github.com/bnema/emuwl/internal/wsi"
	"github.com/bnema/emuwl/internal/xkb"
)

var (
	// ErrMissingGlobals is returned by Init when the compositor lacks an
	// interface the window needs. Each missing interface is joined to it.
	ErrMissingGlobals = errors.New("platform: required wayland globals missing")
	// ErrNotInitialized is returned by operations that need a successful
	// Init.
	ErrNotInitialized = errors.New("platform: not initialized")
)

// Platform is a window system backend for the NoGUI host.
type Platform interface {
	Init() error
	SetTitle(title string) error
	// MainLoop runs queued host jobs and window system events until Stop
	// is called or ctx is done.
	MainLoop(ctx context.Context) error
	Stop()
	IsRunning() bool
	// QueueJob runs fn on the main loop goroutine.
	QueueJob(fn func())
	WindowSystemInfo() wsi.Info
	Close() error
}

// Resizer is the renderer as seen by the window: it is told about new
// client sizes.
type Resizer interface {
	ResizeSurface(width, height int)
}

// Options configure a window.
type Options struct {
	// Display is the socket name; empty means $WAYLAND_DISPLAY.
	Display string

	// Width and Height are used until the compositor suggests a size.
	Width, Height int
	Title         string
	AppID         string

	// EscapeCloses stops the main loop when Escape is pressed in the
	// window.
	EscapeCloses bool

	// Connect opens the display. Defaults to wl.Connect.
	Connect func(name string) (wl.Display, error)
	// Compiler compiles the keyboard keymap. Defaults to xkb.NewCompiler.
	Compiler xkb.Compiler
}

// OptionsFromConfig builds window options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Width:        cfg.Window.Width,
		Height:       cfg.Window.Height,
		Title:        cfg.Window.Title,
		AppID:        cfg.Window.AppID,
		EscapeCloses: cfg.Window.EscapeCloses,
	}
}
