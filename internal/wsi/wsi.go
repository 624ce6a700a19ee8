// Package wsi describes the window system handles a graphics backend needs
// to open a context.
package wsi

import "fmt"

// Type identifies the window system behind the handles.
type Type int

const (
	Headless Type = iota
	Wayland
)

func (t Type) String() string {
	switch t {
	case Headless:
		return "headless"
	case Wayland:
		return "wayland"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Info is produced once by the platform at init and copied into the graphics
// backend. The handles are borrowed: whoever produced them owns and destroys
// them.
type Info struct {
	Type Type

	// DisplayConnection is the native display connection.
	DisplayConnection any
	// RenderWindow is the toplevel window handle, if any.
	RenderWindow any
	// RenderSurface is the surface the graphics backend draws into.
	RenderSurface any

	Width  int
	Height int

	// RenderSurfaceScale is the output scale factor in effect at init.
	RenderSurfaceScale float64
}

// HasSurface reports whether a render target is available.
func (i Info) HasSurface() bool {
	return i.RenderSurface != nil
}

func (i Info) String() string {
	return fmt.Sprintf("%s %dx%d@%g", i.Type, i.Width, i.Height, i.RenderSurfaceScale)
}
