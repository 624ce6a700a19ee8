// Package wl is the seam between the emulator's window system glue and the
// Wayland wire protocol. Every protocol object the platform and the input
// backend touch is an interface here, so the same code runs against a live
// compositor or the recording fake in wltest. Connect uses libwayland-client
// when cgo is available, ConnectGo always speaks the protocol in pure Go.
//
// Events are delivered through listener interfaces. A listener always runs on
// the goroutine that drains the queue the object was created from, see
// Display.NewQueue.
package wl

import "errors"

var (
	// ErrConnect is returned when the display socket cannot be opened.
	ErrConnect = errors.New("wayland: cannot connect to display")
	// ErrConnectionLost is returned once the transport has failed (broken
	// pipe, connection reset, closed socket). The connection is unusable.
	ErrConnectionLost = errors.New("wayland: connection lost")
	// ErrClosed is returned by operations on a closed display or queue.
	ErrClosed = errors.New("wayland: display closed")
	// ErrProtocol is returned after the server reported a protocol error.
	// The connection is unusable.
	ErrProtocol = errors.New("wayland: protocol error")
)

// Interface names as announced by the registry.
const (
	CompositorInterface = "wl_compositor"
	WmBaseInterface     = "xdg_wm_base"
	OutputInterface     = "wl_output"
	SeatInterface       = "wl_seat"
)

// Seat capability bits.
const (
	SeatCapabilityPointer  uint32 = 1
	SeatCapabilityKeyboard uint32 = 2
)

// Pointer button and keyboard key states.
const (
	ButtonReleased uint32 = 0
	ButtonPressed  uint32 = 1

	KeyReleased uint32 = 0
	KeyPressed  uint32 = 1
)

// Pointer axes.
const (
	AxisVerticalScroll   uint32 = 0
	AxisHorizontalScroll uint32 = 1
)

// Keymap formats.
const (
	KeymapFormatNoKeymap uint32 = 0
	KeymapFormatXkbV1    uint32 = 1
)

// Display is one event queue on a display connection. The queue returned by
// Connect owns the connection; queues from NewQueue share it and only own
// their events.
type Display interface {
	// Registry creates a registry on this queue. Globals already announced
	// by the server arrive on the next round-trip.
	Registry(l RegistryListener) (Registry, error)
	// Roundtrip blocks until the server has processed every request sent so
	// far and all events it produced for this queue have been handled.
	Roundtrip() error
	// Dispatch blocks until at least one event for this queue has been
	// handled.
	Dispatch() error
	// NewQueue creates a private event queue on the same connection.
	NewQueue() (Display, error)
	// Wake makes a Dispatch blocked on this queue return.
	Wake() error
	// Handle is the native display handle handed to the graphics API.
	Handle() any
	// Close releases the queue, and the connection when called on the
	// queue returned by Connect.
	Close() error
}

// RegistryListener receives global announcements.
type RegistryListener interface {
	Global(name uint32, iface string, version uint32)
	GlobalRemove(name uint32)
}

// Registry binds announced globals.
type Registry interface {
	BindCompositor(name, version uint32) (Compositor, error)
	BindWmBase(name, version uint32, l WmBaseListener) (WmBase, error)
	BindOutput(name, version uint32, l OutputListener) (Output, error)
	BindSeat(name, version uint32, l SeatListener) (Seat, error)
	Destroy() error
}

// Compositor creates surfaces.
type Compositor interface {
	CreateSurface(l SurfaceListener) (Surface, error)
	Destroy() error
}

// SurfaceListener tracks which outputs a surface is shown on.
type SurfaceListener interface {
	Enter(outputID uint32)
	Leave(outputID uint32)
}

// Surface is a drawable wl_surface.
type Surface interface {
	ID() uint32
	SetBufferScale(scale int32) error
	Commit() error
	// Handle is the native surface handle handed to the graphics API.
	Handle() any
	Destroy() error
}

// OutputListener receives output properties. Done closes a batch.
type OutputListener interface {
	Scale(factor int32)
	Done()
}

// Output is a bound wl_output.
type Output interface {
	ID() uint32
	Release() error
}

// WmBaseListener answers liveness pings.
type WmBaseListener interface {
	Ping(serial uint32)
}

// WmBase is the xdg_wm_base singleton.
type WmBase interface {
	XdgSurface(s Surface, l XdgSurfaceListener) (XdgSurface, error)
	Pong(serial uint32) error
	Destroy() error
}

// XdgSurfaceListener receives configure sequences.
type XdgSurfaceListener interface {
	Configure(serial uint32)
}

// XdgSurface gives a surface a shell role.
type XdgSurface interface {
	Toplevel(l ToplevelListener) (Toplevel, error)
	AckConfigure(serial uint32) error
	SetWindowGeometry(x, y, width, height int32) error
	Destroy() error
}

// ToplevelListener receives size suggestions and close requests. A zero
// width or height leaves the size to the client.
type ToplevelListener interface {
	Configure(width, height int32, states []uint32)
	Close()
}

// Toplevel is an xdg_toplevel window.
type Toplevel interface {
	SetTitle(title string) error
	SetAppID(appID string) error
	Destroy() error
}

// SeatListener receives seat capabilities and its name.
type SeatListener interface {
	Capabilities(caps uint32)
	Name(name string)
}

// Seat is a bound wl_seat.
type Seat interface {
	Pointer(l PointerListener) (Pointer, error)
	Keyboard(l KeyboardListener) (Keyboard, error)
	Release() error
}

// PointerListener receives pointer events. Coordinates are surface local.
type PointerListener interface {
	Enter(serial, surfaceID uint32, x, y float64)
	Leave(serial, surfaceID uint32)
	Motion(time uint32, x, y float64)
	Button(serial, time, button, state uint32)
	Axis(time, axis uint32, value float64)
}

// Pointer is a wl_pointer.
type Pointer interface {
	Release() error
}

// KeyboardListener receives keyboard events. Keymap hands over ownership of
// fd.
type KeyboardListener interface {
	Keymap(format uint32, fd int, size uint32)
	Enter(serial, surfaceID uint32, keys []uint32)
	Leave(serial, surfaceID uint32)
	Key(serial, time, key, state uint32)
	Modifiers(serial, depressed, latched, locked, group uint32)
	RepeatInfo(rate, delay int32)
}

// Keyboard is a wl_keyboard.
type Keyboard interface {
	Release() error
}
