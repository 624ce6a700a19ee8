package platform

import "github.com/bnema/emuwl/internal/wl"

// Adapters from the wl listener interfaces to Wayland's handlers. Several
// listeners share method names, so Wayland cannot implement them itself.

type registryListener struct{ p *Wayland }

func (l registryListener) Global(name uint32, iface string, version uint32) {
	l.p.global(name, iface, version)
}

func (l registryListener) GlobalRemove(name uint32) { l.p.globalRemove(name) }

type surfaceListener struct{ p *Wayland }

func (l surfaceListener) Enter(outputID uint32) { l.p.surfaceEnter(outputID) }
func (l surfaceListener) Leave(uint32)          {}

type outputListener struct {
	p *Wayland
	o *boundOutput
}

func (l outputListener) Scale(factor int32) { l.o.scale = factor }
func (l outputListener) Done()              { l.p.outputDone(l.o) }

type wmBaseListener struct{ p *Wayland }

func (l wmBaseListener) Ping(serial uint32) { l.p.ping(serial) }

type xdgSurfaceListener struct{ p *Wayland }

func (l xdgSurfaceListener) Configure(serial uint32) { l.p.xdgConfigure(serial) }

type toplevelListener struct{ p *Wayland }

func (l toplevelListener) Configure(width, height int32, _ []uint32) {
	l.p.toplevelConfigure(width, height)
}

func (l toplevelListener) Close() { l.p.toplevelClose() }

type seatListener struct{ p *Wayland }

func (l seatListener) Capabilities(caps uint32) { l.p.seatCapabilities(caps) }

func (l seatListener) Name(name string) {
	l.p.log.Debugf("Seat %q", name)
}

// The window does not use the pointer; binding it keeps the cursor
// focused on the surface for compositors that expect it.
type pointerListener struct{}

func (pointerListener) Enter(uint32, uint32, float64, float64) {}
func (pointerListener) Leave(uint32, uint32)                   {}
func (pointerListener) Motion(uint32, float64, float64)        {}
func (pointerListener) Button(uint32, uint32, uint32, uint32)  {}
func (pointerListener) Axis(uint32, uint32, float64)           {}

type keyboardListener struct{ p *Wayland }

func (l keyboardListener) Keymap(format uint32, fd int, size uint32) {
	l.p.loadKeymap(format, fd, size)
}

func (l keyboardListener) Enter(uint32, uint32, []uint32) {}
func (l keyboardListener) Leave(uint32, uint32)           {}

func (l keyboardListener) Key(_, _, key, state uint32) { l.p.key(key, state) }

func (l keyboardListener) Modifiers(_, depressed, latched, locked, group uint32) {
	l.p.modifiers(depressed, latched, locked, group)
}

func (l keyboardListener) RepeatInfo(int32, int32) {}

var (
	_ wl.RegistryListener   = registryListener{}
	_ wl.SurfaceListener    = surfaceListener{}
	_ wl.OutputListener     = outputListener{}
	_ wl.WmBaseListener     = wmBaseListener{}
	_ wl.XdgSurfaceListener = xdgSurfaceListener{}
	_ wl.ToplevelListener   = toplevelListener{}
	_ wl.SeatListener       = seatListener{}
	_ wl.PointerListener    = pointerListener{}
	_ wl.KeyboardListener   = keyboardListener{}
)
