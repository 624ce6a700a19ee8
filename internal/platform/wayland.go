package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/bnema/emuwl/internal/geometry"
	"github.com/bnema/emuwl/internal/logger"
	"github.com/bnema/emuwl/internal/wl"
	"github.com/bnema/emuwl/internal/wsi"
	"github.com/bnema/emuwl/internal/xkb"
)

// Versions the window binds its globals at.
const (
	compositorVersion = 4
	wmBaseVersion     = 1
	outputVersion     = 2
	// wl_output.release needs 3; bind it when the compositor has it.
	outputReleaseVersion = 3
	seatVersion          = 5
)

type boundOutput struct {
	name   uint32
	output wl.Output
	scale  int32
}

// Wayland is an xdg_toplevel window on a Wayland compositor.
//
// Event handlers run on the goroutine that drives the display: Init, then
// MainLoop. Stop, QueueJob, IsRunning, State, WindowSystemInfo and
// BootstrapSize may be called from anywhere.
type Wayland struct {
	opts Options
	log  *log.Logger
	jobs Jobs

	state   atomic.Int32
	running atomic.Bool
	lost    atomic.Bool

	rendererMu sync.Mutex
	renderer   Resizer

	// Scaled client size. bootstrap carries it to the render context
	// before a renderer exists.
	width, height atomic.Int32
	bootstrap     geometry.AtomicDimension2D
	scale         atomic.Int32

	display    wl.Display
	registry   wl.Registry
	compositor wl.Compositor
	surface    wl.Surface
	wmBase     wl.WmBase
	xdgSurface wl.XdgSurface
	toplevel   wl.Toplevel

	seat     wl.Seat
	seatName uint32
	pointer  wl.Pointer
	keyboard wl.Keyboard
	compiler xkb.Compiler
	keymap   xkb.Keymap

	outputs map[uint32]*boundOutput
	active  *boundOutput

	compositorName, wmBaseName uint32

	// set by a size-less toplevel configure, sent after the ack
	pendingGeometry bool
}

var _ Platform = (*Wayland)(nil)

// NewWayland returns an unconnected window.
func NewWayland(opts Options) *Wayland {
	if opts.Connect == nil {
		opts.Connect = wl.Connect
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 640, 480
	}
	p := &Wayland{
		opts:    opts,
		log:     logger.WithPrefix("wayland"),
		outputs: make(map[uint32]*boundOutput),
	}
	p.width.Store(int32(opts.Width))
	p.height.Store(int32(opts.Height))
	p.bootstrap.Store(opts.Width, opts.Height)
	p.scale.Store(1)
	return p
}

// State returns the lifecycle state.
func (p *Wayland) State() State { return State(p.state.Load()) }

func (p *Wayland) setState(s State) {
	old := State(p.state.Swap(int32(s)))
	if old != s {
		p.log.Debugf("State %s -> %s", old, s)
	}
}

// Init connects, binds the globals and maps the toplevel. On error the
// window is left partially built; Close releases whatever exists.
func (p *Wayland) Init() error {
	p.setState(Connecting)
	d, err := p.opts.Connect(p.opts.Display)
	if err != nil {
		p.setState(Disconnected)
		return err
	}
	p.display = d

	if p.compiler = p.opts.Compiler; p.compiler == nil {
		if p.compiler, err = xkb.NewCompiler(); err != nil {
			p.log.Debugf("No keymap compiler: %v", err)
		}
	}

	p.setState(GlobalsPending)
	if p.registry, err = d.Registry(registryListener{p}); err != nil {
		return fmt.Errorf("get registry: %w", err)
	}
	if err := d.Roundtrip(); err != nil {
		return p.transportError("registry round-trip", err)
	}

	if err := p.checkGlobals(); err != nil {
		return err
	}

	if p.xdgSurface, err = p.wmBase.XdgSurface(p.surface, xdgSurfaceListener{p}); err != nil {
		return err
	}
	if p.toplevel, err = p.xdgSurface.Toplevel(toplevelListener{p}); err != nil {
		return err
	}
	if p.opts.Title != "" {
		if err := p.toplevel.SetTitle(p.opts.Title); err != nil {
			return fmt.Errorf("set title: %w", err)
		}
	}
	if p.opts.AppID != "" {
		if err := p.toplevel.SetAppID(p.opts.AppID); err != nil {
			return fmt.Errorf("set app id: %w", err)
		}
	}

	if err := p.surface.Commit(); err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}
	if err := d.Roundtrip(); err != nil {
		return p.transportError("configure round-trip", err)
	}

	p.running.Store(true)
	p.setState(Ready)
	p.log.Info("Window ready", "size", fmt.Sprintf("%dx%d", p.width.Load(), p.height.Load()), "scale", p.scale.Load())
	return nil
}

// transportError marks the connection dead when err says so, so Close
// does not try to send on it.
func (p *Wayland) transportError(op string, err error) error {
	if errors.Is(err, wl.ErrConnectionLost) {
		p.lost.Store(true)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (p *Wayland) checkGlobals() error {
	var missing []error
	if p.compositor == nil {
		missing = append(missing, fmt.Errorf("%w: %s", ErrMissingGlobals, wl.CompositorInterface))
	}
	if p.surface == nil {
		missing = append(missing, fmt.Errorf("%w: wl_surface", ErrMissingGlobals))
	}
	if p.wmBase == nil {
		missing = append(missing, fmt.Errorf("%w: %s", ErrMissingGlobals, wl.WmBaseInterface))
	}
	return errors.Join(missing...)
}

// SetTitle changes the window title. Call it from the main loop
// goroutine, or through QueueJob.
func (p *Wayland) SetTitle(title string) error {
	p.opts.Title = title
	if p.toplevel == nil {
		return nil
	}
	return p.toplevel.SetTitle(title)
}

// MainLoop alternates between host jobs and one blocking dispatch. A
// dispatch failure is logged and returned; the caller then calls Close.
func (p *Wayland) MainLoop(ctx context.Context) error {
	if p.display == nil {
		return ErrNotInitialized
	}
	stop := context.AfterFunc(ctx, p.Stop)
	defer stop()

	p.log.Debug("Starting main loop")
	for p.IsRunning() {
		p.jobs.Run()
		if err := p.display.Dispatch(); err != nil {
			p.running.Store(false)
			p.log.Error("Could not process Wayland events", "err", err)
			return p.transportError("dispatch", err)
		}
	}
	p.jobs.Run()
	return nil
}

// Stop makes MainLoop return after its current iteration.
func (p *Wayland) Stop() {
	if !p.running.Swap(false) {
		return
	}
	p.state.CAS(int32(Ready), int32(Closing))
	if p.display != nil {
		if err := p.display.Wake(); err != nil {
			p.log.Debugf("Waking main loop: %v", err)
		}
	}
}

// IsRunning reports whether MainLoop should keep going.
func (p *Wayland) IsRunning() bool { return p.running.Load() }

// QueueJob runs fn on the main loop goroutine before its next dispatch.
func (p *Wayland) QueueJob(fn func()) {
	p.jobs.Post(fn)
	if p.display != nil {
		if err := p.display.Wake(); err != nil {
			p.log.Debugf("Waking main loop: %v", err)
		}
	}
}

// AttachRenderer makes toplevel configures resize r synchronously.
func (p *Wayland) AttachRenderer(r Resizer) {
	p.rendererMu.Lock()
	p.renderer = r
	p.rendererMu.Unlock()
}

// DetachRenderer stops forwarding resizes.
func (p *Wayland) DetachRenderer() {
	p.AttachRenderer(nil)
}

// BootstrapSize is the latest configured size, for a render context
// created before any renderer exists. It has a single consumer.
func (p *Wayland) BootstrapSize() (width, height int) {
	_, w, h := p.bootstrap.Fetch()
	return w, h
}

// Connection is the queue the main loop dispatches. Other components create
// private queues from it; it is nil before Init.
func (p *Wayland) Connection() wl.Display { return p.display }

// SurfaceID is the protocol ID of the render surface, or 0 before Init.
func (p *Wayland) SurfaceID() uint32 {
	if p.surface == nil {
		return 0
	}
	return p.surface.ID()
}

// WindowSystemInfo describes the window for the graphics backend. The
// surface doubles as render window and render surface.
func (p *Wayland) WindowSystemInfo() wsi.Info {
	info := wsi.Info{
		Type:               wsi.Wayland,
		Width:              int(p.width.Load()),
		Height:             int(p.height.Load()),
		RenderSurfaceScale: float64(p.scale.Load()),
	}
	if p.display != nil {
		info.DisplayConnection = p.display.Handle()
	}
	if p.surface != nil {
		info.RenderWindow = p.surface.Handle()
		info.RenderSurface = p.surface.Handle()
	}
	return info
}

// Close destroys every protocol object children first and disconnects.
// It is safe after a failed Init and after MainLoop returned an error.
func (p *Wayland) Close() error {
	p.running.Store(false)
	if p.display != nil {
		p.setState(Closing)
	}

	var err error
	// On a dead connection requests cannot be sent; disconnecting frees
	// the objects.
	send := !p.lost.Load()
	destroy := func(what string, fn func() error) {
		if !send {
			return
		}
		if derr := fn(); derr != nil {
			err = multierr.Append(err, fmt.Errorf("destroy %s: %w", what, derr))
		}
	}

	if p.toplevel != nil {
		destroy("xdg_toplevel", p.toplevel.Destroy)
		p.toplevel = nil
	}
	if p.xdgSurface != nil {
		destroy("xdg_surface", p.xdgSurface.Destroy)
		p.xdgSurface = nil
	}
	p.releaseSeat(destroy)
	for _, o := range p.sortedOutputs() {
		destroy("wl_output", o.output.Release)
	}
	p.outputs = make(map[uint32]*boundOutput)
	p.active = nil
	if p.surface != nil {
		destroy("wl_surface", p.surface.Destroy)
		p.surface = nil
	}
	if p.wmBase != nil {
		destroy("xdg_wm_base", p.wmBase.Destroy)
		p.wmBase = nil
	}
	if p.compositor != nil {
		destroy("wl_compositor", p.compositor.Destroy)
		p.compositor = nil
	}
	if p.registry != nil {
		destroy("wl_registry", p.registry.Destroy)
		p.registry = nil
	}
	if p.compiler != nil {
		p.compiler.Destroy()
		p.compiler = nil
	}
	if p.display != nil {
		if cerr := p.display.Close(); cerr != nil && !errors.Is(cerr, wl.ErrClosed) {
			err = multierr.Append(err, fmt.Errorf("disconnect: %w", cerr))
		}
		p.display = nil
	}
	p.setState(Disconnected)
	return err
}

// releaseSeat drops the keyboard, the pointer and the seat, in that order.
func (p *Wayland) releaseSeat(destroy func(string, func() error)) {
	if p.keyboard != nil {
		destroy("wl_keyboard", p.keyboard.Release)
		p.keyboard = nil
	}
	p.dropKeymap()
	if p.pointer != nil {
		destroy("wl_pointer", p.pointer.Release)
		p.pointer = nil
	}
	if p.seat != nil {
		destroy("wl_seat", p.seat.Release)
		p.seat = nil
		p.seatName = 0
	}
}

func (p *Wayland) dropKeymap() {
	if p.keymap != nil {
		p.keymap.Destroy()
		p.keymap = nil
	}
}

func (p *Wayland) sortedOutputs() []*boundOutput {
	out := make([]*boundOutput, 0, len(p.outputs))
	for _, o := range p.outputs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (p *Wayland) logRequest(what string, err error) {
	if err != nil {
		p.log.Warn("Request failed", "request", what, "err", err)
	}
}

// registry

func (p *Wayland) global(name uint32, iface string, version uint32) {
	var err error
	switch iface {
	case wl.CompositorInterface:
		if p.compositor != nil {
			return
		}
		if p.compositor, err = p.registry.BindCompositor(name, min(version, compositorVersion)); err != nil {
			break
		}
		p.compositorName = name
		p.surface, err = p.compositor.CreateSurface(surfaceListener{p})
	case wl.WmBaseInterface:
		if p.wmBase != nil {
			return
		}
		if p.wmBase, err = p.registry.BindWmBase(name, min(version, wmBaseVersion), wmBaseListener{p}); err == nil {
			p.wmBaseName = name
		}
	case wl.OutputInterface:
		v := uint32(outputVersion)
		if version >= outputReleaseVersion {
			v = outputReleaseVersion
		}
		o := &boundOutput{name: name, scale: 1}
		if o.output, err = p.registry.BindOutput(name, v, outputListener{p, o}); err == nil {
			p.outputs[name] = o
		}
	case wl.SeatInterface:
		if p.seat != nil {
			return
		}
		if p.seat, err = p.registry.BindSeat(name, min(version, seatVersion), seatListener{p}); err == nil {
			p.seatName = name
		}
	default:
		return
	}
	if err != nil {
		p.log.Warn("Binding global failed", "interface", iface, "name", name, "err", err)
		return
	}
	p.log.Debug("Bound global", "interface", iface, "name", name, "version", version)
}

func (p *Wayland) globalRemove(name uint32) {
	switch {
	case p.outputs[name] != nil:
		o := p.outputs[name]
		delete(p.outputs, name)
		if p.active == o {
			// The scale stays until another output is entered.
			p.active = nil
		}
		p.logRequest("wl_output.release", o.output.Release())
	case name != 0 && name == p.seatName:
		p.releaseSeat(func(what string, fn func() error) { p.logRequest(what, fn()) })
	case name != 0 && (name == p.compositorName || name == p.wmBaseName):
		p.log.Warn("Compositor retracted a required global", "name", name)
	default:
		p.log.Debugf("Removed global %d", name)
	}
}

// surface and outputs

func (p *Wayland) outputByID(id uint32) *boundOutput {
	for _, o := range p.outputs {
		if o.output.ID() == id {
			return o
		}
	}
	return nil
}

func (p *Wayland) surfaceEnter(outputID uint32) {
	o := p.outputByID(outputID)
	if o == nil {
		return
	}
	p.active = o
	p.applyScale(o.scale)
}

func (p *Wayland) outputDone(o *boundOutput) {
	if p.active != o {
		return
	}
	p.applyScale(o.scale)
}

func (p *Wayland) applyScale(scale int32) {
	if scale < 1 {
		scale = 1
	}
	p.scale.Store(scale)
	p.log.Debugf("Output scale %d", scale)
	if p.surface == nil {
		return
	}
	p.logRequest("wl_surface.set_buffer_scale", p.surface.SetBufferScale(scale))
	p.logRequest("wl_surface.commit", p.surface.Commit())
}

// shell

func (p *Wayland) ping(serial uint32) {
	p.logRequest("xdg_wm_base.pong", p.wmBase.Pong(serial))
}

func (p *Wayland) toplevelConfigure(width, height int32) {
	p.log.Debugf("Toplevel configure %dx%d", width, height)
	if width == 0 || height == 0 {
		p.pendingGeometry = true
		return
	}

	scale := p.scale.Load()
	w, h := int(width*scale), int(height*scale)
	p.width.Store(int32(w))
	p.height.Store(int32(h))
	p.bootstrap.Store(w, h)

	p.rendererMu.Lock()
	r := p.renderer
	p.rendererMu.Unlock()
	if r != nil {
		r.ResizeSurface(w, h)
	}
}

// xdgConfigure acks the sequence, then commits any geometry the
// compositor left to us. Nothing may be committed before the ack.
func (p *Wayland) xdgConfigure(serial uint32) {
	p.logRequest("xdg_surface.ack_configure", p.xdgSurface.AckConfigure(serial))
	if !p.pendingGeometry {
		return
	}
	p.pendingGeometry = false
	scale := p.scale.Load()
	w, h := p.width.Load()/scale, p.height.Load()/scale
	p.logRequest("xdg_surface.set_window_geometry", p.xdgSurface.SetWindowGeometry(0, 0, w, h))
	p.logRequest("wl_surface.commit", p.surface.Commit())
}

func (p *Wayland) toplevelClose() {
	p.log.Info("Window closed by the compositor")
	p.Stop()
}

// seat

func (p *Wayland) seatCapabilities(caps uint32) {
	var err error
	switch hasPointer := caps&wl.SeatCapabilityPointer != 0; {
	case hasPointer && p.pointer == nil:
		p.pointer, err = p.seat.Pointer(pointerListener{})
		p.logRequest("wl_seat.get_pointer", err)
	case !hasPointer && p.pointer != nil:
		p.logRequest("wl_pointer.release", p.pointer.Release())
		p.pointer = nil
	}

	switch hasKeyboard := caps&wl.SeatCapabilityKeyboard != 0; {
	case hasKeyboard && p.keyboard == nil:
		p.keyboard, err = p.seat.Keyboard(keyboardListener{p})
		p.logRequest("wl_seat.get_keyboard", err)
	case !hasKeyboard && p.keyboard != nil:
		p.logRequest("wl_keyboard.release", p.keyboard.Release())
		p.keyboard = nil
		p.dropKeymap()
	}
}

func (p *Wayland) loadKeymap(format uint32, fd int, size uint32) {
	if format != wl.KeymapFormatXkbV1 || p.compiler == nil {
		if fd >= 0 {
			unix.Close(fd)
		}
		p.log.Warn("No usable keymap, keyboard disabled", "format", format)
		if p.keyboard != nil {
			p.logRequest("wl_keyboard.release", p.keyboard.Release())
			p.keyboard = nil
		}
		p.dropKeymap()
		return
	}

	km, err := p.compiler.Compile(format, fd, size)
	if err != nil {
		p.log.Warn("Compiling keymap failed", "err", err)
		return
	}
	p.dropKeymap()
	p.keymap = km
}

func (p *Wayland) key(key, state uint32) {
	if state != wl.KeyPressed || p.keymap == nil || !p.opts.EscapeCloses {
		return
	}
	if p.keymap.Keysym(key+xkb.KeycodeOffset) == xkb.KeyEscape {
		p.log.Info("Escape pressed, stopping")
		p.Stop()
	}
}

func (p *Wayland) modifiers(depressed, latched, locked, group uint32) {
	if p.keymap != nil {
		p.keymap.UpdateMask(depressed, latched, locked, group)
	}
}
