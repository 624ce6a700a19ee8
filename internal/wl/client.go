package wl

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rajveermalviya/go-wayland/wayland/client"
	xdg_shell "github.com/rajveermalviya/go-wayland/wayland/stable/xdg-shell"
)

// ConnectGo opens the display named by name, or $WAYLAND_DISPLAY when empty,
// and speaks the protocol in Go. Handle returns no native pointers, so these
// displays serve input and queries but not a graphics driver. A relative
// name is looked up in $XDG_RUNTIME_DIR.
func ConnectGo(name string) (Display, error) {
	if name != "" && !filepath.IsAbs(name) {
		dir := os.Getenv("XDG_RUNTIME_DIR")
		if dir == "" {
			return nil, fmt.Errorf("%w: XDG_RUNTIME_DIR not set", ErrConnect)
		}
		name = filepath.Join(dir, name)
	}
	d, err := client.Connect(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	q, err := newConn(d).newQueue(true)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (q *queue) Registry(l RegistryListener) (Registry, error) {
	c := q.conn
	var r *client.Registry
	err := c.exclusive(func() error {
		var err error
		r, err = c.display.GetRegistry()
		if err != nil {
			return err
		}
		r.SetGlobalHandler(func(e client.RegistryGlobalEvent) {
			q.post(func() { l.Global(e.Name, e.Interface, e.Version) })
		})
		r.SetGlobalRemoveHandler(func(e client.RegistryGlobalRemoveEvent) {
			q.post(func() { l.GlobalRemove(e.Name) })
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get registry: %w", err)
	}
	return &registry{q: q, r: r}, nil
}

type registry struct {
	q *queue
	r *client.Registry
}

func (r *registry) BindCompositor(name, version uint32) (Compositor, error) {
	c := r.q.conn
	var comp *client.Compositor
	err := c.exclusive(func() error {
		comp = client.NewCompositor(c.ctx)
		return r.r.Bind(name, CompositorInterface, version, comp)
	})
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", CompositorInterface, err)
	}
	return &compositor{q: r.q, c: comp}, nil
}

func (r *registry) BindWmBase(name, version uint32, l WmBaseListener) (WmBase, error) {
	q, c := r.q, r.q.conn
	var wm *xdg_shell.WmBase
	err := c.exclusive(func() error {
		wm = xdg_shell.NewWmBase(c.ctx)
		wm.SetPingHandler(func(e xdg_shell.WmBasePingEvent) {
			q.post(func() { l.Ping(e.Serial) })
		})
		return r.r.Bind(name, WmBaseInterface, version, wm)
	})
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", WmBaseInterface, err)
	}
	return &wmBase{q: q, wm: wm}, nil
}

func (r *registry) BindOutput(name, version uint32, l OutputListener) (Output, error) {
	q, c := r.q, r.q.conn
	var o *client.Output
	err := c.exclusive(func() error {
		o = client.NewOutput(c.ctx)
		o.SetScaleHandler(func(e client.OutputScaleEvent) {
			q.post(func() { l.Scale(e.Factor) })
		})
		o.SetDoneHandler(func(client.OutputDoneEvent) {
			q.post(l.Done)
		})
		return r.r.Bind(name, OutputInterface, version, o)
	})
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", OutputInterface, err)
	}
	return &output{q: q, o: o, version: version}, nil
}

func (r *registry) BindSeat(name, version uint32, l SeatListener) (Seat, error) {
	q, c := r.q, r.q.conn
	var s *client.Seat
	err := c.exclusive(func() error {
		s = client.NewSeat(c.ctx)
		s.SetCapabilitiesHandler(func(e client.SeatCapabilitiesEvent) {
			q.post(func() { l.Capabilities(e.Capabilities) })
		})
		s.SetNameHandler(func(e client.SeatNameEvent) {
			q.post(func() { l.Name(e.Name) })
		})
		return r.r.Bind(name, SeatInterface, version, s)
	})
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", SeatInterface, err)
	}
	return &seat{q: q, s: s, version: version}, nil
}

// wl_registry has no destructor request; forgetting the proxy is all there
// is. Globals already in flight are dropped by the reader.
func (r *registry) Destroy() error {
	c := r.q.conn
	return c.exclusive(func() error {
		c.ctx.Unregister(r.r)
		return nil
	})
}

type compositor struct {
	q *queue
	c *client.Compositor
}

func (c *compositor) CreateSurface(l SurfaceListener) (Surface, error) {
	q, cn := c.q, c.q.conn
	var s *client.Surface
	err := cn.exclusive(func() error {
		var err error
		s, err = c.c.CreateSurface()
		if err != nil {
			return err
		}
		s.SetEnterHandler(func(e client.SurfaceEnterEvent) {
			id := outputID(e.Output)
			q.post(func() { l.Enter(id) })
		})
		s.SetLeaveHandler(func(e client.SurfaceLeaveEvent) {
			id := outputID(e.Output)
			q.post(func() { l.Leave(id) })
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create surface: %w", err)
	}
	return &surface{q: q, s: s}, nil
}

func (c *compositor) Destroy() error {
	cn := c.q.conn
	return cn.exclusive(func() error {
		cn.ctx.Unregister(c.c)
		return nil
	})
}

type surface struct {
	q *queue
	s *client.Surface
}

func (s *surface) ID() uint32                       { return s.s.ID() }
func (s *surface) Handle() any                      { return s.s }
func (s *surface) SetBufferScale(scale int32) error { return s.s.SetBufferScale(scale) }
func (s *surface) Commit() error                    { return s.s.Commit() }

func (s *surface) Destroy() error {
	return s.q.conn.exclusive(s.s.Destroy)
}

type output struct {
	q       *queue
	o       *client.Output
	version uint32
}

func (o *output) ID() uint32 { return o.o.ID() }

// wl_output.release exists from version 3.
func (o *output) Release() error {
	c := o.q.conn
	return c.exclusive(func() error {
		if o.version >= 3 {
			return o.o.Release()
		}
		c.ctx.Unregister(o.o)
		return nil
	})
}

type wmBase struct {
	q  *queue
	wm *xdg_shell.WmBase
}

func (w *wmBase) XdgSurface(s Surface, l XdgSurfaceListener) (XdgSurface, error) {
	ws, ok := s.(*surface)
	if !ok {
		return nil, fmt.Errorf("get xdg_surface: foreign surface %T", s)
	}
	q, c := w.q, w.q.conn
	var xs *xdg_shell.Surface
	err := c.exclusive(func() error {
		var err error
		xs, err = w.wm.GetXdgSurface(ws.s)
		if err != nil {
			return err
		}
		xs.SetConfigureHandler(func(e xdg_shell.SurfaceConfigureEvent) {
			q.post(func() { l.Configure(e.Serial) })
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get xdg_surface: %w", err)
	}
	return &xdgSurface{q: q, s: xs}, nil
}

func (w *wmBase) Pong(serial uint32) error { return w.wm.Pong(serial) }

func (w *wmBase) Destroy() error {
	return w.q.conn.exclusive(w.wm.Destroy)
}

type xdgSurface struct {
	q *queue
	s *xdg_shell.Surface
}

func (x *xdgSurface) Toplevel(l ToplevelListener) (Toplevel, error) {
	q, c := x.q, x.q.conn
	var t *xdg_shell.Toplevel
	err := c.exclusive(func() error {
		var err error
		t, err = x.s.GetToplevel()
		if err != nil {
			return err
		}
		t.SetConfigureHandler(func(e xdg_shell.ToplevelConfigureEvent) {
			states := words(e.States)
			q.post(func() { l.Configure(e.Width, e.Height, states) })
		})
		t.SetCloseHandler(func(xdg_shell.ToplevelCloseEvent) {
			q.post(l.Close)
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get toplevel: %w", err)
	}
	return &toplevel{q: q, t: t}, nil
}

func (x *xdgSurface) AckConfigure(serial uint32) error { return x.s.AckConfigure(serial) }

func (x *xdgSurface) SetWindowGeometry(px, py, width, height int32) error {
	return x.s.SetWindowGeometry(px, py, width, height)
}

func (x *xdgSurface) Destroy() error {
	return x.q.conn.exclusive(x.s.Destroy)
}

type toplevel struct {
	q *queue
	t *xdg_shell.Toplevel
}

func (t *toplevel) SetTitle(title string) error { return t.t.SetTitle(title) }
func (t *toplevel) SetAppID(appID string) error { return t.t.SetAppId(appID) }

func (t *toplevel) Destroy() error {
	return t.q.conn.exclusive(t.t.Destroy)
}

type seat struct {
	q       *queue
	s       *client.Seat
	version uint32
}

func (s *seat) Pointer(l PointerListener) (Pointer, error) {
	q, c := s.q, s.q.conn
	var p *client.Pointer
	err := c.exclusive(func() error {
		var err error
		p, err = s.s.GetPointer()
		if err != nil {
			return err
		}
		p.SetEnterHandler(func(e client.PointerEnterEvent) {
			id := surfaceID(e.Surface)
			q.post(func() { l.Enter(e.Serial, id, e.SurfaceX, e.SurfaceY) })
		})
		p.SetLeaveHandler(func(e client.PointerLeaveEvent) {
			id := surfaceID(e.Surface)
			q.post(func() { l.Leave(e.Serial, id) })
		})
		p.SetMotionHandler(func(e client.PointerMotionEvent) {
			q.post(func() { l.Motion(e.Time, e.SurfaceX, e.SurfaceY) })
		})
		p.SetButtonHandler(func(e client.PointerButtonEvent) {
			q.post(func() { l.Button(e.Serial, e.Time, e.Button, e.State) })
		})
		p.SetAxisHandler(func(e client.PointerAxisEvent) {
			q.post(func() { l.Axis(e.Time, e.Axis, e.Value) })
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get pointer: %w", err)
	}
	return &pointer{q: q, p: p, version: s.version}, nil
}

func (s *seat) Keyboard(l KeyboardListener) (Keyboard, error) {
	q, c := s.q, s.q.conn
	var k *client.Keyboard
	err := c.exclusive(func() error {
		var err error
		k, err = s.s.GetKeyboard()
		if err != nil {
			return err
		}
		k.SetKeymapHandler(func(e client.KeyboardKeymapEvent) {
			q.post(func() { l.Keymap(e.Format, e.Fd, e.Size) })
		})
		k.SetEnterHandler(func(e client.KeyboardEnterEvent) {
			id, keys := surfaceID(e.Surface), words(e.Keys)
			q.post(func() { l.Enter(e.Serial, id, keys) })
		})
		k.SetLeaveHandler(func(e client.KeyboardLeaveEvent) {
			id := surfaceID(e.Surface)
			q.post(func() { l.Leave(e.Serial, id) })
		})
		k.SetKeyHandler(func(e client.KeyboardKeyEvent) {
			q.post(func() { l.Key(e.Serial, e.Time, e.Key, e.State) })
		})
		k.SetModifiersHandler(func(e client.KeyboardModifiersEvent) {
			q.post(func() { l.Modifiers(e.Serial, e.ModsDepressed, e.ModsLatched, e.ModsLocked, e.Group) })
		})
		k.SetRepeatInfoHandler(func(e client.KeyboardRepeatInfoEvent) {
			q.post(func() { l.RepeatInfo(e.Rate, e.Delay) })
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get keyboard: %w", err)
	}
	return &keyboard{q: q, k: k, version: s.version}, nil
}

// wl_seat.release exists from version 5.
func (s *seat) Release() error {
	c := s.q.conn
	return c.exclusive(func() error {
		if s.version >= 5 {
			return s.s.Release()
		}
		c.ctx.Unregister(s.s)
		return nil
	})
}

type pointer struct {
	q       *queue
	p       *client.Pointer
	version uint32
}

// wl_pointer.release exists from seat version 3.
func (p *pointer) Release() error {
	c := p.q.conn
	return c.exclusive(func() error {
		if p.version >= 3 {
			return p.p.Release()
		}
		c.ctx.Unregister(p.p)
		return nil
	})
}

type keyboard struct {
	q       *queue
	k       *client.Keyboard
	version uint32
}

func (k *keyboard) Release() error {
	c := k.q.conn
	return c.exclusive(func() error {
		if k.version >= 3 {
			return k.k.Release()
		}
		c.ctx.Unregister(k.k)
		return nil
	})
}

// surfaceID and outputID map objects unknown to this connection to 0.
func surfaceID(s *client.Surface) uint32 {
	if s == nil {
		return 0
	}
	return s.ID()
}

func outputID(o *client.Output) uint32 {
	if o == nil {
		return 0
	}
	return o.ID()
}

// words decodes a wl_array of uint32 in host byte order.
func words(b []byte) []uint32 {
	out := make([]uint32, 0, len(b)/4)
	for len(b) >= 4 {
		out = append(out, binary.NativeEndian.Uint32(b))
		b = b[4:]
	}
	return out
}
