package wltest

import (
	"fmt"

	"github.com/bnema/emuwl/internal/wl"
)

type registry struct {
	srv *Server
	obj *object
}

func (r *registry) bind(name, version uint32, iface string, l any) (*object, *global, error) {
	s := r.srv
	if err := s.request(r.obj, "bind", name, iface, version); err != nil {
		return nil, nil, err
	}
	g, ok := s.globals[name]
	if !ok {
		return nil, nil, fmt.Errorf("bind: no global %d", name)
	}
	if g.iface != iface {
		return nil, nil, fmt.Errorf("bind: global %d is %s, not %s", name, g.iface, iface)
	}
	if version > g.version {
		s.violate("bind %s version %d above advertised %d", iface, version, g.version)
	}
	o := s.create(r.obj.queue, iface, version, l, r.obj)
	o.global = name
	return o, g, nil
}

func (r *registry) BindCompositor(name, version uint32) (wl.Compositor, error) {
	r.srv.mu.Lock()
	defer r.srv.mu.Unlock()
	o, _, err := r.bind(name, version, wl.CompositorInterface, nil)
	if err != nil {
		return nil, err
	}
	return &compositor{srv: r.srv, obj: o}, nil
}

func (r *registry) BindWmBase(name, version uint32, l wl.WmBaseListener) (wl.WmBase, error) {
	r.srv.mu.Lock()
	defer r.srv.mu.Unlock()
	o, _, err := r.bind(name, version, wl.WmBaseInterface, l)
	if err != nil {
		return nil, err
	}
	return &wmBase{srv: r.srv, obj: o}, nil
}

func (r *registry) BindOutput(name, version uint32, l wl.OutputListener) (wl.Output, error) {
	r.srv.mu.Lock()
	defer r.srv.mu.Unlock()
	o, g, err := r.bind(name, version, wl.OutputInterface, l)
	if err != nil {
		return nil, err
	}
	scale := g.scale
	o.queue.post(func() {
		l.Scale(scale)
		l.Done()
	})
	return &output{srv: r.srv, obj: o}, nil
}

func (r *registry) BindSeat(name, version uint32, l wl.SeatListener) (wl.Seat, error) {
	r.srv.mu.Lock()
	defer r.srv.mu.Unlock()
	o, g, err := r.bind(name, version, wl.SeatInterface, l)
	if err != nil {
		return nil, err
	}
	caps, seatName := g.caps, g.seatName
	o.queue.post(func() { l.Capabilities(caps) })
	if version >= 2 {
		o.queue.post(func() { l.Name(seatName) })
	}
	return &seat{srv: r.srv, obj: o}, nil
}

func (r *registry) Destroy() error {
	r.srv.mu.Lock()
	defer r.srv.mu.Unlock()
	return r.srv.destroy(r.obj, "destroy")
}

type compositor struct {
	srv *Server
	obj *object
}

func (c *compositor) CreateSurface(l wl.SurfaceListener) (wl.Surface, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if err := c.srv.request(c.obj, "create_surface"); err != nil {
		return nil, err
	}
	o := c.srv.create(c.obj.queue, "wl_surface", c.obj.version, l, c.obj)
	return &Surface{srv: c.srv, obj: o}, nil
}

func (c *compositor) Destroy() error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	return c.srv.destroy(c.obj, "destroy")
}

// Surface is a fake wl_surface. Its Handle is the *Surface itself.
type Surface struct {
	srv *Server
	obj *object

	committed bool
}

func (s *Surface) ID() uint32  { return s.obj.id }
func (s *Surface) Handle() any { return s }

func (s *Surface) SetBufferScale(scale int32) error {
	s.srv.mu.Lock()
	defer s.srv.mu.Unlock()
	return s.srv.request(s.obj, "set_buffer_scale", scale)
}

// Commit sends the initial configure sequence after the first commit of a
// surface with a toplevel role.
func (s *Surface) Commit() error {
	srv := s.srv
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if err := srv.request(s.obj, "commit"); err != nil {
		return err
	}
	if s.committed {
		return nil
	}
	xs := s.obj.role
	if xs == nil || xs.destroyed || xs.role == nil || xs.role.destroyed {
		return nil
	}
	s.committed = true
	srv.configureLocked(xs, srv.InitialWidth, srv.InitialHeight)
	return nil
}

func (s *Surface) Destroy() error {
	s.srv.mu.Lock()
	defer s.srv.mu.Unlock()
	return s.srv.destroy(s.obj, "destroy")
}

type output struct {
	srv *Server
	obj *object
}

func (o *output) ID() uint32 { return o.obj.id }

func (o *output) Release() error {
	o.srv.mu.Lock()
	defer o.srv.mu.Unlock()
	return o.srv.destroy(o.obj, "release")
}

type wmBase struct {
	srv *Server
	obj *object
}

func (w *wmBase) XdgSurface(surf wl.Surface, l wl.XdgSurfaceListener) (wl.XdgSurface, error) {
	fs, ok := surf.(*Surface)
	if !ok {
		return nil, fmt.Errorf("get_xdg_surface: foreign surface %T", surf)
	}
	s := w.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.request(w.obj, "get_xdg_surface", fs.obj.id); err != nil {
		return nil, err
	}
	if fs.obj.destroyed {
		s.violate("get_xdg_surface on destroyed %s", fs.obj)
	}
	o := s.create(w.obj.queue, "xdg_surface", w.obj.version, l, w.obj, fs.obj)
	fs.obj.role = o
	return &xdgSurface{srv: s, obj: o}, nil
}

func (w *wmBase) Pong(serial uint32) error {
	w.srv.mu.Lock()
	defer w.srv.mu.Unlock()
	return w.srv.request(w.obj, "pong", serial)
}

func (w *wmBase) Destroy() error {
	w.srv.mu.Lock()
	defer w.srv.mu.Unlock()
	return w.srv.destroy(w.obj, "destroy")
}

type xdgSurface struct {
	srv *Server
	obj *object
}

func (x *xdgSurface) Toplevel(l wl.ToplevelListener) (wl.Toplevel, error) {
	s := x.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.request(x.obj, "get_toplevel"); err != nil {
		return nil, err
	}
	o := s.create(x.obj.queue, "xdg_toplevel", x.obj.version, l, x.obj)
	x.obj.role = o
	return &toplevel{srv: s, obj: o}, nil
}

func (x *xdgSurface) AckConfigure(serial uint32) error {
	x.srv.mu.Lock()
	defer x.srv.mu.Unlock()
	return x.srv.request(x.obj, "ack_configure", serial)
}

func (x *xdgSurface) SetWindowGeometry(px, py, width, height int32) error {
	x.srv.mu.Lock()
	defer x.srv.mu.Unlock()
	return x.srv.request(x.obj, "set_window_geometry", px, py, width, height)
}

func (x *xdgSurface) Destroy() error {
	x.srv.mu.Lock()
	defer x.srv.mu.Unlock()
	return x.srv.destroy(x.obj, "destroy")
}

type toplevel struct {
	srv *Server
	obj *object
}

func (t *toplevel) SetTitle(title string) error {
	t.srv.mu.Lock()
	defer t.srv.mu.Unlock()
	return t.srv.request(t.obj, "set_title", title)
}

func (t *toplevel) SetAppID(appID string) error {
	t.srv.mu.Lock()
	defer t.srv.mu.Unlock()
	return t.srv.request(t.obj, "set_app_id", appID)
}

func (t *toplevel) Destroy() error {
	t.srv.mu.Lock()
	defer t.srv.mu.Unlock()
	return t.srv.destroy(t.obj, "destroy")
}

type seat struct {
	srv *Server
	obj *object
}

func (st *seat) Pointer(l wl.PointerListener) (wl.Pointer, error) {
	s := st.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.request(st.obj, "get_pointer"); err != nil {
		return nil, err
	}
	o := s.create(st.obj.queue, "wl_pointer", st.obj.version, l, st.obj)
	return &device{srv: s, obj: o}, nil
}

func (st *seat) Keyboard(l wl.KeyboardListener) (wl.Keyboard, error) {
	s := st.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.request(st.obj, "get_keyboard"); err != nil {
		return nil, err
	}
	o := s.create(st.obj.queue, "wl_keyboard", st.obj.version, l, st.obj)
	format, fd, size := s.KeymapFormat, s.KeymapFD, s.KeymapSize
	o.queue.post(func() { l.Keymap(format, fd, size) })
	return &device{srv: s, obj: o}, nil
}

func (st *seat) Release() error {
	st.srv.mu.Lock()
	defer st.srv.mu.Unlock()
	return st.srv.destroy(st.obj, "release")
}

// device is a wl_pointer or wl_keyboard.
type device struct {
	srv *Server
	obj *object
}

func (d *device) Release() error {
	d.srv.mu.Lock()
	defer d.srv.mu.Unlock()
	return d.srv.destroy(d.obj, "release")
}
