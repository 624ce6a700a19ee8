//go:build linux && cgo

package wl

/*
#cgo LDFLAGS: -lwayland-client

#include <stdlib.h>
#include <errno.h>
#include <wayland-client.h>
#include "native.h"
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime/cgo"
	"unsafe"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

// Connect opens the display through libwayland-client. The display and
// surface handles are the C objects, so a graphics driver can use them.
// An empty name means $WAYLAND_DISPLAY.
func Connect(name string) (Display, error) {
	var cname *C.char
	if name != "" {
		cname = C.CString(name)
		defer C.free(unsafe.Pointer(cname))
	}
	d, err := C.wl_display_connect(cname)
	if d == nil {
		if err == nil {
			err = unix.ENOENT
		}
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	q, err := newNativeQueue(&nconn{d: d}, nil, true)
	if err != nil {
		return nil, err
	}
	return q, nil
}

type eventFunc func(opcode uint32, args *C.union_wl_argument)

//export emuwlDispatch
func emuwlDispatch(handle C.uintptr_t, opcode C.uint32_t, args *C.union_wl_argument) C.int {
	if fn, ok := cgo.Handle(handle).Value().(eventFunc); ok {
		fn(uint32(opcode), args)
	}
	return 0
}

func argInt(a *C.union_wl_argument, i int) int32     { return int32(C.emuwl_arg_int(a, C.int(i))) }
func argUint(a *C.union_wl_argument, i int) uint32   { return uint32(C.emuwl_arg_uint(a, C.int(i))) }
func argFixed(a *C.union_wl_argument, i int) float64 { return float64(C.emuwl_arg_fixed(a, C.int(i))) }
func argObject(a *C.union_wl_argument, i int) uint32 { return uint32(C.emuwl_arg_object(a, C.int(i))) }
func argString(a *C.union_wl_argument, i int) string {
	return C.GoString(C.emuwl_arg_string(a, C.int(i)))
}
func argArray(a *C.union_wl_argument, i int) []byte {
	arr := C.emuwl_arg_array(a, C.int(i))
	if arr == nil || arr.size == 0 {
		return nil
	}
	return C.GoBytes(arr.data, C.int(arr.size))
}

// nconn is one libwayland display shared by every queue created from it.
type nconn struct {
	d      *C.struct_wl_display
	closed atomic.Bool
}

// fail turns the display's sticky error into a Go error.
func (c *nconn) fail(op string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	code := C.wl_display_get_error(c.d)
	if code == C.EPROTO {
		var iface *C.struct_wl_interface
		var id C.uint32_t
		perr := C.wl_display_get_protocol_error(c.d, &iface, &id)
		name := "unknown"
		if iface != nil {
			name = C.GoString(iface.name)
		}
		return fmt.Errorf("%s: %w: %s#%d: error %d", op, ErrProtocol, name, uint32(id), uint32(perr))
	}
	if code == 0 {
		code = C.EPIPE
	}
	return fmt.Errorf("%s: %w", op, classify(unix.Errno(code)))
}

// flush writes buffered requests. A full socket buffer is flushed by the
// next dispatch.
func (c *nconn) flush(op string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if n, err := C.wl_display_flush(c.d); n < 0 && !errors.Is(err, unix.EAGAIN) {
		return c.fail(op)
	}
	return nil
}

func (c *nconn) proxy(p unsafe.Pointer, fn eventFunc) *nproxy {
	np := &nproxy{c: c, p: (*C.struct_wl_proxy)(p)}
	if fn != nil {
		np.h = cgo.NewHandle(fn)
		C.emuwl_proxy_listen(np.p, C.uintptr_t(np.h))
	}
	return np
}

// nproxy is a libwayland proxy and the handle its events are routed by.
type nproxy struct {
	c *nconn
	p *C.struct_wl_proxy
	h cgo.Handle
}

func (np *nproxy) id() uint32 { return uint32(C.wl_proxy_get_id(np.p)) }

// destroy runs the destructor, which frees the proxy, and drops the event
// handle. A proxy destroyed before the server acknowledges it becomes a
// libwayland zombie that swallows late events.
func (np *nproxy) destroy(op string, destructor func()) error {
	if np.p == nil {
		return nil
	}
	if np.c.closed.Load() {
		return ErrClosed
	}
	destructor()
	np.p = nil
	if np.h != 0 {
		np.h.Delete()
		np.h = 0
	}
	return np.c.flush(op)
}

// nqueue is a Display view on one libwayland event queue. The default
// queue has q == nil.
type nqueue struct {
	c     *nconn
	q     *C.struct_wl_event_queue
	wrap  *C.struct_wl_display
	owner bool

	// Wake writes to the pipe; Dispatch polls it next to the display fd.
	wakeR, wakeW int
	closed       atomic.Bool
}

func newNativeQueue(c *nconn, q *C.struct_wl_event_queue, owner bool) (*nqueue, error) {
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		if owner {
			C.wl_display_disconnect(c.d)
		}
		return nil, fmt.Errorf("wake pipe: %w", err)
	}
	nq := &nqueue{c: c, q: q, wrap: c.d, owner: owner, wakeR: fds[0], wakeW: fds[1]}
	if q != nil {
		nq.wrap = C.emuwl_queue_wrapper(c.d, q)
	}
	return nq, nil
}

func (q *nqueue) check() error {
	if q.closed.Load() || q.c.closed.Load() {
		return ErrClosed
	}
	if C.wl_display_get_error(q.c.d) != 0 {
		return q.c.fail("display")
	}
	return nil
}

func (q *nqueue) Registry(l RegistryListener) (Registry, error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	r := C.wl_display_get_registry(q.wrap)
	if r == nil {
		return nil, q.c.fail("get registry")
	}
	np := q.c.proxy(unsafe.Pointer(r), func(op uint32, a *C.union_wl_argument) {
		switch op {
		case 0:
			l.Global(argUint(a, 0), argString(a, 1), argUint(a, 2))
		case 1:
			l.GlobalRemove(argUint(a, 0))
		}
	})
	return &nregistry{np}, q.c.flush("get registry")
}

func (q *nqueue) Roundtrip() error {
	if err := q.check(); err != nil {
		return err
	}
	if C.emuwl_roundtrip_queue(q.c.d, q.q) < 0 {
		return q.c.fail("roundtrip")
	}
	return nil
}

// Dispatch follows libwayland's multi-reader protocol: prepare, poll the
// display and the wake pipe, then read or cancel.
func (q *nqueue) Dispatch() error {
	d := q.c.d
	fds := []unix.PollFd{
		{Fd: int32(C.wl_display_get_fd(d)), Events: unix.POLLIN},
		{Fd: int32(q.wakeR), Events: unix.POLLIN},
	}
	for {
		if err := q.check(); err != nil {
			return err
		}
		if n := C.emuwl_dispatch_pending(d, q.q); n < 0 {
			return q.c.fail("dispatch")
		} else if n > 0 {
			return nil
		}
		if q.drainWake() {
			return nil
		}

		for C.emuwl_prepare_read(d, q.q) != 0 {
			if n := C.emuwl_dispatch_pending(d, q.q); n < 0 {
				return q.c.fail("dispatch")
			} else if n > 0 {
				return nil
			}
		}
		if err := q.c.flush("dispatch"); err != nil {
			C.wl_display_cancel_read(d)
			return err
		}

		fds[0].Revents, fds[1].Revents = 0, 0
		if _, err := unix.Poll(fds, -1); err != nil {
			C.wl_display_cancel_read(d)
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("dispatch: %w", err)
		}
		if fds[0].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0 {
			if C.wl_display_read_events(d) < 0 {
				return q.c.fail("dispatch")
			}
		} else {
			C.wl_display_cancel_read(d)
		}
	}
}

func (q *nqueue) drainWake() bool {
	var buf [64]byte
	woke := false
	for {
		n, err := unix.Read(q.wakeR, buf[:])
		if n <= 0 || err != nil {
			return woke
		}
		woke = true
	}
}

func (q *nqueue) Wake() error {
	if err := q.check(); err != nil {
		return err
	}
	if _, err := unix.Write(q.wakeW, []byte{1}); err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("wake: %w", err)
	}
	return nil
}

func (q *nqueue) NewQueue() (Display, error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	eq := C.wl_display_create_queue(q.c.d)
	if eq == nil {
		return nil, q.c.fail("create queue")
	}
	nq, err := newNativeQueue(q.c, eq, false)
	if err != nil {
		C.wl_event_queue_destroy(eq)
		return nil, err
	}
	return nq, nil
}

// Handle is the libwayland struct wl_display.
func (q *nqueue) Handle() any { return unsafe.Pointer(q.c.d) }

func (q *nqueue) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	unix.Close(q.wakeR)
	unix.Close(q.wakeW)
	if q.c.closed.Load() {
		return nil
	}

	if q.q != nil {
		C.wl_proxy_wrapper_destroy(unsafe.Pointer(q.wrap))
		C.wl_event_queue_destroy(q.q)
	}
	if !q.owner {
		return nil
	}

	C.wl_display_flush(q.c.d)
	err := q.c.fail("disconnect")
	if C.wl_display_get_error(q.c.d) == 0 {
		err = nil
	}
	q.c.closed.Store(true)
	C.wl_display_disconnect(q.c.d)
	return err
}

type nregistry struct{ *nproxy }

func (r *nregistry) bind(name uint32, iface *C.struct_wl_interface, version uint32) unsafe.Pointer {
	return C.wl_registry_bind((*C.struct_wl_registry)(unsafe.Pointer(r.p)), C.uint32_t(name), iface, C.uint32_t(version))
}

func (r *nregistry) BindCompositor(name, version uint32) (Compositor, error) {
	p := r.bind(name, &C.wl_compositor_interface, version)
	if p == nil {
		return nil, r.c.fail("bind " + CompositorInterface)
	}
	return &ncompositor{r.c.proxy(p, nil)}, r.c.flush("bind " + CompositorInterface)
}

func (r *nregistry) BindWmBase(name, version uint32, l WmBaseListener) (WmBase, error) {
	p := r.bind(name, &C.emuwl_xdg_wm_base_interface, version)
	if p == nil {
		return nil, r.c.fail("bind " + WmBaseInterface)
	}
	np := r.c.proxy(p, func(op uint32, a *C.union_wl_argument) {
		if op == 0 {
			l.Ping(argUint(a, 0))
		}
	})
	return &nwmBase{np}, r.c.flush("bind " + WmBaseInterface)
}

func (r *nregistry) BindOutput(name, version uint32, l OutputListener) (Output, error) {
	p := r.bind(name, &C.wl_output_interface, version)
	if p == nil {
		return nil, r.c.fail("bind " + OutputInterface)
	}
	np := r.c.proxy(p, func(op uint32, a *C.union_wl_argument) {
		switch op {
		case 2:
			l.Done()
		case 3:
			l.Scale(argInt(a, 0))
		}
	})
	return &noutput{np, version}, r.c.flush("bind " + OutputInterface)
}

func (r *nregistry) BindSeat(name, version uint32, l SeatListener) (Seat, error) {
	p := r.bind(name, &C.wl_seat_interface, version)
	if p == nil {
		return nil, r.c.fail("bind " + SeatInterface)
	}
	np := r.c.proxy(p, func(op uint32, a *C.union_wl_argument) {
		switch op {
		case 0:
			l.Capabilities(argUint(a, 0))
		case 1:
			l.Name(argString(a, 0))
		}
	})
	return &nseat{np, version}, r.c.flush("bind " + SeatInterface)
}

func (r *nregistry) Destroy() error {
	return r.destroy("destroy registry", func() {
		C.wl_registry_destroy((*C.struct_wl_registry)(unsafe.Pointer(r.p)))
	})
}

type ncompositor struct{ *nproxy }

func (c *ncompositor) CreateSurface(l SurfaceListener) (Surface, error) {
	s := C.wl_compositor_create_surface((*C.struct_wl_compositor)(unsafe.Pointer(c.p)))
	if s == nil {
		return nil, c.c.fail("create surface")
	}
	np := c.c.proxy(unsafe.Pointer(s), func(op uint32, a *C.union_wl_argument) {
		switch op {
		case 0:
			l.Enter(argObject(a, 0))
		case 1:
			l.Leave(argObject(a, 0))
		}
	})
	return &nsurface{np}, c.c.flush("create surface")
}

func (c *ncompositor) Destroy() error {
	return c.destroy("destroy compositor", func() {
		C.wl_compositor_destroy((*C.struct_wl_compositor)(unsafe.Pointer(c.p)))
	})
}

type nsurface struct{ *nproxy }

func (s *nsurface) surface() *C.struct_wl_surface {
	return (*C.struct_wl_surface)(unsafe.Pointer(s.p))
}

func (s *nsurface) ID() uint32 { return s.id() }

// Handle is the libwayland struct wl_surface.
func (s *nsurface) Handle() any { return unsafe.Pointer(s.p) }

func (s *nsurface) SetBufferScale(scale int32) error {
	C.wl_surface_set_buffer_scale(s.surface(), C.int32_t(scale))
	return s.c.flush("set buffer scale")
}

func (s *nsurface) Commit() error {
	C.wl_surface_commit(s.surface())
	return s.c.flush("commit")
}

func (s *nsurface) Destroy() error {
	return s.destroy("destroy surface", func() { C.wl_surface_destroy(s.surface()) })
}

type noutput struct {
	*nproxy
	version uint32
}

func (o *noutput) ID() uint32 { return o.id() }

// wl_output.release exists from version 3.
func (o *noutput) Release() error {
	out := (*C.struct_wl_output)(unsafe.Pointer(o.p))
	return o.destroy("release output", func() {
		if o.version >= 3 {
			C.wl_output_release(out)
		} else {
			C.wl_output_destroy(out)
		}
	})
}

type nwmBase struct{ *nproxy }

func (w *nwmBase) XdgSurface(s Surface, l XdgSurfaceListener) (XdgSurface, error) {
	ns, ok := s.(*nsurface)
	if !ok {
		return nil, fmt.Errorf("get xdg_surface: foreign surface %T", s)
	}
	p := C.emuwl_xdg_wm_base_get_xdg_surface(w.p, ns.p)
	if p == nil {
		return nil, w.c.fail("get xdg_surface")
	}
	np := w.c.proxy(unsafe.Pointer(p), func(op uint32, a *C.union_wl_argument) {
		if op == 0 {
			l.Configure(argUint(a, 0))
		}
	})
	return &nxdgSurface{np}, w.c.flush("get xdg_surface")
}

func (w *nwmBase) Pong(serial uint32) error {
	C.emuwl_xdg_wm_base_pong(w.p, C.uint32_t(serial))
	return w.c.flush("pong")
}

func (w *nwmBase) Destroy() error {
	return w.destroy("destroy xdg_wm_base", func() { C.emuwl_xdg_wm_base_destroy(w.p) })
}

type nxdgSurface struct{ *nproxy }

func (x *nxdgSurface) Toplevel(l ToplevelListener) (Toplevel, error) {
	p := C.emuwl_xdg_surface_get_toplevel(x.p)
	if p == nil {
		return nil, x.c.fail("get toplevel")
	}
	np := x.c.proxy(unsafe.Pointer(p), func(op uint32, a *C.union_wl_argument) {
		switch op {
		case 0:
			l.Configure(argInt(a, 0), argInt(a, 1), words(argArray(a, 2)))
		case 1:
			l.Close()
		}
	})
	return &ntoplevel{np}, x.c.flush("get toplevel")
}

func (x *nxdgSurface) AckConfigure(serial uint32) error {
	C.emuwl_xdg_surface_ack_configure(x.p, C.uint32_t(serial))
	return x.c.flush("ack configure")
}

func (x *nxdgSurface) SetWindowGeometry(px, py, width, height int32) error {
	C.emuwl_xdg_surface_set_window_geometry(x.p, C.int32_t(px), C.int32_t(py), C.int32_t(width), C.int32_t(height))
	return x.c.flush("set window geometry")
}

func (x *nxdgSurface) Destroy() error {
	return x.destroy("destroy xdg_surface", func() { C.emuwl_xdg_surface_destroy(x.p) })
}

type ntoplevel struct{ *nproxy }

func (t *ntoplevel) SetTitle(title string) error {
	cs := C.CString(title)
	defer C.free(unsafe.Pointer(cs))
	C.emuwl_xdg_toplevel_set_title(t.p, cs)
	return t.c.flush("set title")
}

func (t *ntoplevel) SetAppID(appID string) error {
	cs := C.CString(appID)
	defer C.free(unsafe.Pointer(cs))
	C.emuwl_xdg_toplevel_set_app_id(t.p, cs)
	return t.c.flush("set app id")
}

func (t *ntoplevel) Destroy() error {
	return t.destroy("destroy toplevel", func() { C.emuwl_xdg_toplevel_destroy(t.p) })
}

type nseat struct {
	*nproxy
	version uint32
}

func (s *nseat) seat() *C.struct_wl_seat { return (*C.struct_wl_seat)(unsafe.Pointer(s.p)) }

func (s *nseat) Pointer(l PointerListener) (Pointer, error) {
	p := C.wl_seat_get_pointer(s.seat())
	if p == nil {
		return nil, s.c.fail("get pointer")
	}
	np := s.c.proxy(unsafe.Pointer(p), func(op uint32, a *C.union_wl_argument) {
		switch op {
		case 0:
			l.Enter(argUint(a, 0), argObject(a, 1), argFixed(a, 2), argFixed(a, 3))
		case 1:
			l.Leave(argUint(a, 0), argObject(a, 1))
		case 2:
			l.Motion(argUint(a, 0), argFixed(a, 1), argFixed(a, 2))
		case 3:
			l.Button(argUint(a, 0), argUint(a, 1), argUint(a, 2), argUint(a, 3))
		case 4:
			l.Axis(argUint(a, 0), argUint(a, 1), argFixed(a, 2))
		}
	})
	return &npointer{np, s.version}, s.c.flush("get pointer")
}

func (s *nseat) Keyboard(l KeyboardListener) (Keyboard, error) {
	k := C.wl_seat_get_keyboard(s.seat())
	if k == nil {
		return nil, s.c.fail("get keyboard")
	}
	np := s.c.proxy(unsafe.Pointer(k), func(op uint32, a *C.union_wl_argument) {
		switch op {
		case 0:
			l.Keymap(argUint(a, 0), int(argInt(a, 1)), argUint(a, 2))
		case 1:
			l.Enter(argUint(a, 0), argObject(a, 1), words(argArray(a, 2)))
		case 2:
			l.Leave(argUint(a, 0), argObject(a, 1))
		case 3:
			l.Key(argUint(a, 0), argUint(a, 1), argUint(a, 2), argUint(a, 3))
		case 4:
			l.Modifiers(argUint(a, 0), argUint(a, 1), argUint(a, 2), argUint(a, 3), argUint(a, 4))
		case 5:
			l.RepeatInfo(argInt(a, 0), argInt(a, 1))
		}
	})
	return &nkeyboard{np, s.version}, s.c.flush("get keyboard")
}

// wl_seat.release exists from version 5.
func (s *nseat) Release() error {
	seat := s.seat()
	return s.destroy("release seat", func() {
		if s.version >= 5 {
			C.wl_seat_release(seat)
		} else {
			C.wl_seat_destroy(seat)
		}
	})
}

type npointer struct {
	*nproxy
	version uint32
}

// wl_pointer.release exists from seat version 3.
func (p *npointer) Release() error {
	ptr := (*C.struct_wl_pointer)(unsafe.Pointer(p.p))
	return p.destroy("release pointer", func() {
		if p.version >= 3 {
			C.wl_pointer_release(ptr)
		} else {
			C.wl_pointer_destroy(ptr)
		}
	})
}

type nkeyboard struct {
	*nproxy
	version uint32
}

func (k *nkeyboard) Release() error {
	kb := (*C.struct_wl_keyboard)(unsafe.Pointer(k.p))
	return k.destroy("release keyboard", func() {
		if k.version >= 3 {
			C.wl_keyboard_release(kb)
		} else {
			C.wl_keyboard_destroy(kb)
		}
	})
}
