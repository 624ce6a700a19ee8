package wltest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bnema/emuwl/internal/wl"
)

// WireGlobal is a global announced by a Wire server.
type WireGlobal struct {
	Interface string
	Version   uint32
}

// Old enough that seat, pointer, keyboard and output have no release
// request.
var defaultWireGlobals = []WireGlobal{
	{wl.CompositorInterface, 4},
	{wl.WmBaseInterface, 1},
	{wl.OutputInterface, 2},
	{wl.SeatInterface, 4},
}

// Request names by interface. Destructors are marked in wireDestructors.
var wireRequests = map[string][]string{
	"wl_display":    {"sync", "get_registry"},
	"wl_registry":   {"bind"},
	"wl_compositor": {"create_surface", "create_region"},
	"wl_surface":    {"destroy", "attach", "damage", "frame", "set_opaque_region", "set_input_region", "commit", "set_buffer_transform", "set_buffer_scale", "damage_buffer", "offset"},
	"wl_output":     {"release"},
	"wl_seat":       {"get_pointer", "get_keyboard", "get_touch", "release"},
	"wl_pointer":    {"set_cursor", "release"},
	"wl_keyboard":   {"release"},
	"xdg_wm_base":   {"destroy", "create_positioner", "get_xdg_surface", "pong"},
	"xdg_surface":   {"destroy", "get_toplevel", "get_popup", "set_window_geometry", "ack_configure"},
	"xdg_toplevel":  {"destroy", "set_parent", "set_title", "set_app_id"},
}

var wireDestructors = map[string]bool{
	"wl_surface.destroy":   true,
	"wl_output.release":    true,
	"wl_seat.release":      true,
	"wl_pointer.release":   true,
	"wl_keyboard.release":  true,
	"xdg_wm_base.destroy":  true,
	"xdg_surface.destroy":  true,
	"xdg_toplevel.destroy": true,
}

// Wire is a compositor on a real unix socket speaking the Wayland wire
// format. It knows just enough of the core and xdg-shell protocols to bind
// globals, create surfaces and answer syncs, and lets a test push arbitrary
// events at the client.
type Wire struct {
	path    string
	ln      *net.UnixListener
	globals []WireGlobal

	mu       sync.Mutex
	conn     *net.UnixConn
	objects  map[uint32]string
	requests []string
	serial   uint32
	done     chan struct{}
}

// NewWire listens on a socket in a temporary directory and serves one
// client at a time. It announces globals, or a default desktop when none
// are given. The server is closed with the test.
func NewWire(t testing.TB, globals ...WireGlobal) *Wire {
	t.Helper()
	if len(globals) == 0 {
		globals = defaultWireGlobals
	}
	path := filepath.Join(t.TempDir(), "wayland-test")
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		t.Fatalf("listen %s: %v", path, err)
	}
	w := &Wire{path: path, ln: ln, globals: globals, done: make(chan struct{})}
	go w.accept()
	t.Cleanup(w.Close)
	return w
}

// Path is the socket to connect to.
func (w *Wire) Path() string { return w.path }

// Close stops the listener and drops the client.
func (w *Wire) Close() {
	w.mu.Lock()
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	c := w.conn
	w.conn = nil
	w.mu.Unlock()

	w.ln.Close()
	if c != nil {
		c.Close()
	}
}

// Hangup closes the client's connection.
func (w *Wire) Hangup() {
	w.mu.Lock()
	c := w.conn
	w.conn = nil
	w.mu.Unlock()
	if c != nil {
		c.Close()
	}
}

// Requests returns every request received so far as "iface.request".
func (w *Wire) Requests() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.requests...)
}

// Object returns the id of the most recently created live object of iface.
func (w *Wire) Object(iface string) (uint32, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var id uint32
	for oid, name := range w.objects {
		if name == iface && oid > id {
			id = oid
		}
	}
	return id, id != 0
}

// Send writes one event. Arguments are encoded by type: uint32 and int32 as
// words, float64 as fixed, string and []byte with a length prefix.
func (w *Wire) Send(id, opcode uint32, args ...any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sendLocked(id, opcode, args...)
}

// ProtocolError sends wl_display.error blaming object id.
func (w *Wire) ProtocolError(id, code uint32, message string) error {
	return w.Send(1, 0, id, code, message)
}

func (w *Wire) accept() {
	for {
		c, err := w.ln.AcceptUnix()
		if err != nil {
			return
		}
		w.mu.Lock()
		select {
		case <-w.done:
			w.mu.Unlock()
			c.Close()
			return
		default:
		}
		w.conn = c
		w.objects = map[uint32]string{1: "wl_display"}
		w.mu.Unlock()
		w.serve(c)
	}
}

func (w *Wire) serve(c *net.UnixConn) {
	defer c.Close()
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(c, header); err != nil {
			return
		}
		id := binary.NativeEndian.Uint32(header[0:4])
		word := binary.NativeEndian.Uint32(header[4:8])
		opcode, size := word&0xffff, word>>16
		if size < 8 {
			return
		}
		body := make([]byte, size-8)
		if _, err := io.ReadFull(c, body); err != nil {
			return
		}
		w.mu.Lock()
		err := w.handleLocked(id, opcode, body)
		w.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (w *Wire) handleLocked(id, opcode uint32, body []byte) error {
	iface, ok := w.objects[id]
	if !ok {
		return w.sendLocked(1, 0, id, uint32(0), fmt.Sprintf("invalid object %d", id))
	}
	names := wireRequests[iface]
	name := fmt.Sprintf("%s.%d", iface, opcode)
	if int(opcode) < len(names) {
		name = iface + "." + names[opcode]
	}
	w.requests = append(w.requests, name)

	r := wireReader{b: body}
	switch name {
	case "wl_display.sync":
		cb := r.uint()
		w.serial++
		if err := w.sendLocked(cb, 0, w.serial); err != nil {
			return err
		}
		return w.sendLocked(1, 1, cb)
	case "wl_display.get_registry":
		reg := r.uint()
		w.objects[reg] = "wl_registry"
		for i, g := range w.globals {
			if err := w.sendLocked(reg, 0, uint32(i+1), g.Interface, g.Version); err != nil {
				return err
			}
		}
	case "wl_registry.bind":
		r.uint()
		bound := r.string()
		r.uint()
		w.objects[r.uint()] = bound
	case "wl_compositor.create_surface":
		w.objects[r.uint()] = "wl_surface"
	case "wl_seat.get_pointer":
		w.objects[r.uint()] = "wl_pointer"
	case "wl_seat.get_keyboard":
		w.objects[r.uint()] = "wl_keyboard"
	case "xdg_wm_base.get_xdg_surface":
		w.objects[r.uint()] = "xdg_surface"
	case "xdg_surface.get_toplevel":
		w.objects[r.uint()] = "xdg_toplevel"
	default:
		if wireDestructors[name] {
			delete(w.objects, id)
			return w.sendLocked(1, 1, id)
		}
	}
	return nil
}

func (w *Wire) sendLocked(id, opcode uint32, args ...any) error {
	if w.conn == nil {
		return errors.New("wltest: no client connected")
	}
	msg := make([]byte, 8, 64)
	for _, a := range args {
		switch v := a.(type) {
		case uint32:
			msg = binary.NativeEndian.AppendUint32(msg, v)
		case int32:
			msg = binary.NativeEndian.AppendUint32(msg, uint32(v))
		case float64:
			msg = binary.NativeEndian.AppendUint32(msg, uint32(int32(math.Round(v*256))))
		case string:
			msg = appendPadded(msg, append([]byte(v), 0))
		case []byte:
			msg = appendPadded(msg, v)
		default:
			return fmt.Errorf("wltest: cannot encode %T", a)
		}
	}
	binary.NativeEndian.PutUint32(msg[0:4], id)
	binary.NativeEndian.PutUint32(msg[4:8], uint32(len(msg))<<16|opcode)
	_, err := w.conn.Write(msg)
	return err
}

func appendPadded(msg, b []byte) []byte {
	msg = binary.NativeEndian.AppendUint32(msg, uint32(len(b)))
	msg = append(msg, b...)
	for len(msg)%4 != 0 {
		msg = append(msg, 0)
	}
	return msg
}

type wireReader struct{ b []byte }

func (r *wireReader) uint() uint32 {
	if len(r.b) < 4 {
		return 0
	}
	v := binary.NativeEndian.Uint32(r.b)
	r.b = r.b[4:]
	return v
}

func (r *wireReader) string() string {
	n := int(r.uint())
	padded := (n + 3) &^ 3
	if n == 0 || padded > len(r.b) {
		return ""
	}
	s := string(r.b[:n-1])
	r.b = r.b[padded:]
	return s
}
