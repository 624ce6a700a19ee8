// Package wltest is an in-memory stand-in for a Wayland compositor. It
// implements the wl interfaces, records every request in order, and reports
// protocol misuse: requests on destroyed objects, and objects destroyed
// while a child created from them is still alive.
package wltest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bnema/emuwl/internal/wl"
)

// Default global versions announced by NewServer.
const (
	CompositorVersion = 6
	WmBaseVersion     = 5
	OutputVersion     = 4
	SeatVersion       = 9
)

type global struct {
	name    uint32
	iface   string
	version uint32

	// seat
	caps     uint32
	seatName string
	// output
	scale int32
}

type object struct {
	id        uint32
	iface     string
	version   uint32
	global    uint32
	queue     *Queue
	parents   []*object
	destroyed bool

	listener any
	// xdg_surface and toplevel roles hang off the surface
	role *object
}

func (o *object) String() string {
	return fmt.Sprintf("%s#%d", o.iface, o.id)
}

// Server is the fake compositor. The zero value is not usable; use
// NewServer.
type Server struct {
	mu sync.Mutex

	globals  map[uint32]*global
	order    []uint32
	nextName uint32

	objects []*object
	nextID  uint32
	serial  uint32

	ops        []string
	violations []string
	failures   map[string]error
	lost       error
	connects   int

	queues []*Queue

	// InitialWidth and InitialHeight are sent in the toplevel configure
	// that follows the first commit of a toplevel surface.
	InitialWidth, InitialHeight int32

	// KeymapFormat, KeymapFD and KeymapSize are sent to every new keyboard.
	KeymapFormat uint32
	KeymapFD     int
	KeymapSize   uint32
}

// NewServer returns a server announcing nothing.
func NewServer() *Server {
	return &Server{
		globals:      make(map[uint32]*global),
		failures:     make(map[string]error),
		nextID:       1,
		KeymapFormat: wl.KeymapFormatXkbV1,
		KeymapFD:     -1,
	}
}

// NewDesktop returns a server announcing a compositor, xdg_wm_base, one
// output and one seat with pointer and keyboard.
func NewDesktop() *Server {
	s := NewServer()
	s.Announce(wl.CompositorInterface, CompositorVersion)
	s.Announce(wl.WmBaseInterface, WmBaseVersion)
	s.AddOutput(1)
	s.AddSeat("seat0", wl.SeatCapabilityPointer|wl.SeatCapabilityKeyboard)
	return s
}

// Connect opens a new connection. It matches the signature of wl.Connect.
func (s *Server) Connect(string) (wl.Display, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["connect"]; err != nil {
		delete(s.failures, "connect")
		return nil, fmt.Errorf("%w: %v", wl.ErrConnect, err)
	}
	s.connects++
	s.lost = nil
	s.ops = append(s.ops, "connect")
	q := &Queue{srv: s, owner: true, wake: make(chan struct{}, 1)}
	s.queues = append(s.queues, q)
	return q, nil
}

// Announce adds a global and tells every live registry about it.
func (s *Server) Announce(iface string, version uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.announceLocked(&global{iface: iface, version: version})
}

func (s *Server) announceLocked(g *global) uint32 {
	s.nextName++
	g.name = s.nextName
	s.globals[g.name] = g
	s.order = append(s.order, g.name)
	for _, o := range s.live("wl_registry") {
		l := o.listener.(wl.RegistryListener)
		name, iface, version := g.name, g.iface, g.version
		o.queue.post(func() { l.Global(name, iface, version) })
	}
	return g.name
}

// AddSeat announces a seat with the given capabilities.
func (s *Server) AddSeat(name string, caps uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.announceLocked(&global{iface: wl.SeatInterface, version: SeatVersion, caps: caps, seatName: name})
}

// AddOutput announces an output with the given scale factor.
func (s *Server) AddOutput(scale int32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.announceLocked(&global{iface: wl.OutputInterface, version: OutputVersion, scale: scale})
}

// Remove retracts a global.
func (s *Server) Remove(name uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.globals[name]; !ok {
		return
	}
	delete(s.globals, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	for _, o := range s.live("wl_registry") {
		l := o.listener.(wl.RegistryListener)
		o.queue.post(func() { l.GlobalRemove(name) })
	}
}

// Global returns the name of the first global implementing iface.
func (s *Server) Global(iface string) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.order {
		if s.globals[n].iface == iface {
			return n, true
		}
	}
	return 0, false
}

// FailOn makes the next request matching op ("wl_surface.commit",
// "roundtrip", "connect") fail with err.
func (s *Server) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Disconnect simulates a broken transport: every later request and dispatch
// fails with wl.ErrConnectionLost wrapping err.
func (s *Server) Disconnect(err error) {
	s.mu.Lock()
	s.lost = fmt.Errorf("%w: %v", wl.ErrConnectionLost, err)
	queues := append([]*Queue(nil), s.queues...)
	s.mu.Unlock()
	for _, q := range queues {
		q.signal()
	}
}

// Ops returns the request log.
func (s *Server) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

// Index returns the position of the first logged request starting with
// prefix, or -1.
func (s *Server) Index(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, op := range s.ops {
		if strings.HasPrefix(op, prefix) {
			return i
		}
	}
	return -1
}

// LastIndex is Index from the end of the log.
func (s *Server) LastIndex(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.ops) - 1; i >= 0; i-- {
		if strings.HasPrefix(s.ops[i], prefix) {
			return i
		}
	}
	return -1
}

// Count returns how many logged requests start with prefix.
func (s *Server) Count(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, op := range s.ops {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}

// Violations returns every protocol misuse seen so far.
func (s *Server) Violations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.violations...)
}

// Live returns how many objects of iface are alive.
func (s *Server) Live(iface string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live(iface))
}

func (s *Server) live(iface string) []*object {
	var out []*object
	for _, o := range s.objects {
		if !o.destroyed && o.iface == iface && !o.queue.closed {
			out = append(out, o)
		}
	}
	return out
}

func (s *Server) violate(format string, args ...any) {
	s.violations = append(s.violations, fmt.Sprintf(format, args...))
}

// request logs op on o and validates it. Must hold s.mu.
func (s *Server) request(o *object, method string, args ...any) error {
	op := o.String() + "." + method
	if len(args) > 0 {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = fmt.Sprint(a)
		}
		op += "(" + strings.Join(parts, ",") + ")"
	}
	s.ops = append(s.ops, op)

	if o.destroyed {
		s.violate("%s on destroyed %s", method, o)
	}
	if s.lost != nil {
		return s.lost
	}
	if err := s.failures[o.iface+"."+method]; err != nil {
		delete(s.failures, o.iface+"."+method)
		return err
	}
	return nil
}

func (s *Server) create(q *Queue, iface string, version uint32, l any, parents ...*object) *object {
	o := &object{id: s.nextID, iface: iface, version: version, queue: q, parents: parents, listener: l}
	s.nextID++
	s.objects = append(s.objects, o)
	return o
}

// destroy marks o dead after checking none of its children outlive it.
func (s *Server) destroy(o *object, method string) error {
	err := s.request(o, method)
	if o.destroyed {
		return err
	}
	for _, c := range s.objects {
		if c.destroyed {
			continue
		}
		for _, p := range c.parents {
			if p == o {
				s.violate("%s destroyed before child %s", o, c)
			}
		}
	}
	o.destroyed = true
	return err
}

func (s *Server) nextSerial() uint32 {
	s.serial++
	return s.serial
}

func (s *Server) find(id uint32) *object {
	for _, o := range s.objects {
		if o.id == id {
			return o
		}
	}
	return nil
}
