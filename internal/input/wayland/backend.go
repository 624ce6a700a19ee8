// Package wayland is an input backend that turns Wayland seats into
// keyboard and mouse devices. It listens on its own event queue so it can
// be polled from the input goroutine while the window's main loop owns the
// connection's default queue.
package wayland

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"go.uber.org/multierr"

	"github.com/bnema/emuwl/internal/controller"
	"github.com/bnema/emuwl/internal/logger"
	"github.com/bnema/emuwl/internal/wl"
	"github.com/bnema/emuwl/internal/xkb"
)

// Source is the device source name.
const Source = "Wayland"

// GNOME Shell crashes when a client binds wl_seat at version 5.
const maxSeatVersion = 4

// ErrNotInitialized is returned when the backend has no queue.
var ErrNotInitialized = errors.New("wayland input: not initialized")

// Options configure the backend.
type Options struct {
	// Surface is the ID of the render surface. Pointer motion is only
	// tracked while the pointer is over it; 0 tracks every surface.
	Surface uint32
	// NewCompiler returns a keymap compiler for each seat. Defaults to
	// xkb.NewCompiler.
	NewCompiler func() (xkb.Compiler, error)
}

// Backend discovers seats and builds a Seat device for each.
type Backend struct {
	opts Options
	log  *log.Logger

	mu       sync.Mutex
	display  wl.Display
	registry wl.Registry
	seatIDs  map[uint32]uint32 // global name -> bind version
	seats    []*Seat
}

var _ controller.Backend = (*Backend)(nil)

// New returns an uninitialized backend.
func New(opts Options) *Backend {
	if opts.NewCompiler == nil {
		opts.NewCompiler = xkb.NewCompiler
	}
	return &Backend{
		opts:    opts,
		log:     logger.WithPrefix("input"),
		seatIDs: make(map[uint32]uint32),
	}
}

func (b *Backend) Name() string { return Source }

// Init opens a private queue on conn and starts listening for seats.
func (b *Backend) Init(conn wl.Display) error {
	q, err := conn.NewQueue()
	if err != nil {
		return fmt.Errorf("create input queue: %w", err)
	}
	r, err := q.Registry(registryListener{b})
	if err != nil {
		q.Close()
		return fmt.Errorf("get input registry: %w", err)
	}

	b.mu.Lock()
	b.display, b.registry = q, r
	b.mu.Unlock()
	return nil
}

// PopulateDevices adds one device per announced seat.
func (b *Backend) PopulateDevices(ci *controller.Interface) error {
	if !b.active() {
		b.log.Debug("Input queue gone, no seats to add")
		return nil
	}
	if err := b.roundtrip(); err != nil {
		return err
	}

	for _, id := range b.seatList() {
		s, err := newSeat(b, ci, id.name, id.version)
		if err != nil {
			if !b.active() {
				return err
			}
			b.log.Warn("Skipping seat", "name", id.name, "err", err)
			continue
		}
		ci.AddDevice(s)
	}
	return nil
}

// Shutdown releases every seat, the registry and the private queue. The
// shared connection stays open.
func (b *Backend) Shutdown() error {
	return b.finish()
}

func (b *Backend) active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.display != nil
}

type seatID struct{ name, version uint32 }

func (b *Backend) seatList() []seatID {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]seatID, 0, len(b.seatIDs))
	for name, version := range b.seatIDs {
		ids = append(ids, seatID{name, version})
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].name < ids[j].name })
	return ids
}

func (b *Backend) hasSeat(name uint32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.seatIDs[name]
	return ok
}

func (b *Backend) registryHandle() wl.Registry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry
}

func (b *Backend) track(s *Seat) {
	b.mu.Lock()
	defer b.mu.Unlock()
	live := b.seats[:0]
	for _, other := range b.seats {
		if !other.released() {
			live = append(live, other)
		}
	}
	b.seats = append(live, s)
}

// roundtrip drains the private queue. A failure tears the backend down;
// the render connection is left to its owner.
func (b *Backend) roundtrip() error {
	b.mu.Lock()
	d := b.display
	b.mu.Unlock()
	if d == nil {
		return ErrNotInitialized
	}

	err := d.Roundtrip()
	if err == nil {
		return nil
	}
	if errors.Is(err, wl.ErrConnectionLost) {
		b.log.Error("Lost connection to the Wayland compositor", "err", err)
	} else {
		b.log.Error("Wayland fatal error", "err", err)
	}
	if ferr := b.finish(); ferr != nil {
		b.log.Debugf("Tearing down input queue: %v", ferr)
	}
	return err
}

func (b *Backend) finish() error {
	b.mu.Lock()
	seats := b.seats
	b.seats = nil
	b.seatIDs = make(map[uint32]uint32)
	d, r := b.display, b.registry
	b.display, b.registry = nil, nil
	b.mu.Unlock()

	var err error
	for _, s := range seats {
		err = multierr.Append(err, s.Close())
	}
	if r != nil {
		err = multierr.Append(err, r.Destroy())
	}
	if d != nil {
		err = multierr.Append(err, d.Close())
	}
	return err
}

type registryListener struct{ b *Backend }

func (l registryListener) Global(name uint32, iface string, version uint32) {
	if iface != wl.SeatInterface {
		return
	}
	l.b.mu.Lock()
	l.b.seatIDs[name] = min(version, maxSeatVersion)
	l.b.mu.Unlock()
}

func (l registryListener) GlobalRemove(name uint32) {
	l.b.mu.Lock()
	delete(l.b.seatIDs, name)
	l.b.mu.Unlock()
}
