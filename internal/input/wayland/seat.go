package wayland

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/bnema/emuwl/internal/controller"
	"github.com/bnema/emuwl/internal/wl"
	"github.com/bnema/emuwl/internal/xkb"
)

// btnLeft is the evdev code of the first mouse button.
const btnLeft = 0x110

const (
	numButtons = 32

	// Relative axis values are averaged with the previous frame, weighted
	// axisSmoothing:1, then divided by axisSensitivity.
	axisSmoothing   = 1.5
	axisSensitivity = 8.0
)

// State is what the seat's controls read. Event handlers write it on the
// input goroutine; controls may read it from anywhere.
type State struct {
	keys    []atomic.Uint32 // bitset indexed by XKB keycode
	buttons atomic.Uint32

	cursorX, cursorY atomic.Float64
	axisX, axisY     atomic.Float64

	// only touched on the input goroutine
	accumX, accumY float64
}

func (st *State) setKey(keycode uint32, down bool) {
	word := keycode / 32
	if int(word) >= len(st.keys) {
		return
	}
	bit := uint32(1) << (keycode % 32)
	for {
		old := st.keys[word].Load()
		v := old &^ bit
		if down {
			v = old | bit
		}
		if st.keys[word].CAS(old, v) {
			return
		}
	}
}

func (st *State) key(keycode uint32) bool {
	word := keycode / 32
	if int(word) >= len(st.keys) {
		return false
	}
	return st.keys[word].Load()&(1<<(keycode%32)) != 0
}

func (st *State) setButton(index uint32, down bool) {
	bit := uint32(1) << index
	for {
		old := st.buttons.Load()
		v := old &^ bit
		if down {
			v = old | bit
		}
		if st.buttons.CAS(old, v) {
			return
		}
	}
}

// smooth folds the accumulated scroll into the axes and resets it.
func (st *State) smooth() {
	st.axisX.Store((st.axisX.Load()*axisSmoothing + st.accumX) / (axisSmoothing + 1))
	st.axisY.Store((st.axisY.Load()*axisSmoothing + st.accumY) / (axisSmoothing + 1))
	st.accumX, st.accumY = 0, 0
}

// Seat is a wl_seat exposed as one keyboard and mouse device. Its controls
// are fixed when it is built; later capability or keymap changes make it
// invalid so the controller rebuilds it.
type Seat struct {
	backend *Backend
	ci      *controller.Interface
	id      uint32
	surface uint32

	name  atomic.String
	valid atomic.Bool
	state State

	// input goroutine only
	constructed bool
	inSurface   bool
	inputs      []controller.Input

	mu       sync.Mutex
	seat     wl.Seat
	pointer  wl.Pointer
	keyboard wl.Keyboard
	compiler xkb.Compiler
	keymap   xkb.Keymap
	closed   bool
}

var _ controller.Device = (*Seat)(nil)

func newSeat(b *Backend, ci *controller.Interface, id, version uint32) (*Seat, error) {
	s := &Seat{backend: b, ci: ci, id: id, surface: b.opts.Surface}
	s.name.Store("Seat")
	s.valid.Store(true)

	compiler, err := b.opts.NewCompiler()
	if err != nil {
		b.log.Debugf("Seat %d has no keymap compiler: %v", id, err)
	}
	s.compiler = compiler

	r := b.registryHandle()
	if r == nil {
		return nil, ErrNotInitialized
	}
	seat, err := r.BindSeat(id, version, seatListener{s})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("bind seat %d: %w", id, err)
	}
	s.mu.Lock()
	s.seat = seat
	s.mu.Unlock()
	b.track(s)

	if err := b.roundtrip(); err != nil {
		s.Close()
		return nil, err
	}
	s.constructed = true
	return s, nil
}

func (s *Seat) Name() string   { return s.name.Load() }
func (s *Seat) Source() string { return Source }

func (s *Seat) IsValid() bool { return s.valid.Load() }

func (s *Seat) Inputs() []controller.Input { return s.inputs }

// UpdateInput handles pending events and advances the scroll smoothing.
func (s *Seat) UpdateInput() error {
	err := s.backend.roundtrip()
	s.state.smooth()
	if !s.backend.hasSeat(s.id) {
		s.invalidate("seat removed")
	}
	return err
}

func (s *Seat) invalidate(reason string) {
	if s.valid.Swap(false) {
		s.backend.log.Debug("Seat invalidated", "seat", s.Name(), "reason", reason)
	}
}

func (s *Seat) released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the keymap, the compiler, the pointer, the keyboard and
// the seat, in that order. It is idempotent.
func (s *Seat) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.valid.Store(false)

	if s.keymap != nil {
		s.keymap.Destroy()
		s.keymap = nil
	}
	if s.compiler != nil {
		s.compiler.Destroy()
		s.compiler = nil
	}
	var err error
	if s.pointer != nil {
		err = multierr.Append(err, s.pointer.Release())
		s.pointer = nil
	}
	if s.keyboard != nil {
		err = multierr.Append(err, s.keyboard.Release())
		s.keyboard = nil
	}
	if s.seat != nil {
		err = multierr.Append(err, s.seat.Release())
		s.seat = nil
	}
	return err
}

func (s *Seat) addInput(in controller.Input) {
	s.inputs = append(s.inputs, in)
}

// seat events

func (s *Seat) capabilities(caps uint32) {
	hasPointer := caps&wl.SeatCapabilityPointer != 0
	hasKeyboard := caps&wl.SeatCapabilityKeyboard != 0

	s.mu.Lock()
	seat, pointer, keyboard, closed := s.seat, s.pointer, s.keyboard, s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	if s.constructed {
		if (pointer != nil && !hasPointer) || (keyboard != nil && !hasKeyboard) {
			s.invalidate("capabilities changed")
		}
		return
	}

	if pointer == nil && hasPointer {
		s.addPointer(seat)
	}
	if keyboard == nil && hasKeyboard {
		s.addKeyboard(seat)
	}
}

func (s *Seat) addPointer(seat wl.Seat) {
	p, err := seat.Pointer(pointerListener{s})
	if err != nil {
		s.backend.log.Warn("Getting pointer failed", "err", err)
		return
	}
	s.mu.Lock()
	s.pointer = p
	s.mu.Unlock()

	for i := uint32(0); i < numButtons; i++ {
		s.addInput(&Button{index: i, state: &s.state})
	}
	// X-, X+, Y-, Y+
	for i := 0; i < 4; i++ {
		s.addInput(&Cursor{y: i&2 != 0, positive: i&1 != 0, state: &s.state})
	}
	for i := 0; i < 4; i++ {
		s.addInput(&Axis{y: i&2 != 0, positive: i&1 != 0, state: &s.state})
	}
}

func (s *Seat) addKeyboard(seat wl.Seat) {
	k, err := seat.Keyboard(keyboardListener{s})
	if err != nil {
		s.backend.log.Warn("Getting keyboard failed", "err", err)
		return
	}
	s.mu.Lock()
	s.keyboard = k
	s.mu.Unlock()

	// The keymap arrives right after the keyboard is created.
	if err := s.backend.roundtrip(); err != nil {
		return
	}

	s.mu.Lock()
	km := s.keymap
	s.mu.Unlock()
	if km == nil {
		return
	}

	minCode, maxCode := km.MinKeycode(), km.MaxKeycode()
	if maxCode > 0 {
		s.state.keys = make([]atomic.Uint32, maxCode/32+1)
	}
	for code := uint64(minCode); code <= uint64(maxCode); code++ {
		if name := km.KeyName(uint32(code)); name != "" {
			s.addInput(&Key{name: name, keycode: uint32(code), state: &s.state})
		}
	}
}

func (s *Seat) setName(name string) {
	if name == "" {
		name = "Seat"
	}
	s.name.Store(name)
}

// pointer events

func (s *Seat) pointerEnter(surfaceID uint32) {
	if s.surface == 0 || surfaceID == s.surface {
		s.inSurface = true
	}
}

func (s *Seat) pointerLeave(surfaceID uint32) {
	if s.surface == 0 || surfaceID == s.surface {
		s.inSurface = false
	}
}

func (s *Seat) motion(x, y float64) {
	if !s.inSurface {
		return
	}
	w, h := s.ci.WindowSize()
	if w <= 0 || h <= 0 {
		s.state.cursorX.Store(0)
		s.state.cursorY.Store(0)
		return
	}
	scaleX, scaleY := s.ci.WindowInputScale()
	// -1..1 across the window
	s.state.cursorX.Store((x/float64(w)*2 - 1) * scaleX)
	s.state.cursorY.Store((y/float64(h)*2 - 1) * scaleY)
}

func (s *Seat) button(button, state uint32) {
	if button < btnLeft || button-btnLeft >= numButtons {
		return
	}
	s.state.setButton(button-btnLeft, state == wl.ButtonPressed)
}

func (s *Seat) axis(axis uint32, value float64) {
	if axis == wl.AxisHorizontalScroll {
		s.state.accumX += value
	} else {
		s.state.accumY += value
	}
}

// keyboard events

func (s *Seat) loadKeymap(format uint32, fd int, size uint32) {
	if s.constructed {
		closeFD(fd)
		s.invalidate("keymap changed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keymap != nil {
		s.keymap.Destroy()
		s.keymap = nil
	}
	if s.compiler == nil || s.closed {
		closeFD(fd)
		return
	}
	km, err := s.compiler.Compile(format, fd, size)
	if err != nil {
		s.backend.log.Warn("Keymap unusable", "seat", s.Name(), "err", err)
		return
	}
	s.keymap = km
}

func closeFD(fd int) {
	if fd >= 0 {
		unix.Close(fd)
	}
}

func (s *Seat) key(key, state uint32) {
	s.state.setKey(key+xkb.KeycodeOffset, state == wl.KeyPressed)
}

func (s *Seat) modifiers(depressed, latched, locked, group uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keymap != nil {
		s.keymap.UpdateMask(depressed, latched, locked, group)
	}
}

type seatListener struct{ s *Seat }

func (l seatListener) Capabilities(caps uint32) { l.s.capabilities(caps) }
func (l seatListener) Name(name string)         { l.s.setName(name) }

type pointerListener struct{ s *Seat }

func (l pointerListener) Enter(_, surfaceID uint32, _, _ float64) { l.s.pointerEnter(surfaceID) }
func (l pointerListener) Leave(_, surfaceID uint32)               { l.s.pointerLeave(surfaceID) }
func (l pointerListener) Motion(_ uint32, x, y float64)           { l.s.motion(x, y) }
func (l pointerListener) Button(_, _, button, state uint32)       { l.s.button(button, state) }
func (l pointerListener) Axis(_, axis uint32, value float64)      { l.s.axis(axis, value) }

type keyboardListener struct{ s *Seat }

func (l keyboardListener) Keymap(format uint32, fd int, size uint32) {
	l.s.loadKeymap(format, fd, size)
}

func (l keyboardListener) Enter(uint32, uint32, []uint32) {}
func (l keyboardListener) Leave(uint32, uint32)           {}
func (l keyboardListener) Key(_, _, key, state uint32)    { l.s.key(key, state) }

func (l keyboardListener) Modifiers(_, depressed, latched, locked, group uint32) {
	l.s.modifiers(depressed, latched, locked, group)
}

func (l keyboardListener) RepeatInfo(int32, int32) {}
