package wltest

import (
	"github.com/bnema/emuwl/internal/wl"
)

// configureLocked sends a toplevel configure followed by the closing
// xdg_surface configure, as a compositor does.
func (s *Server) configureLocked(xs *object, width, height int32) {
	tl := xs.role
	tll := tl.listener.(wl.ToplevelListener)
	xsl := xs.listener.(wl.XdgSurfaceListener)
	serial := s.nextSerial()
	xs.queue.post(func() {
		tll.Configure(width, height, nil)
		xsl.Configure(serial)
	})
}

// Configure suggests a new toplevel size to every live toplevel and returns
// the serial used for the last one.
func (s *Server) Configure(width, height int32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, xs := range s.live("xdg_surface") {
		if xs.role == nil || xs.role.destroyed {
			continue
		}
		s.configureLocked(xs, width, height)
	}
	return s.serial
}

// CloseToplevel asks every toplevel to close.
func (s *Server) CloseToplevel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.live("xdg_toplevel") {
		l := o.listener.(wl.ToplevelListener)
		o.queue.post(l.Close)
	}
}

// Ping pings every xdg_wm_base and returns the serial.
func (s *Server) Ping() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	serial := s.nextSerial()
	for _, o := range s.live("xdg_wm_base") {
		l := o.listener.(wl.WmBaseListener)
		o.queue.post(func() { l.Ping(serial) })
	}
	return serial
}

// SetScale changes an output's scale factor and sends scale plus done to
// every client bound to it.
func (s *Server) SetScale(name uint32, factor int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.globals[name]; ok {
		g.scale = factor
	}
	for _, o := range s.live("wl_output") {
		if o.global != name {
			continue
		}
		l := o.listener.(wl.OutputListener)
		o.queue.post(func() {
			l.Scale(factor)
			l.Done()
		})
	}
}

// Surfaces returns the IDs of live surfaces in creation order.
func (s *Server) Surfaces() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint32
	for _, o := range s.live("wl_surface") {
		ids = append(ids, o.id)
	}
	return ids
}

// EnterOutput tells a surface it is now shown on the output bound from
// global name.
func (s *Server) EnterOutput(surfaceID, name uint32) {
	s.surfaceOutput(surfaceID, name, true)
}

// LeaveOutput is the counterpart of EnterOutput.
func (s *Server) LeaveOutput(surfaceID, name uint32) {
	s.surfaceOutput(surfaceID, name, false)
}

func (s *Server) surfaceOutput(surfaceID, name uint32, enter bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	surf := s.find(surfaceID)
	if surf == nil || surf.destroyed {
		return
	}
	l := surf.listener.(wl.SurfaceListener)
	for _, o := range s.live("wl_output") {
		if o.global != name || o.queue != surf.queue {
			continue
		}
		id := o.id
		if enter {
			surf.queue.post(func() { l.Enter(id) })
		} else {
			surf.queue.post(func() { l.Leave(id) })
		}
		return
	}
}

// SetCapabilities changes a seat's capabilities and notifies its clients.
func (s *Server) SetCapabilities(name, caps uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.globals[name]; ok {
		g.caps = caps
	}
	for _, o := range s.live("wl_seat") {
		if o.global != name {
			continue
		}
		l := o.listener.(wl.SeatListener)
		o.queue.post(func() { l.Capabilities(caps) })
	}
}

func (s *Server) pointers(fn func(wl.PointerListener)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.live("wl_pointer") {
		l := o.listener.(wl.PointerListener)
		o.queue.post(func() { fn(l) })
	}
}

func (s *Server) keyboards(fn func(wl.KeyboardListener)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.live("wl_keyboard") {
		l := o.listener.(wl.KeyboardListener)
		o.queue.post(func() { fn(l) })
	}
}

// PointerEnter moves the pointer onto a surface.
func (s *Server) PointerEnter(surfaceID uint32, x, y float64) {
	serial := s.takeSerial()
	s.pointers(func(l wl.PointerListener) { l.Enter(serial, surfaceID, x, y) })
}

// PointerLeave moves the pointer off a surface.
func (s *Server) PointerLeave(surfaceID uint32) {
	serial := s.takeSerial()
	s.pointers(func(l wl.PointerListener) { l.Leave(serial, surfaceID) })
}

// PointerMotion moves the pointer within the focused surface.
func (s *Server) PointerMotion(x, y float64) {
	s.pointers(func(l wl.PointerListener) { l.Motion(0, x, y) })
}

// PointerButton presses or releases an evdev button code.
func (s *Server) PointerButton(button, state uint32) {
	serial := s.takeSerial()
	s.pointers(func(l wl.PointerListener) { l.Button(serial, 0, button, state) })
}

// PointerAxis scrolls.
func (s *Server) PointerAxis(axis uint32, value float64) {
	s.pointers(func(l wl.PointerListener) { l.Axis(0, axis, value) })
}

// KeyboardKeymap sends a new keymap to every keyboard.
func (s *Server) KeyboardKeymap() {
	s.mu.Lock()
	format, fd, size := s.KeymapFormat, s.KeymapFD, s.KeymapSize
	s.mu.Unlock()
	s.keyboards(func(l wl.KeyboardListener) { l.Keymap(format, fd, size) })
}

// KeyboardEnter focuses a surface with keys already held.
func (s *Server) KeyboardEnter(surfaceID uint32, keys ...uint32) {
	serial := s.takeSerial()
	s.keyboards(func(l wl.KeyboardListener) { l.Enter(serial, surfaceID, keys) })
}

// KeyboardKey presses or releases an evdev key code.
func (s *Server) KeyboardKey(key, state uint32) {
	serial := s.takeSerial()
	s.keyboards(func(l wl.KeyboardListener) { l.Key(serial, 0, key, state) })
}

// KeyboardModifiers sends a modifier state update.
func (s *Server) KeyboardModifiers(depressed, latched, locked, group uint32) {
	serial := s.takeSerial()
	s.keyboards(func(l wl.KeyboardListener) { l.Modifiers(serial, depressed, latched, locked, group) })
}

func (s *Server) takeSerial() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSerial()
}
