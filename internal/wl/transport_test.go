package wl_test

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/emuwl/internal/wl"
	"github.com/bnema/emuwl/internal/wl/wltest"
)

// transports lists every way of opening a socket connection. The cgo build
// adds libwayland.
var transports = map[string]func(string) (wl.Display, error){
	"go": wl.ConnectGo,
}

type globals struct {
	mu    sync.Mutex
	names map[string]uint32
	seen  int
}

func (g *globals) Global(name uint32, iface string, _ uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.names == nil {
		g.names = map[string]uint32{}
	}
	g.names[iface] = name
	g.seen++
}

func (g *globals) GlobalRemove(uint32) {}

func (g *globals) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seen
}

type seatEvents struct {
	mu   sync.Mutex
	caps []uint32
}

func (s *seatEvents) Capabilities(caps uint32) {
	s.mu.Lock()
	s.caps = append(s.caps, caps)
	s.mu.Unlock()
}

func (s *seatEvents) Name(string) {}

func (s *seatEvents) events() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint32(nil), s.caps...)
}

type nopSurface struct{}

func (nopSurface) Enter(uint32) {}
func (nopSurface) Leave(uint32) {}

func dial(t *testing.T, connect func(string) (wl.Display, error), w *wltest.Wire) (wl.Display, wl.Registry, *globals) {
	t.Helper()
	d, err := connect(w.Path())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	g := &globals{}
	reg, err := d.Registry(g)
	require.NoError(t, err)
	require.NoError(t, d.Roundtrip())
	return d, reg, g
}

func forEachTransport(t *testing.T, fn func(t *testing.T, connect func(string) (wl.Display, error))) {
	for name, connect := range transports {
		t.Run(name, func(t *testing.T) { fn(t, connect) })
	}
}

// dispatchUntilWoken runs Dispatch on d in a goroutine until stop is
// closed, then wakes it and waits for it to return.
func dispatchUntilWoken(t *testing.T, d wl.Display) (stop func()) {
	t.Helper()
	quit := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		for {
			if err := d.Dispatch(); err != nil {
				done <- err
				return
			}
			select {
			case <-quit:
				done <- nil
				return
			default:
			}
		}
	}()
	return func() {
		close(quit)
		require.NoError(t, d.Wake())
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("dispatch did not return after wake")
		}
	}
}

func TestConnectAnnouncesGlobals(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect func(string) (wl.Display, error)) {
		w := wltest.NewWire(t)
		_, _, g := dial(t, connect, w)
		assert.Equal(t, 4, g.count())
		assert.Contains(t, g.names, wl.CompositorInterface)
		assert.Contains(t, g.names, wl.SeatInterface)
	})
}

func TestPrivateRoundtripWhileOwnerDispatches(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect func(string) (wl.Display, error)) {
		w := wltest.NewWire(t)
		d, _, _ := dial(t, connect, w)

		stop := dispatchUntilWoken(t, d)
		// let the owner block on the socket
		time.Sleep(20 * time.Millisecond)

		pq, err := d.NewQueue()
		require.NoError(t, err)
		g := &globals{}
		_, err = pq.Registry(g)
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			for i := 0; i < 10; i++ {
				if err := pq.Roundtrip(); err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("private roundtrip blocked behind the owner queue")
		}
		assert.Equal(t, 4, g.count(), "globals go to the private queue")

		stop()
		require.NoError(t, pq.Close())
	})
}

func TestEventsAfterReleaseAreDropped(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect func(string) (wl.Display, error)) {
		w := wltest.NewWire(t)
		d, reg, g := dial(t, connect, w)

		se := &seatEvents{}
		seat, err := reg.BindSeat(g.names[wl.SeatInterface], 4, se)
		require.NoError(t, err)
		require.NoError(t, d.Roundtrip())
		id, ok := w.Object(wl.SeatInterface)
		require.True(t, ok)

		// wl_seat v4 has no release request, so the server keeps sending.
		require.NoError(t, seat.Release())
		require.NoError(t, w.Send(id, 0, wl.SeatCapabilityPointer))
		require.NoError(t, reg.Destroy())
		regID, ok := w.Object("wl_registry")
		require.True(t, ok)
		require.NoError(t, w.Send(regID, 0, uint32(9), "wl_shm", uint32(1)))

		require.NoError(t, d.Roundtrip())
		require.NoError(t, d.Roundtrip())
		assert.Empty(t, se.events())
		assert.Equal(t, 4, g.count())
	})
}

func TestProtocolErrorFailsDisplay(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect func(string) (wl.Display, error)) {
		w := wltest.NewWire(t)
		d, reg, g := dial(t, connect, w)

		comp, err := reg.BindCompositor(g.names[wl.CompositorInterface], 4)
		require.NoError(t, err)
		s, err := comp.CreateSurface(nopSurface{})
		require.NoError(t, err)
		require.NoError(t, d.Roundtrip())

		require.NoError(t, w.ProtocolError(s.ID(), 2, "invalid scale"))
		err = d.Roundtrip()
		require.ErrorIs(t, err, wl.ErrProtocol)

		_, err = d.NewQueue()
		assert.Error(t, err)
	})
}

func TestHangupLosesConnection(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect func(string) (wl.Display, error)) {
		w := wltest.NewWire(t)
		d, _, _ := dial(t, connect, w)

		w.Hangup()
		err := d.Dispatch()
		require.ErrorIs(t, err, wl.ErrConnectionLost)
		assert.ErrorIs(t, d.Roundtrip(), wl.ErrConnectionLost)
	})
}

func TestRoundtripsDoNotLeakProxies(t *testing.T) {
	w := wltest.NewWire(t)
	d, _, _ := dial(t, wl.ConnectGo, w)
	pq, err := d.NewQueue()
	require.NoError(t, err)

	const max = 1 << 12
	before := wl.ProxyCount(d, max)

	// every private roundtrip has to kick the owner off the socket
	stop := dispatchUntilWoken(t, d)
	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 100; i++ {
		require.NoError(t, pq.Roundtrip())
	}
	stop()

	assert.Equal(t, before, wl.ProxyCount(d, max))
}

func TestConnectGoResolvesRuntimeDir(t *testing.T) {
	w := wltest.NewWire(t)
	dir, name := filepath.Split(w.Path())
	t.Setenv("XDG_RUNTIME_DIR", dir)

	d, err := wl.ConnectGo(name)
	require.NoError(t, err)
	require.NoError(t, d.Roundtrip())
	require.NoError(t, d.Close())
}

func TestConnectMissingSocket(t *testing.T) {
	forEachTransport(t, func(t *testing.T, connect func(string) (wl.Display, error)) {
		_, err := connect(t.TempDir() + "/wayland-none")
		assert.ErrorIs(t, err, wl.ErrConnect)
	})
}
