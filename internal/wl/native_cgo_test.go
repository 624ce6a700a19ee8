//go:build linux && cgo

package wl_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/emuwl/internal/wl"
	"github.com/bnema/emuwl/internal/wl/wltest"
)

func init() {
	transports["native"] = wl.Connect
}

func TestConnectHandlesAreNative(t *testing.T) {
	w := wltest.NewWire(t)
	d, reg, g := dial(t, wl.Connect, w)

	comp, err := reg.BindCompositor(g.names[wl.CompositorInterface], 4)
	require.NoError(t, err)
	s, err := comp.CreateSurface(nopSurface{})
	require.NoError(t, err)
	require.NoError(t, d.Roundtrip())

	dh, ok := d.Handle().(unsafe.Pointer)
	require.True(t, ok, "display handle is %T", d.Handle())
	assert.NotNil(t, dh)
	sh, ok := s.Handle().(unsafe.Pointer)
	require.True(t, ok, "surface handle is %T", s.Handle())
	assert.NotNil(t, sh)

	id, ok := w.Object("wl_surface")
	require.True(t, ok)
	assert.Equal(t, id, s.ID())

	require.NoError(t, s.Destroy())
	require.NoError(t, d.Roundtrip())
	assert.Contains(t, w.Requests(), "wl_surface.destroy")
}
