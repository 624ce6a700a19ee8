//go:build linux && cgo

package egl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/emuwl/internal/wl"
	"github.com/bnema/emuwl/internal/wl/wltest"
)

type registry map[string]uint32

func (r registry) Global(name uint32, iface string, _ uint32) { r[iface] = name }
func (r registry) GlobalRemove(uint32)                        {}

type nopSurface struct{}

func (nopSurface) Enter(uint32) {}
func (nopSurface) Leave(uint32) {}

func surfaceOn(t *testing.T, connect func(string) (wl.Display, error)) (wl.Display, wl.Surface) {
	t.Helper()
	w := wltest.NewWire(t)
	d, err := connect(w.Path())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	globals := registry{}
	reg, err := d.Registry(globals)
	require.NoError(t, err)
	require.NoError(t, d.Roundtrip())
	comp, err := reg.BindCompositor(globals[wl.CompositorInterface], 4)
	require.NoError(t, err)
	s, err := comp.CreateSurface(nopSurface{})
	require.NoError(t, err)
	require.NoError(t, d.Roundtrip())
	return d, s
}

func TestNativePointerAcceptsLibwaylandHandles(t *testing.T) {
	d, s := surfaceOn(t, wl.Connect)

	p, err := nativePointer(d.Handle())
	require.NoError(t, err)
	assert.NotNil(t, p)

	p, err = nativePointer(s.Handle())
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNativePointerRejectsGoHandles(t *testing.T) {
	d, s := surfaceOn(t, wl.ConnectGo)

	_, err := nativePointer(d.Handle())
	assert.ErrorIs(t, err, ErrForeignHandle)
	_, err = nativePointer(s.Handle())
	assert.ErrorIs(t, err, ErrForeignHandle)
}
