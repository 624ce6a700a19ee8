package glinterface

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/emuwl/internal/egl"
	"github.com/bnema/emuwl/internal/renderer"
	"github.com/bnema/emuwl/internal/wsi"
)

type fakeWindow struct {
	d      *fakeDriver
	w, h   int
	dx, dy int
}

func (w *fakeWindow) Handle() uintptr { return 0x77 }

func (w *fakeWindow) Resize(width, height, dx, dy int) {
	w.w, w.h, w.dx, w.dy = width, height, dx, dy
	w.d.record(fmt.Sprintf("resize %dx%d", width, height))
}

func (w *fakeWindow) Destroy() { w.d.record("destroy window") }

type fakeDriver struct {
	exts        []string
	platformErr error
	calls       []string
	windows     []*fakeWindow
	surfaces    []any
}

func (d *fakeDriver) record(c string) { d.calls = append(d.calls, c) }

func (d *fakeDriver) ClientExtensions() []string { return d.exts }

func (d *fakeDriver) GetPlatformDisplay(platform uint32, native any) (egl.Display, error) {
	d.record("platform display")
	if d.platformErr != nil {
		return 0, d.platformErr
	}
	return 1, nil
}

func (d *fakeDriver) GetDisplay(native any) (egl.Display, error) {
	d.record("display")
	return 2, nil
}

func (d *fakeDriver) Initialize(egl.Display) (int, int, error) {
	d.record("initialize")
	return 1, 5, nil
}

func (d *fakeDriver) ChooseConfig(egl.Display, egl.ConfigAttribs) (egl.Config, error) {
	d.record("config")
	return 3, nil
}

func (d *fakeDriver) CreateContext(egl.Display, egl.Config, egl.ContextAttribs) (egl.Context, error) {
	d.record("context")
	return 4, nil
}

func (d *fakeDriver) CreateWindow(surface any, width, height int) (egl.NativeWindow, error) {
	d.record(fmt.Sprintf("window %dx%d", width, height))
	d.surfaces = append(d.surfaces, surface)
	w := &fakeWindow{d: d, w: width, h: height}
	d.windows = append(d.windows, w)
	return w, nil
}

func (d *fakeDriver) CreateWindowSurface(egl.Display, egl.Config, egl.NativeWindow) (egl.Surface, error) {
	d.record("window surface")
	return 5, nil
}

func (d *fakeDriver) MakeCurrent(egl.Display, egl.Surface, egl.Context) error {
	d.record("make current")
	return nil
}

func (d *fakeDriver) SwapBuffers(egl.Display, egl.Surface) error {
	d.record("swap")
	return nil
}

func (d *fakeDriver) DestroySurface(egl.Display, egl.Surface) error {
	d.record("destroy surface")
	return nil
}

func (d *fakeDriver) DestroyContext(egl.Display, egl.Context) error {
	d.record("destroy context")
	return nil
}

func (d *fakeDriver) Terminate(egl.Display) error {
	d.record("terminate")
	return nil
}

type fixedSize struct{ w, h int }

func (s fixedSize) BootstrapSize() (int, int) { return s.w, s.h }

func info(surface any) wsi.Info {
	return wsi.Info{Type: wsi.Wayland, DisplayConnection: "display", RenderSurface: surface, Width: 640, Height: 480}
}

func TestOpenDisplayPrefersPlatform(t *testing.T) {
	d := &fakeDriver{exts: []string{egl.ExtPlatformWaylandKHR}}
	g := NewEGLWayland(d, info("surface"), nil, DefaultOptions())
	disp, err := g.OpenDisplay()
	require.NoError(t, err)
	assert.Equal(t, egl.Display(1), disp)
	assert.Equal(t, []string{"platform display"}, d.calls)
}

func TestOpenDisplayFallsBack(t *testing.T) {
	t.Run("no extension", func(t *testing.T) {
		d := &fakeDriver{}
		g := NewEGLWayland(d, info("surface"), nil, DefaultOptions())
		disp, err := g.OpenDisplay()
		require.NoError(t, err)
		assert.Equal(t, egl.Display(2), disp)
		assert.Equal(t, []string{"display"}, d.calls)
	})

	t.Run("not preferred", func(t *testing.T) {
		d := &fakeDriver{exts: []string{egl.ExtPlatformWaylandEXT}}
		opts := DefaultOptions()
		opts.PreferPlatformDisplay = false
		g := NewEGLWayland(d, info("surface"), nil, opts)
		_, err := g.OpenDisplay()
		require.NoError(t, err)
		assert.Equal(t, []string{"display"}, d.calls)
	})

	t.Run("platform call fails", func(t *testing.T) {
		d := &fakeDriver{exts: []string{egl.ExtPlatformWaylandKHR}, platformErr: &egl.Error{Op: "eglGetPlatformDisplayEXT"}}
		g := NewEGLWayland(d, info("surface"), nil, DefaultOptions())
		disp, err := g.OpenDisplay()
		require.NoError(t, err)
		assert.Equal(t, egl.Display(2), disp)
	})

	t.Run("foreign handle is fatal", func(t *testing.T) {
		d := &fakeDriver{exts: []string{egl.ExtPlatformWaylandKHR}, platformErr: egl.ErrForeignHandle}
		g := NewEGLWayland(d, info("surface"), nil, DefaultOptions())
		_, err := g.OpenDisplay()
		assert.ErrorIs(t, err, egl.ErrForeignHandle)
	})
}

func TestNativeWindowUsesBootstrapSize(t *testing.T) {
	d := &fakeDriver{}
	g := NewEGLWayland(d, info("surface"), fixedSize{1280, 720}, DefaultOptions())

	_, err := g.NativeWindow(0)
	require.NoError(t, err)
	w, h := g.BackbufferSize()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)

	_, err = g.NativeWindow(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"window 1280x720", "destroy window", "window 1280x720"}, d.calls)
}

func TestNativeWindowClampsSize(t *testing.T) {
	d := &fakeDriver{}
	g := NewEGLWayland(d, info("surface"), fixedSize{0, -3}, DefaultOptions())
	_, err := g.NativeWindow(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"window 1x1"}, d.calls)
}

func TestNativeWindowWaitsForRendererSurface(t *testing.T) {
	d := &fakeDriver{}
	p := renderer.NewPresenter(640, 480)
	g := NewEGLWayland(d, info(nil), fixedSize{640, 480}, DefaultOptions())
	g.SetRenderer(p)

	done := make(chan error, 1)
	go func() {
		_, err := g.NativeWindow(0)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("NativeWindow returned before a surface was assigned")
	case <-time.After(20 * time.Millisecond):
	}

	p.ChangeSurface("late surface")
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("NativeWindow did not wake up")
	}
	assert.Equal(t, []any{"late surface"}, d.surfaces)
}

func TestNativeWindowWithoutSurfaceOrRenderer(t *testing.T) {
	g := NewEGLWayland(&fakeDriver{}, info(nil), nil, DefaultOptions())
	_, err := g.NativeWindow(0)
	assert.ErrorIs(t, err, ErrNoSurface)

	p := renderer.NewPresenter(1, 1)
	p.Close()
	g.SetRenderer(p)
	_, err = g.NativeWindow(0)
	assert.ErrorIs(t, err, ErrNoSurface)
}

func TestUpdateResizesToRenderer(t *testing.T) {
	d := &fakeDriver{}
	p := renderer.NewPresenter(640, 480)
	g := NewEGLWayland(d, info("surface"), fixedSize{640, 480}, DefaultOptions())
	g.SetRenderer(p)
	_, err := g.NativeWindow(0)
	require.NoError(t, err)

	p.ResizeSurface(1920, 1080)
	require.True(t, p.CheckForSurfaceResize())
	g.Update()

	win := d.windows[0]
	assert.Equal(t, [4]int{1920, 1080, 0, 0}, [4]int{win.w, win.h, win.dx, win.dy})
	w, h := g.BackbufferSize()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
}

func TestInitializeAndCloseOrder(t *testing.T) {
	d := &fakeDriver{exts: []string{egl.ExtPlatformWaylandKHR}}
	g := NewEGLWayland(d, info("surface"), fixedSize{800, 600}, DefaultOptions())

	require.NoError(t, g.Initialize())
	require.NoError(t, g.SwapBuffers())
	require.NoError(t, g.Close())

	assert.Equal(t, []string{
		"platform display", "initialize", "config", "context",
		"window 800x600", "window surface", "make current", "swap",
		"destroy surface", "destroy context", "destroy window", "terminate",
	}, d.calls)

	assert.ErrorIs(t, g.SwapBuffers(), ErrNoSurface)
	assert.NoError(t, g.Close())
}

func TestInitializeReportsForeignHandle(t *testing.T) {
	d := &fakeDriver{exts: []string{egl.ExtPlatformWaylandKHR}, platformErr: egl.ErrForeignHandle}
	g := NewEGLWayland(d, info("surface"), nil, DefaultOptions())
	err := g.Initialize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, egl.ErrForeignHandle))
}
