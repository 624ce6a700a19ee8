package wsi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoIsCopiedByValue(t *testing.T) {
	surface := new(int)
	a := Info{Type: Wayland, RenderSurface: surface, Width: 640, Height: 480, RenderSurfaceScale: 1}
	b := a
	b.Width = 1920

	assert.Equal(t, 640, a.Width)
	assert.Same(t, a.RenderSurface, b.RenderSurface)
	assert.True(t, b.HasSurface())
	assert.False(t, Info{}.HasSurface())
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "wayland", Wayland.String())
	assert.Equal(t, "headless", Headless.String())
	assert.Equal(t, "Type(7)", Type(7).String())
	assert.Equal(t, "wayland 640x480@2", Info{Type: Wayland, Width: 640, Height: 480, RenderSurfaceScale: 2}.String())
}
