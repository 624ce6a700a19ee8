package egl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigAttribsList(t *testing.T) {
	l := DefaultConfigAttribs().List()
	assert.Equal(t, []int32{
		attribRenderableType, bitOpenGL,
		attribSurfaceType, bitWindow,
		attribRedSize, 8,
		attribGreenSize, 8,
		attribBlueSize, 8,
		attribNone,
	}, l)
	assert.Equal(t, uint32(apiOpenGL), DefaultConfigAttribs().API())

	gles := ConfigAttribs{Red: 8, Green: 8, Blue: 8, Alpha: 8, Depth: 24, GLES: true}.List()
	assert.Equal(t, int32(bitOpenGLES2|bitOpenGLES3), gles[1])
	assert.Contains(t, gles, int32(attribDepthSize))
	assert.Contains(t, gles, int32(attribAlphaSize))
	assert.Equal(t, int32(attribNone), gles[len(gles)-1])
}

func TestContextAttribsList(t *testing.T) {
	assert.Equal(t,
		[]int32{attribContextMajor, 4, attribContextMinor, 5, attribContextProfileMask, bitCoreProfile, attribNone},
		ContextAttribs{Major: 4, Minor: 5}.List())
	assert.Equal(t,
		[]int32{attribContextMajor, 3, attribContextMinor, 0, attribNone},
		ContextAttribs{Major: 3, GLES: true}.List())
}

type extDriver struct {
	Driver
	exts []string
}

func (d extDriver) ClientExtensions() []string { return d.exts }

func TestHasPlatformWayland(t *testing.T) {
	assert.True(t, HasPlatformWayland(extDriver{exts: []string{"EGL_EXT_client_extensions", ExtPlatformWaylandEXT}}))
	assert.True(t, HasPlatformWayland(extDriver{exts: []string{ExtPlatformWaylandKHR}}))
	assert.False(t, HasPlatformWayland(extDriver{exts: []string{"EGL_KHR_platform_x11"}}))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "egl: eglInitialize failed (0x3001)", (&Error{Op: "eglInitialize", Code: 0x3001}).Error())
}
