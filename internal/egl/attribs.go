package egl

const (
	attribAlphaSize          = 0x3021
	attribBlueSize           = 0x3022
	attribGreenSize          = 0x3023
	attribRedSize            = 0x3024
	attribDepthSize          = 0x3025
	attribStencilSize        = 0x3026
	attribSurfaceType        = 0x3033
	attribNone               = 0x3038
	attribRenderableType     = 0x3040
	attribContextMajor       = 0x3098
	attribContextMinor       = 0x30FB
	attribContextProfileMask = 0x30FD

	bitWindow      = 0x0004
	bitOpenGLES2   = 0x0004
	bitOpenGLES3   = 0x0040
	bitOpenGL      = 0x0008
	bitCoreProfile = 0x0001
	apiOpenGLES    = 0x30A0
	apiOpenGL      = 0x30A2
)

// ConfigAttribs selects a framebuffer config.
type ConfigAttribs struct {
	Red, Green, Blue, Alpha int
	Depth, Stencil          int
	GLES                    bool
}

// DefaultConfigAttribs asks for an RGB888 desktop GL window config. The
// emulator renders into its own framebuffers, so no depth buffer.
func DefaultConfigAttribs() ConfigAttribs {
	return ConfigAttribs{Red: 8, Green: 8, Blue: 8}
}

// List is the EGL_NONE terminated attribute list for eglChooseConfig.
func (a ConfigAttribs) List() []int32 {
	renderable := int32(bitOpenGL)
	if a.GLES {
		renderable = bitOpenGLES2 | bitOpenGLES3
	}
	l := []int32{
		attribRenderableType, renderable,
		attribSurfaceType, bitWindow,
		attribRedSize, int32(a.Red),
		attribGreenSize, int32(a.Green),
		attribBlueSize, int32(a.Blue),
	}
	if a.Alpha > 0 {
		l = append(l, attribAlphaSize, int32(a.Alpha))
	}
	if a.Depth > 0 {
		l = append(l, attribDepthSize, int32(a.Depth))
	}
	if a.Stencil > 0 {
		l = append(l, attribStencilSize, int32(a.Stencil))
	}
	return append(l, attribNone)
}

// API is the eglBindAPI value for the config.
func (a ConfigAttribs) API() uint32 {
	if a.GLES {
		return apiOpenGLES
	}
	return apiOpenGL
}

// ContextAttribs selects the context version.
type ContextAttribs struct {
	Major, Minor int
	GLES         bool
}

// List is the EGL_NONE terminated attribute list for eglCreateContext.
func (a ContextAttribs) List() []int32 {
	l := []int32{attribContextMajor, int32(a.Major), attribContextMinor, int32(a.Minor)}
	if !a.GLES && a.Major >= 3 {
		l = append(l, attribContextProfileMask, bitCoreProfile)
	}
	return append(l, attribNone)
}
