//go:build !(linux && cgo)

package egl

// NewDriver fails: EGL needs cgo.
func NewDriver() (Driver, error) {
	return nil, ErrUnsupported
}
