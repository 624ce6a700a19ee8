//go:build !(linux && cgo)

package xkb

import "golang.org/x/sys/unix"

// NewCompiler returns a compiler that rejects every keymap.
func NewCompiler() (Compiler, error) {
	return stubCompiler{}, nil
}

type stubCompiler struct{}

func (stubCompiler) Compile(_ uint32, fd int, _ uint32) (Keymap, error) {
	if fd >= 0 {
		unix.Close(fd)
	}
	return nil, ErrUnsupported
}

func (stubCompiler) Destroy() {}
