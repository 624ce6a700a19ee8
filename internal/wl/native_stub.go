//go:build !(linux && cgo)

package wl

// Connect falls back to the Go transport without cgo.
func Connect(name string) (Display, error) {
	return ConnectGo(name)
}
