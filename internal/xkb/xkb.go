// Package xkb compiles the keymaps Wayland compositors hand to clients and
// names the keys in them.
package xkb

import "errors"

var (
	// ErrUnsupported is returned when the binary was built without
	// libxkbcommon.
	ErrUnsupported = errors.New("xkb: built without libxkbcommon")
	// ErrFormat is returned for keymaps not in XKB text v1 format.
	ErrFormat = errors.New("xkb: unsupported keymap format")
)

// Keysyms used outside of naming.
const (
	KeyNoSymbol uint32 = 0
	KeyEscape   uint32 = 0xff1b

	// maxKeysym is the last keysym in the Unicode range; anything above is
	// an XF86 or vendor keysym nobody binds.
	maxKeysym uint32 = 0x0110ffff
)

// KeycodeOffset converts evdev key codes (as sent by wl_keyboard.key) to
// XKB keycodes.
const KeycodeOffset = 8

// FormatXkbV1 is the only keymap format Compile understands.
const FormatXkbV1 uint32 = 1

// Compiler turns keymap file descriptors into Keymaps.
type Compiler interface {
	// Compile maps fd, compiles the keymap and closes fd.
	Compile(format uint32, fd int, size uint32) (Keymap, error)
	Destroy()
}

// Keymap is a compiled keymap together with its modifier state.
type Keymap interface {
	MinKeycode() uint32
	MaxKeycode() uint32
	// Keysym returns the first keysym keycode produces in the current
	// state, or KeyNoSymbol.
	Keysym(keycode uint32) uint32
	// KeyName returns the name of keycode's keysym after
	// NormalizeKeysym, or "" when the key has no usable name.
	KeyName(keycode uint32) string
	UpdateMask(depressed, latched, locked, group uint32)
	Destroy()
}

// NormalizeKeysym folds lower case latin letters onto their upper case
// keysyms so "a" and "A" name the same key. It returns KeyNoSymbol for
// keysyms that should not be exposed.
func NormalizeKeysym(sym uint32) uint32 {
	if sym >= 'a' && sym <= 'z' {
		sym -= 'a' - 'A'
	}
	if sym > maxKeysym {
		return KeyNoSymbol
	}
	return sym
}
