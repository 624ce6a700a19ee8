//go:build linux && cgo

package xkb

/*
#cgo LDFLAGS: -lxkbcommon

#include <stdlib.h>
#include <string.h>
#include <xkbcommon/xkbcommon.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

type compiler struct {
	ctx *C.struct_xkb_context
}

// NewCompiler creates a libxkbcommon context.
func NewCompiler() (Compiler, error) {
	ctx := C.xkb_context_new(C.XKB_CONTEXT_NO_FLAGS)
	if ctx == nil {
		return nil, errors.New("xkb: xkb_context_new failed")
	}
	return &compiler{ctx: ctx}, nil
}

func (c *compiler) Compile(format uint32, fd int, size uint32) (Keymap, error) {
	defer unix.Close(fd)
	if format != FormatXkbV1 {
		return nil, fmt.Errorf("%w: %d", ErrFormat, format)
	}
	if size == 0 {
		return nil, errors.New("xkb: empty keymap")
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("xkb: mmap keymap: %w", err)
	}
	defer unix.Munmap(data)

	// The buffer is NUL terminated; compile up to the terminator.
	buf := (*C.char)(unsafe.Pointer(&data[0]))
	n := C.strnlen(buf, C.size_t(size))
	km := C.xkb_keymap_new_from_buffer(c.ctx, buf, n, C.XKB_KEYMAP_FORMAT_TEXT_V1, C.XKB_KEYMAP_COMPILE_NO_FLAGS)
	if km == nil {
		return nil, errors.New("xkb: xkb_keymap_new_from_buffer failed")
	}
	st := C.xkb_state_new(km)
	if st == nil {
		C.xkb_keymap_unref(km)
		return nil, errors.New("xkb: xkb_state_new failed")
	}
	return &keymap{km: km, state: st}, nil
}

func (c *compiler) Destroy() {
	if c.ctx != nil {
		C.xkb_context_unref(c.ctx)
		c.ctx = nil
	}
}

type keymap struct {
	km    *C.struct_xkb_keymap
	state *C.struct_xkb_state
}

func (k *keymap) MinKeycode() uint32 { return uint32(C.xkb_keymap_min_keycode(k.km)) }
func (k *keymap) MaxKeycode() uint32 { return uint32(C.xkb_keymap_max_keycode(k.km)) }

func (k *keymap) Keysym(keycode uint32) uint32 {
	var syms *C.xkb_keysym_t
	if C.xkb_state_key_get_syms(k.state, C.xkb_keycode_t(keycode), &syms) <= 0 {
		return KeyNoSymbol
	}
	return uint32(*syms)
}

func (k *keymap) KeyName(keycode uint32) string {
	sym := NormalizeKeysym(k.Keysym(keycode))
	if sym == KeyNoSymbol {
		return ""
	}
	var name [64]C.char
	n := C.xkb_keysym_get_name(C.xkb_keysym_t(sym), &name[0], C.size_t(len(name)))
	if n <= 0 || int(n) >= len(name) {
		return ""
	}
	return C.GoStringN(&name[0], n)
}

func (k *keymap) UpdateMask(depressed, latched, locked, group uint32) {
	C.xkb_state_update_mask(k.state,
		C.xkb_mod_mask_t(depressed), C.xkb_mod_mask_t(latched), C.xkb_mod_mask_t(locked),
		C.xkb_layout_index_t(group), C.xkb_layout_index_t(group), C.xkb_layout_index_t(group))
}

func (k *keymap) Destroy() {
	if k.state != nil {
		C.xkb_state_unref(k.state)
		k.state = nil
	}
	if k.km != nil {
		C.xkb_keymap_unref(k.km)
		k.km = nil
	}
}
