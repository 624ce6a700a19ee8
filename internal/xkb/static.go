package xkb

import (
	"fmt"
	"sort"
)

// StaticKeymap is a fixed keycode to keysym table. It stands in for a
// compositor keymap in headless runs and tests.
type StaticKeymap struct {
	Syms  map[uint32]uint32 // xkb keycode -> keysym
	Names map[uint32]string // keysym -> name

	Mask      [4]uint32 // last UpdateMask arguments
	Destroyed bool
}

// usKeys is a small slice of a US layout: evdev code, keysym, name.
var usKeys = []struct {
	code uint32
	sym  uint32
	name string
}{
	{1, 0xff1b, "Escape"},
	{2, '1', "1"},
	{3, '2', "2"},
	{15, 0xff09, "Tab"},
	{16, 'q', "q"},
	{17, 'w', "w"},
	{18, 'e', "e"},
	{28, 0xff0d, "Return"},
	{30, 'a', "a"},
	{31, 's', "s"},
	{32, 'd', "d"},
	{42, 0xffe1, "Shift_L"},
	{57, ' ', "space"},
	{103, 0xff52, "Up"},
	{105, 0xff51, "Left"},
	{106, 0xff53, "Right"},
	{108, 0xff54, "Down"},
}

// NewUSKeymap returns a StaticKeymap with a handful of US layout keys, the
// way a compositor would name them.
func NewUSKeymap() *StaticKeymap {
	k := &StaticKeymap{Syms: map[uint32]uint32{}, Names: map[uint32]string{}}
	for _, key := range usKeys {
		k.Syms[key.code+KeycodeOffset] = key.sym
		k.Names[key.sym] = key.name
	}
	// Upper case names for the folded latin letters.
	for sym := uint32('A'); sym <= 'Z'; sym++ {
		k.Names[sym] = string(rune(sym))
	}
	return k
}

func (k *StaticKeymap) keycodes() []uint32 {
	codes := make([]uint32, 0, len(k.Syms))
	for c := range k.Syms {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

func (k *StaticKeymap) MinKeycode() uint32 {
	if codes := k.keycodes(); len(codes) > 0 {
		return codes[0]
	}
	return KeycodeOffset
}

func (k *StaticKeymap) MaxKeycode() uint32 {
	if codes := k.keycodes(); len(codes) > 0 {
		return codes[len(codes)-1]
	}
	return KeycodeOffset
}

func (k *StaticKeymap) Keysym(keycode uint32) uint32 {
	return k.Syms[keycode]
}

func (k *StaticKeymap) KeyName(keycode uint32) string {
	sym := NormalizeKeysym(k.Keysym(keycode))
	if sym == KeyNoSymbol {
		return ""
	}
	return k.Names[sym]
}

func (k *StaticKeymap) UpdateMask(depressed, latched, locked, group uint32) {
	k.Mask = [4]uint32{depressed, latched, locked, group}
}

func (k *StaticKeymap) Destroy() { k.Destroyed = true }

// StaticCompiler hands out keymaps from New regardless of the fd it is
// given. Every compiled keymap is kept in Compiled.
type StaticCompiler struct {
	New       func() *StaticKeymap
	Err       error
	Compiled  []*StaticKeymap
	Destroyed bool
}

func (c *StaticCompiler) Compile(format uint32, _ int, _ uint32) (Keymap, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if format != FormatXkbV1 {
		return nil, fmt.Errorf("%w: %d", ErrFormat, format)
	}
	newKeymap := c.New
	if newKeymap == nil {
		newKeymap = NewUSKeymap
	}
	k := newKeymap()
	c.Compiled = append(c.Compiled, k)
	return k, nil
}

func (c *StaticCompiler) Destroy() { c.Destroyed = true }
