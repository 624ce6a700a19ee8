package wayland

import (
	"fmt"
	"math"

	"github.com/bnema/emuwl/internal/controller"
)

// Key is a keyboard key, named after its keysym in the seat's keymap.
type Key struct {
	name    string
	keycode uint32
	state   *State
}

func (k *Key) Name() string       { return k.name }
func (k *Key) IsDetectable() bool { return true }

func (k *Key) State() float64 {
	if k.state.key(k.keycode) {
		return 1
	}
	return 0
}

// Button is a mouse button, counted from the left button as "Click 1".
type Button struct {
	index uint32
	state *State
}

func (b *Button) Name() string       { return fmt.Sprintf("Click %d", b.index+1) }
func (b *Button) IsDetectable() bool { return true }

func (b *Button) State() float64 {
	if b.state.buttons.Load()&(1<<b.index) != 0 {
		return 1
	}
	return 0
}

func halfAxisName(prefix string, y, positive bool) string {
	axis, sign := "X", "-"
	if y {
		axis = "Y"
	}
	if positive {
		sign = "+"
	}
	return prefix + " " + axis + sign
}

// halfAxis maps one direction of v onto 0..1 after dividing by scale.
func halfAxis(v, scale float64, positive bool) float64 {
	if !positive {
		scale = -scale
	}
	return math.Max(0, v/scale)
}

// Cursor is one half of the pointer position in the render window.
type Cursor struct {
	y, positive bool
	state       *State
}

func (c *Cursor) Name() string       { return halfAxisName("Cursor", c.y, c.positive) }
func (c *Cursor) IsDetectable() bool { return false }

func (c *Cursor) State() float64 {
	v := c.state.cursorX.Load()
	if c.y {
		v = c.state.cursorY.Load()
	}
	return halfAxis(v, 1, c.positive)
}

// Axis is one half of the smoothed scroll wheel.
type Axis struct {
	y, positive bool
	state       *State
}

func (a *Axis) Name() string       { return halfAxisName("Axis", a.y, a.positive) }
func (a *Axis) IsDetectable() bool { return false }

func (a *Axis) State() float64 {
	v := a.state.axisX.Load()
	if a.y {
		v = a.state.axisY.Load()
	}
	return halfAxis(v, axisSensitivity, a.positive)
}

var (
	_ controller.Input = (*Key)(nil)
	_ controller.Input = (*Button)(nil)
	_ controller.Input = (*Cursor)(nil)
	_ controller.Input = (*Axis)(nil)
)
