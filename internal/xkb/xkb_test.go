package xkb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKeysym(t *testing.T) {
	tests := []struct {
		name string
		in   uint32
		want uint32
	}{
		{"lower a", 'a', 'A'},
		{"lower z", 'z', 'Z'},
		{"upper stays", 'Q', 'Q'},
		{"digit", '7', '7'},
		{"escape", KeyEscape, KeyEscape},
		{"unicode max", 0x0110ffff, 0x0110ffff},
		{"vendor range dropped", 0x1008ff13, KeyNoSymbol},
		{"no symbol", KeyNoSymbol, KeyNoSymbol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKeysym(tt.in))
		})
	}
}

func TestStaticKeymapNames(t *testing.T) {
	k := NewUSKeymap()

	assert.Equal(t, uint32(1+KeycodeOffset), k.MinKeycode())
	assert.Equal(t, uint32(108+KeycodeOffset), k.MaxKeycode())

	assert.Equal(t, "A", k.KeyName(30+KeycodeOffset))
	assert.Equal(t, "Escape", k.KeyName(1+KeycodeOffset))
	assert.Equal(t, "space", k.KeyName(57+KeycodeOffset))
	assert.Empty(t, k.KeyName(4+KeycodeOffset), "unmapped keycode has no name")
}

func TestStaticCompiler(t *testing.T) {
	c := &StaticCompiler{}

	_, err := c.Compile(0, -1, 0)
	assert.ErrorIs(t, err, ErrFormat)

	km, err := c.Compile(FormatXkbV1, -1, 0)
	require.NoError(t, err)
	require.Len(t, c.Compiled, 1)

	km.UpdateMask(1, 2, 3, 4)
	assert.Equal(t, [4]uint32{1, 2, 3, 4}, c.Compiled[0].Mask)

	km.Destroy()
	c.Destroy()
	assert.True(t, c.Compiled[0].Destroyed)
	assert.True(t, c.Destroyed)
}
