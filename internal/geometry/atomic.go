// Package geometry holds the lock-free size mailbox shared between the
// window event loop and the render loop.
package geometry

import (
	"go.uber.org/atomic"
)

// AtomicDimension2D hands a width/height pair from one producer goroutine to
// one consumer goroutine without locking. Both fields travel in a single
// 64-bit word so a reader can never see half of one store and half of
// another.
//
// Storing (-1, -1) packs to the all-ones sentinel and reads back as "no change".
type AtomicDimension2D struct {
	// Packed pair stored inverted, so the all-ones "no new value" word is 0
	// and the zero value starts empty.
	word atomic.Uint64

	// owned by the consumer
	width, height int
}

// NewAtomicDimension2D returns an empty exchange whose first Fetch reports
// the given pair as unchanged.
func NewAtomicDimension2D(width, height int) *AtomicDimension2D {
	return &AtomicDimension2D{width: width, height: height}
}

func pack(width, height int) uint64 {
	return uint64(uint32(int32(width))) | uint64(uint32(int32(height)))<<32
}

func unpack(v uint64) (int, int) {
	return int(int32(uint32(v))), int(int32(uint32(v >> 32)))
}

// Store publishes a new pair. Last store wins.
func (d *AtomicDimension2D) Store(width, height int) {
	d.word.Store(^pack(width, height))
}

// Fetch claims the last stored pair and resets the exchange. If nothing was
// stored since the previous Fetch it returns the previously fetched pair with
// changed set to false. Fetch must only be called from one goroutine.
func (d *AtomicDimension2D) Fetch() (changed bool, width, height int) {
	v := d.word.Swap(0)
	if v == 0 {
		return false, d.width, d.height
	}
	d.width, d.height = unpack(^v)
	return true, d.width, d.height
}
