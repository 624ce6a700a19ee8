package geometry

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreThenFetch(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"typical", 1280, 720},
		{"zero", 0, 0},
		{"negative width", -5, 10},
		{"max", math.MaxInt32, math.MaxInt32},
		{"min", math.MinInt32, math.MinInt32},
		{"mixed sign", math.MaxInt32, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d AtomicDimension2D
			d.Store(tt.w, tt.h)

			changed, w, h := d.Fetch()
			assert.True(t, changed)
			assert.Equal(t, tt.w, w)
			assert.Equal(t, tt.h, h)
		})
	}
}

func TestSecondFetchReturnsCachedPair(t *testing.T) {
	var d AtomicDimension2D
	d.Store(800, 600)

	changed, _, _ := d.Fetch()
	require.True(t, changed)

	changed, w, h := d.Fetch()
	assert.False(t, changed)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestFetchBeforeStore(t *testing.T) {
	d := NewAtomicDimension2D(640, 480)

	changed, w, h := d.Fetch()
	assert.False(t, changed)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}

func TestLastStoreWins(t *testing.T) {
	var d AtomicDimension2D
	d.Store(1, 2)
	d.Store(3, 4)

	changed, w, h := d.Fetch()
	assert.True(t, changed)
	assert.Equal(t, 3, w)
	assert.Equal(t, 4, h)

	changed, _, _ = d.Fetch()
	assert.False(t, changed)
}

func TestMinusOnePairReadsAsSentinel(t *testing.T) {
	var d AtomicDimension2D
	d.Store(10, 20)
	d.Fetch()

	d.Store(-1, -1)
	changed, w, h := d.Fetch()
	assert.False(t, changed)
	assert.Equal(t, 10, w)
	assert.Equal(t, 20, h)
}

// Every pair stored has width == -height, so a torn read would break the
// relation.
func TestConcurrentStoreFetchNeverTears(t *testing.T) {
	const stores = 20000

	var d AtomicDimension2D
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= stores; i++ {
			d.Store(i, -i)
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	last := 0
	for {
		select {
		case <-done:
			changed, w, h := d.Fetch()
			if changed {
				require.Equal(t, w, -h)
			}
			return
		default:
		}
		changed, w, h := d.Fetch()
		if !changed {
			continue
		}
		require.Equal(t, w, -h, "torn pair %d,%d", w, h)
		require.Greater(t, w, last, "stores arrive in order")
		last = w
	}
}
