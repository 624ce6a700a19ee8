package renderer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResizeIsAppliedOnCheck(t *testing.T) {
	p := NewPresenter(640, 480)

	p.ResizeSurface(1280, 720)
	assert.Equal(t, 640, p.NewWidth(), "not applied before the render loop checks")

	assert.True(t, p.CheckForSurfaceResize())
	assert.Equal(t, 1280, p.NewWidth())
	assert.Equal(t, 720, p.NewHeight())

	assert.False(t, p.CheckForSurfaceResize())
	assert.Equal(t, uint64(1), p.Resizes())
}

func TestResizeToSameSizeIsNotAChange(t *testing.T) {
	p := NewPresenter(640, 480)
	p.ResizeSurface(640, 480)
	assert.False(t, p.CheckForSurfaceResize())
	assert.Zero(t, p.Resizes())
}

func TestWaitForNewSurfaceUnblocks(t *testing.T) {
	p := NewPresenter(1, 1)
	handle := new(int)

	got := make(chan any, 1)
	go func() { got <- p.WaitForNewSurface() }()

	select {
	case <-got:
		t.Fatal("returned before a surface was set")
	case <-time.After(20 * time.Millisecond):
	}

	p.ChangeSurface(handle)
	select {
	case h := <-got:
		assert.Same(t, handle, h)
	case <-time.After(time.Second):
		t.Fatal("WaitForNewSurface did not return")
	}
	assert.Same(t, handle, p.Surface())
}

func TestCloseReleasesWaiters(t *testing.T) {
	p := NewPresenter(1, 1)
	got := make(chan any, 1)
	go func() { got <- p.WaitForNewSurface() }()

	p.Close()
	select {
	case h := <-got:
		assert.Nil(t, h)
	case <-time.After(time.Second):
		t.Fatal("Close did not release waiter")
	}
}

func TestWaitForSurfaceGivesUp(t *testing.T) {
	p := NewPresenter(1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	h, err := p.waitForSurface(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, h)

	p.ChangeSurface("surface")
	h, err = p.waitForSurface(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "surface", h)
}
