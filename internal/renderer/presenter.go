// Package renderer is the host side of the contract between the window
// system glue and the graphics backend: it receives surface resizes from
// the event loop and hands them to the render loop.
package renderer

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/bnema/emuwl/internal/geometry"
)

// Presenter tracks the render surface and its size. ResizeSurface and
// ChangeSurface are called by the window event loop; CheckForSurfaceResize
// and the size getters by the render loop.
type Presenter struct {
	pending geometry.AtomicDimension2D

	width, height atomic.Int32
	resizes       atomic.Uint64

	mu      sync.Mutex
	cond    *sync.Cond
	surface any
	closed  bool
}

// NewPresenter returns a presenter with the given backbuffer size and no
// surface.
func NewPresenter(width, height int) *Presenter {
	p := &Presenter{}
	p.cond = sync.NewCond(&p.mu)
	p.width.Store(int32(width))
	p.height.Store(int32(height))
	return p
}

// ResizeSurface records a new client size. It never blocks.
func (p *Presenter) ResizeSurface(width, height int) {
	p.pending.Store(width, height)
}

// CheckForSurfaceResize applies the last ResizeSurface and reports whether
// the size changed. Render loop only.
func (p *Presenter) CheckForSurfaceResize() bool {
	changed, w, h := p.pending.Fetch()
	if !changed {
		return false
	}
	if int32(w) == p.width.Load() && int32(h) == p.height.Load() {
		return false
	}
	p.width.Store(int32(w))
	p.height.Store(int32(h))
	p.resizes.Inc()
	return true
}

// NewWidth is the latest known client width.
func (p *Presenter) NewWidth() int { return int(p.width.Load()) }

// NewHeight is the latest known client height.
func (p *Presenter) NewHeight() int { return int(p.height.Load()) }

// Resizes counts applied size changes.
func (p *Presenter) Resizes() uint64 { return p.resizes.Load() }

// ChangeSurface publishes a new render surface handle, or nil when the
// surface goes away, and wakes WaitForNewSurface.
func (p *Presenter) ChangeSurface(handle any) {
	p.mu.Lock()
	p.surface = handle
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Surface returns the current surface handle.
func (p *Presenter) Surface() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.surface
}

// WaitForNewSurface blocks until a surface is available and returns it.
// It returns nil once the presenter is closed.
func (p *Presenter) WaitForNewSurface() any {
	h, _ := p.waitForSurface(context.Background())
	return h
}

// waitForSurface gives up when ctx is done.
func (p *Presenter) waitForSurface(ctx context.Context) (any, error) {
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.surface == nil && !p.closed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.cond.Wait()
	}
	return p.surface, nil
}

// Close releases every waiter.
func (p *Presenter) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}
