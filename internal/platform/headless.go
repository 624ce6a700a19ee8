package platform

import (
	"context"

	"go.uber.org/atomic"

	"github.com/bnema/emuwl/internal/logger"
	"github.com/bnema/emuwl/internal/wsi"
)

// Headless runs the main loop without a window.
type Headless struct {
	opts    Options
	jobs    Jobs
	running atomic.Bool
	wake    chan struct{}
}

var _ Platform = (*Headless)(nil)

// NewHeadless returns a windowless platform reporting opts' size.
func NewHeadless(opts Options) *Headless {
	return &Headless{opts: opts, wake: make(chan struct{}, 1)}
}

func (h *Headless) Init() error {
	h.running.Store(true)
	logger.Info("Running headless")
	return nil
}

func (h *Headless) SetTitle(title string) error {
	h.opts.Title = title
	return nil
}

func (h *Headless) MainLoop(ctx context.Context) error {
	for h.IsRunning() {
		h.jobs.Run()
		select {
		case <-ctx.Done():
			h.running.Store(false)
		case <-h.wake:
		}
	}
	h.jobs.Run()
	return nil
}

func (h *Headless) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Headless) Stop() {
	h.running.Store(false)
	h.signal()
}

func (h *Headless) IsRunning() bool { return h.running.Load() }

func (h *Headless) QueueJob(fn func()) {
	h.jobs.Post(fn)
	h.signal()
}

func (h *Headless) WindowSystemInfo() wsi.Info {
	return wsi.Info{Type: wsi.Headless, Width: h.opts.Width, Height: h.opts.Height, RenderSurfaceScale: 1}
}

func (h *Headless) Close() error {
	h.running.Store(false)
	return nil
}
