package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/emuwl/internal/config"
	"github.com/bnema/emuwl/internal/controller"
	"github.com/bnema/emuwl/internal/egl"
	"github.com/bnema/emuwl/internal/glinterface"
	wlinput "github.com/bnema/emuwl/internal/input/wayland"
	"github.com/bnema/emuwl/internal/logger"
	"github.com/bnema/emuwl/internal/platform"
	"github.com/bnema/emuwl/internal/renderer"
	"github.com/bnema/emuwl/internal/wl"
	"github.com/bnema/emuwl/internal/xkb"
)

// Swapped out by tests.
var (
	connect      = wl.Connect
	connectQuery = wl.ConnectGo
	newCompiler  = xkb.NewCompiler
	newEGLDriver = egl.NewDriver
)

var (
	headless bool

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Open the render window and poll input until it is closed",
		Long: `Open the render window on the Wayland compositor and keep it alive until
the compositor closes it, Escape is pressed (when window.escape_closes is
set) or the process is interrupted. Window resizes are forwarded to the
render context and the input devices.`,
		RunE: runWindow,
	}
)

func init() {
	runCmd.Flags().BoolVar(&headless, "headless", false, "run without a window")
}

func runWindow(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newSession(config.Get(), headless).run(ctx)
}

// session wires the window, the presenter, the GL context and the input
// devices together for one run.
type session struct {
	cfg *config.Config
	log *log.Logger

	plat      platform.Platform
	window    *platform.Wayland // nil when headless
	presenter *renderer.Presenter
	ci        *controller.Interface

	// only touched by reload
	title    string
	logLevel string
}

func newSession(cfg *config.Config, headless bool) *session {
	s := &session{
		cfg:      cfg,
		log:      logger.WithPrefix("run"),
		ci:       controller.New(),
		title:    cfg.Window.Title,
		logLevel: cfg.Logging.LogLevel,
	}

	opts := platform.OptionsFromConfig(cfg)
	opts.Display = displayName
	if headless {
		s.plat = platform.NewHeadless(opts)
		return s
	}
	opts.Connect = connect
	if c, err := newCompiler(); err == nil {
		opts.Compiler = c
	}
	s.window = platform.NewWayland(opts)
	s.plat = s.window
	return s
}

func (s *session) run(ctx context.Context) error {
	if err := s.plat.Init(); err != nil {
		if cerr := s.plat.Close(); cerr != nil {
			s.log.Debug("Closing half-open window", "err", cerr)
		}
		return fmt.Errorf("open window: %w", err)
	}
	defer func() {
		if err := s.plat.Close(); err != nil {
			s.log.Warn("Closing window", "err", err)
		}
	}()

	info := s.plat.WindowSystemInfo()
	s.log.Info("Presenting", "wsi", info)

	s.presenter = renderer.NewPresenter(info.Width, info.Height)
	if info.HasSurface() {
		s.presenter.ChangeSurface(info.RenderSurface)
	}
	if s.window != nil {
		s.window.AttachRenderer(s.presenter)
		defer s.window.DetachRenderer()
	}

	s.ci.SetWindowSize(info.Width, info.Height)
	s.ci.SetWindowInputScale(s.cfg.Input.ScaleX, s.cfg.Input.ScaleY)
	defer func() {
		if err := s.ci.Shutdown(); err != nil {
			s.log.Warn("Shutting down input", "err", err)
		}
	}()
	s.startInput()

	if config.Watch(s.reload) {
		s.log.Debug("Watching config", "path", config.GetConfigPath())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		defer s.presenter.Close()
		return s.plat.MainLoop(gctx)
	})
	if s.cfg.Input.Enabled {
		interval := time.Duration(s.cfg.Input.PollIntervalMs) * time.Millisecond
		g.Go(func() error { return s.ci.Run(gctx, interval) })
	}
	g.Go(func() error { return s.renderLoop(gctx) })

	return g.Wait()
}

func (s *session) startInput() {
	if !s.cfg.Input.Enabled || s.window == nil {
		return
	}
	b := wlinput.New(wlinput.Options{Surface: s.window.SurfaceID(), NewCompiler: newCompiler})
	if err := b.Init(s.window.Connection()); err != nil {
		s.log.Warn("Wayland input unavailable", "err", err)
		return
	}
	if err := s.ci.RegisterBackend(b); err != nil {
		s.log.Warn("Adding Wayland seats", "err", err)
	}
	for _, d := range s.ci.Devices() {
		s.log.Info("Input device", "name", d.QualifiedName(), "inputs", len(d.Device.Inputs()))
	}
}

// reload applies a changed config file. Window size and render settings
// only take effect on the next run.
func (s *session) reload(c *config.Config) {
	s.ci.SetWindowInputScale(c.Input.ScaleX, c.Input.ScaleY)

	if c.Logging.LogLevel != s.logLevel {
		s.logLevel = c.Logging.LogLevel
		logger.SetLevel(s.logLevel)
	}

	if c.Window.Title != s.title {
		title := c.Window.Title
		s.title = title
		s.plat.QueueJob(func() {
			if err := s.plat.SetTitle(title); err != nil {
				s.log.Warn("Setting title", "err", err)
			}
		})
	}
}

// renderLoop owns the GL context, so it stays on one OS thread.
func (s *session) renderLoop(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var gl *glinterface.EGLWayland
	if s.cfg.Render.GL && s.window != nil {
		var err error
		if gl, err = s.openGL(); err != nil {
			s.log.Warn("No GL context, presenting nothing", "err", err)
			gl = nil
		} else {
			defer func() {
				if err := gl.Close(); err != nil {
					s.log.Warn("Destroying GL context", "err", err)
				}
			}()
		}
	}

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.Render.RefreshRate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if s.presenter.CheckForSurfaceResize() {
			w, h := s.presenter.NewWidth(), s.presenter.NewHeight()
			s.ci.SetWindowSize(w, h)
			if gl != nil {
				gl.Update()
				bw, bh := gl.BackbufferSize()
				s.log.Debug("Backbuffer resized", "width", bw, "height", bh)
			}
			s.log.Debug("Surface resized", "width", w, "height", h, "resizes", s.presenter.Resizes())
		}
		if gl != nil {
			if err := gl.SwapBuffers(); err != nil {
				return fmt.Errorf("present: %w", err)
			}
		}
	}
}

func (s *session) openGL() (*glinterface.EGLWayland, error) {
	d, err := newEGLDriver()
	if err != nil {
		return nil, err
	}
	opts := glinterface.DefaultOptions()
	opts.PreferPlatformDisplay = s.cfg.Render.PreferPlatformDisplay

	gl := glinterface.NewEGLWayland(d, s.plat.WindowSystemInfo(), s.window, opts)
	gl.SetRenderer(s.presenter)
	if err := gl.Initialize(); err != nil {
		if cerr := gl.Close(); cerr != nil {
			s.log.Debug("Cleaning up GL context", "err", cerr)
		}
		return nil, err
	}
	return gl, nil
}
