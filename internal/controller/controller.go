// Package controller is the device abstraction the emulator polls for
// input. Backends populate it with devices; each device exposes named
// inputs with a float state.
package controller

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/bnema/emuwl/internal/geometry"
	"github.com/bnema/emuwl/internal/logger"
)

// Input is one control on a device.
type Input interface {
	Name() string
	// State is the control's value as of the last UpdateInput, usually
	// in [0, 1].
	State() float64
	// IsDetectable reports whether the control may be picked up when the
	// user binds inputs by pressing them.
	IsDetectable() bool
}

// Device is a set of inputs updated together.
type Device interface {
	Name() string
	Source() string
	// IsValid turns false when the device must be rebuilt. It never turns
	// true again.
	IsValid() bool
	UpdateInput() error
	Inputs() []Input
}

// Backend discovers devices of one kind.
type Backend interface {
	Name() string
	// PopulateDevices adds every device the backend currently sees.
	PopulateDevices(ci *Interface) error
	Shutdown() error
}

type entry struct {
	dev     Device
	backend Backend
	id      int
}

// Interface owns the device list.
type Interface struct {
	log *log.Logger

	populateMu sync.Mutex
	populating Backend // guarded by populateMu
	backends   []Backend

	devicesMu sync.RWMutex
	devices   []entry

	windowSize     geometry.AtomicDimension2D
	width, height  atomic.Int32
	scaleX, scaleY atomic.Float64
	updates        atomic.Uint64
}

// New returns an empty Interface with an input scale of 1.
func New() *Interface {
	ci := &Interface{log: logger.WithPrefix("controller")}
	ci.scaleX.Store(1)
	ci.scaleY.Store(1)
	return ci
}

// RegisterBackend adds a backend and populates its devices.
func (ci *Interface) RegisterBackend(b Backend) error {
	ci.populateMu.Lock()
	ci.backends = append(ci.backends, b)
	ci.populateMu.Unlock()
	return ci.populate(b)
}

func (ci *Interface) populate(b Backend) error {
	ci.populateMu.Lock()
	defer ci.populateMu.Unlock()
	ci.populating = b
	defer func() { ci.populating = nil }()

	if err := b.PopulateDevices(ci); err != nil {
		return fmt.Errorf("populate %s devices: %w", b.Name(), err)
	}
	return nil
}

// RefreshDevices drops every device and asks all backends again.
func (ci *Interface) RefreshDevices() error {
	ci.populateMu.Lock()
	backends := append([]Backend(nil), ci.backends...)
	ci.populateMu.Unlock()

	var err error
	for _, b := range backends {
		ci.removeDevices(b)
		err = multierr.Append(err, ci.populate(b))
	}
	return err
}

// AddDevice registers a device. It must be called from PopulateDevices.
func (ci *Interface) AddDevice(d Device) {
	ci.devicesMu.Lock()
	defer ci.devicesMu.Unlock()

	// Devices with the same name and source get increasing ids.
	id := 0
	for _, e := range ci.devices {
		if e.dev.Name() == d.Name() && e.dev.Source() == d.Source() && e.id >= id {
			id = e.id + 1
		}
	}
	ci.devices = append(ci.devices, entry{dev: d, backend: ci.populating, id: id})
	ci.log.Debugf("Added device %s/%d/%s with %d inputs", d.Source(), id, d.Name(), len(d.Inputs()))
}

// DeviceInfo identifies a registered device.
type DeviceInfo struct {
	Device Device
	ID     int
}

// QualifiedName is "Source/ID/Name".
func (i DeviceInfo) QualifiedName() string {
	return fmt.Sprintf("%s/%d/%s", i.Device.Source(), i.ID, i.Device.Name())
}

// Devices returns a snapshot of the device list.
func (ci *Interface) Devices() []DeviceInfo {
	ci.devicesMu.RLock()
	defer ci.devicesMu.RUnlock()
	out := make([]DeviceInfo, len(ci.devices))
	for i, e := range ci.devices {
		out[i] = DeviceInfo{Device: e.dev, ID: e.id}
	}
	return out
}

func (ci *Interface) removeDevices(b Backend) {
	ci.devicesMu.Lock()
	var gone []Device
	kept := ci.devices[:0]
	for _, e := range ci.devices {
		if e.backend == b {
			gone = append(gone, e.dev)
			continue
		}
		kept = append(kept, e)
	}
	ci.devices = kept
	ci.devicesMu.Unlock()

	for _, d := range gone {
		closeDevice(d)
	}
}

func closeDevice(d Device) {
	if c, ok := d.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Debugf("Closing device %s: %v", d.Name(), err)
		}
	}
}

// UpdateInput polls every device once. Backends with an invalid device are
// repopulated.
func (ci *Interface) UpdateInput() {
	if changed, w, h := ci.windowSize.Fetch(); changed {
		ci.width.Store(int32(w))
		ci.height.Store(int32(h))
	}

	ci.devicesMu.RLock()
	devs := append([]entry(nil), ci.devices...)
	ci.devicesMu.RUnlock()

	var stale []Backend
	for _, e := range devs {
		if err := e.dev.UpdateInput(); err != nil {
			ci.log.Debugf("Updating %s: %v", e.dev.Name(), err)
		}
		if !e.dev.IsValid() && !contains(stale, e.backend) {
			stale = append(stale, e.backend)
		}
	}

	for _, b := range stale {
		if b == nil {
			continue
		}
		ci.log.Infof("Rebuilding %s devices", b.Name())
		ci.removeDevices(b)
		if err := ci.populate(b); err != nil {
			ci.log.Warn("Repopulating devices failed", "backend", b.Name(), "err", err)
		}
	}
	ci.updates.Inc()
}

func contains(bs []Backend, b Backend) bool {
	for _, x := range bs {
		if x == b {
			return true
		}
	}
	return false
}

// SetWindowSize records the render window size. Safe from any goroutine;
// the poll loop picks it up on its next UpdateInput.
func (ci *Interface) SetWindowSize(width, height int) {
	ci.windowSize.Store(width, height)
}

// WindowSize is the render window size as of the last UpdateInput.
func (ci *Interface) WindowSize() (width, height int) {
	return int(ci.width.Load()), int(ci.height.Load())
}

// SetWindowInputScale sets the factor cursor positions are multiplied by.
func (ci *Interface) SetWindowInputScale(x, y float64) {
	ci.scaleX.Store(x)
	ci.scaleY.Store(y)
}

// WindowInputScale returns the cursor scale factors.
func (ci *Interface) WindowInputScale() (x, y float64) {
	return ci.scaleX.Load(), ci.scaleY.Load()
}

// Run calls UpdateInput every interval until ctx is done.
func (ci *Interface) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ci.UpdateInput()
		}
	}
}

// Shutdown drops every device and shuts the backends down in reverse
// registration order.
func (ci *Interface) Shutdown() error {
	ci.populateMu.Lock()
	backends := ci.backends
	ci.backends = nil
	ci.populateMu.Unlock()

	ci.devicesMu.Lock()
	devs := ci.devices
	ci.devices = nil
	ci.devicesMu.Unlock()
	for _, e := range devs {
		closeDevice(e.dev)
	}

	var err error
	for i := len(backends) - 1; i >= 0; i-- {
		if berr := backends[i].Shutdown(); berr != nil {
			err = multierr.Append(err, fmt.Errorf("shutdown %s: %w", backends[i].Name(), berr))
		}
	}
	return err
}
