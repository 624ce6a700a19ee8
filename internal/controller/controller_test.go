package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockInput struct {
	name  string
	state float64
}

func (m *mockInput) Name() string       { return m.name }
func (m *mockInput) State() float64     { return m.state }
func (m *mockInput) IsDetectable() bool { return true }

type mockDevice struct {
	name    string
	valid   bool
	updates int
	closed  bool
	inputs  []Input
}

func (m *mockDevice) Name() string       { return m.name }
func (m *mockDevice) Source() string     { return "Mock" }
func (m *mockDevice) IsValid() bool      { return m.valid }
func (m *mockDevice) UpdateInput() error { m.updates++; return nil }
func (m *mockDevice) Inputs() []Input    { return m.inputs }
func (m *mockDevice) Close() error       { m.closed = true; return nil }

type mockBackend struct {
	name      string
	names     []string
	populated int
	created   []*mockDevice
	shutdown  bool
	err       error
}

func (m *mockBackend) Name() string { return m.name }

func (m *mockBackend) PopulateDevices(ci *Interface) error {
	m.populated++
	for _, n := range m.names {
		d := &mockDevice{name: n, valid: true, inputs: []Input{&mockInput{name: "A"}}}
		m.created = append(m.created, d)
		ci.AddDevice(d)
	}
	return nil
}

func (m *mockBackend) Shutdown() error {
	m.shutdown = true
	return m.err
}

func TestAddDeviceAssignsIDs(t *testing.T) {
	ci := New()
	require.NoError(t, ci.RegisterBackend(&mockBackend{name: "mock", names: []string{"Seat", "Seat", "Pad"}}))

	devs := ci.Devices()
	require.Len(t, devs, 3)
	assert.Equal(t, "Mock/0/Seat", devs[0].QualifiedName())
	assert.Equal(t, "Mock/1/Seat", devs[1].QualifiedName())
	assert.Equal(t, "Mock/0/Pad", devs[2].QualifiedName())
}

func TestUpdateInputRebuildsInvalidBackend(t *testing.T) {
	ci := New()
	stale := &mockBackend{name: "stale", names: []string{"Seat"}}
	steady := &mockBackend{name: "steady", names: []string{"Pad"}}
	require.NoError(t, ci.RegisterBackend(stale))
	require.NoError(t, ci.RegisterBackend(steady))

	ci.UpdateInput()
	assert.Equal(t, 1, stale.populated)

	old := stale.created[0]
	old.valid = false
	ci.UpdateInput()

	assert.True(t, old.closed, "invalid device is dropped")
	assert.Equal(t, 2, stale.populated)
	assert.Equal(t, 1, steady.populated)
	assert.False(t, steady.created[0].closed)

	devs := ci.Devices()
	require.Len(t, devs, 2)
	for _, d := range devs {
		assert.True(t, d.Device.IsValid())
	}
	assert.Equal(t, uint64(2), ci.updates.Load())
}

func TestWindowSizeReachesPollerOnUpdate(t *testing.T) {
	ci := New()
	ci.SetWindowSize(800, 600)

	w, h := ci.WindowSize()
	assert.Zero(t, w)
	assert.Zero(t, h)

	ci.UpdateInput()
	w, h = ci.WindowSize()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestWindowInputScale(t *testing.T) {
	ci := New()
	x, y := ci.WindowInputScale()
	assert.Equal(t, 1.0, x)
	assert.Equal(t, 1.0, y)

	ci.SetWindowInputScale(2, 0.5)
	x, y = ci.WindowInputScale()
	assert.Equal(t, 2.0, x)
	assert.Equal(t, 0.5, y)
}

func TestRefreshDevices(t *testing.T) {
	ci := New()
	b := &mockBackend{name: "mock", names: []string{"Seat"}}
	require.NoError(t, ci.RegisterBackend(b))
	require.NoError(t, ci.RefreshDevices())

	assert.Equal(t, 2, b.populated)
	assert.True(t, b.created[0].closed)
	assert.Len(t, ci.Devices(), 1)
}

func TestShutdownReverseOrder(t *testing.T) {
	ci := New()
	first := &mockBackend{name: "first", names: []string{"A"}}
	second := &mockBackend{name: "second", err: errors.New("boom")}
	require.NoError(t, ci.RegisterBackend(first))
	require.NoError(t, ci.RegisterBackend(second))

	err := ci.Shutdown()
	assert.ErrorContains(t, err, "shutdown second: boom")
	assert.True(t, first.shutdown)
	assert.True(t, second.shutdown)
	assert.True(t, first.created[0].closed)
	assert.Empty(t, ci.Devices())
}

func TestRunPollsUntilCancelled(t *testing.T) {
	ci := New()
	b := &mockBackend{name: "mock", names: []string{"Seat"}}
	require.NoError(t, ci.RegisterBackend(b))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ci.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool { return ci.updates.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
