// Package device drives one native device through its lost/reset protocol.
// It owns the resource registry and the vertex layout cache of the device
// and keeps the resources built on it alive across resets.
package device

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/spaghettifunk/continuum/engine/config"
	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/layout"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
	"github.com/spaghettifunk/continuum/engine/renderer/registry"
	"github.com/spaghettifunk/continuum/engine/renderer/state"
	"github.com/spaghettifunk/continuum/engine/systems"
)

type State int32

const (
	StateOperational State = iota
	// Default pool resources are being released and recreated.
	StateResetting
	// The native device object itself is being replaced.
	StateReconstructingDevice
)

func (s State) String() string {
	switch s {
	case StateOperational:
		return "operational"
	case StateResetting:
		return "resetting"
	case StateReconstructingDevice:
		return "reconstructing-device"
	default:
		return "unknown"
	}
}

type Option func(*options)

type options struct {
	events *core.EventBus
	jobs   *systems.JobSystem
}

// WithEventBus makes the device publish its notifications on bus.
func WithEventBus(bus *core.EventBus) Option {
	return func(o *options) {
		o.events = bus
	}
}

// WithJobSystem saves resource contents on the workers of jobs during a
// reset. Without it they are saved one after the other. The device does not
// shut the job system down.
func WithJobSystem(jobs *systems.JobSystem) Option {
	return func(o *options) {
		o.jobs = jobs
	}
}

type Device struct {
	mu         sync.Mutex
	factory    native.DeviceFactory
	native     native.Device
	caps       native.Capabilities
	profile    native.Profile
	adapter    int
	deviceType native.DeviceType
	params     native.PresentationParameters
	id         uuid.UUID
	closed     bool

	viewport native.Viewport
	targets  []*RenderTarget

	state    atomic.Int32
	resetSem *semaphore.Weighted

	registry *registry.Registry
	layouts  *layout.Cache
	events   *core.EventBus
	jobs     *systems.JobSystem
	metrics  *core.Metrics
}

var _ state.Target = (*Device)(nil)

// New creates the native device described by cfg and validates it against
// the configured capability profile.
func New(factory native.DeviceFactory, cfg config.DeviceConfig, params native.PresentationParameters, opts ...Option) (*Device, error) {
	if factory == nil {
		return nil, core.Argumentf("device factory is nil")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.events == nil {
		o.events = core.NewEventBus()
	}

	deviceType, err := cfg.DeviceType()
	if err != nil {
		return nil, err
	}
	profile, err := cfg.ProfileOf()
	if err != nil {
		return nil, err
	}

	nd, caps, err := createNative(factory, cfg.Adapter, deviceType, params, profile)
	if err != nil {
		return nil, err
	}

	d := &Device{
		factory:    factory,
		native:     nd,
		caps:       caps,
		profile:    profile,
		adapter:    cfg.Adapter,
		deviceType: deviceType,
		params:     params,
		id:         uuid.New(),
		viewport:   fullViewport(params),
		targets:    make([]*RenderTarget, caps.MaxRenderTargets),
		resetSem:   semaphore.NewWeighted(1),
		events:     o.events,
		jobs:       o.jobs,
		metrics:    core.NewMetrics(),
	}
	d.registry = registry.New(nd, d.events)
	d.layouts = layout.NewCache(nd, caps.MaxStreams)

	core.LogInfo("device %s created (adapter %d, %s, %s profile, %dx%d)", d.id, cfg.Adapter, deviceType, caps.Profile, params.BackBufferWidth, params.BackBufferHeight)
	return d, nil
}

func createNative(factory native.DeviceFactory, adapter int, deviceType native.DeviceType, params native.PresentationParameters, profile native.Profile) (native.Device, native.Capabilities, error) {
	nd, r := factory.CreateDevice(adapter, deviceType, params)
	if err := core.CheckResult("create device", r); err != nil {
		return nil, native.Capabilities{}, err
	}
	caps, err := restrictCapabilities(nd.Capabilities(), profile)
	if err != nil {
		nd.Release()
		return nil, native.Capabilities{}, err
	}
	return nd, caps, nil
}

// restrictCapabilities returns the capabilities of profile on a device that
// reports caps. A device cannot be raised above its own tier.
func restrictCapabilities(caps native.Capabilities, profile native.Profile) (native.Capabilities, error) {
	if profile > caps.Profile {
		return caps, core.NotSupported(profile.String()+" profile", caps.Profile, caps.Profile)
	}
	if profile == native.ProfileReach && caps.Profile != native.ProfileReach {
		return native.ReachCapabilities(), nil
	}
	return caps, nil
}

func fullViewport(params native.PresentationParameters) native.Viewport {
	return native.Viewport{Width: params.BackBufferWidth, Height: params.BackBufferHeight, MaxDepth: 1}
}

// ID identifies the current native device. It changes every time the
// native device is replaced.
func (d *Device) ID() uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.id
}

func (d *Device) State() State {
	return State(d.state.Load())
}

func (d *Device) setState(s State) {
	old := State(d.state.Swap(int32(s)))
	if old != s {
		core.LogDebug("device state %s -> %s", old, s)
	}
}

func (d *Device) Registry() *registry.Registry { return d.registry }

func (d *Device) Layouts() *layout.Cache { return d.layouts }

func (d *Device) Events() *core.EventBus { return d.events }

// Metrics records the duration of every successful reset.
func (d *Device) Metrics() *core.Metrics { return d.metrics }

func (d *Device) Capabilities() native.Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps
}

// Native returns the current native device, nil after Close.
func (d *Device) Native() native.Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.native
}

func (d *Device) Presentation() native.PresentationParameters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params
}

func (d *Device) Adapter() (int, native.DeviceType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adapter, d.deviceType
}

func (d *Device) current() (native.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, core.ObjectDisposedf("device is closed")
	}
	if d.native == nil {
		return nil, core.InvalidOperationf("no native device, the last reset failed and has to be retried")
	}
	return d.native, nil
}

func (d *Device) SetRenderStates(commands []native.StateCommand) error {
	nd, err := d.current()
	if err != nil {
		return err
	}
	return core.CheckResult("set render states", nd.SetRenderStates(commands))
}

func (d *Device) SetSamplerStates(slot int, commands []native.StateCommand) error {
	nd, err := d.current()
	if err != nil {
		return err
	}
	return core.CheckResult("set sampler states", nd.SetSamplerStates(slot, commands))
}

func (d *Device) ApplyBlendState(s *state.BlendState) error {
	return s.Apply(d)
}

func (d *Device) ApplyDepthStencilState(s *state.DepthStencilState) error {
	return s.Apply(d)
}

func (d *Device) ApplyRasterizerState(s *state.RasterizerState) error {
	return s.Apply(d)
}

func (d *Device) ApplySamplerState(slot int, s *state.SamplerState) error {
	return s.Apply(d, slot)
}

// SetVertexLayouts activates the combined declaration of the given streams.
func (d *Device) SetVertexLayouts(bindings ...*layout.Binding) error {
	if _, err := d.current(); err != nil {
		return err
	}
	return d.layouts.SetVertexDeclaration(bindings, len(bindings))
}

func (d *Device) SetViewport(vp native.Viewport) error {
	if vp.Width == 0 || vp.Height == 0 {
		return core.ArgumentOutOfRangef("viewport %dx%d", vp.Width, vp.Height)
	}
	if vp.MinDepth < 0 || vp.MaxDepth > 1 || vp.MinDepth > vp.MaxDepth {
		return core.ArgumentOutOfRangef("viewport depth range [%g, %g]", vp.MinDepth, vp.MaxDepth)
	}
	nd, err := d.current()
	if err != nil {
		return err
	}
	if err := core.CheckResult("set viewport", nd.SetViewport(vp)); err != nil {
		return err
	}
	d.mu.Lock()
	d.viewport = vp
	d.mu.Unlock()
	return nil
}

func (d *Device) Viewport() native.Viewport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport
}

// SetRenderTarget binds rt at index. A nil rt unbinds the slot; at index 0
// that restores the back buffer.
func (d *Device) SetRenderTarget(index int, rt *RenderTarget) error {
	caps := d.Capabilities()
	if index < 0 || index >= caps.MaxRenderTargets {
		return core.ArgumentOutOfRangef("render target index %d, the device supports %d", index, caps.MaxRenderTargets)
	}
	ptr := native.Null
	if rt != nil {
		if rt.device != d {
			return core.Argumentf("render target %d belongs to another device", rt.Handle())
		}
		if rt.IsDisposed() {
			return core.ObjectDisposedf("render target %d", rt.Handle())
		}
		ptr = rt.Native()
		if ptr.IsNull() {
			return core.InvalidOperationf("render target %d has no native object", rt.Handle())
		}
	}
	nd, err := d.current()
	if err != nil {
		return err
	}
	if err := core.CheckResult("set render target", nd.SetRenderTarget(index, ptr)); err != nil {
		return err
	}
	d.mu.Lock()
	d.targets[index] = rt
	d.mu.Unlock()
	return nil
}

// RenderTarget returns the render target bound at index, nil for the back buffer.
func (d *Device) RenderTarget(index int) *RenderTarget {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= len(d.targets) {
		return nil
	}
	return d.targets[index]
}

// Present shows the back buffer. When the native device reports that it was
// lost, the lost notification is sent; a device that can be reset already
// is reset with the current parameters, one that cannot yet returns an
// error matching core.ErrDeviceLost and the caller tries again later.
func (d *Device) Present() error {
	nd, err := d.current()
	if err != nil {
		return err
	}
	r := nd.Present()
	if r.Succeeded() {
		return nil
	}
	if !r.IsDeviceLost() {
		return core.CheckResult("present", r)
	}

	status := nd.QueryDeviceStatus()
	core.LogWarn("device %s lost during present (%s)", d.ID(), status)
	d.events.Fire(core.EVENT_CODE_DEVICE_LOST, d, core.DeviceEventData{})
	if status == native.StatusLost {
		return core.CheckResult("present", r)
	}
	return d.Reset(d.Presentation())
}

// Reset reconfigures the current native device in place.
func (d *Device) Reset(params native.PresentationParameters) error {
	d.mu.Lock()
	adapter, deviceType := d.adapter, d.deviceType
	d.mu.Unlock()
	return d.reset(adapter, deviceType, params)
}

// ResetDevice resets onto the given adapter and device type. Changing
// either replaces the native device and recreates every resource.
func (d *Device) ResetDevice(adapter int, deviceType native.DeviceType, params native.PresentationParameters) error {
	return d.reset(adapter, deviceType, params)
}

func (d *Device) reset(adapter int, deviceType native.DeviceType, params native.PresentationParameters) error {
	if params.BackBufferWidth == 0 || params.BackBufferHeight == 0 {
		return core.ArgumentOutOfRangef("back buffer %dx%d", params.BackBufferWidth, params.BackBufferHeight)
	}
	if !d.resetSem.TryAcquire(1) {
		return core.InvalidOperationf("device reset already in progress")
	}
	defer d.resetSem.Release(1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return core.ObjectDisposedf("reset of a closed device")
	}
	old := d.native
	full := old == nil || adapter != d.adapter || deviceType != d.deviceType
	sameGeometry := params.SameGeometry(d.params)
	viewport := d.viewport
	targets := make([]*RenderTarget, len(d.targets))
	copy(targets, d.targets)
	d.mu.Unlock()

	clock := core.NewClock()
	clock.Start()
	d.setState(StateResetting)
	defer d.setState(StateOperational)

	d.events.Fire(core.EVENT_CODE_DEVICE_RESETTING, d, core.DeviceEventData{FullRecreation: full})

	// A device that is still lost refuses to be reset; bail out before
	// anything is released so the caller can simply try again.
	if !full && old.QueryDeviceStatus() == native.StatusLost {
		return core.CheckResult("reset", native.ResultErrorDeviceLost)
	}

	pools := []registry.PoolKind{registry.PoolDefault}
	if full {
		pools = append(pools, registry.PoolManaged, registry.PoolAutomatic)
	}
	if err := d.save(d.registry.SaveTargets(pools...)); err != nil {
		return err
	}
	if err := d.registry.ReleaseAllDefaultPoolResources(); err != nil {
		return err
	}

	if full {
		if err := d.recreateDevice(old, adapter, deviceType, params); err != nil {
			return err
		}
	} else {
		if err := d.reconfigure(old, params); err != nil {
			return err
		}
	}

	if err := d.restore(sameGeometry, viewport, targets); err != nil {
		return err
	}

	clock.Stop()
	d.metrics.Record(clock.Elapsed())
	core.LogInfo("device %s reset in %s (full=%t)", d.ID(), clock.Duration(), full)
	d.events.Fire(core.EVENT_CODE_DEVICE_RESET, d, core.DeviceEventData{FullRecreation: full})
	return nil
}

// save copies the content of every target into managed memory, on the job
// system when there is one.
func (d *Device) save(targets []registry.Recreatable) error {
	if d.jobs == nil {
		for _, t := range targets {
			if err := t.SaveDataForRecreation(); err != nil {
				return errors.Wrap(err, "save resource for recreation")
			}
		}
		return nil
	}
	tasks := make([]systems.JobTask, len(targets))
	for i, t := range targets {
		tasks[i] = systems.JobTask{Name: "save resource", Run: t.SaveDataForRecreation}
	}
	if err := d.jobs.RunAll(tasks); err != nil {
		return errors.Wrap(err, "save resource for recreation")
	}
	return nil
}

func (d *Device) reconfigure(nd native.Device, params native.PresentationParameters) error {
	if err := core.CheckResult("reconfigure device", nd.Reconfigure(params)); err != nil {
		return err
	}
	d.mu.Lock()
	d.params = params
	d.mu.Unlock()

	if err := d.registry.RecreateResources(registry.PoolDefault, false); err != nil {
		return err
	}
	d.layouts.Invalidate()
	return nil
}

func (d *Device) recreateDevice(old native.Device, adapter int, deviceType native.DeviceType, params native.PresentationParameters) error {
	d.setState(StateReconstructingDevice)

	if old != nil {
		d.registry.ReleaseAllDeviceResources()
		d.layouts.ReleaseDeclarations()
		old.Release()
		d.mu.Lock()
		d.native = nil
		d.mu.Unlock()
	}

	nd, caps, err := createNative(d.factory, adapter, deviceType, params, d.profile)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.native = nd
	d.caps = caps
	d.adapter = adapter
	d.deviceType = deviceType
	d.params = params
	d.id = uuid.New()
	if len(d.targets) != caps.MaxRenderTargets {
		d.targets = make([]*RenderTarget, caps.MaxRenderTargets)
	}
	d.mu.Unlock()

	d.registry.Rebind(nd)
	d.layouts.Rebind(nd, caps.MaxStreams)

	// Managed and automatic resources first: default pool clones may
	// depend on them.
	for _, pool := range []registry.PoolKind{registry.PoolManaged, registry.PoolAutomatic, registry.PoolDefault} {
		if err := d.registry.RecreateResources(pool, true); err != nil {
			return err
		}
	}
	return nil
}

// restore replays the viewport and render targets that were bound before
// the reset. When the back buffer changed size they start from defaults.
func (d *Device) restore(sameGeometry bool, viewport native.Viewport, targets []*RenderTarget) error {
	d.mu.Lock()
	nd := d.native
	if !sameGeometry {
		d.viewport = fullViewport(d.params)
		for i := range d.targets {
			d.targets[i] = nil
		}
		d.mu.Unlock()
		return core.CheckResult("restore viewport", nd.SetViewport(d.Viewport()))
	}
	d.mu.Unlock()

	for i, rt := range targets {
		if i >= d.Capabilities().MaxRenderTargets {
			break
		}
		if rt == nil || rt.IsDisposed() || rt.Native().IsNull() {
			d.mu.Lock()
			d.targets[i] = nil
			d.mu.Unlock()
			continue
		}
		if err := core.CheckResult("restore render target", nd.SetRenderTarget(i, rt.Native())); err != nil {
			return err
		}
		d.mu.Lock()
		d.targets[i] = rt
		d.mu.Unlock()
	}
	if err := core.CheckResult("restore viewport", nd.SetViewport(viewport)); err != nil {
		return err
	}
	d.mu.Lock()
	d.viewport = viewport
	d.mu.Unlock()
	return nil
}

// Close releases every native object and the native device. It waits for a
// reset in progress and is a no-op when called again.
func (d *Device) Close() error {
	if err := d.resetSem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer d.resetSem.Release(1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	nd := d.native
	d.native = nil
	d.mu.Unlock()

	d.registry.ReleaseAllDeviceResources()
	d.layouts.ReleaseDeclarations()
	if nd != nil {
		nd.Release()
	}
	core.LogInfo("device %s closed", d.ID())
	return nil
}
