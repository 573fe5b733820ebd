// Package memory is a native device implementation that keeps every object
// in process memory. It counts every call and can be told to fail the next
// call of an operation or to lose the device, which makes it the backend of
// the tests and of the headless testbed.
package memory

import (
	"sync"
	"sync/atomic"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
	"github.com/spaghettifunk/continuum/engine/renderer/vulkan"
)

// Op names an operation whose next call can be made to fail.
type Op uint8

const (
	OpCreateDevice Op = iota
	OpCreateResource
	OpCreateDeclaration
	OpReconfigure
	OpSetRenderStates
	OpSetSamplerStates
	OpSetVertexDeclaration
	OpSetViewport
	OpSetRenderTarget
	OpPresent
	OpWriteContent
	OpReadContent
)

// Counters are the number of calls a device received.
type Counters struct {
	Creates             int
	Releases            int
	BadReleases         int
	Declarations        int
	DeclarationSwitches int
	RenderStateCalls    int
	SamplerStateCalls   int
	ViewportCalls       int
	RenderTargetCalls   int
	Presents            int
	Reconfigures        int
}

// pointers are unique across every device of the process.
var nextPtr atomic.Uintptr

func allocPtr() native.Ptr {
	return native.Ptr(0x10000 + nextPtr.Add(1)*0x10)
}

type object struct {
	kind     native.ResourceKind
	params   native.ResourceParams
	refs     uint32
	content  []byte
	elements []native.VertexElement
}

// Factory creates memory devices. The zero value is not usable; use NewFactory.
type Factory struct {
	mu       sync.Mutex
	adapters int
	caps     map[native.DeviceType]native.Capabilities
	faults   map[Op]native.Result
	devices  []*Device
}

func NewFactory(caps native.Capabilities) *Factory {
	return &Factory{
		adapters: 2,
		caps: map[native.DeviceType]native.Capabilities{
			native.DeviceTypeHardware:      caps,
			native.DeviceTypeReference:     caps,
			native.DeviceTypeSoftware:      native.ReachCapabilities(),
			native.DeviceTypeNullReference: native.ReachCapabilities(),
		},
		faults: make(map[Op]native.Result),
	}
}

// SetCapabilities overrides the capabilities reported by devices of type t.
func (f *Factory) SetCapabilities(t native.DeviceType, caps native.Capabilities) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.caps[t] = caps
}

// FailNextCreate makes the next CreateDevice fail with r.
func (f *Factory) FailNextCreate(r native.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[OpCreateDevice] = r
}

func (f *Factory) CreateDevice(adapter int, deviceType native.DeviceType, params native.PresentationParameters) (native.Device, native.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.faults[OpCreateDevice]; ok {
		delete(f.faults, OpCreateDevice)
		return nil, r
	}
	if adapter < 0 || adapter >= f.adapters {
		return nil, native.ResultErrorInvalidCall
	}
	caps, ok := f.caps[deviceType]
	if !ok {
		return nil, native.ResultErrorInitFailed
	}
	if params.BackBufferWidth == 0 || params.BackBufferHeight == 0 {
		return nil, native.ResultErrorInvalidCall
	}
	d := &Device{
		adapter:    adapter,
		deviceType: deviceType,
		params:     params,
		caps:       caps,
		objects:    make(map[native.Ptr]*object),
		faults:     make(map[Op]native.Result),
	}
	d.resetStateLocked()
	f.devices = append(f.devices, d)
	core.LogDebug("memory device created (adapter %d, %s, %dx%d)", adapter, deviceType, params.BackBufferWidth, params.BackBufferHeight)
	return d, native.ResultSuccess
}

// Devices returns every device the factory created, oldest first.
func (f *Factory) Devices() []*Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Device, len(f.devices))
	copy(out, f.devices)
	return out
}

// Last returns the most recently created device, nil if none.
func (f *Factory) Last() *Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.devices) == 0 {
		return nil
	}
	return f.devices[len(f.devices)-1]
}

// Device is an in-memory native device.
type Device struct {
	mu         sync.Mutex
	adapter    int
	deviceType native.DeviceType
	params     native.PresentationParameters
	caps       native.Capabilities
	status     vulkan.StatusTracker
	released   bool

	objects map[native.Ptr]*object
	faults  map[Op]native.Result
	calls   Counters

	renderStates  map[uint32]uint32
	samplerStates map[int]map[uint32]uint32
	decl          native.Ptr
	viewport      native.Viewport
	targets       map[int]native.Ptr
}

func (d *Device) resetStateLocked() {
	d.renderStates = make(map[uint32]uint32)
	d.samplerStates = make(map[int]map[uint32]uint32)
	d.decl = native.Null
	d.viewport = native.Viewport{Width: d.params.BackBufferWidth, Height: d.params.BackBufferHeight, MaxDepth: 1}
	d.targets = make(map[int]native.Ptr)
}

func (d *Device) fault(op Op) (native.Result, bool) {
	r, ok := d.faults[op]
	if ok {
		delete(d.faults, op)
	}
	return r, ok
}

// FailNext makes the next call of op fail with r.
func (d *Device) FailNext(op Op, r native.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults[op] = r
}

// Lose puts the device in the lost state, as a driver reset would.
func (d *Device) Lose() {
	d.status.Observe(vk.ErrorDeviceLost)
}

// Restore makes a lost device resettable again.
func (d *Device) Restore() {
	d.status.Recoverable()
}

func (d *Device) Calls() Counters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *Device) Adapter() int { return d.adapter }

func (d *Device) Type() native.DeviceType { return d.deviceType }

func (d *Device) IsReleased() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

func (d *Device) QueryDeviceStatus() native.DeviceStatus {
	return d.status.QueryDeviceStatus()
}

func (d *Device) Capabilities() native.Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps
}

func (d *Device) Presentation() native.PresentationParameters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params
}

// Live returns how many native objects are still referenced.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.objects)
}

// LiveOf returns how many native objects of kind are still referenced.
func (d *Device) LiveOf(kind native.ResourceKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, o := range d.objects {
		if o.elements == nil && o.kind == kind {
			n++
		}
	}
	return n
}

// Owns reports whether p is a live object of this device.
func (d *Device) Owns(p native.Ptr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.objects[p]
	return ok
}

// AddRef adds a native reference to p, as a native getter would.
func (d *Device) AddRef(p native.Ptr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o, ok := d.objects[p]; ok {
		o.refs++
	}
}

func (d *Device) RenderState(state uint32) (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.renderStates[state]
	return v, ok
}

func (d *Device) SamplerState(slot int, state uint32) (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.samplerStates[slot][state]
	return v, ok
}

func (d *Device) ActiveDeclaration() []native.VertexElement {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o, ok := d.objects[d.decl]; ok {
		return append([]native.VertexElement(nil), o.elements...)
	}
	return nil
}

func (d *Device) Viewport() native.Viewport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport
}

func (d *Device) RenderTarget(index int) native.Ptr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.targets[index]
}

func (d *Device) CreateResource(kind native.ResourceKind, params native.ResourceParams) (native.Ptr, native.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return native.Null, native.ResultErrorInvalidCall
	}
	if d.status.QueryDeviceStatus() != native.StatusNormal {
		return native.Null, native.ResultErrorDeviceLost
	}
	if r, ok := d.fault(OpCreateResource); ok {
		return native.Null, r
	}
	if params.Format != native.FormatUnknown && !d.caps.SupportsFormat(params.Format) {
		return native.Null, native.ResultErrorFormatNotSupp
	}

	size := params.Size
	if size == 0 {
		size = params.Width * params.Height * 4
	}
	o := &object{kind: kind, params: params, refs: 1, content: make([]byte, size)}
	if !params.Source.IsNull() {
		src, ok := d.objects[params.Source]
		if !ok {
			return native.Null, native.ResultErrorInvalidCall
		}
		o.content = append([]byte(nil), src.content...)
	}
	p := allocPtr()
	d.objects[p] = o
	d.calls.Creates++
	return p, native.ResultSuccess
}

func (d *Device) ReleaseResource(p native.Ptr) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Releases++
	o, ok := d.objects[p]
	if !ok {
		d.calls.BadReleases++
		return 0
	}
	o.refs--
	if o.refs == 0 {
		delete(d.objects, p)
		if d.decl == p {
			d.decl = native.Null
		}
	}
	return o.refs
}

func (d *Device) WriteContent(p native.Ptr, offset uint32, data []byte) native.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.fault(OpWriteContent); ok {
		return r
	}
	o, ok := d.objects[p]
	if !ok || int(offset)+len(data) > len(o.content) {
		return native.ResultErrorInvalidCall
	}
	copy(o.content[offset:], data)
	return native.ResultSuccess
}

func (d *Device) ReadContent(p native.Ptr, offset uint32, dst []byte) native.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.fault(OpReadContent); ok {
		return r
	}
	o, ok := d.objects[p]
	if !ok || int(offset)+len(dst) > len(o.content) {
		return native.ResultErrorInvalidCall
	}
	copy(dst, o.content[offset:])
	return native.ResultSuccess
}

func (d *Device) CreateCombinedDeclaration(elements []native.VertexElement) (native.Ptr, native.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.fault(OpCreateDeclaration); ok {
		return native.Null, r
	}
	if len(elements) == 0 || !elements[len(elements)-1].IsEnd() {
		return native.Null, native.ResultErrorInvalidCall
	}
	for _, e := range elements[:len(elements)-1] {
		if int(e.Stream) >= d.caps.MaxStreams {
			return native.Null, native.ResultErrorInvalidCall
		}
	}
	p := allocPtr()
	d.objects[p] = &object{refs: 1, elements: append([]native.VertexElement(nil), elements...)}
	d.calls.Declarations++
	return p, native.ResultSuccess
}

func (d *Device) SetVertexDeclaration(decl native.Ptr) native.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.fault(OpSetVertexDeclaration); ok {
		return r
	}
	if o, ok := d.objects[decl]; !ok || o.elements == nil {
		return native.ResultErrorInvalidCall
	}
	d.decl = decl
	d.calls.DeclarationSwitches++
	return native.ResultSuccess
}

func (d *Device) SetRenderStates(commands []native.StateCommand) native.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.fault(OpSetRenderStates); ok {
		return r
	}
	for _, c := range commands {
		d.renderStates[c.State] = c.Value
	}
	d.calls.RenderStateCalls++
	return native.ResultSuccess
}

func (d *Device) SetSamplerStates(slot int, commands []native.StateCommand) native.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.fault(OpSetSamplerStates); ok {
		return r
	}
	if slot < 0 || slot >= d.caps.MaxSamplers {
		return native.ResultErrorInvalidCall
	}
	states, ok := d.samplerStates[slot]
	if !ok {
		states = make(map[uint32]uint32)
		d.samplerStates[slot] = states
	}
	for _, c := range commands {
		states[c.State] = c.Value
	}
	d.calls.SamplerStateCalls++
	return native.ResultSuccess
}

func (d *Device) SetViewport(vp native.Viewport) native.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.fault(OpSetViewport); ok {
		return r
	}
	d.viewport = vp
	d.calls.ViewportCalls++
	return native.ResultSuccess
}

func (d *Device) SetRenderTarget(index int, surface native.Ptr) native.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.fault(OpSetRenderTarget); ok {
		return r
	}
	if index < 0 || index >= d.caps.MaxRenderTargets {
		return native.ResultErrorInvalidCall
	}
	if !surface.IsNull() {
		if o, ok := d.objects[surface]; !ok || o.kind != native.KindRenderTarget {
			return native.ResultErrorInvalidCall
		}
	}
	if surface.IsNull() {
		delete(d.targets, index)
	} else {
		d.targets[index] = surface
	}
	d.calls.RenderTargetCalls++
	return native.ResultSuccess
}

// Reconfigure resets the device in place. Like the real protocol it
// refuses while the device is still lost and while default pool objects
// are alive; every device state goes back to its default.
func (d *Device) Reconfigure(params native.PresentationParameters) native.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Reconfigures++
	if r, ok := d.fault(OpReconfigure); ok {
		return r
	}
	if d.status.QueryDeviceStatus() == native.StatusLost {
		return vulkan.ToNative(vk.ErrorDeviceLost)
	}
	if params.BackBufferWidth == 0 || params.BackBufferHeight == 0 {
		return native.ResultErrorInvalidCall
	}
	for _, o := range d.objects {
		if o.elements == nil && o.params.Pool == native.PoolDefault && o.kind != native.KindEffect {
			return native.ResultErrorInvalidCall
		}
	}
	d.params = params
	d.resetStateLocked()
	d.status.Clear()
	return native.ResultSuccess
}

func (d *Device) Present() native.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Presents++
	if r, ok := d.fault(OpPresent); ok {
		return r
	}
	switch d.status.QueryDeviceStatus() {
	case native.StatusLost:
		return vulkan.ToNative(vk.ErrorDeviceLost)
	case native.StatusNeedsReset:
		return vulkan.ToNative(vk.ErrorOutOfDate)
	}
	return native.ResultSuccess
}

// Release destroys the device. Objects still alive afterwards are leaks.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.released = true
	if n := len(d.objects); n > 0 {
		core.LogWarn("memory device released with %d live objects", n)
	}
}
