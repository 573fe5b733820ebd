package device

import (
	"sync/atomic"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
	"github.com/spaghettifunk/continuum/engine/renderer/registry"
)

// Effect wraps compiled shader code. An in-place reset only drops and
// restores its device state; a new native device recreates it from the
// code, or from its source when it is a clone.
type Effect struct {
	resource
	code   []byte
	source *Effect

	lost   atomic.Bool
	resets atomic.Int32
}

func (d *Device) NewEffect(code []byte) (*Effect, error) {
	if len(code) == 0 {
		return nil, core.Argumentf("effect code is empty")
	}
	e := &Effect{code: append([]byte(nil), code...)}
	e.init(d, native.KindEffect, registry.PoolDefault, native.ResourceParams{Size: uint32(len(code))})
	if err := d.register(e, &e.resource); err != nil {
		return nil, err
	}
	if err := e.write(0, e.code); err != nil {
		e.Dispose()
		return nil, err
	}
	return e, nil
}

// Clone creates an effect sharing the code of e. On recreation the clone
// waits for e and is copied from it.
func (e *Effect) Clone() (*Effect, error) {
	if e.IsDisposed() {
		return nil, core.ObjectDisposedf("clone of effect %d", e.handle)
	}
	ptr := e.Native()
	if ptr.IsNull() {
		return nil, core.InvalidOperationf("clone of effect %d: no native object until the device is reset", e.handle)
	}
	c := &Effect{code: e.code, source: e}
	c.init(e.device, native.KindEffect, registry.PoolDefault, native.ResourceParams{Size: e.size, Source: ptr})
	if err := e.device.register(c, &c.resource, registry.DependsOn(e.handle)); err != nil {
		return nil, err
	}
	return c, nil
}

// Source returns the effect e was cloned from, nil for an original.
func (e *Effect) Source() *Effect { return e.source }

func (e *Effect) Code() []byte { return append([]byte(nil), e.code...) }

// IsLost reports whether the device state of the effect is currently dropped.
func (e *Effect) IsLost() bool { return e.lost.Load() }

// Resets returns how many in-place resets the effect went through.
func (e *Effect) Resets() int { return int(e.resets.Load()) }

func (e *Effect) OnDeviceLost() error {
	e.lost.Store(true)
	return nil
}

func (e *Effect) OnDeviceReset() error {
	e.lost.Store(false)
	e.resets.Add(1)
	return nil
}

// SaveDataForRecreation keeps nothing: the code is already in managed memory.
func (e *Effect) SaveDataForRecreation() error { return nil }

func (e *Effect) RecreateAndPopulateObject(factory native.ResourceFactory) (native.Ptr, error) {
	params := e.params
	params.Source = native.Null
	if e.source != nil {
		params.Source = e.source.Native()
	}
	if params.Source.IsNull() {
		e.stage(e.code)
	}
	ptr, err := e.recreateContent(factory, params)
	if err != nil {
		return native.Null, err
	}
	e.lost.Store(false)
	return ptr, nil
}
