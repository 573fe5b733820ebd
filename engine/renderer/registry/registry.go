// Package registry tracks every native-backed object a device created, so
// they can be looked up from either side, named and tagged, and released or
// recreated together when the device is reset.
package registry

import (
	"cmp"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/continuum/engine/containers"
	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

type record struct {
	handle   Handle
	owner    interface{}
	native   native.Ptr
	pool     PoolKind
	refCount int32
	name     string
	tag      interface{}
	disposed bool
	caps     Capability
	source   Handle
	// seen is set once the handle was registered with an owner; it gates
	// the created notification.
	seen bool
}

func (r *record) live() bool {
	return r.owner != nil && !r.disposed
}

// entry is a copy of a record taken under the lock, used to run owner
// hooks without holding it.
type entry struct {
	handle Handle
	owner  interface{}
	caps   Capability
	source Handle
	name   string
}

type notification struct {
	code   core.SystemEventCode
	sender interface{}
	data   core.ResourceEventData
}

// Registry is owned by exactly one device. A single mutex serialises every
// record mutation; owner hooks and event listeners run outside of it.
type Registry struct {
	mu      sync.Mutex
	factory native.ResourceFactory
	events  *core.EventBus
	ids     core.Identifier
	records map[Handle]*record
}

type RegisterOption func(*registerOptions)

type registerOptions struct {
	source Handle
}

// DependsOn marks the resource as derived from source; recreation of the
// resource waits for source when both are pending in the same pass.
func DependsOn(source Handle) RegisterOption {
	return func(o *registerOptions) {
		o.source = source
	}
}

func New(factory native.ResourceFactory, events *core.EventBus) *Registry {
	return &Registry{
		factory: factory,
		events:  events,
		records: make(map[Handle]*record),
	}
}

// Rebind points the registry at the factory of a replacement native device.
func (r *Registry) Rebind(factory native.ResourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factory = factory
}

func (r *Registry) notify(ns []notification) {
	for _, n := range ns {
		r.events.Fire(n.code, n.sender, n.data)
	}
}

// Reserve allocates a handle before any native object exists so that a name
// and tag can be attached up front. The record is not live until Register.
func (r *Registry) Reserve() Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := Handle(r.ids.AquireNewID())
	r.records[h] = &record{handle: h}
	return h
}

// Register records ptr as owned by owner. When existing names a record that
// is still present, that record is updated in place (the recreation path) and
// keeps its handle; otherwise a new handle is allocated. The created
// notification is sent only the first time a handle gets an owner.
func (r *Registry) Register(owner interface{}, ptr native.Ptr, pool PoolKind, existing Handle, opts ...RegisterOption) (Handle, error) {
	if owner == nil {
		return InvalidHandle, core.Argumentf("register resource: owner is nil")
	}
	o := registerOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	rec, ok := r.records[existing]
	if existing == InvalidHandle || !ok {
		h := Handle(r.ids.AquireNewID())
		rec = &record{handle: h}
		r.records[h] = rec
	}
	if !rec.native.IsNull() && rec.native != ptr {
		core.LogDebug("resource %d: dropping previous native object before adopting a new one", rec.handle)
		r.drainLocked(rec)
	}

	rec.owner = owner
	rec.native = ptr
	rec.pool = pool
	rec.refCount = 0
	if !ptr.IsNull() {
		rec.refCount = 1
	}
	rec.disposed = false
	rec.caps = capabilitiesOf(owner)
	if o.source != InvalidHandle {
		rec.source = o.source
	}

	var ns []notification
	if !rec.seen {
		rec.seen = true
		ns = append(ns, notification{
			code:   core.EVENT_CODE_RESOURCE_CREATED,
			sender: owner,
			data:   core.ResourceEventData{Handle: uint64(rec.handle), Name: rec.name, Tag: rec.tag},
		})
	}
	h := rec.handle
	r.mu.Unlock()

	core.LogDebug("resource %d registered (pool=%s, native=%#x)", h, pool, uintptr(ptr))
	r.notify(ns)
	return h, nil
}

// IncrementRef records one more outstanding native reference.
func (r *Registry) IncrementRef(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[h]
	if !ok || rec.native.IsNull() {
		return core.ObjectDisposedf("increment reference of resource %d", h)
	}
	rec.refCount++
	return nil
}

// RefCount returns the number of outstanding native references.
func (r *Registry) RefCount(h Handle) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[h]; ok {
		return rec.refCount
	}
	return 0
}

func (r *Registry) SetName(h Handle, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[h]
	if !ok {
		return core.ObjectDisposedf("set name of resource %d", h)
	}
	rec.name = name
	return nil
}

func (r *Registry) Name(h Handle) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[h]; ok {
		return rec.name
	}
	return ""
}

func (r *Registry) SetTag(h Handle, tag interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[h]
	if !ok {
		return core.ObjectDisposedf("set tag of resource %d", h)
	}
	rec.tag = tag
	return nil
}

func (r *Registry) Tag(h Handle) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[h]; ok {
		return rec.tag
	}
	return nil
}

// Lookup returns the owner registered under h.
func (r *Registry) Lookup(h Handle) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[h]
	if !ok || !rec.live() {
		return nil, false
	}
	return rec.owner, true
}

// NativePointer returns the current native object of h, Null when released.
func (r *Registry) NativePointer(h Handle) native.Ptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[h]; ok {
		return rec.native
	}
	return native.Null
}

// Pool returns the pool h was registered with.
func (r *Registry) Pool(h Handle) (PoolKind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[h]; ok {
		return rec.pool, true
	}
	return PoolDefault, false
}

// Contains reports whether a record for h still exists.
func (r *Registry) Contains(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[h]
	return ok
}

// Len returns the number of records, reserved ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// FindOwnerByNativePointer recovers the live owner of ptr, nil if none.
func (r *Registry) FindOwnerByNativePointer(ptr native.Ptr) interface{} {
	if ptr.IsNull() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.live() && rec.native == ptr {
			return rec.owner
		}
	}
	return nil
}

// MarkDisposed flags the record as disposed. A record without native
// references is removed right away.
func (r *Registry) MarkDisposed(h Handle) {
	r.mu.Lock()
	rec, ok := r.records[h]
	if !ok || rec.disposed {
		r.mu.Unlock()
		return
	}
	rec.disposed = true
	var ns []notification
	if rec.native.IsNull() && rec.refCount == 0 {
		ns = append(ns, r.removeLocked(rec))
	}
	r.mu.Unlock()
	r.notify(ns)
}

// drainLocked issues one native release per outstanding reference and
// nulls the pointer. The reference count never goes below zero.
func (r *Registry) drainLocked(rec *record) {
	for rec.refCount > 0 && !rec.native.IsNull() {
		remaining := uint32(0)
		if r.factory != nil {
			remaining = r.factory.ReleaseResource(rec.native)
		}
		rec.refCount--
		if remaining == 0 && rec.refCount > 0 {
			core.LogWarn("resource %d: native object destroyed with %d references still recorded", rec.handle, rec.refCount)
			rec.refCount = 0
		}
	}
	rec.refCount = 0
	rec.native = native.Null
}

func (r *Registry) removeLocked(rec *record) notification {
	delete(r.records, rec.handle)
	return notification{
		code:   core.EVENT_CODE_RESOURCE_DESTROYED,
		sender: rec.owner,
		data:   core.ResourceEventData{Handle: uint64(rec.handle), Name: rec.name, Tag: rec.tag},
	}
}

// ReleaseAllReferences drains every native reference of h. With dispose the
// record is removed and the destroyed notification is sent; without it the
// record stays for later recreation. Calls after the record is gone, or
// without dispose after a full release, do nothing.
func (r *Registry) ReleaseAllReferences(h Handle, dispose bool) {
	r.mu.Lock()
	rec, ok := r.records[h]
	if !ok {
		r.mu.Unlock()
		return
	}
	r.drainLocked(rec)
	var ns []notification
	if dispose {
		rec.disposed = true
		ns = append(ns, r.removeLocked(rec))
	}
	r.mu.Unlock()

	if dispose {
		core.LogDebug("resource %d released and disposed", h)
	}
	r.notify(ns)
}

func (r *Registry) snapshot(filter func(rec *record) bool) []entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entry, 0, len(r.records))
	for _, rec := range r.records {
		if filter(rec) {
			out = append(out, entry{handle: rec.handle, owner: rec.owner, caps: rec.caps, source: rec.source, name: rec.name})
		}
	}
	slices.SortFunc(out, func(a, b entry) int { return cmp.Compare(a.handle, b.handle) })
	return out
}

// SaveTargets returns, in handle order, the live owners in pools that hold
// a native object and can save it for recreation.
func (r *Registry) SaveTargets(pools ...PoolKind) []Recreatable {
	entries := r.snapshot(func(rec *record) bool {
		return rec.live() && !rec.native.IsNull() && rec.caps.Has(CapRecreatable) && slices.Contains(pools, rec.pool)
	})
	out := make([]Recreatable, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.owner.(Recreatable))
	}
	return out
}

// ReleaseAllDefaultPoolResources prepares default pool resources for a
// reset. Effect-like owners get OnDeviceLost and keep their native object;
// owners with transient content are told it is lost; every other default
// pool native object is released without disposing its owner.
func (r *Registry) ReleaseAllDefaultPoolResources() error {
	entries := r.snapshot(func(rec *record) bool {
		return rec.live() && rec.pool == PoolDefault
	})
	for _, e := range entries {
		if e.caps.Has(CapResettable) {
			if err := e.owner.(Resettable).OnDeviceLost(); err != nil {
				return errors.Wrapf(err, "device lost hook of resource %d (%s)", e.handle, e.name)
			}
			continue
		}
		if e.caps.Has(CapContentLost) {
			e.owner.(ContentLoser).SetContentLost()
		}
		r.releaseNative(e.handle)
	}
	core.LogDebug("released %d default pool resources", len(entries))
	return nil
}

// ReleaseAllDeviceResources releases every native object the registry still
// holds. Live owners stay registered and can be recreated on another device;
// disposed records are removed once their references are gone.
func (r *Registry) ReleaseAllDeviceResources() {
	r.mu.Lock()
	n := 0
	var ns []notification
	for _, rec := range r.records {
		if rec.native.IsNull() {
			continue
		}
		r.drainLocked(rec)
		n++
		// disposed while native references were outstanding
		if rec.disposed {
			ns = append(ns, r.removeLocked(rec))
		}
	}
	r.mu.Unlock()

	core.LogDebug("released %d device resources", n)
	r.notify(ns)
}

func (r *Registry) releaseNative(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[h]; ok {
		r.drainLocked(rec)
	}
}

// RecreateResources rebuilds every live record of pool. When the device was
// not fully recreated, effect-like owners are reset in place; everything
// else is recreated and repopulated. A record whose source is pending in the
// same pass is deferred until the source is done. The first failure stops
// the pass and is returned; records already recreated stay recreated.
func (r *Registry) RecreateResources(pool PoolKind, deviceWasFullyRecreated bool) error {
	entries := r.snapshot(func(rec *record) bool {
		if !rec.live() || rec.pool != pool {
			return false
		}
		if rec.caps.Has(CapResettable) && !deviceWasFullyRecreated {
			return true
		}
		return rec.native.IsNull()
	})

	pending := make(map[Handle]struct{}, len(entries))
	for _, e := range entries {
		pending[e.handle] = struct{}{}
	}
	isPending := func(h Handle) bool {
		_, ok := pending[h]
		return ok
	}

	deferred := containers.NewRingQueue[entry](len(entries))
	for _, e := range entries {
		if e.source != InvalidHandle && isPending(e.source) {
			if err := deferred.Enqueue(e); err != nil {
				return err
			}
			continue
		}
		if err := r.recreate(e, deviceWasFullyRecreated); err != nil {
			return err
		}
		delete(pending, e.handle)
	}

	for !deferred.IsEmpty() {
		progressed := false
		for n := deferred.Len(); n > 0; n-- {
			e, _ := deferred.Dequeue()
			if isPending(e.source) {
				_ = deferred.Enqueue(e)
				continue
			}
			if err := r.recreate(e, deviceWasFullyRecreated); err != nil {
				return err
			}
			delete(pending, e.handle)
			progressed = true
		}
		if !progressed {
			return core.InvalidOperationf("recreate %s pool: %d resources depend on each other in a cycle", pool, deferred.Len())
		}
	}

	core.LogDebug("recreated %d resources in the %s pool (full=%t)", len(entries), pool, deviceWasFullyRecreated)
	return nil
}

func (r *Registry) recreate(e entry, deviceWasFullyRecreated bool) error {
	if e.caps.Has(CapResettable) && !deviceWasFullyRecreated {
		if err := e.owner.(Resettable).OnDeviceReset(); err != nil {
			return errors.Wrapf(err, "device reset hook of resource %d (%s)", e.handle, e.name)
		}
		return nil
	}
	if !e.caps.Has(CapRecreatable) {
		core.LogWarn("resource %d (%s) cannot be recreated and stays without a native object", e.handle, e.name)
		return nil
	}

	r.mu.Lock()
	factory := r.factory
	r.mu.Unlock()

	ptr, err := e.owner.(Recreatable).RecreateAndPopulateObject(factory)
	if err != nil {
		return errors.Wrapf(err, "recreate resource %d (%s)", e.handle, e.name)
	}
	r.adopt(e.handle, ptr)
	return nil
}

// adopt stores a recreated native object on its record. If the owner was
// disposed meanwhile the new object is released immediately.
func (r *Registry) adopt(h Handle, ptr native.Ptr) {
	if ptr.IsNull() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[h]
	if !ok || rec.disposed {
		if r.factory != nil {
			r.factory.ReleaseResource(ptr)
		}
		core.LogDebug("resource %d was disposed during recreation, released the new native object", h)
		return
	}
	if !rec.native.IsNull() {
		r.drainLocked(rec)
	}
	rec.native = ptr
	rec.refCount = 1
}
