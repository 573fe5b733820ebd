package device

import (
	"sync"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
	"github.com/spaghettifunk/continuum/engine/renderer/registry"
)

// resource is the part every native-backed wrapper shares. Its handle stays
// the same for the lifetime of the wrapper, whatever happens to the native
// object behind it.
type resource struct {
	mu       sync.Mutex
	device   *Device
	handle   registry.Handle
	kind     native.ResourceKind
	pool     registry.PoolKind
	params   native.ResourceParams
	size     uint32
	staging  []byte
	disposed bool
}

func (r *resource) init(d *Device, kind native.ResourceKind, pool registry.PoolKind, params native.ResourceParams) {
	params.Kind = kind
	params.Pool = pool.Native()
	r.device = d
	r.kind = kind
	r.pool = pool
	r.params = params
	r.size = params.Size
}

// register creates the native object of r and records owner for it.
func (d *Device) register(owner interface{}, r *resource, opts ...registry.RegisterOption) error {
	nd, err := d.current()
	if err != nil {
		return err
	}
	ptr, res := nd.CreateResource(r.kind, r.params)
	if err := core.CheckResult("create "+r.kind.String(), res); err != nil {
		return err
	}
	h, err := d.registry.Register(owner, ptr, r.pool, registry.InvalidHandle, opts...)
	if err != nil {
		nd.ReleaseResource(ptr)
		return err
	}
	r.handle = h
	return nil
}

func (r *resource) Handle() registry.Handle { return r.handle }

func (r *resource) Device() *Device { return r.device }

func (r *resource) Kind() native.ResourceKind { return r.kind }

func (r *resource) Pool() registry.PoolKind { return r.pool }

// Size is the byte size of the native content.
func (r *resource) Size() uint32 { return r.size }

func (r *resource) Name() string { return r.device.registry.Name(r.handle) }

func (r *resource) SetName(name string) error {
	if r.IsDisposed() {
		return core.ObjectDisposedf("set name of %s %d", r.kind, r.handle)
	}
	return r.device.registry.SetName(r.handle, name)
}

func (r *resource) Tag() interface{} { return r.device.registry.Tag(r.handle) }

func (r *resource) SetTag(tag interface{}) error {
	if r.IsDisposed() {
		return core.ObjectDisposedf("set tag of %s %d", r.kind, r.handle)
	}
	return r.device.registry.SetTag(r.handle, tag)
}

// Native returns the current native object, Null while a reset is pending.
func (r *resource) Native() native.Ptr { return r.device.registry.NativePointer(r.handle) }

func (r *resource) IsDisposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

// Dispose releases the native object and removes the resource from its
// device. It can be called any number of times from any goroutine.
func (r *resource) Dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	r.staging = nil
	r.mu.Unlock()

	r.device.registry.ReleaseAllReferences(r.handle, true)
}

func (r *resource) target(op string) (native.Device, native.Ptr, error) {
	if r.IsDisposed() {
		return nil, native.Null, core.ObjectDisposedf("%s of %s %d", op, r.kind, r.handle)
	}
	nd, err := r.device.current()
	if err != nil {
		return nil, native.Null, err
	}
	ptr := r.Native()
	if ptr.IsNull() {
		return nil, native.Null, core.InvalidOperationf("%s of %s %d: no native object until the device is reset", op, r.kind, r.handle)
	}
	return nd, ptr, nil
}

func (r *resource) checkRange(offset uint32, n int) error {
	if uint64(offset)+uint64(n) > uint64(r.size) {
		return core.ArgumentOutOfRangef("%d bytes at offset %d of %s %d (size %d)", n, offset, r.kind, r.handle, r.size)
	}
	return nil
}

func (r *resource) write(offset uint32, data []byte) error {
	if err := r.checkRange(offset, len(data)); err != nil {
		return err
	}
	nd, ptr, err := r.target("write")
	if err != nil {
		return err
	}
	return core.CheckResult("write "+r.kind.String(), nd.WriteContent(ptr, offset, data))
}

func (r *resource) read(offset uint32, dst []byte) error {
	if err := r.checkRange(offset, len(dst)); err != nil {
		return err
	}
	nd, ptr, err := r.target("read")
	if err != nil {
		return err
	}
	return core.CheckResult("read "+r.kind.String(), nd.ReadContent(ptr, offset, dst))
}

func (r *resource) stage(content []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staging = content
}

// saveContent copies the native content into the staging slice. A resource
// disposed before or while it is saved has nothing left to keep.
func (r *resource) saveContent() error {
	if r.IsDisposed() {
		return nil
	}
	buf := make([]byte, r.size)
	if err := r.read(0, buf); err != nil {
		if r.IsDisposed() {
			return nil
		}
		return err
	}
	r.stage(buf)
	return nil
}

// recreateContent allocates a new native object through factory and
// uploads the staged content, if any, into it.
func (r *resource) recreateContent(factory native.ResourceFactory, params native.ResourceParams) (native.Ptr, error) {
	ptr, res := factory.CreateResource(r.kind, params)
	if err := core.CheckResult("recreate "+r.kind.String(), res); err != nil {
		return native.Null, err
	}

	r.mu.Lock()
	staging := r.staging
	r.mu.Unlock()
	if staging == nil {
		return ptr, nil
	}

	access, ok := factory.(native.ContentAccess)
	if !ok {
		factory.ReleaseResource(ptr)
		return native.Null, core.InvalidOperationf("native device cannot upload the content of %s %d", r.kind, r.handle)
	}
	if err := core.CheckResult("upload "+r.kind.String(), access.WriteContent(ptr, 0, staging)); err != nil {
		factory.ReleaseResource(ptr)
		return native.Null, err
	}
	r.stage(nil)
	return ptr, nil
}
