package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

type fakeFactory struct {
	mu       sync.Mutex
	next     native.Ptr
	refs     map[native.Ptr]uint32
	releases int
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{next: 0x1000, refs: make(map[native.Ptr]uint32)}
}

func (f *fakeFactory) CreateResource(kind native.ResourceKind, params native.ResourceParams) (native.Ptr, native.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next += 0x10
	f.refs[f.next] = 1
	return f.next, native.ResultSuccess
}

func (f *fakeFactory) ReleaseResource(p native.Ptr) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	if f.refs[p] == 0 {
		return 0
	}
	f.refs[p]--
	n := f.refs[p]
	if n == 0 {
		delete(f.refs, p)
	}
	return n
}

func (f *fakeFactory) addRef(p native.Ptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[p]++
}

func (f *fakeFactory) alive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refs)
}

type plainOwner struct{ name string }

type bufferOwner struct {
	name      string
	order     *[]string
	saved     int
	lost      int
	failWith  error
	recreated native.Ptr
}

func (b *bufferOwner) SaveDataForRecreation() error {
	b.saved++
	return nil
}

func (b *bufferOwner) RecreateAndPopulateObject(factory native.ResourceFactory) (native.Ptr, error) {
	if b.failWith != nil {
		return native.Null, b.failWith
	}
	if b.order != nil {
		*b.order = append(*b.order, b.name)
	}
	p, r := factory.CreateResource(native.KindVertexBuffer, native.ResourceParams{})
	if err := core.CheckResult("create", r); err != nil {
		return native.Null, err
	}
	b.recreated = p
	return p, nil
}

type dynamicOwner struct {
	bufferOwner
}

func (d *dynamicOwner) SetContentLost() { d.lost++ }

type effectOwner struct {
	bufferOwner
	lostCalls  int
	resetCalls int
}

func (e *effectOwner) OnDeviceLost() error {
	e.lostCalls++
	return nil
}

func (e *effectOwner) OnDeviceReset() error {
	e.resetCalls++
	return nil
}

func create(t *testing.T, f *fakeFactory) native.Ptr {
	t.Helper()
	p, r := f.CreateResource(native.KindTexture, native.ResourceParams{})
	require.True(t, r.Succeeded())
	return p
}

func TestRegisterAssignsIncreasingHandles(t *testing.T) {
	f := newFakeFactory()
	reg := New(f, nil)

	h1, err := reg.Register(&plainOwner{}, create(t, f), PoolManaged, InvalidHandle)
	require.NoError(t, err)
	h2, err := reg.Register(&plainOwner{}, create(t, f), PoolManaged, InvalidHandle)
	require.NoError(t, err)

	assert.Greater(t, uint64(h2), uint64(h1))
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, int32(1), reg.RefCount(h1))
}

func TestRegisterNilOwner(t *testing.T) {
	reg := New(newFakeFactory(), nil)
	_, err := reg.Register(nil, native.Ptr(1), PoolDefault, InvalidHandle)
	assert.ErrorIs(t, err, core.ErrArgument)
}

func TestCreatedNotificationFiresOncePerHandle(t *testing.T) {
	f := newFakeFactory()
	bus := core.NewEventBus()
	created := 0
	bus.Register(core.EVENT_CODE_RESOURCE_CREATED, t, func(code core.SystemEventCode, listener interface{}, ctx core.EventContext) bool {
		created++
		return false
	})
	reg := New(f, bus)

	owner := &plainOwner{}
	h, err := reg.Register(owner, create(t, f), PoolDefault, InvalidHandle)
	require.NoError(t, err)
	reg.ReleaseAllReferences(h, false)

	again, err := reg.Register(owner, create(t, f), PoolDefault, h)
	require.NoError(t, err)
	assert.Equal(t, h, again)
	assert.Equal(t, 1, created)
}

func TestReserveThenRegisterKeepsNameAndTag(t *testing.T) {
	f := newFakeFactory()
	bus := core.NewEventBus()
	var got core.ResourceEventData
	bus.Register(core.EVENT_CODE_RESOURCE_CREATED, t, func(code core.SystemEventCode, listener interface{}, ctx core.EventContext) bool {
		got = ctx.Data.(core.ResourceEventData)
		return true
	})
	reg := New(f, bus)

	h := reg.Reserve()
	require.NoError(t, reg.SetName(h, "diffuse"))
	require.NoError(t, reg.SetTag(h, 42))
	_, ok := reg.Lookup(h)
	assert.False(t, ok, "reserved records are not live")

	owner := &plainOwner{}
	got2, err := reg.Register(owner, create(t, f), PoolManaged, h)
	require.NoError(t, err)
	assert.Equal(t, h, got2)
	assert.Equal(t, "diffuse", got.Name)
	assert.Equal(t, 42, got.Tag)
	assert.Equal(t, uint64(h), got.Handle)
}

func TestIncrementRefAndRelease(t *testing.T) {
	f := newFakeFactory()
	reg := New(f, nil)

	p := create(t, f)
	h, err := reg.Register(&plainOwner{}, p, PoolManaged, InvalidHandle)
	require.NoError(t, err)

	f.addRef(p)
	f.addRef(p)
	require.NoError(t, reg.IncrementRef(h))
	require.NoError(t, reg.IncrementRef(h))
	assert.Equal(t, int32(3), reg.RefCount(h))

	reg.ReleaseAllReferences(h, false)
	assert.Equal(t, 3, f.releases)
	assert.Equal(t, 0, f.alive())
	assert.Equal(t, native.Null, reg.NativePointer(h))
	assert.True(t, reg.Contains(h))

	// Nothing left to release.
	reg.ReleaseAllReferences(h, false)
	assert.Equal(t, 3, f.releases)
	assert.ErrorIs(t, reg.IncrementRef(h), core.ErrObjectDisposed)
}

func TestDisposeFiresDestroyedOnce(t *testing.T) {
	f := newFakeFactory()
	bus := core.NewEventBus()
	destroyed := 0
	bus.Register(core.EVENT_CODE_RESOURCE_DESTROYED, t, func(code core.SystemEventCode, listener interface{}, ctx core.EventContext) bool {
		destroyed++
		return false
	})
	reg := New(f, bus)

	h, err := reg.Register(&plainOwner{}, create(t, f), PoolManaged, InvalidHandle)
	require.NoError(t, err)

	reg.ReleaseAllReferences(h, true)
	reg.ReleaseAllReferences(h, true)
	assert.Equal(t, 1, destroyed)
	assert.False(t, reg.Contains(h))
	assert.Equal(t, 0, reg.Len())
}

func TestMarkDisposedRemovesReleasedRecord(t *testing.T) {
	f := newFakeFactory()
	reg := New(f, nil)

	h, err := reg.Register(&plainOwner{}, create(t, f), PoolDefault, InvalidHandle)
	require.NoError(t, err)

	reg.MarkDisposed(h)
	assert.True(t, reg.Contains(h), "record still holds a native reference")
	_, ok := reg.Lookup(h)
	assert.False(t, ok)

	reg.ReleaseAllReferences(h, true)
	assert.False(t, reg.Contains(h))
}

func TestReleaseAllDeviceResourcesDrainsDisposedRecords(t *testing.T) {
	f := newFakeFactory()
	bus := core.NewEventBus()
	destroyed := 0
	bus.Register(core.EVENT_CODE_RESOURCE_DESTROYED, t, func(code core.SystemEventCode, listener interface{}, ctx core.EventContext) bool {
		destroyed++
		return false
	})
	reg := New(f, bus)

	live, err := reg.Register(&bufferOwner{name: "live"}, create(t, f), PoolManaged, InvalidHandle)
	require.NoError(t, err)
	p := create(t, f)
	orphan, err := reg.Register(&plainOwner{}, p, PoolDefault, InvalidHandle)
	require.NoError(t, err)
	f.addRef(p)
	require.NoError(t, reg.IncrementRef(orphan))

	reg.MarkDisposed(orphan)
	require.True(t, reg.Contains(orphan))

	reg.ReleaseAllDeviceResources()
	assert.Equal(t, 0, f.alive(), "every native object is released")
	assert.False(t, reg.Contains(orphan))
	assert.Equal(t, 1, destroyed)
	assert.True(t, reg.Contains(live))
	assert.Equal(t, native.Null, reg.NativePointer(live))
}

func TestFindOwnerByNativePointer(t *testing.T) {
	f := newFakeFactory()
	reg := New(f, nil)

	owner := &plainOwner{name: "a"}
	p := create(t, f)
	_, err := reg.Register(owner, p, PoolManaged, InvalidHandle)
	require.NoError(t, err)

	assert.Same(t, owner, reg.FindOwnerByNativePointer(p))
	assert.Nil(t, reg.FindOwnerByNativePointer(native.Ptr(0xdead)))
	assert.Nil(t, reg.FindOwnerByNativePointer(native.Null))
}

func TestReleaseAllDefaultPoolResources(t *testing.T) {
	f := newFakeFactory()
	reg := New(f, nil)

	static := &bufferOwner{name: "static"}
	dynamic := &dynamicOwner{bufferOwner{name: "dynamic"}}
	effect := &effectOwner{bufferOwner: bufferOwner{name: "effect"}}
	managed := &bufferOwner{name: "managed"}

	hs, _ := reg.Register(static, create(t, f), PoolDefault, InvalidHandle)
	hd, _ := reg.Register(dynamic, create(t, f), PoolDefault, InvalidHandle)
	he, _ := reg.Register(effect, create(t, f), PoolDefault, InvalidHandle)
	hm, _ := reg.Register(managed, create(t, f), PoolManaged, InvalidHandle)

	require.NoError(t, reg.ReleaseAllDefaultPoolResources())

	assert.Equal(t, native.Null, reg.NativePointer(hs))
	assert.Equal(t, native.Null, reg.NativePointer(hd))
	assert.Equal(t, 1, dynamic.lost)
	assert.NotEqual(t, native.Null, reg.NativePointer(he), "effects keep their native object")
	assert.Equal(t, 1, effect.lostCalls)
	assert.NotEqual(t, native.Null, reg.NativePointer(hm))
}

func TestRecreateResourcesInPlaceReset(t *testing.T) {
	f := newFakeFactory()
	reg := New(f, nil)

	order := []string{}
	a := &bufferOwner{name: "a", order: &order}
	effect := &effectOwner{bufferOwner: bufferOwner{name: "effect", order: &order}}
	ha, _ := reg.Register(a, create(t, f), PoolDefault, InvalidHandle)
	he, _ := reg.Register(effect, create(t, f), PoolDefault, InvalidHandle)
	effectPtr := reg.NativePointer(he)

	require.NoError(t, reg.ReleaseAllDefaultPoolResources())
	require.NoError(t, reg.RecreateResources(PoolDefault, false))

	assert.Equal(t, []string{"a"}, order)
	assert.Equal(t, a.recreated, reg.NativePointer(ha))
	assert.Equal(t, 1, effect.resetCalls)
	assert.Equal(t, effectPtr, reg.NativePointer(he))
}

func TestRecreateResourcesFullRecreationRecreatesEffects(t *testing.T) {
	f := newFakeFactory()
	reg := New(f, nil)

	effect := &effectOwner{bufferOwner: bufferOwner{name: "effect"}}
	he, _ := reg.Register(effect, create(t, f), PoolDefault, InvalidHandle)

	reg.ReleaseAllDeviceResources()
	assert.Equal(t, 0, f.alive())

	next := newFakeFactory()
	next.next = 0x9000
	reg.Rebind(next)
	require.NoError(t, reg.RecreateResources(PoolDefault, true))

	assert.Equal(t, 0, effect.resetCalls)
	assert.Equal(t, effect.recreated, reg.NativePointer(he))
	assert.Equal(t, 1, next.alive())
}

func TestRecreateResourcesHonoursDependencies(t *testing.T) {
	f := newFakeFactory()
	reg := New(f, nil)

	order := []string{}
	clone := &effectOwner{bufferOwner: bufferOwner{name: "clone", order: &order}}
	hc := reg.Reserve()
	src := &effectOwner{bufferOwner: bufferOwner{name: "source", order: &order}}
	hs, _ := reg.Register(src, create(t, f), PoolDefault, InvalidHandle)
	_, err := reg.Register(clone, create(t, f), PoolDefault, hc, DependsOn(hs))
	require.NoError(t, err)

	reg.ReleaseAllDeviceResources()
	require.NoError(t, reg.RecreateResources(PoolDefault, true))
	assert.Equal(t, []string{"source", "clone"}, order)
}

func TestRecreateResourcesDetectsCycles(t *testing.T) {
	f := newFakeFactory()
	reg := New(f, nil)

	ha := reg.Reserve()
	hb := reg.Reserve()
	_, err := reg.Register(&bufferOwner{name: "a"}, create(t, f), PoolManaged, ha, DependsOn(hb))
	require.NoError(t, err)
	_, err = reg.Register(&bufferOwner{name: "b"}, create(t, f), PoolManaged, hb, DependsOn(ha))
	require.NoError(t, err)

	reg.ReleaseAllDeviceResources()
	err = reg.RecreateResources(PoolManaged, true)
	assert.ErrorIs(t, err, core.ErrInvalidOperation)
}

func TestRecreateResourcesStopsAtFirstFailure(t *testing.T) {
	f := newFakeFactory()
	reg := New(f, nil)

	boom := errors.New("boom")
	order := []string{}
	first := &bufferOwner{name: "first", order: &order}
	broken := &bufferOwner{name: "broken", order: &order, failWith: boom}
	last := &bufferOwner{name: "last", order: &order}
	h1, _ := reg.Register(first, create(t, f), PoolManaged, InvalidHandle)
	_, _ = reg.Register(broken, create(t, f), PoolManaged, InvalidHandle)
	h3, _ := reg.Register(last, create(t, f), PoolManaged, InvalidHandle)

	reg.ReleaseAllDeviceResources()
	err := reg.RecreateResources(PoolManaged, true)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first"}, order)
	assert.NotEqual(t, native.Null, reg.NativePointer(h1))
	assert.Equal(t, native.Null, reg.NativePointer(h3))
}

func TestRecreateSkipsOtherPools(t *testing.T) {
	f := newFakeFactory()
	reg := New(f, nil)

	managed := &bufferOwner{name: "managed"}
	hm, _ := reg.Register(managed, create(t, f), PoolManaged, InvalidHandle)
	reg.ReleaseAllDeviceResources()

	require.NoError(t, reg.RecreateResources(PoolDefault, true))
	assert.Equal(t, native.Null, reg.NativePointer(hm))
	require.NoError(t, reg.RecreateResources(PoolManaged, true))
	assert.NotEqual(t, native.Null, reg.NativePointer(hm))
}

func TestDisposedOwnersAreNotRecreated(t *testing.T) {
	f := newFakeFactory()
	reg := New(f, nil)

	order := []string{}
	gone := &bufferOwner{name: "gone", order: &order}
	h, _ := reg.Register(gone, create(t, f), PoolDefault, InvalidHandle)
	reg.ReleaseAllDeviceResources()
	reg.MarkDisposed(h)

	require.NoError(t, reg.RecreateResources(PoolDefault, true))
	assert.Empty(t, order)
	assert.False(t, reg.Contains(h))
}

func TestSaveTargets(t *testing.T) {
	f := newFakeFactory()
	reg := New(f, nil)

	d := &bufferOwner{name: "default"}
	m := &bufferOwner{name: "managed"}
	_, _ = reg.Register(&plainOwner{}, create(t, f), PoolDefault, InvalidHandle)
	_, _ = reg.Register(d, create(t, f), PoolDefault, InvalidHandle)
	_, _ = reg.Register(m, create(t, f), PoolManaged, InvalidHandle)

	targets := reg.SaveTargets(PoolDefault)
	require.Len(t, targets, 1)
	assert.Same(t, d, targets[0])

	assert.Len(t, reg.SaveTargets(PoolDefault, PoolManaged, PoolAutomatic), 2)
}

func TestConcurrentRegisterAndDispose(t *testing.T) {
	f := newFakeFactory()
	reg := New(f, core.NewEventBus())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				p, _ := f.CreateResource(native.KindQuery, native.ResourceParams{})
				h, err := reg.Register(&plainOwner{}, p, PoolDefault, InvalidHandle)
				if err != nil {
					t.Error(err)
					return
				}
				reg.ReleaseAllReferences(h, true)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, f.alive())
}
