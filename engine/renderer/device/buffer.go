package device

import (
	stdmath "math"
	"sync/atomic"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
	"github.com/spaghettifunk/continuum/engine/renderer/registry"
)

// buffer backs vertex and index buffers. Static buffers live in the managed
// pool and keep their content across resets; dynamic buffers live in the
// default pool and lose it.
type buffer struct {
	resource
	dynamic     bool
	contentLost atomic.Bool
}

func (d *Device) newBuffer(b *buffer, owner interface{}, kind native.ResourceKind, size uint32, dynamic bool) error {
	if size == 0 {
		return core.ArgumentOutOfRangef("%s size must be greater than zero", kind)
	}
	pool := registry.PoolManaged
	if dynamic {
		pool = registry.PoolDefault
	}
	b.dynamic = dynamic
	b.init(d, kind, pool, native.ResourceParams{Size: size, Dynamic: dynamic})
	return d.register(owner, &b.resource)
}

func (b *buffer) IsDynamic() bool { return b.dynamic }

// SetData writes data at offset. Writing clears the content lost flag.
func (b *buffer) SetData(offset uint32, data []byte) error {
	if err := b.write(offset, data); err != nil {
		return err
	}
	b.contentLost.Store(false)
	return nil
}

func (b *buffer) GetData(offset uint32, dst []byte) error {
	return b.read(offset, dst)
}

// IsContentLost reports whether a reset discarded the content of a dynamic
// buffer since it was last written.
func (b *buffer) IsContentLost() bool { return b.contentLost.Load() }

func (b *buffer) SetContentLost() {
	if b.dynamic {
		b.contentLost.Store(true)
	}
}

// SaveDataForRecreation stages the content of static buffers. Dynamic
// buffers are refilled by their users, so nothing is kept for them.
func (b *buffer) SaveDataForRecreation() error {
	if b.dynamic {
		return nil
	}
	return b.saveContent()
}

func (b *buffer) RecreateAndPopulateObject(factory native.ResourceFactory) (native.Ptr, error) {
	return b.recreateContent(factory, b.params)
}

type VertexBuffer struct {
	buffer
}

// NewVertexBuffer creates a vertex buffer of size bytes.
func (d *Device) NewVertexBuffer(size uint32, dynamic bool) (*VertexBuffer, error) {
	vb := &VertexBuffer{}
	if err := d.newBuffer(&vb.buffer, vb, native.KindVertexBuffer, size, dynamic); err != nil {
		return nil, err
	}
	return vb, nil
}

type IndexElementSize uint8

const (
	IndexSixteenBits   IndexElementSize = 2
	IndexThirtyTwoBits IndexElementSize = 4
)

type IndexBuffer struct {
	buffer
	elementSize IndexElementSize
	count       uint32
}

// NewIndexBuffer creates an index buffer holding count indices. 32 bit
// indices need the HiDef profile.
func (d *Device) NewIndexBuffer(elementSize IndexElementSize, count uint32, dynamic bool) (*IndexBuffer, error) {
	switch elementSize {
	case IndexSixteenBits:
	case IndexThirtyTwoBits:
		if caps := d.Capabilities(); caps.Profile < native.ProfileHiDef {
			return nil, core.NotSupported("32 bit indices", nil, caps.Profile)
		}
	default:
		return nil, core.Argumentf("index element size %d", elementSize)
	}
	size := uint64(elementSize) * uint64(count)
	if size > stdmath.MaxUint32 {
		return nil, core.ArgumentOutOfRangef("%d indices of %d bytes", count, elementSize)
	}
	ib := &IndexBuffer{elementSize: elementSize, count: count}
	if err := d.newBuffer(&ib.buffer, ib, native.KindIndexBuffer, uint32(size), dynamic); err != nil {
		return nil, err
	}
	return ib, nil
}

func (ib *IndexBuffer) ElementSize() IndexElementSize { return ib.elementSize }

func (ib *IndexBuffer) Count() uint32 { return ib.count }
