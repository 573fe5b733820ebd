package device

import (
	stdmath "math"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/math"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
	"github.com/spaghettifunk/continuum/engine/renderer/registry"
)

// surfaceSize returns the byte size of a width x height surface of format.
// It is computed in 64 bits so callers can reject sizes that do not fit.
func surfaceSize(format native.Format, width, height uint32) uint64 {
	w, h := uint64(width), uint64(height)
	switch format {
	case native.FormatR5G6B5, native.FormatD16:
		return w * h * 2
	case native.FormatA16B16G16R16F:
		return w * h * 8
	case native.FormatA32B32G32R32F:
		return w * h * 16
	case native.FormatDXT1, native.FormatDXT5:
		blocks := max(1, math.DivCeil(w, 4)) * max(1, math.DivCeil(h, 4))
		if format == native.FormatDXT1 {
			return blocks * 8
		}
		return blocks * 16
	default:
		return w * h * 4
	}
}

// surface holds what textures and render targets have in common.
type surface struct {
	resource
	width  uint32
	height uint32
	format native.Format
}

func (d *Device) newSurface(s *surface, owner interface{}, kind native.ResourceKind, pool registry.PoolKind, width, height uint32, format native.Format) error {
	if width == 0 || height == 0 {
		return core.ArgumentOutOfRangef("%s size %dx%d", kind, width, height)
	}
	caps := d.Capabilities()
	if !caps.SupportsFormat(format) {
		return core.NotSupported(kind.String()+" format", format, caps.Profile)
	}
	if !caps.NonPowerOfTwo && (!math.IsPowerOf2(width) || !math.IsPowerOf2(height)) {
		return core.NotSupported("non power of two "+kind.String(), nil, caps.Profile)
	}
	size := surfaceSize(format, width, height)
	if size > stdmath.MaxUint32 {
		return core.ArgumentOutOfRangef("%s %dx%d of format %d is %d bytes", kind, width, height, format, size)
	}
	s.width = width
	s.height = height
	s.format = format
	s.init(d, kind, pool, native.ResourceParams{
		Size:   uint32(size),
		Width:  width,
		Height: height,
		Levels: 1,
		Format: format,
	})
	return d.register(owner, &s.resource)
}

func (s *surface) Width() uint32 { return s.width }

func (s *surface) Height() uint32 { return s.height }

func (s *surface) Format() native.Format { return s.format }

func (s *surface) SetData(data []byte) error {
	if len(data) != int(s.size) {
		return core.ArgumentOutOfRangef("%s data is %d bytes, expected %d", s.kind, len(data), s.size)
	}
	return s.write(0, data)
}

func (s *surface) GetData(dst []byte) error {
	if len(dst) != int(s.size) {
		return core.ArgumentOutOfRangef("%s buffer is %d bytes, expected %d", s.kind, len(dst), s.size)
	}
	return s.read(0, dst)
}

func (s *surface) SaveDataForRecreation() error {
	return s.saveContent()
}

func (s *surface) RecreateAndPopulateObject(factory native.ResourceFactory) (native.Ptr, error) {
	return s.recreateContent(factory, s.params)
}

// Texture is a managed pool texture; its content survives every reset.
type Texture struct {
	surface
}

func (d *Device) NewTexture(width, height uint32, format native.Format) (*Texture, error) {
	t := &Texture{}
	if err := d.newSurface(&t.surface, t, native.KindTexture, registry.PoolManaged, width, height, format); err != nil {
		return nil, err
	}
	return t, nil
}

// RenderTarget lives in the default pool. Its content is saved before a
// reset and uploaded again afterwards.
type RenderTarget struct {
	surface
}

func (d *Device) NewRenderTarget(width, height uint32, format native.Format) (*RenderTarget, error) {
	rt := &RenderTarget{}
	if err := d.newSurface(&rt.surface, rt, native.KindRenderTarget, registry.PoolDefault, width, height, format); err != nil {
		return nil, err
	}
	return rt, nil
}
