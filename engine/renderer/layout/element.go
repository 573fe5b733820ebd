package layout

import (
	"encoding/binary"
	"hash"
	"hash/fnv"

	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

// Element is one attribute of a vertex stream.
type Element struct {
	Offset     uint16
	Format     gputypes.VertexFormat
	Usage      native.DeclUsage
	UsageIndex uint8
}

// VertexLayout describes the vertices of one stream. Two layouts with equal
// stride and elements are the same layout, whoever created them.
type VertexLayout struct {
	Stride   uint32
	Elements []Element
}

func NewVertexLayout(stride uint32, elements ...Element) *VertexLayout {
	return &VertexLayout{Stride: stride, Elements: elements}
}

func (l *VertexLayout) validate() error {
	if l == nil || len(l.Elements) == 0 {
		return core.Argumentf("vertex layout has no elements")
	}
	for i, e := range l.Elements {
		t, err := declType(e.Format, e.Usage)
		if err != nil {
			return err
		}
		if l.Stride != 0 && uint32(e.Offset)+uint32(t.Size()) > l.Stride {
			return core.ArgumentOutOfRangef("element %d ends at %d, past the stride %d", i, uint32(e.Offset)+uint32(t.Size()), l.Stride)
		}
	}
	return nil
}

func (l *VertexLayout) equal(o *VertexLayout) bool {
	if l.Stride != o.Stride || len(l.Elements) != len(o.Elements) {
		return false
	}
	for i := range l.Elements {
		if l.Elements[i] != o.Elements[i] {
			return false
		}
	}
	return true
}

func (l *VertexLayout) clone() VertexLayout {
	elements := make([]Element, len(l.Elements))
	copy(elements, l.Elements)
	return VertexLayout{Stride: l.Stride, Elements: elements}
}

// hashLayout combines the FNV-1a hash of every element with XOR and mixes
// in the stride. Equal layouts always hash equal; collisions are resolved
// by comparing contents.
func hashLayout(l *VertexLayout) uint64 {
	var combined uint64
	for _, e := range l.Elements {
		combined ^= hashElement(e)
	}
	h := fnv.New64a()
	hashWriteUint64(h, combined)
	hashWriteUint32(h, l.Stride)
	hashWriteUint32(h, uint32(len(l.Elements)))
	return h.Sum64()
}

func hashElement(e Element) uint64 {
	h := fnv.New64a()
	hashWriteUint32(h, uint32(e.Offset))
	hashWriteUint32(h, uint32(e.Format))
	_, _ = h.Write([]byte{byte(e.Usage), e.UsageIndex})
	return h.Sum64()
}

func hashWriteUint32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteUint64(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

// declType maps a vertex format to its wire type. Packed 8-bit colours map
// to the native colour type.
func declType(f gputypes.VertexFormat, usage native.DeclUsage) (native.DeclType, error) {
	switch f {
	case gputypes.VertexFormatFloat32:
		return native.DeclTypeFloat1, nil
	case gputypes.VertexFormatFloat32x2:
		return native.DeclTypeFloat2, nil
	case gputypes.VertexFormatFloat32x3:
		return native.DeclTypeFloat3, nil
	case gputypes.VertexFormatFloat32x4:
		return native.DeclTypeFloat4, nil
	case gputypes.VertexFormatUnorm8x4:
		if usage == native.DeclUsageColor {
			return native.DeclTypeColor, nil
		}
		return native.DeclTypeUByte4N, nil
	case gputypes.VertexFormatUint8x4:
		return native.DeclTypeUByte4, nil
	case gputypes.VertexFormatSint16x2:
		return native.DeclTypeShort2, nil
	case gputypes.VertexFormatSint16x4:
		return native.DeclTypeShort4, nil
	case gputypes.VertexFormatSnorm16x2:
		return native.DeclTypeShort2N, nil
	case gputypes.VertexFormatSnorm16x4:
		return native.DeclTypeShort4N, nil
	case gputypes.VertexFormatUnorm16x2:
		return native.DeclTypeUShort2N, nil
	case gputypes.VertexFormatUnorm16x4:
		return native.DeclTypeUShort4N, nil
	case gputypes.VertexFormatFloat16x2:
		return native.DeclTypeFloat16x2, nil
	case gputypes.VertexFormatFloat16x4:
		return native.DeclTypeFloat16x4, nil
	}
	return native.DeclTypeUnused, core.Argumentf("vertex format %d has no native declaration type", f)
}
