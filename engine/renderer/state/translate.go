package state

import (
	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/math"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

// StencilOp is the action taken on the stencil buffer after a stencil test.
type StencilOp uint8

const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncrementSaturation
	StencilDecrementSaturation
	StencilInvert
	StencilIncrement
	StencilDecrement
)

func boolValue(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

func blendFactor(f gputypes.BlendFactor) (uint32, error) {
	switch f {
	case gputypes.BlendFactorZero:
		return native.BlendZero, nil
	case gputypes.BlendFactorOne:
		return native.BlendOne, nil
	case gputypes.BlendFactorSrc:
		return native.BlendSrcColor, nil
	case gputypes.BlendFactorOneMinusSrc:
		return native.BlendInvSrcColor, nil
	case gputypes.BlendFactorSrcAlpha:
		return native.BlendSrcAlpha, nil
	case gputypes.BlendFactorOneMinusSrcAlpha:
		return native.BlendInvSrcAlpha, nil
	case gputypes.BlendFactorDst:
		return native.BlendDestColor, nil
	case gputypes.BlendFactorOneMinusDst:
		return native.BlendInvDestColor, nil
	case gputypes.BlendFactorDstAlpha:
		return native.BlendDestAlpha, nil
	case gputypes.BlendFactorOneMinusDstAlpha:
		return native.BlendInvDestAlpha, nil
	case gputypes.BlendFactorSrcAlphaSaturated:
		return native.BlendSrcAlphaSat, nil
	case gputypes.BlendFactorConstant:
		return native.BlendBlendFactor, nil
	case gputypes.BlendFactorOneMinusConstant:
		return native.BlendInvBlendFactor, nil
	}
	return 0, core.Argumentf("unknown blend factor %d", f)
}

func usesConstant(f gputypes.BlendFactor) bool {
	return f == gputypes.BlendFactorConstant || f == gputypes.BlendFactorOneMinusConstant
}

func blendOperation(op gputypes.BlendOperation) (uint32, error) {
	switch op {
	case gputypes.BlendOperationAdd:
		return native.BlendOpAdd, nil
	case gputypes.BlendOperationSubtract:
		return native.BlendOpSubtract, nil
	case gputypes.BlendOperationReverseSubtract:
		return native.BlendOpRevSubtract, nil
	case gputypes.BlendOperationMin:
		return native.BlendOpMin, nil
	case gputypes.BlendOperationMax:
		return native.BlendOpMax, nil
	}
	return 0, core.Argumentf("unknown blend operation %d", op)
}

func compareFunction(f gputypes.CompareFunction) (uint32, error) {
	switch f {
	case gputypes.CompareFunctionNever:
		return native.CmpNever, nil
	case gputypes.CompareFunctionLess:
		return native.CmpLess, nil
	case gputypes.CompareFunctionEqual:
		return native.CmpEqual, nil
	case gputypes.CompareFunctionLessEqual:
		return native.CmpLessEqual, nil
	case gputypes.CompareFunctionGreater:
		return native.CmpGreater, nil
	case gputypes.CompareFunctionNotEqual:
		return native.CmpNotEqual, nil
	case gputypes.CompareFunctionGreaterEqual:
		return native.CmpGreaterEqual, nil
	case gputypes.CompareFunctionAlways:
		return native.CmpAlways, nil
	}
	return 0, core.Argumentf("unknown compare function %d", f)
}

func stencilOperation(op StencilOp) (uint32, error) {
	switch op {
	case StencilKeep:
		return native.StencilOpKeep, nil
	case StencilZero:
		return native.StencilOpZero, nil
	case StencilReplace:
		return native.StencilOpReplace, nil
	case StencilIncrementSaturation:
		return native.StencilOpIncrSat, nil
	case StencilDecrementSaturation:
		return native.StencilOpDecrSat, nil
	case StencilInvert:
		return native.StencilOpInvert, nil
	case StencilIncrement:
		return native.StencilOpIncr, nil
	case StencilDecrement:
		return native.StencilOpDecr, nil
	}
	return 0, core.Argumentf("unknown stencil operation %d", op)
}

func addressMode(m gputypes.AddressMode) (uint32, error) {
	switch m {
	case gputypes.AddressModeRepeat:
		return native.AddressWrap, nil
	case gputypes.AddressModeMirrorRepeat:
		return native.AddressMirror, nil
	case gputypes.AddressModeClampToEdge:
		return native.AddressClamp, nil
	}
	return 0, core.Argumentf("unknown address mode %d", m)
}

func filterMode(m gputypes.FilterMode) (uint32, error) {
	switch m {
	case gputypes.FilterModeNearest:
		return native.FilterPoint, nil
	case gputypes.FilterModeLinear:
		return native.FilterLinear, nil
	}
	return 0, core.Argumentf("unknown filter mode %d", m)
}

func colorWriteChannels(m gputypes.ColorWriteMask) uint32 {
	var v uint32
	if m&gputypes.ColorWriteMaskRed != 0 {
		v |= native.ColorWriteRed
	}
	if m&gputypes.ColorWriteMaskGreen != 0 {
		v |= native.ColorWriteGreen
	}
	if m&gputypes.ColorWriteMaskBlue != 0 {
		v |= native.ColorWriteBlue
	}
	if m&gputypes.ColorWriteMaskAlpha != 0 {
		v |= native.ColorWriteAlpha
	}
	return v
}

func channel(c float64) uint32 {
	return uint32(math.Clamp(c, 0, 1)*255 + 0.5)
}

// packColor encodes c as 0xAARRGGBB.
func packColor(c gputypes.Color) uint32 {
	return channel(float64(c.A))<<24 | channel(float64(c.R))<<16 | channel(float64(c.G))<<8 | channel(float64(c.B))
}

func isWhite(c gputypes.Color) bool {
	return packColor(c) == 0xFFFFFFFF
}
