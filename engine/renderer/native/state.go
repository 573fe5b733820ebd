package native

// StateCommand sets one native render or sampler state.
type StateCommand struct {
	State uint32
	Value uint32
}

// Render state identifiers.
const (
	RenderStateZEnable                  uint32 = 7
	RenderStateFillMode                 uint32 = 8
	RenderStateZWriteEnable             uint32 = 14
	RenderStateSrcBlend                 uint32 = 19
	RenderStateDestBlend                uint32 = 20
	RenderStateCullMode                 uint32 = 22
	RenderStateZFunc                    uint32 = 23
	RenderStateAlphaBlendEnable         uint32 = 27
	RenderStateStencilEnable            uint32 = 52
	RenderStateStencilFail              uint32 = 53
	RenderStateStencilZFail             uint32 = 54
	RenderStateStencilPass              uint32 = 55
	RenderStateStencilFunc              uint32 = 56
	RenderStateStencilRef               uint32 = 57
	RenderStateStencilMask              uint32 = 58
	RenderStateStencilWriteMask         uint32 = 59
	RenderStateMultiSampleMask          uint32 = 162
	RenderStateBlendOp                  uint32 = 171
	RenderStateTwoSidedStencilMode      uint32 = 185
	RenderStateCCWStencilFail           uint32 = 186
	RenderStateCCWStencilZFail          uint32 = 187
	RenderStateCCWStencilPass           uint32 = 188
	RenderStateCCWStencilFunc           uint32 = 189
	RenderStateColorWriteEnable         uint32 = 168
	RenderStateColorWriteEnable1        uint32 = 190
	RenderStateColorWriteEnable2        uint32 = 191
	RenderStateColorWriteEnable3        uint32 = 192
	RenderStateBlendFactor              uint32 = 193
	RenderStateDepthBias                uint32 = 195
	RenderStateSeparateAlphaBlendEnable uint32 = 206
	RenderStateSrcBlendAlpha            uint32 = 207
	RenderStateDestBlendAlpha           uint32 = 208
	RenderStateBlendOpAlpha             uint32 = 209
)

// Sampler state identifiers.
const (
	SamplerStateAddressU      uint32 = 1
	SamplerStateAddressV      uint32 = 2
	SamplerStateAddressW      uint32 = 3
	SamplerStateMagFilter     uint32 = 5
	SamplerStateMinFilter     uint32 = 6
	SamplerStateMipFilter     uint32 = 7
	SamplerStateMipMapLodBias uint32 = 8
	SamplerStateMaxMipLevel   uint32 = 9
	SamplerStateMaxAnisotropy uint32 = 10
)

// Blend factor values.
const (
	BlendZero           uint32 = 1
	BlendOne            uint32 = 2
	BlendSrcColor       uint32 = 3
	BlendInvSrcColor    uint32 = 4
	BlendSrcAlpha       uint32 = 5
	BlendInvSrcAlpha    uint32 = 6
	BlendDestAlpha      uint32 = 7
	BlendInvDestAlpha   uint32 = 8
	BlendDestColor      uint32 = 9
	BlendInvDestColor   uint32 = 10
	BlendSrcAlphaSat    uint32 = 11
	BlendBlendFactor    uint32 = 14
	BlendInvBlendFactor uint32 = 15
)

// Blend operation values.
const (
	BlendOpAdd         uint32 = 1
	BlendOpSubtract    uint32 = 2
	BlendOpRevSubtract uint32 = 3
	BlendOpMin         uint32 = 4
	BlendOpMax         uint32 = 5
)

// Comparison function values.
const (
	CmpNever        uint32 = 1
	CmpLess         uint32 = 2
	CmpEqual        uint32 = 3
	CmpLessEqual    uint32 = 4
	CmpGreater      uint32 = 5
	CmpNotEqual     uint32 = 6
	CmpGreaterEqual uint32 = 7
	CmpAlways       uint32 = 8
)

// Stencil operation values.
const (
	StencilOpKeep    uint32 = 1
	StencilOpZero    uint32 = 2
	StencilOpReplace uint32 = 3
	StencilOpIncrSat uint32 = 4
	StencilOpDecrSat uint32 = 5
	StencilOpInvert  uint32 = 6
	StencilOpIncr    uint32 = 7
	StencilOpDecr    uint32 = 8
)

// Cull mode values.
const (
	CullNone uint32 = 1
	CullCW   uint32 = 2
	CullCCW  uint32 = 3
)

// Texture address values.
const (
	AddressWrap   uint32 = 1
	AddressMirror uint32 = 2
	AddressClamp  uint32 = 3
)

// Texture filter values.
const (
	FilterNone        uint32 = 0
	FilterPoint       uint32 = 1
	FilterLinear      uint32 = 2
	FilterAnisotropic uint32 = 3
)

// Colour write channel bits.
const (
	ColorWriteRed   uint32 = 1 << 0
	ColorWriteGreen uint32 = 1 << 1
	ColorWriteBlue  uint32 = 1 << 2
	ColorWriteAlpha uint32 = 1 << 3
)
