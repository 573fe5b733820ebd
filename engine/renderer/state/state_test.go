package state

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

type fakeTarget struct {
	id       uuid.UUID
	caps     native.Capabilities
	render   [][]native.StateCommand
	samplers map[int][][]native.StateCommand
}

func newTarget(caps native.Capabilities) *fakeTarget {
	return &fakeTarget{id: uuid.New(), caps: caps, samplers: make(map[int][][]native.StateCommand)}
}

func (t *fakeTarget) ID() uuid.UUID { return t.id }
func (t *fakeTarget) Capabilities() native.Capabilities { return t.caps }

func (t *fakeTarget) SetRenderStates(cmds []native.StateCommand) error {
	t.render = append(t.render, cmds)
	return nil
}

func (t *fakeTarget) SetSamplerStates(slot int, cmds []native.StateCommand) error {
	t.samplers[slot] = append(t.samplers[slot], cmds)
	return nil
}

func valueOf(t *testing.T, cmds []native.StateCommand, state uint32) uint32 {
	t.Helper()
	for _, c := range cmds {
		if c.State == state {
			return c.Value
		}
	}
	t.Fatalf("state %d not issued", state)
	return 0
}

func hasState(cmds []native.StateCommand, state uint32) bool {
	for _, c := range cmds {
		if c.State == state {
			return true
		}
	}
	return false
}

func TestUnboundStateIsMutable(t *testing.T) {
	s := NewBlendState()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.SetColor(BlendComponent{
			Source:      gputypes.BlendFactorSrcAlpha,
			Destination: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation:   gputypes.BlendOperationAdd,
		}))
	}
	assert.False(t, s.IsBound())
}

func TestBindOnceAcrossDevices(t *testing.T) {
	deviceA := newTarget(native.HiDefCapabilities())
	deviceB := newTarget(native.HiDefCapabilities())

	s := NewDepthStencilState()
	require.NoError(t, s.SetDepthBufferFunction(gputypes.CompareFunctionLess))
	require.NoError(t, s.Apply(deviceA))
	assert.True(t, s.IsBound())

	err := s.SetDepthBufferWriteEnable(false)
	assert.ErrorIs(t, err, core.ErrInvalidOperation)
	assert.True(t, s.DepthBufferWriteEnable())

	require.NoError(t, s.Apply(deviceB))
	require.Len(t, deviceB.render, 1)
	assert.Equal(t, native.CmpLess, valueOf(t, deviceB.render[0], native.RenderStateZFunc))
}

func TestApplyReissuesCommandsEveryCall(t *testing.T) {
	device := newTarget(native.HiDefCapabilities())
	s := NewRasterizerState()

	require.NoError(t, s.Apply(device))
	require.NoError(t, s.Apply(device))
	require.Len(t, device.render, 2)
	assert.Equal(t, device.render[0], device.render[1])
}

func TestPresetsAreFrozen(t *testing.T) {
	assert.ErrorIs(t, BlendOpaque.SetBlendFactor(gputypes.Color{R: 1}), core.ErrInvalidOperation)
	assert.ErrorIs(t, DepthNone.SetDepthBufferEnable(true), core.ErrInvalidOperation)
	assert.ErrorIs(t, SamplerLinearClamp.SetMaxMipLevel(3), core.ErrInvalidOperation)
	assert.ErrorIs(t, RasterizerCullNone.SetDepthBias(1), core.ErrInvalidOperation)

	clone := DepthNone.Clone()
	assert.False(t, clone.IsBound())
	require.NoError(t, clone.SetDepthBufferEnable(true))
	assert.False(t, DepthNone.DepthBufferEnable())
}

func TestPresetsApply(t *testing.T) {
	device := newTarget(native.HiDefCapabilities())

	require.NoError(t, BlendAlphaBlend.Apply(device))
	cmds := device.render[0]
	assert.Equal(t, uint32(1), valueOf(t, cmds, native.RenderStateAlphaBlendEnable))
	assert.Equal(t, native.BlendOne, valueOf(t, cmds, native.RenderStateSrcBlend))
	assert.Equal(t, native.BlendInvSrcAlpha, valueOf(t, cmds, native.RenderStateDestBlend))

	require.NoError(t, BlendOpaque.Apply(device))
	assert.Equal(t, uint32(0), valueOf(t, device.render[1], native.RenderStateAlphaBlendEnable))
}

func TestSeparateAlphaBlendNeedsCapability(t *testing.T) {
	s := NewBlendState()
	require.NoError(t, s.SetAlpha(BlendComponent{
		Source:      gputypes.BlendFactorOne,
		Destination: gputypes.BlendFactorOne,
		Operation:   gputypes.BlendOperationMax,
	}))

	reach := newTarget(native.ReachCapabilities())
	err := s.Apply(reach)
	assert.ErrorIs(t, err, core.ErrNotSupported)
	var nse *core.NotSupportedError
	require.ErrorAs(t, err, &nse)
	assert.Equal(t, native.ProfileReach, nse.Profile)
	assert.Empty(t, reach.render, "no native call before the capability check")
	assert.False(t, s.IsBound())

	hidef := newTarget(native.HiDefCapabilities())
	require.NoError(t, s.Apply(hidef))
	cmds := hidef.render[0]
	assert.Equal(t, uint32(1), valueOf(t, cmds, native.RenderStateSeparateAlphaBlendEnable))
	assert.Equal(t, native.BlendOpMax, valueOf(t, cmds, native.RenderStateBlendOpAlpha))
}

func TestBlendFactorNeedsCapability(t *testing.T) {
	s := NewBlendState()
	require.NoError(t, s.SetBlendFactor(gputypes.Color{R: 0.5, G: 0.5, B: 0.5, A: 1}))

	assert.ErrorIs(t, s.Apply(newTarget(native.ReachCapabilities())), core.ErrNotSupported)

	hidef := newTarget(native.HiDefCapabilities())
	require.NoError(t, s.Apply(hidef))
	assert.Equal(t, uint32(0xFF808080), valueOf(t, hidef.render[0], native.RenderStateBlendFactor))
}

func TestIndependentWriteChannelsLimitedByRenderTargets(t *testing.T) {
	s := NewBlendState()
	require.NoError(t, s.SetColorWriteChannels(2, gputypes.ColorWriteMaskRed))
	assert.ErrorIs(t, s.SetColorWriteChannels(4, gputypes.ColorWriteMaskRed), core.ErrArgumentOutOfRange)

	assert.ErrorIs(t, s.Apply(newTarget(native.ReachCapabilities())), core.ErrNotSupported)

	hidef := newTarget(native.HiDefCapabilities())
	require.NoError(t, s.Apply(hidef))
	assert.Equal(t, native.ColorWriteRed, valueOf(t, hidef.render[0], native.RenderStateColorWriteEnable2))
}

func TestTwoSidedStencil(t *testing.T) {
	s := NewDepthStencilState()
	require.NoError(t, s.SetStencilEnable(true))
	require.NoError(t, s.SetTwoSidedStencilMode(true))
	require.NoError(t, s.SetCounterClockwiseStencil(StencilFace{
		Function:        gputypes.CompareFunctionNotEqual,
		Pass:            StencilIncrement,
		Fail:            StencilKeep,
		DepthBufferFail: StencilDecrement,
	}))

	assert.ErrorIs(t, s.Apply(newTarget(native.ReachCapabilities())), core.ErrNotSupported)

	hidef := newTarget(native.HiDefCapabilities())
	require.NoError(t, s.Apply(hidef))
	cmds := hidef.render[0]
	assert.Equal(t, native.CmpNotEqual, valueOf(t, cmds, native.RenderStateCCWStencilFunc))
	assert.Equal(t, native.StencilOpIncr, valueOf(t, cmds, native.RenderStateCCWStencilPass))
	assert.Equal(t, native.StencilOpDecr, valueOf(t, cmds, native.RenderStateCCWStencilZFail))
}

func TestStencilDisabledSkipsStencilStates(t *testing.T) {
	device := newTarget(native.HiDefCapabilities())
	require.NoError(t, DepthRead.Apply(device))
	cmds := device.render[0]
	assert.Equal(t, uint32(0), valueOf(t, cmds, native.RenderStateZWriteEnable))
	assert.False(t, hasState(cmds, native.RenderStateStencilFunc))
}

func TestCullWinding(t *testing.T) {
	tests := []struct {
		name  string
		mode  gputypes.CullMode
		front gputypes.FrontFace
		want  uint32
	}{
		{"none", gputypes.CullModeNone, gputypes.FrontFaceCCW, native.CullNone},
		{"back ccw", gputypes.CullModeBack, gputypes.FrontFaceCCW, native.CullCW},
		{"back cw", gputypes.CullModeBack, gputypes.FrontFaceCW, native.CullCCW},
		{"front cw", gputypes.CullModeFront, gputypes.FrontFaceCW, native.CullCW},
		{"front ccw", gputypes.CullModeFront, gputypes.FrontFaceCCW, native.CullCCW},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cullWinding(tt.mode, tt.front)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSamplerApply(t *testing.T) {
	device := newTarget(native.HiDefCapabilities())

	require.NoError(t, SamplerAnisotropicClamp.Apply(device, 3))
	cmds := device.samplers[3][0]
	assert.Equal(t, native.AddressClamp, valueOf(t, cmds, native.SamplerStateAddressU))
	assert.Equal(t, native.FilterAnisotropic, valueOf(t, cmds, native.SamplerStateMinFilter))
	assert.Equal(t, uint32(4), valueOf(t, cmds, native.SamplerStateMaxAnisotropy))

	require.NoError(t, SamplerPointWrap.Apply(device, 0))
	cmds = device.samplers[0][0]
	assert.Equal(t, native.AddressWrap, valueOf(t, cmds, native.SamplerStateAddressV))
	assert.Equal(t, native.FilterPoint, valueOf(t, cmds, native.SamplerStateMagFilter))
}

func TestSamplerLimits(t *testing.T) {
	reach := newTarget(native.ReachCapabilities())

	s := NewSamplerState()
	require.NoError(t, s.SetMaxAnisotropy(8))
	assert.ErrorIs(t, s.Apply(reach, 0), core.ErrNotSupported)
	assert.ErrorIs(t, s.SetMaxAnisotropy(0), core.ErrArgumentOutOfRange)

	assert.ErrorIs(t, SamplerLinearWrap.Apply(reach, reach.caps.MaxSamplers), core.ErrArgumentOutOfRange)
	assert.ErrorIs(t, SamplerLinearWrap.Apply(reach, -1), core.ErrArgumentOutOfRange)
	assert.Empty(t, reach.samplers)
}

func TestApplyNilTarget(t *testing.T) {
	assert.ErrorIs(t, NewBlendState().Apply(nil), core.ErrArgument)
}
