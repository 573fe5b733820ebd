package state

import (
	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

// BlendComponent describes how one channel group is combined with the
// render target.
type BlendComponent struct {
	Source      gputypes.BlendFactor
	Destination gputypes.BlendFactor
	Operation   gputypes.BlendOperation
}

func (c BlendComponent) disabled() bool {
	return c.Source == gputypes.BlendFactorOne && c.Destination == gputypes.BlendFactorZero && c.Operation == gputypes.BlendOperationAdd
}

// BlendState controls how pixel colours are blended into the render targets.
type BlendState struct {
	binding

	color           BlendComponent
	alpha           BlendComponent
	blendFactor     gputypes.Color
	writeChannels   [4]gputypes.ColorWriteMask
	multiSampleMask uint32
}

func NewBlendState() *BlendState {
	return &BlendState{
		binding: binding{kind: "blend state"},
		color: BlendComponent{
			Source:      gputypes.BlendFactorOne,
			Destination: gputypes.BlendFactorZero,
			Operation:   gputypes.BlendOperationAdd,
		},
		alpha: BlendComponent{
			Source:      gputypes.BlendFactorOne,
			Destination: gputypes.BlendFactorZero,
			Operation:   gputypes.BlendOperationAdd,
		},
		blendFactor: gputypes.Color{R: 1, G: 1, B: 1, A: 1},
		writeChannels: [4]gputypes.ColorWriteMask{
			gputypes.ColorWriteMaskAll, gputypes.ColorWriteMaskAll,
			gputypes.ColorWriteMaskAll, gputypes.ColorWriteMaskAll,
		},
		multiSampleMask: 0xFFFFFFFF,
	}
}

func newBlendPreset(src, dst gputypes.BlendFactor) *BlendState {
	s := NewBlendState()
	s.color = BlendComponent{Source: src, Destination: dst, Operation: gputypes.BlendOperationAdd}
	s.alpha = s.color
	s.bound = true
	return s
}

var (
	BlendOpaque           = newBlendPreset(gputypes.BlendFactorOne, gputypes.BlendFactorZero)
	BlendAlphaBlend       = newBlendPreset(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha)
	BlendAdditive         = newBlendPreset(gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOne)
	BlendNonPremultiplied = newBlendPreset(gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOneMinusSrcAlpha)
)

// Clone returns an unbound copy that can be modified.
func (s *BlendState) Clone() *BlendState {
	c := NewBlendState()
	s.read(func() {
		c.color = s.color
		c.alpha = s.alpha
		c.blendFactor = s.blendFactor
		c.writeChannels = s.writeChannels
		c.multiSampleMask = s.multiSampleMask
	})
	return c
}

func (s *BlendState) Color() (c BlendComponent) {
	s.read(func() { c = s.color })
	return c
}

func (s *BlendState) Alpha() (c BlendComponent) {
	s.read(func() { c = s.alpha })
	return c
}

func (s *BlendState) BlendFactor() (c gputypes.Color) {
	s.read(func() { c = s.blendFactor })
	return c
}

func (s *BlendState) ColorWriteChannels(target int) (m gputypes.ColorWriteMask) {
	if target < 0 || target >= len(s.writeChannels) {
		return gputypes.ColorWriteMaskNone
	}
	s.read(func() { m = s.writeChannels[target] })
	return m
}

func (s *BlendState) MultiSampleMask() (m uint32) {
	s.read(func() { m = s.multiSampleMask })
	return m
}

func (s *BlendState) SetColor(c BlendComponent) error {
	return s.mutate("color blend", func() { s.color = c })
}

func (s *BlendState) SetAlpha(c BlendComponent) error {
	return s.mutate("alpha blend", func() { s.alpha = c })
}

func (s *BlendState) SetBlendFactor(c gputypes.Color) error {
	return s.mutate("blend factor", func() { s.blendFactor = c })
}

// SetColorWriteChannels sets the write mask of one of the four render target slots.
func (s *BlendState) SetColorWriteChannels(target int, m gputypes.ColorWriteMask) error {
	if target < 0 || target >= len(s.writeChannels) {
		return core.ArgumentOutOfRangef("color write channels target %d", target)
	}
	return s.mutate("color write channels", func() { s.writeChannels[target] = m })
}

func (s *BlendState) SetMultiSampleMask(m uint32) error {
	return s.mutate("multisample mask", func() { s.multiSampleMask = m })
}

// Apply binds the state to target and issues its render states.
func (s *BlendState) Apply(target Target) error {
	cmds, err := s.commandsFor(target, s.translate)
	if err != nil {
		return err
	}
	return target.SetRenderStates(cmds)
}

func (s *BlendState) translate(caps native.Capabilities) ([]native.StateCommand, error) {
	separate := s.color != s.alpha
	if separate && !caps.SeparateAlphaBlend {
		return nil, core.NotSupported("separate alpha blending", nil, caps.Profile)
	}
	constant := usesConstant(s.color.Source) || usesConstant(s.color.Destination) ||
		usesConstant(s.alpha.Source) || usesConstant(s.alpha.Destination)
	if (constant || !isWhite(s.blendFactor)) && !caps.BlendFactor {
		return nil, core.NotSupported("blend factor", nil, caps.Profile)
	}
	for i := 1; i < len(s.writeChannels); i++ {
		if s.writeChannels[i] != s.writeChannels[0] && i >= caps.MaxRenderTargets {
			return nil, core.NotSupported("independent color write channels", caps.MaxRenderTargets, caps.Profile)
		}
	}

	src, err := blendFactor(s.color.Source)
	if err != nil {
		return nil, err
	}
	dst, err := blendFactor(s.color.Destination)
	if err != nil {
		return nil, err
	}
	op, err := blendOperation(s.color.Operation)
	if err != nil {
		return nil, err
	}

	enabled := !s.color.disabled() || !s.alpha.disabled()
	cmds := []native.StateCommand{
		{State: native.RenderStateAlphaBlendEnable, Value: boolValue(enabled)},
		{State: native.RenderStateSrcBlend, Value: src},
		{State: native.RenderStateDestBlend, Value: dst},
		{State: native.RenderStateBlendOp, Value: op},
	}

	if caps.SeparateAlphaBlend {
		cmds = append(cmds, native.StateCommand{State: native.RenderStateSeparateAlphaBlendEnable, Value: boolValue(separate)})
	}
	if separate {
		asrc, err := blendFactor(s.alpha.Source)
		if err != nil {
			return nil, err
		}
		adst, err := blendFactor(s.alpha.Destination)
		if err != nil {
			return nil, err
		}
		aop, err := blendOperation(s.alpha.Operation)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds,
			native.StateCommand{State: native.RenderStateSrcBlendAlpha, Value: asrc},
			native.StateCommand{State: native.RenderStateDestBlendAlpha, Value: adst},
			native.StateCommand{State: native.RenderStateBlendOpAlpha, Value: aop},
		)
	}
	if caps.BlendFactor {
		cmds = append(cmds, native.StateCommand{State: native.RenderStateBlendFactor, Value: packColor(s.blendFactor)})
	}

	writeStates := [4]uint32{
		native.RenderStateColorWriteEnable,
		native.RenderStateColorWriteEnable1,
		native.RenderStateColorWriteEnable2,
		native.RenderStateColorWriteEnable3,
	}
	for i, m := range s.writeChannels {
		if i >= caps.MaxRenderTargets && i > 0 {
			break
		}
		cmds = append(cmds, native.StateCommand{State: writeStates[i], Value: colorWriteChannels(m)})
	}
	cmds = append(cmds, native.StateCommand{State: native.RenderStateMultiSampleMask, Value: s.multiSampleMask})
	return cmds, nil
}
