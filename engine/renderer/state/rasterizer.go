package state

import (
	stdmath "math"

	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

// RasterizerState controls face culling and depth bias.
type RasterizerState struct {
	binding

	cullMode  gputypes.CullMode
	frontFace gputypes.FrontFace
	depthBias float32
}

func NewRasterizerState() *RasterizerState {
	return &RasterizerState{
		binding:   binding{kind: "rasterizer state"},
		cullMode:  gputypes.CullModeBack,
		frontFace: gputypes.FrontFaceCW,
	}
}

func newRasterizerPreset(cull gputypes.CullMode, front gputypes.FrontFace) *RasterizerState {
	s := NewRasterizerState()
	s.cullMode = cull
	s.frontFace = front
	s.bound = true
	return s
}

var (
	RasterizerCullNone             = newRasterizerPreset(gputypes.CullModeNone, gputypes.FrontFaceCW)
	RasterizerCullClockwise        = newRasterizerPreset(gputypes.CullModeBack, gputypes.FrontFaceCCW)
	RasterizerCullCounterClockwise = newRasterizerPreset(gputypes.CullModeBack, gputypes.FrontFaceCW)
)

// Clone returns an unbound copy that can be modified.
func (s *RasterizerState) Clone() *RasterizerState {
	c := NewRasterizerState()
	s.read(func() {
		c.cullMode = s.cullMode
		c.frontFace = s.frontFace
		c.depthBias = s.depthBias
	})
	return c
}

func (s *RasterizerState) CullMode() (m gputypes.CullMode) {
	s.read(func() { m = s.cullMode })
	return m
}

func (s *RasterizerState) FrontFace() (f gputypes.FrontFace) {
	s.read(func() { f = s.frontFace })
	return f
}

func (s *RasterizerState) DepthBias() (v float32) {
	s.read(func() { v = s.depthBias })
	return v
}

func (s *RasterizerState) SetCullMode(m gputypes.CullMode) error {
	return s.mutate("cull mode", func() { s.cullMode = m })
}

func (s *RasterizerState) SetFrontFace(f gputypes.FrontFace) error {
	return s.mutate("front face", func() { s.frontFace = f })
}

func (s *RasterizerState) SetDepthBias(v float32) error {
	return s.mutate("depth bias", func() { s.depthBias = v })
}

// Apply binds the state to target and issues its render states.
func (s *RasterizerState) Apply(target Target) error {
	cmds, err := s.commandsFor(target, s.translate)
	if err != nil {
		return err
	}
	return target.SetRenderStates(cmds)
}

// cullWinding returns the native winding to cull. Native culling names the
// winding of the faces that are dropped.
func cullWinding(mode gputypes.CullMode, front gputypes.FrontFace) (uint32, error) {
	if mode == gputypes.CullModeNone {
		return native.CullNone, nil
	}
	var cullClockwise bool
	switch {
	case mode == gputypes.CullModeBack && front == gputypes.FrontFaceCCW:
		cullClockwise = true
	case mode == gputypes.CullModeBack && front == gputypes.FrontFaceCW:
		cullClockwise = false
	case mode == gputypes.CullModeFront && front == gputypes.FrontFaceCW:
		cullClockwise = true
	case mode == gputypes.CullModeFront && front == gputypes.FrontFaceCCW:
		cullClockwise = false
	default:
		return 0, core.Argumentf("unknown cull mode %d with front face %d", mode, front)
	}
	if cullClockwise {
		return native.CullCW, nil
	}
	return native.CullCCW, nil
}

func (s *RasterizerState) translate(caps native.Capabilities) ([]native.StateCommand, error) {
	cull, err := cullWinding(s.cullMode, s.frontFace)
	if err != nil {
		return nil, err
	}
	return []native.StateCommand{
		{State: native.RenderStateCullMode, Value: cull},
		{State: native.RenderStateDepthBias, Value: stdmath.Float32bits(s.depthBias)},
	}, nil
}
