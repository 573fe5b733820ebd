package state

import (
	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

// StencilFace is the stencil test of one face winding.
type StencilFace struct {
	Function        gputypes.CompareFunction
	Pass            StencilOp
	Fail            StencilOp
	DepthBufferFail StencilOp
}

func defaultStencilFace() StencilFace {
	return StencilFace{
		Function:        gputypes.CompareFunctionAlways,
		Pass:            StencilKeep,
		Fail:            StencilKeep,
		DepthBufferFail: StencilKeep,
	}
}

func (f StencilFace) commands(function, pass, fail, depthFail uint32) ([]native.StateCommand, error) {
	fn, err := compareFunction(f.Function)
	if err != nil {
		return nil, err
	}
	p, err := stencilOperation(f.Pass)
	if err != nil {
		return nil, err
	}
	fl, err := stencilOperation(f.Fail)
	if err != nil {
		return nil, err
	}
	df, err := stencilOperation(f.DepthBufferFail)
	if err != nil {
		return nil, err
	}
	return []native.StateCommand{
		{State: function, Value: fn},
		{State: pass, Value: p},
		{State: fail, Value: fl},
		{State: depthFail, Value: df},
	}, nil
}

// DepthStencilState controls the depth and stencil tests.
type DepthStencilState struct {
	binding

	depthEnable      bool
	depthWriteEnable bool
	depthFunction    gputypes.CompareFunction

	stencilEnable    bool
	twoSided         bool
	front            StencilFace
	counterClockwise StencilFace
	reference        uint32
	stencilMask      uint32
	stencilWriteMask uint32
}

func NewDepthStencilState() *DepthStencilState {
	return &DepthStencilState{
		binding:          binding{kind: "depth stencil state"},
		depthEnable:      true,
		depthWriteEnable: true,
		depthFunction:    gputypes.CompareFunctionLessEqual,
		front:            defaultStencilFace(),
		counterClockwise: defaultStencilFace(),
		stencilMask:      0xFFFFFFFF,
		stencilWriteMask: 0xFFFFFFFF,
	}
}

func newDepthPreset(enable, write bool) *DepthStencilState {
	s := NewDepthStencilState()
	s.depthEnable = enable
	s.depthWriteEnable = write
	s.bound = true
	return s
}

var (
	DepthDefault = newDepthPreset(true, true)
	DepthRead    = newDepthPreset(true, false)
	DepthNone    = newDepthPreset(false, false)
)

// Clone returns an unbound copy that can be modified.
func (s *DepthStencilState) Clone() *DepthStencilState {
	c := NewDepthStencilState()
	s.read(func() {
		c.depthEnable = s.depthEnable
		c.depthWriteEnable = s.depthWriteEnable
		c.depthFunction = s.depthFunction
		c.stencilEnable = s.stencilEnable
		c.twoSided = s.twoSided
		c.front = s.front
		c.counterClockwise = s.counterClockwise
		c.reference = s.reference
		c.stencilMask = s.stencilMask
		c.stencilWriteMask = s.stencilWriteMask
	})
	return c
}

func (s *DepthStencilState) DepthBufferEnable() (v bool) {
	s.read(func() { v = s.depthEnable })
	return v
}

func (s *DepthStencilState) DepthBufferWriteEnable() (v bool) {
	s.read(func() { v = s.depthWriteEnable })
	return v
}

func (s *DepthStencilState) DepthBufferFunction() (f gputypes.CompareFunction) {
	s.read(func() { f = s.depthFunction })
	return f
}

func (s *DepthStencilState) StencilEnable() (v bool) {
	s.read(func() { v = s.stencilEnable })
	return v
}

func (s *DepthStencilState) TwoSidedStencilMode() (v bool) {
	s.read(func() { v = s.twoSided })
	return v
}

func (s *DepthStencilState) Stencil() (f StencilFace) {
	s.read(func() { f = s.front })
	return f
}

func (s *DepthStencilState) CounterClockwiseStencil() (f StencilFace) {
	s.read(func() { f = s.counterClockwise })
	return f
}

func (s *DepthStencilState) ReferenceStencil() (v uint32) {
	s.read(func() { v = s.reference })
	return v
}

func (s *DepthStencilState) SetDepthBufferEnable(v bool) error {
	return s.mutate("depth buffer enable", func() { s.depthEnable = v })
}

func (s *DepthStencilState) SetDepthBufferWriteEnable(v bool) error {
	return s.mutate("depth buffer write enable", func() { s.depthWriteEnable = v })
}

func (s *DepthStencilState) SetDepthBufferFunction(f gputypes.CompareFunction) error {
	return s.mutate("depth buffer function", func() { s.depthFunction = f })
}

func (s *DepthStencilState) SetStencilEnable(v bool) error {
	return s.mutate("stencil enable", func() { s.stencilEnable = v })
}

func (s *DepthStencilState) SetTwoSidedStencilMode(v bool) error {
	return s.mutate("two sided stencil mode", func() { s.twoSided = v })
}

func (s *DepthStencilState) SetStencil(f StencilFace) error {
	return s.mutate("stencil", func() { s.front = f })
}

func (s *DepthStencilState) SetCounterClockwiseStencil(f StencilFace) error {
	return s.mutate("counter clockwise stencil", func() { s.counterClockwise = f })
}

func (s *DepthStencilState) SetReferenceStencil(v uint32) error {
	return s.mutate("reference stencil", func() { s.reference = v })
}

func (s *DepthStencilState) SetStencilMask(v uint32) error {
	return s.mutate("stencil mask", func() { s.stencilMask = v })
}

func (s *DepthStencilState) SetStencilWriteMask(v uint32) error {
	return s.mutate("stencil write mask", func() { s.stencilWriteMask = v })
}

// Apply binds the state to target and issues its render states.
func (s *DepthStencilState) Apply(target Target) error {
	cmds, err := s.commandsFor(target, s.translate)
	if err != nil {
		return err
	}
	return target.SetRenderStates(cmds)
}

func (s *DepthStencilState) translate(caps native.Capabilities) ([]native.StateCommand, error) {
	if s.stencilEnable && s.twoSided && !caps.TwoSidedStencil {
		return nil, core.NotSupported("two sided stencil", nil, caps.Profile)
	}

	zfunc, err := compareFunction(s.depthFunction)
	if err != nil {
		return nil, err
	}
	cmds := []native.StateCommand{
		{State: native.RenderStateZEnable, Value: boolValue(s.depthEnable)},
		{State: native.RenderStateZWriteEnable, Value: boolValue(s.depthWriteEnable)},
		{State: native.RenderStateZFunc, Value: zfunc},
		{State: native.RenderStateStencilEnable, Value: boolValue(s.stencilEnable)},
	}
	if !s.stencilEnable {
		return cmds, nil
	}

	front, err := s.front.commands(native.RenderStateStencilFunc, native.RenderStateStencilPass,
		native.RenderStateStencilFail, native.RenderStateStencilZFail)
	if err != nil {
		return nil, err
	}
	cmds = append(cmds, front...)
	cmds = append(cmds,
		native.StateCommand{State: native.RenderStateStencilRef, Value: s.reference},
		native.StateCommand{State: native.RenderStateStencilMask, Value: s.stencilMask},
		native.StateCommand{State: native.RenderStateStencilWriteMask, Value: s.stencilWriteMask},
	)

	if caps.TwoSidedStencil {
		cmds = append(cmds, native.StateCommand{State: native.RenderStateTwoSidedStencilMode, Value: boolValue(s.twoSided)})
	}
	if s.twoSided {
		ccw, err := s.counterClockwise.commands(native.RenderStateCCWStencilFunc, native.RenderStateCCWStencilPass,
			native.RenderStateCCWStencilFail, native.RenderStateCCWStencilZFail)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, ccw...)
	}
	return cmds, nil
}
