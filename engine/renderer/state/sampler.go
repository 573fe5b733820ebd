package state

import (
	stdmath "math"

	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

// SamplerState controls how a texture slot is sampled.
type SamplerState struct {
	binding

	addressU      gputypes.AddressMode
	addressV      gputypes.AddressMode
	addressW      gputypes.AddressMode
	minFilter     gputypes.FilterMode
	magFilter     gputypes.FilterMode
	mipFilter     gputypes.FilterMode
	maxAnisotropy uint32
	maxMipLevel   uint32
	mipLodBias    float32
}

func NewSamplerState() *SamplerState {
	return &SamplerState{
		binding:       binding{kind: "sampler state"},
		addressU:      gputypes.AddressModeRepeat,
		addressV:      gputypes.AddressModeRepeat,
		addressW:      gputypes.AddressModeRepeat,
		minFilter:     gputypes.FilterModeLinear,
		magFilter:     gputypes.FilterModeLinear,
		mipFilter:     gputypes.FilterModeLinear,
		maxAnisotropy: 1,
	}
}

func newSamplerPreset(filter gputypes.FilterMode, address gputypes.AddressMode, anisotropy uint32) *SamplerState {
	s := NewSamplerState()
	s.addressU, s.addressV, s.addressW = address, address, address
	s.minFilter, s.magFilter, s.mipFilter = filter, filter, filter
	s.maxAnisotropy = anisotropy
	s.bound = true
	return s
}

var (
	SamplerPointWrap        = newSamplerPreset(gputypes.FilterModeNearest, gputypes.AddressModeRepeat, 1)
	SamplerPointClamp       = newSamplerPreset(gputypes.FilterModeNearest, gputypes.AddressModeClampToEdge, 1)
	SamplerLinearWrap       = newSamplerPreset(gputypes.FilterModeLinear, gputypes.AddressModeRepeat, 1)
	SamplerLinearClamp      = newSamplerPreset(gputypes.FilterModeLinear, gputypes.AddressModeClampToEdge, 1)
	SamplerAnisotropicWrap  = newSamplerPreset(gputypes.FilterModeLinear, gputypes.AddressModeRepeat, 4)
	SamplerAnisotropicClamp = newSamplerPreset(gputypes.FilterModeLinear, gputypes.AddressModeClampToEdge, 4)
)

// Clone returns an unbound copy that can be modified.
func (s *SamplerState) Clone() *SamplerState {
	c := NewSamplerState()
	s.read(func() {
		c.addressU, c.addressV, c.addressW = s.addressU, s.addressV, s.addressW
		c.minFilter, c.magFilter, c.mipFilter = s.minFilter, s.magFilter, s.mipFilter
		c.maxAnisotropy = s.maxAnisotropy
		c.maxMipLevel = s.maxMipLevel
		c.mipLodBias = s.mipLodBias
	})
	return c
}

func (s *SamplerState) Address() (u, v, w gputypes.AddressMode) {
	s.read(func() { u, v, w = s.addressU, s.addressV, s.addressW })
	return u, v, w
}

func (s *SamplerState) Filter() (min, mag, mip gputypes.FilterMode) {
	s.read(func() { min, mag, mip = s.minFilter, s.magFilter, s.mipFilter })
	return min, mag, mip
}

func (s *SamplerState) MaxAnisotropy() (v uint32) {
	s.read(func() { v = s.maxAnisotropy })
	return v
}

func (s *SamplerState) MaxMipLevel() (v uint32) {
	s.read(func() { v = s.maxMipLevel })
	return v
}

func (s *SamplerState) MipMapLevelOfDetailBias() (v float32) {
	s.read(func() { v = s.mipLodBias })
	return v
}

func (s *SamplerState) SetAddress(u, v, w gputypes.AddressMode) error {
	return s.mutate("address mode", func() { s.addressU, s.addressV, s.addressW = u, v, w })
}

func (s *SamplerState) SetFilter(min, mag, mip gputypes.FilterMode) error {
	return s.mutate("filter", func() { s.minFilter, s.magFilter, s.mipFilter = min, mag, mip })
}

// SetMaxAnisotropy sets the anisotropy level; values above one enable
// anisotropic filtering.
func (s *SamplerState) SetMaxAnisotropy(v uint32) error {
	if v == 0 {
		return core.ArgumentOutOfRangef("max anisotropy must be at least 1")
	}
	return s.mutate("max anisotropy", func() { s.maxAnisotropy = v })
}

func (s *SamplerState) SetMaxMipLevel(v uint32) error {
	return s.mutate("max mip level", func() { s.maxMipLevel = v })
}

func (s *SamplerState) SetMipMapLevelOfDetailBias(v float32) error {
	return s.mutate("mip map level of detail bias", func() { s.mipLodBias = v })
}

// Apply binds the state to target and issues its sampler states for slot.
func (s *SamplerState) Apply(target Target, slot int) error {
	if target != nil {
		if caps := target.Capabilities(); slot < 0 || slot >= caps.MaxSamplers {
			return core.ArgumentOutOfRangef("sampler slot %d outside [0, %d)", slot, caps.MaxSamplers)
		}
	}
	cmds, err := s.commandsFor(target, s.translate)
	if err != nil {
		return err
	}
	return target.SetSamplerStates(slot, cmds)
}

func (s *SamplerState) translate(caps native.Capabilities) ([]native.StateCommand, error) {
	if s.maxAnisotropy > caps.MaxAnisotropy {
		return nil, core.NotSupported("anisotropic filtering level", caps.MaxAnisotropy, caps.Profile)
	}

	var cmds []native.StateCommand
	for _, a := range []struct {
		state uint32
		mode  gputypes.AddressMode
	}{
		{native.SamplerStateAddressU, s.addressU},
		{native.SamplerStateAddressV, s.addressV},
		{native.SamplerStateAddressW, s.addressW},
	} {
		v, err := addressMode(a.mode)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, native.StateCommand{State: a.state, Value: v})
	}

	min, err := filterMode(s.minFilter)
	if err != nil {
		return nil, err
	}
	mag, err := filterMode(s.magFilter)
	if err != nil {
		return nil, err
	}
	mip, err := filterMode(s.mipFilter)
	if err != nil {
		return nil, err
	}
	if s.maxAnisotropy > 1 {
		min, mag = native.FilterAnisotropic, native.FilterAnisotropic
	}

	cmds = append(cmds,
		native.StateCommand{State: native.SamplerStateMinFilter, Value: min},
		native.StateCommand{State: native.SamplerStateMagFilter, Value: mag},
		native.StateCommand{State: native.SamplerStateMipFilter, Value: mip},
		native.StateCommand{State: native.SamplerStateMaxAnisotropy, Value: s.maxAnisotropy},
		native.StateCommand{State: native.SamplerStateMaxMipLevel, Value: s.maxMipLevel},
		native.StateCommand{State: native.SamplerStateMipMapLodBias, Value: stdmath.Float32bits(s.mipLodBias)},
	)
	return cmds, nil
}
