package testbed

import (
	"encoding/binary"
	stdmath "math"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/continuum/engine"
	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/device"
	"github.com/spaghettifunk/continuum/engine/renderer/layout"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
	"github.com/spaghettifunk/continuum/engine/renderer/native/memory"
	"github.com/spaghettifunk/continuum/engine/renderer/state"
)

const (
	// frames between two simulated driver resets
	loseEvery = 120
	// how long a lost device stays lost
	lostFor = 250 * time.Millisecond
	// frames between two switches of the device type
	switchEvery = 300

	quadVertices = 4
	quadStride   = 20
	colorStride  = 4
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	device *device.Device

	width  uint32
	height uint32
	frame  uint64
	lost   atomic.Bool

	quad       *device.VertexBuffer
	colors     *device.VertexBuffer
	indices    *device.IndexBuffer
	checker    *device.Texture
	offscreen  *device.RenderTarget
	effect     *device.Effect
	effectCopy *device.Effect

	geometry *layout.Binding
	tint     *layout.Binding

	// every resource in creation order
	owned []interface{ Dispose() }

	resets    int
	refilled  int
	destroyed int
}

func NewTestGame(configPath string, headless bool, maxFrames uint64) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				StartPosX:  100,
				StartPosY:  100,
				Name:       "Continuum Testbed",
				ConfigPath: configPath,
				Headless:   headless,
				MaxFrames:  maxFrames,
			},
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(d *device.Device) error {
	core.LogDebug("TestGame Initialize fn....")
	s := g.state()
	s.device = d

	bus := d.Events()
	bus.Register(core.EVENT_CODE_DEVICE_RESETTING, g, g.onDeviceEvent)
	bus.Register(core.EVENT_CODE_DEVICE_RESET, g, g.onDeviceEvent)
	bus.Register(core.EVENT_CODE_DEVICE_LOST, g, g.onDeviceEvent)
	bus.Register(core.EVENT_CODE_RESOURCE_CREATED, g, g.onResourceEvent)
	bus.Register(core.EVENT_CODE_RESOURCE_DESTROYED, g, g.onResourceEvent)

	var err error
	if s.quad, err = d.NewVertexBuffer(quadVertices*quadStride, false); err != nil {
		return err
	}
	s.owned = append(s.owned, s.quad)
	if err := s.quad.SetData(0, quadData()); err != nil {
		return err
	}
	_ = s.quad.SetName("quad")

	if s.colors, err = d.NewVertexBuffer(quadVertices*colorStride, true); err != nil {
		return err
	}
	s.owned = append(s.owned, s.colors)
	_ = s.colors.SetName("quad colors")
	if err := g.fillColors(0); err != nil {
		return err
	}

	if s.indices, err = d.NewIndexBuffer(device.IndexSixteenBits, 6, false); err != nil {
		return err
	}
	s.owned = append(s.owned, s.indices)
	if err := s.indices.SetData(0, []byte{0, 0, 1, 0, 2, 0, 2, 0, 1, 0, 3, 0}); err != nil {
		return err
	}

	if s.checker, err = d.NewTexture(8, 8, native.FormatA8R8G8B8); err != nil {
		return err
	}
	s.owned = append(s.owned, s.checker)
	if err := s.checker.SetData(checkerboard(8, 8)); err != nil {
		return err
	}
	_ = s.checker.SetName("checker")

	if s.offscreen, err = d.NewRenderTarget(256, 256, native.FormatA8R8G8B8); err != nil {
		return err
	}
	s.owned = append(s.owned, s.offscreen)
	_ = s.offscreen.SetName("offscreen")

	if s.effect, err = d.NewEffect([]byte("technique Textured { pass P0 {} }")); err != nil {
		return err
	}
	s.owned = append(s.owned, s.effect)
	if s.effectCopy, err = s.effect.Clone(); err != nil {
		return err
	}
	s.owned = append(s.owned, s.effectCopy)

	s.geometry, err = d.Layouts().CreateBinding(layout.NewVertexLayout(quadStride,
		layout.Element{Offset: 0, Format: gputypes.VertexFormatFloat32x3, Usage: native.DeclUsagePosition},
		layout.Element{Offset: 12, Format: gputypes.VertexFormatFloat32x2, Usage: native.DeclUsageTexCoord},
	))
	if err != nil {
		return err
	}
	s.tint, err = d.Layouts().CreateBinding(layout.NewVertexLayout(colorStride,
		layout.Element{Offset: 0, Format: gputypes.VertexFormatUnorm8x4, Usage: native.DeclUsageColor},
	))
	return err
}

func (g *TestGame) Update(deltaTime float64) error {
	s := g.state()
	s.frame++

	md, ok := s.device.Native().(*memory.Device)
	if !ok || s.frame%loseEvery != 0 || !s.lost.CompareAndSwap(false, true) {
		return nil
	}
	// The driver gives the device back on its own schedule while the
	// engine keeps polling present.
	core.LogInfo("frame %d: simulating a driver reset", s.frame)
	md.Lose()
	time.AfterFunc(lostFor, func() {
		md.Restore()
		s.lost.Store(false)
	})
	return nil
}

func (g *TestGame) Render(d *device.Device, deltaTime float64) error {
	s := g.state()

	if !s.lost.Load() && s.frame%switchEvery == 0 {
		if err := g.switchDeviceType(d); err != nil {
			return err
		}
	}

	if s.colors.IsContentLost() {
		if err := g.fillColors(s.frame); err != nil {
			return err
		}
		s.refilled++
	}

	if err := d.SetRenderTarget(0, s.offscreen); err != nil {
		return err
	}
	if err := d.ApplyBlendState(state.BlendOpaque); err != nil {
		return err
	}
	if err := d.ApplyDepthStencilState(state.DepthNone); err != nil {
		return err
	}
	if err := d.ApplyRasterizerState(state.RasterizerCullNone); err != nil {
		return err
	}
	if err := d.SetVertexLayouts(s.geometry); err != nil {
		return err
	}

	if err := d.SetRenderTarget(0, nil); err != nil {
		return err
	}
	if err := d.ApplyBlendState(state.BlendAlphaBlend); err != nil {
		return err
	}
	if err := d.ApplyDepthStencilState(state.DepthDefault); err != nil {
		return err
	}
	if err := d.ApplyRasterizerState(state.RasterizerCullCounterClockwise); err != nil {
		return err
	}
	if err := d.ApplySamplerState(0, state.SamplerLinearClamp); err != nil {
		return err
	}
	return d.SetVertexLayouts(s.geometry, s.tint)
}

// switchDeviceType moves everything to a device of the other type, the way
// a user picking another renderer in a settings menu would.
func (g *TestGame) switchDeviceType(d *device.Device) error {
	adapter, current := d.Adapter()
	next := native.DeviceTypeReference
	if current == native.DeviceTypeReference {
		next = native.DeviceTypeHardware
	}
	core.LogInfo("switching device from %s to %s", current, next)
	return d.ResetDevice(adapter, next, d.Presentation())
}

func (g *TestGame) fillColors(frame uint64) error {
	s := g.state()
	data := make([]byte, quadVertices*colorStride)
	for i := 0; i < quadVertices; i++ {
		data[i*colorStride] = byte(frame)
		data[i*colorStride+1] = byte(i * 64)
		data[i*colorStride+2] = 0xff - byte(frame)
		data[i*colorStride+3] = 0xff
	}
	return s.colors.SetData(0, data)
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	s := g.state()
	s.width = width
	s.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	s := g.state()
	if s.device == nil {
		return nil
	}

	var err error
	for _, b := range []*layout.Binding{s.geometry, s.tint} {
		if b != nil {
			if rerr := s.device.Layouts().ReleaseBinding(b); rerr != nil && err == nil {
				err = rerr
			}
		}
	}
	// reverse order so the clone goes before its source
	for i := len(s.owned) - 1; i >= 0; i-- {
		s.owned[i].Dispose()
	}
	s.owned = nil
	core.LogInfo("testbed: %d resets, %d dynamic refills, %d resources destroyed", s.resets, s.refilled, s.destroyed)

	bus := s.device.Events()
	bus.Unregister(core.EVENT_CODE_DEVICE_RESETTING, g)
	bus.Unregister(core.EVENT_CODE_DEVICE_RESET, g)
	bus.Unregister(core.EVENT_CODE_DEVICE_LOST, g)
	bus.Unregister(core.EVENT_CODE_RESOURCE_CREATED, g)
	bus.Unregister(core.EVENT_CODE_RESOURCE_DESTROYED, g)
	return err
}

func (g *TestGame) onDeviceEvent(code core.SystemEventCode, listener interface{}, ctx core.EventContext) bool {
	s := g.state()
	switch code {
	case core.EVENT_CODE_DEVICE_RESETTING:
		data := ctx.Data.(core.DeviceEventData)
		core.LogDebug("device resetting (full recreation: %t)", data.FullRecreation)
	case core.EVENT_CODE_DEVICE_RESET:
		s.resets++
		core.LogDebug("device reset #%d", s.resets)
	case core.EVENT_CODE_DEVICE_LOST:
		core.LogDebug("device lost at frame %d", s.frame)
	}
	return false
}

func (g *TestGame) onResourceEvent(code core.SystemEventCode, listener interface{}, ctx core.EventContext) bool {
	data := ctx.Data.(core.ResourceEventData)
	if code == core.EVENT_CODE_RESOURCE_DESTROYED {
		g.state().destroyed++
		core.LogDebug("resource %d (%s) destroyed", data.Handle, data.Name)
		return false
	}
	core.LogDebug("resource %d created", data.Handle)
	return false
}

func quadData() []byte {
	// x, y, z, u, v as float32
	vertices := [quadVertices][5]float32{
		{-1, -1, 0, 0, 1},
		{1, -1, 0, 1, 1},
		{-1, 1, 0, 0, 0},
		{1, 1, 0, 1, 0},
	}
	out := make([]byte, 0, quadVertices*quadStride)
	for _, v := range vertices {
		for _, f := range v {
			out = binary.LittleEndian.AppendUint32(out, stdmath.Float32bits(f))
		}
	}
	return out
}

func checkerboard(w, h int) []byte {
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := byte(0x20)
			if (x+y)%2 == 0 {
				c = 0xe0
			}
			i := (y*w + x) * 4
			out[i], out[i+1], out[i+2], out[i+3] = c, c, c, 0xff
		}
	}
	return out
}
