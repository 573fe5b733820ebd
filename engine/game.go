package engine

import (
	"github.com/spaghettifunk/continuum/engine/renderer/device"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func(d *device.Device) error
type Update func(deltaTime float64) error
type Render func(d *device.Device, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
