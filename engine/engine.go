package engine

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/continuum/engine/config"
	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/platform"
	"github.com/spaghettifunk/continuum/engine/renderer/device"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
	"github.com/spaghettifunk/continuum/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	factory      native.DeviceFactory
	isRunning    atomic.Bool
	isSuspended  bool

	cfg      *config.Config
	watcher  *config.Watcher
	platform *platform.Platform
	jobs     *systems.JobSystem
	device   *device.Device

	clock        *core.Clock
	lastTime     float64
	frames       uint64
	frameMetrics *core.Metrics
}

// New prepares an engine that renders g on devices created by factory.
func New(g *Game, factory native.DeviceFactory) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, core.Argumentf("game and application config are required")
	}
	if factory == nil {
		return nil, core.Argumentf("device factory is nil")
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		factory:      factory,
		clock:        core.NewClock(),
		frameMetrics: core.NewMetrics(),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	app := e.gameInstance.ApplicationConfig

	cfg := config.Default()
	if app.ConfigPath != "" {
		loaded, err := config.Load(app.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	e.cfg = cfg
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		return errors.Wrapf(err, "log level %q", cfg.Log.Level)
	}
	if cfg.Log.Prefix != "" {
		core.SetLogPrefix(cfg.Log.Prefix)
	}

	jobs, err := systems.NewJobSystem(cfg.Jobs.Workers, cfg.Jobs.QueueSize)
	if err != nil {
		return err
	}
	e.jobs = jobs

	params := cfg.Presentation.Parameters()
	if !app.Headless {
		e.platform = platform.New()
		if err := e.platform.Startup(app.Name, app.StartPosX, app.StartPosY, params.BackBufferWidth, params.BackBufferHeight); err != nil {
			return err
		}
		params.BackBufferWidth, params.BackBufferHeight = e.platform.FramebufferSize()
	}

	d, err := device.New(e.factory, cfg.Device, params, device.WithJobSystem(e.jobs))
	if err != nil {
		return err
	}
	e.device = d

	if app.ConfigPath != "" {
		w, err := config.NewWatcher(app.ConfigPath)
		if err != nil {
			return err
		}
		e.watcher = w
	}

	if err := e.gameInstance.FnInitialize(d); err != nil {
		return err
	}
	if err := e.gameInstance.FnOnResize(params.BackBufferWidth, params.BackBufferHeight); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("%s initialized", app.Name)
	return nil
}

func (e *Engine) Device() *device.Device { return e.device }

// FrameMetrics records the duration of every rendered frame.
func (e *Engine) FrameMetrics() *core.Metrics { return e.frameMetrics }

// Frames returns how many frames were presented.
func (e *Engine) Frames() uint64 { return e.frames }

// Stop asks the loop to end after the current frame. Safe from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return core.InvalidOperationf("engine run before initialize")
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	maxFrames := e.gameInstance.ApplicationConfig.MaxFrames
	for e.isRunning.Load() {
		if e.platform != nil && !e.platform.PumpMessages() {
			break
		}
		if err := e.pollChanges(); err != nil {
			return err
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		e.lastTime = currentTime

		if e.isSuspended {
			// Nothing is drawn until present manages to reset the device.
			if err := e.device.Present(); err == nil {
				core.LogInfo("device recovered, resuming")
				e.isSuspended = false
			} else if !errors.Is(err, core.ErrDeviceLost) {
				return err
			}
			continue
		}

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("game update failed, shutting down: %s", err)
			return err
		}
		if err := e.gameInstance.FnRender(e.device, delta); err != nil {
			core.LogError("game render failed, shutting down: %s", err)
			return err
		}
		if err := e.device.Present(); err != nil {
			if !errors.Is(err, core.ErrDeviceLost) {
				return err
			}
			core.LogWarn("device lost, suspending rendering")
			e.isSuspended = true
			continue
		}

		e.clock.Update()
		e.frameMetrics.Record(e.clock.Elapsed() - currentTime)
		e.frames++
		if maxFrames > 0 && e.frames >= maxFrames {
			break
		}
	}
	return nil
}

// pollChanges turns window resizes and configuration reloads into resets.
func (e *Engine) pollChanges() error {
	if e.platform != nil {
		if w, h, ok := e.platform.TakeResize(); ok {
			params := e.device.Presentation()
			params.BackBufferWidth, params.BackBufferHeight = w, h
			if err := e.device.Reset(params); err != nil {
				return err
			}
			if err := e.gameInstance.FnOnResize(w, h); err != nil {
				return err
			}
		}
	}
	if e.watcher == nil {
		return nil
	}
	select {
	case cfg, ok := <-e.watcher.Updates():
		if ok {
			return e.applyConfig(cfg)
		}
	case err, ok := <-e.watcher.Errors():
		if ok {
			core.LogWarn("keeping previous configuration: %s", err)
		}
	default:
	}
	return nil
}

func (e *Engine) applyConfig(cfg *config.Config) error {
	if cfg.Log.Level != e.cfg.Log.Level {
		if err := core.SetLogLevel(cfg.Log.Level); err != nil {
			core.LogWarn("ignoring log level %q: %s", cfg.Log.Level, err)
		}
	}
	if cfg.Device.Profile != e.cfg.Device.Profile {
		core.LogWarn("capability profile changes apply on the next start")
	}

	deviceType, err := cfg.Device.DeviceType()
	if err != nil {
		return err
	}
	params := cfg.Presentation.Parameters()
	current := e.device.Presentation()
	if e.platform != nil {
		// the window decides the back buffer size
		params.BackBufferWidth, params.BackBufferHeight = current.BackBufferWidth, current.BackBufferHeight
	}

	adapter, currentType := e.device.Adapter()
	switch {
	case cfg.Device.Adapter != adapter || deviceType != currentType:
		err = e.device.ResetDevice(cfg.Device.Adapter, deviceType, params)
	case params != current:
		err = e.device.Reset(params)
	}
	if err != nil {
		return err
	}
	if !params.SameGeometry(current) {
		if err := e.gameInstance.FnOnResize(params.BackBufferWidth, params.BackBufferHeight); err != nil {
			return err
		}
	}
	e.cfg = cfg
	return nil
}

// Shutdown releases everything Initialize created. It is safe to call after
// a failed Initialize.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.Stop()

	var errs error
	if e.gameInstance.FnShutdown != nil {
		errs = errors.CombineErrors(errs, e.gameInstance.FnShutdown())
	}
	if e.watcher != nil {
		errs = errors.CombineErrors(errs, e.watcher.Close())
	}
	if e.device != nil {
		errs = errors.CombineErrors(errs, e.device.Close())
	}
	if e.jobs != nil {
		errs = errors.CombineErrors(errs, e.jobs.Shutdown())
	}
	if e.platform != nil {
		errs = errors.CombineErrors(errs, e.platform.Shutdown())
	}
	core.LogInfo("shut down after %d frames (avg %.3fms)", e.frames, e.frameMetrics.AverageMS())
	return errs
}
