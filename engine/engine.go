package engine

import (
	"fmt"

	"github.com/spaghettifunk/aurora/engine/assets"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer"
	"github.com/spaghettifunk/aurora/engine/renderer/soft"
	"github.com/spaghettifunk/aurora/engine/renderer/vulkan"
	"github.com/spaghettifunk/aurora/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// watcherBufferSize bounds how many asset change notifications can pile up
// between frames.
const watcherBufferSize = 256

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	isRunning     bool
	device        renderer.Device
	systemManager *systems.SystemManager
	assetWatcher  *assets.Watcher
	clock         *core.Clock
	metrics       *core.Metrics
	lastTime      float64
}

func New(g *Game) (*Engine, error) {
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = DefaultApplicationConfig()
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageBooting
	if e.gameInstance.FnBoot != nil {
		if err := e.gameInstance.FnBoot(); err != nil {
			core.LogError("game boot failed: %v", err)
			return err
		}
	}
	e.currentStage = EngineStageBootComplete

	config := e.gameInstance.ApplicationConfig
	core.SetLogLevel(core.ParseLogLevel(config.LogLevel))

	e.currentStage = EngineStageInitializing

	device, err := newDevice(&config.Renderer)
	if err != nil {
		return err
	}
	if err := device.Initialize(config.Name); err != nil {
		return err
	}
	e.device = device

	sm, err := systems.NewSystemManager(config.systemManagerConfig(), device)
	if err != nil {
		return err
	}
	e.systemManager = sm
	e.gameInstance.SystemManager = sm

	if config.AssetsDir != "" {
		watcher, err := assets.NewWatcher(watcherBufferSize)
		if err != nil {
			return err
		}
		if err := watcher.Add(config.AssetsDir); err != nil {
			return err
		}
		e.assetWatcher = watcher
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			core.LogError("game initialize failed: %v", err)
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine must be initialized before running")
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := currentTime

		if e.assetWatcher != nil && e.gameInstance.FnOnAssetChanged != nil {
			e.assetWatcher.Drain(func(path string) {
				if err := e.gameInstance.FnOnAssetChanged(path); err != nil {
					core.LogWarn("asset reload for '%s' failed: %v", path, err)
				}
			})
		}

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("game update failed, shutting down: %v", err)
				e.isRunning = false
				break
			}
		}

		packet, err := e.systemManager.Frames().BeginFrame()
		if err != nil {
			core.LogError("begin frame failed, shutting down: %v", err)
			e.isRunning = false
			break
		}
		packet.DeltaTime = delta

		if e.gameInstance.FnRender != nil {
			if err := e.gameInstance.FnRender(packet); err != nil {
				core.LogError("game render failed, shutting down: %v", err)
				e.isRunning = false
				break
			}
		}

		if err := e.systemManager.Frames().EndFrame(); err != nil {
			core.LogError("end frame failed, shutting down: %v", err)
			e.isRunning = false
			break
		}

		e.clock.Update()
		e.metrics.Update(e.clock.Elapsed() - frameStartTime)
		e.lastTime = currentTime

		if e.gameInstance.ExitRequested() {
			e.isRunning = false
		}
	}

	return e.Shutdown()
}

// Stop asks the run loop to exit after the current frame. Safe to call from
// a signal handler goroutine; it only flips a flag the host thread reads.
func (e *Engine) Stop() {
	e.isRunning = false
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogWarn("game shutdown failed: %v", err)
		}
	}
	if e.assetWatcher != nil {
		if err := e.assetWatcher.Close(); err != nil {
			core.LogWarn("asset watcher close failed: %v", err)
		}
	}
	if e.systemManager != nil {
		peak := e.systemManager.Telemetry().PeakTotal()
		if err := e.systemManager.Shutdown(); err != nil {
			return err
		}
		core.LogInfo("peak device memory was %d bytes", peak)
	}
	if e.device != nil {
		if err := e.device.Shutdown(); err != nil {
			return err
		}
	}
	core.LogInfo("engine shut down")
	return nil
}

// Metrics exposes frame timing for the diagnostics surface.
func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}

func newDevice(config *RendererConfig) (renderer.Device, error) {
	switch config.Backend {
	case "", "soft":
		// Latency matches the in-flight window so the simulation exercises
		// the same overlap a real device would.
		return soft.New(config.DeviceMemoryBudget, config.FramesInFlight), nil
	case "vulkan":
		return vulkan.New(), nil
	default:
		return nil, fmt.Errorf("unknown renderer backend '%s'", config.Backend)
	}
}
