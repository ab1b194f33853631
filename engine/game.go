package engine

import (
	"github.com/spaghettifunk/aurora/engine/renderer/metadata"
	"github.com/spaghettifunk/aurora/engine/systems"
)

// Game is the application the engine drives. The engine fills in
// SystemManager before FnBoot runs; the callbacks are called from the host
// thread only.
type Game struct {
	ApplicationConfig *ApplicationConfig
	SystemManager     *systems.SystemManager
	State             interface{}

	// FnBoot runs before the device and systems exist; use it to adjust the
	// configuration.
	FnBoot func() error
	// FnInitialize runs once systems are ready; allocate startup resources
	// here.
	FnInitialize func() error
	// FnUpdate runs every frame before rendering.
	FnUpdate func(deltaTime float64) error
	// FnRender runs inside the frame, between BeginFrame and EndFrame.
	FnRender func(packet *metadata.RenderPacket) error
	// FnOnAssetChanged reports a watched file that changed since last frame.
	FnOnAssetChanged func(path string) error
	// FnShutdown runs before systems are torn down.
	FnShutdown func() error

	exitRequested bool
}

// RequestExit asks the engine to stop after the current frame.
func (g *Game) RequestExit() {
	g.exitRequested = true
}

// ExitRequested reports whether the game asked to stop.
func (g *Game) ExitRequested() bool {
	return g.exitRequested
}
