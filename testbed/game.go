package testbed

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/aurora/engine"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/metadata"
)

const (
	// Chunk grid for the fake terrain.
	chunkCount = 16
	// Vertices per chunk; position-only, 12 bytes each.
	chunkVertexCount = 1024
	chunkVertexSize  = 12

	debugLinePool  = "debug_lines"
	pickMarkerPool = "pick_markers"

	// How many frames the demo runs before stopping itself.
	demoFrames = 600
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	chunks       [chunkCount]metadata.Handle
	frameCounter uint64
}

func NewTestGame() (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:     "Aurora Testbed",
				LogLevel: "debug",
				Renderer: engine.RendererConfig{
					Backend:          "soft",
					FramesInFlight:   2,
					MaxResourceCount: 1024,
				},
				Pools: []engine.PoolConfig{
					{Name: debugLinePool, SlotCount: 3, SlotCapacity: 64 * 1024},
					{Name: pickMarkerPool, SlotCount: 3, SlotCapacity: 8 * 1024},
				},
			},
			State: &gameState{},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnAssetChanged = tg.OnAssetChanged
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	return nil
}

// Initialize uploads the initial terrain chunks.
func (g *TestGame) Initialize() error {
	state := g.State.(*gameState)
	for i := 0; i < chunkCount; i++ {
		handle, err := g.SystemManager.Resources().Allocate(
			generateChunkVertices(i, 0), chunkVertexCount, nil, 0,
			fmt.Sprintf("terrain_chunk_%02d", i))
		if err != nil {
			return err
		}
		state.chunks[i] = handle
	}
	core.LogInfo("uploaded %d terrain chunks (%d bytes on device)",
		chunkCount, g.SystemManager.Telemetry().CurrentTotal())
	return nil
}

// Update regenerates one chunk every 30 frames the way an interactive editor
// would: upload the new buffer, retire the old one through the deferred
// destruction queue so in-flight frames can finish reading it.
func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.frameCounter++

	if state.frameCounter%30 == 0 {
		chunkIndex := int(state.frameCounter/30) % chunkCount
		newHandle, err := g.SystemManager.AllocateOrEvict(
			generateChunkVertices(chunkIndex, state.frameCounter), chunkVertexCount, nil, 0,
			fmt.Sprintf("terrain_chunk_%02d", chunkIndex))
		if err != nil {
			return err
		}
		g.SystemManager.Deferred().Enqueue(state.chunks[chunkIndex])
		state.chunks[chunkIndex] = newHandle
	}

	if state.frameCounter%120 == 0 {
		core.LogInfo("frame %d: %d bytes live on device, %d deferred frees pending",
			state.frameCounter,
			g.SystemManager.Telemetry().CurrentTotal(),
			g.SystemManager.Deferred().Len())
	}
	return nil
}

// Render writes this frame's ephemeral geometry into freshly claimed ring
// slots and resolves every chunk handle the way a draw-command builder would.
func (g *TestGame) Render(packet *metadata.RenderPacket) error {
	state := g.State.(*gameState)

	lineSlot, err := g.SystemManager.ClaimRingSlot(debugLinePool)
	if err != nil {
		return err
	}
	if err := g.SystemManager.Pool(debugLinePool).Write(lineSlot, generateDebugLines(packet.FrameNumber)); err != nil {
		return err
	}

	markerSlot, err := g.SystemManager.ClaimRingSlot(pickMarkerPool)
	if err != nil {
		return err
	}
	if err := g.SystemManager.Pool(pickMarkerPool).Write(markerSlot, generatePickMarkers(packet.FrameNumber)); err != nil {
		return err
	}

	for i := range state.chunks {
		if _, err := g.SystemManager.Resources().Get(state.chunks[i]); err != nil {
			return fmt.Errorf("chunk %d unresolvable: %w", i, err)
		}
	}

	if state.frameCounter >= demoFrames {
		core.LogInfo("demo finished after %d frames", demoFrames)
		g.RequestExit()
	}
	return nil
}

// OnAssetChanged re-uploads the chunk whose source file changed. The demo
// fakes the decode step; only the lifecycle flow matters here.
func (g *TestGame) OnAssetChanged(path string) error {
	core.LogInfo("asset changed: %s", path)
	state := g.State.(*gameState)
	chunkIndex := int(state.frameCounter) % chunkCount
	newHandle, err := g.SystemManager.AllocateOrEvict(
		generateChunkVertices(chunkIndex, state.frameCounter), chunkVertexCount, nil, 0,
		fmt.Sprintf("terrain_chunk_%02d", chunkIndex))
	if err != nil {
		return err
	}
	g.SystemManager.Deferred().Enqueue(state.chunks[chunkIndex])
	state.chunks[chunkIndex] = newHandle
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("testbed shutting down")
	return nil
}

func generateChunkVertices(chunkIndex int, seed uint64) []byte {
	data := make([]byte, chunkVertexCount*chunkVertexSize)
	for v := 0; v < chunkVertexCount; v++ {
		binary.LittleEndian.PutUint32(data[v*chunkVertexSize:], uint32(chunkIndex))
		binary.LittleEndian.PutUint32(data[v*chunkVertexSize+4:], uint32(v))
		binary.LittleEndian.PutUint32(data[v*chunkVertexSize+8:], uint32(seed))
	}
	return data
}

func generateDebugLines(frameNumber uint64) []byte {
	data := make([]byte, 256*chunkVertexSize)
	for i := range data {
		data[i] = byte(frameNumber)
	}
	return data
}

func generatePickMarkers(frameNumber uint64) []byte {
	data := make([]byte, 64*chunkVertexSize)
	for i := range data {
		data[i] = byte(frameNumber >> 1)
	}
	return data
}
