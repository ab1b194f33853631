package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/aurora/engine/systems"
)

type RendererConfig struct {
	// Backend selects the device implementation: "soft" or "vulkan".
	Backend string `toml:"backend"`
	// FramesInFlight is the number of frames the device may lag behind the
	// host. Typically 2 or 3.
	FramesInFlight int `toml:"frames_in_flight"`
	// BeginFrameTimeoutMS bounds the wait on a frame completion signal.
	// Zero waits indefinitely.
	BeginFrameTimeoutMS int `toml:"begin_frame_timeout_ms"`
	// DeviceMemoryBudget caps soft-device allocations, in bytes. Zero means
	// unlimited. Ignored by the vulkan backend, which has real limits.
	DeviceMemoryBudget uint64 `toml:"device_memory_budget"`
	// MaxResourceCount bounds the resource table.
	MaxResourceCount uint32 `toml:"max_resource_count"`
}

type PoolConfig struct {
	Name         string `toml:"name"`
	SlotCount    int    `toml:"slot_count"`
	SlotCapacity uint64 `toml:"slot_capacity"`
}

type ApplicationConfig struct {
	// The application name used by the device backend and logs.
	Name     string         `toml:"name"`
	LogLevel string         `toml:"log_level"`
	Renderer RendererConfig `toml:"renderer"`
	Pools    []PoolConfig   `toml:"pools"`
	// AssetsDir, when set, is watched for changes; modified files are
	// reported to the game once per frame so it can re-upload resources.
	AssetsDir string `toml:"assets_dir"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Name:     "Aurora Application",
		LogLevel: "debug",
		Renderer: RendererConfig{
			Backend:             "soft",
			FramesInFlight:      2,
			BeginFrameTimeoutMS: 0,
			MaxResourceCount:    4096,
		},
	}
}

// LoadApplicationConfig reads a TOML file over the defaults. Fields missing
// from the file keep their default values.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	config := DefaultApplicationConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config '%s': %w", path, err)
	}
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config '%s': %w", path, err)
	}
	return config, nil
}

func (ac *ApplicationConfig) systemManagerConfig() *systems.SystemManagerConfig {
	smc := &systems.SystemManagerConfig{
		FramesInFlight:    ac.Renderer.FramesInFlight,
		BeginFrameTimeout: time.Duration(ac.Renderer.BeginFrameTimeoutMS) * time.Millisecond,
		MaxResourceCount:  ac.Renderer.MaxResourceCount,
	}
	for _, p := range ac.Pools {
		smc.RingPools = append(smc.RingPools, systems.RingBufferPoolConfig{
			Name:         p.Name,
			SlotCount:    p.SlotCount,
			SlotCapacity: p.SlotCapacity,
		})
	}
	return smc
}
