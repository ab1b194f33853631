package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

const testConfigTOML = `
name = "Editor"
log_level = "warn"
assets_dir = "assets"

[renderer]
backend = "soft"
frames_in_flight = 3
begin_frame_timeout_ms = 500
device_memory_budget = 1048576
max_resource_count = 128

[[pools]]
name = "debug_lines"
slot_count = 4
slot_capacity = 65536

[[pools]]
name = "pick_markers"
slot_count = 4
slot_capacity = 8192
`

func writeConfigFile(c *qt.C, contents string) string {
	path := filepath.Join(c.TempDir(), "aurora.toml")
	c.Assert(os.WriteFile(path, []byte(contents), 0o644), qt.IsNil)
	return path
}

func TestLoadApplicationConfig(t *testing.T) {
	c := qt.New(t)

	config, err := LoadApplicationConfig(writeConfigFile(c, testConfigTOML))
	c.Assert(err, qt.IsNil)
	c.Assert(config.Name, qt.Equals, "Editor")
	c.Assert(config.LogLevel, qt.Equals, "warn")
	c.Assert(config.AssetsDir, qt.Equals, "assets")
	c.Assert(config.Renderer.FramesInFlight, qt.Equals, 3)
	c.Assert(config.Renderer.DeviceMemoryBudget, qt.Equals, uint64(1048576))
	c.Assert(config.Pools, qt.HasLen, 2)
	c.Assert(config.Pools[1].Name, qt.Equals, "pick_markers")
}

func TestLoadApplicationConfigKeepsDefaults(t *testing.T) {
	c := qt.New(t)

	config, err := LoadApplicationConfig(writeConfigFile(c, `name = "Minimal"`))
	c.Assert(err, qt.IsNil)
	c.Assert(config.Name, qt.Equals, "Minimal")

	defaults := DefaultApplicationConfig()
	c.Assert(config.LogLevel, qt.Equals, defaults.LogLevel)
	c.Assert(config.Renderer, qt.Equals, defaults.Renderer)
}

func TestLoadApplicationConfigErrors(t *testing.T) {
	c := qt.New(t)

	_, err := LoadApplicationConfig("does/not/exist.toml")
	c.Assert(err, qt.IsNotNil)

	_, err = LoadApplicationConfig(writeConfigFile(c, "name = [broken"))
	c.Assert(err, qt.IsNotNil)
}

func TestSystemManagerConfigMapping(t *testing.T) {
	c := qt.New(t)

	config, err := LoadApplicationConfig(writeConfigFile(c, testConfigTOML))
	c.Assert(err, qt.IsNil)

	smc := config.systemManagerConfig()
	c.Assert(smc.FramesInFlight, qt.Equals, 3)
	c.Assert(smc.BeginFrameTimeout, qt.Equals, 500*time.Millisecond)
	c.Assert(smc.MaxResourceCount, qt.Equals, uint32(128))
	c.Assert(smc.RingPools, qt.HasLen, 2)
	c.Assert(smc.RingPools[0].SlotCapacity, qt.Equals, uint64(65536))
}
