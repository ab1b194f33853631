package systems

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer"
	"github.com/spaghettifunk/aurora/engine/renderer/metadata"
)

type SystemManagerConfig struct {
	FramesInFlight    int
	BeginFrameTimeout time.Duration
	MaxResourceCount  uint32
	RingPools         []RingBufferPoolConfig
}

// SystemManager owns the resource lifecycle systems and wires them to one
// device. It is the surface collaborators call: producers allocate through
// Resources or claim scratch from a pool, the frame loop drives Frames, and
// retirement goes through Deferred.
type SystemManager struct {
	device    renderer.Device
	telemetry *TelemetryCounter
	resources *ResourceSystem
	deferred  *DeferredDestructionQueue
	frames    *FrameCoordinator
	pools     map[string]*RingBufferPool
}

func NewSystemManager(config *SystemManagerConfig, device renderer.Device) (*SystemManager, error) {
	telemetry := NewTelemetryCounter()

	resources, err := NewResourceSystem(&ResourceSystemConfig{
		MaxResourceCount: config.MaxResourceCount,
	}, device, telemetry)
	if err != nil {
		return nil, err
	}

	deferred, err := NewDeferredDestructionQueue(resources, device, config.FramesInFlight)
	if err != nil {
		return nil, err
	}

	frames, err := NewFrameCoordinator(&FrameCoordinatorConfig{
		FramesInFlight:    config.FramesInFlight,
		BeginFrameTimeout: config.BeginFrameTimeout,
	}, device, deferred)
	if err != nil {
		return nil, err
	}

	sm := &SystemManager{
		device:    device,
		telemetry: telemetry,
		resources: resources,
		deferred:  deferred,
		frames:    frames,
		pools:     make(map[string]*RingBufferPool),
	}

	for i := range config.RingPools {
		if _, err := sm.CreateRingPool(&config.RingPools[i]); err != nil {
			sm.destroyPools()
			frames.destroySignals()
			return nil, err
		}
	}
	return sm, nil
}

func (sm *SystemManager) Telemetry() *TelemetryCounter {
	return sm.telemetry
}

func (sm *SystemManager) Resources() *ResourceSystem {
	return sm.resources
}

func (sm *SystemManager) Deferred() *DeferredDestructionQueue {
	return sm.deferred
}

func (sm *SystemManager) Frames() *FrameCoordinator {
	return sm.frames
}

// CreateRingPool adds a named scratch pool. Pool names are unique.
func (sm *SystemManager) CreateRingPool(config *RingBufferPoolConfig) (*RingBufferPool, error) {
	if _, exists := sm.pools[config.Name]; exists {
		return nil, fmt.Errorf("ring buffer pool '%s' already exists", config.Name)
	}
	pool, err := NewRingBufferPool(config, sm.device, sm.telemetry, sm.frames.FramesInFlight())
	if err != nil {
		return nil, err
	}
	sm.pools[config.Name] = pool
	return pool, nil
}

// Pool looks up a ring buffer pool by name, or nil.
func (sm *SystemManager) Pool(name string) *RingBufferPool {
	return sm.pools[name]
}

// ClaimRingSlot claims the next slot of the named pool.
func (sm *SystemManager) ClaimRingSlot(poolName string) (*RingSlot, error) {
	pool, ok := sm.pools[poolName]
	if !ok {
		return nil, fmt.Errorf("ring buffer pool '%s': %w", poolName, core.ErrNotFound)
	}
	return pool.ClaimNext(), nil
}

// AllocateOrEvict allocates through the resource table and, when the device
// reports out of memory, flushes the deferred destruction queue (a full
// drain) and retries once.
func (sm *SystemManager) AllocateOrEvict(vertices []byte, vertexCount uint32, indices []byte, indexCount uint32, name string) (metadata.Handle, error) {
	handle, err := sm.resources.Allocate(vertices, vertexCount, indices, indexCount, name)
	if err == nil || !isOutOfDeviceMemory(err) {
		return handle, err
	}
	core.LogWarn("allocation of '%s' hit device memory limit; flushing %d deferred entries and retrying", name, sm.deferred.Len())
	if flushErr := sm.deferred.Flush(); flushErr != nil {
		return metadata.NilHandle, flushErr
	}
	return sm.resources.Allocate(vertices, vertexCount, indices, indexCount, name)
}

// Shutdown drains the device and tears the systems down in dependency order.
func (sm *SystemManager) Shutdown() error {
	if err := sm.frames.WaitIdle(); err != nil {
		return err
	}
	if err := sm.deferred.Flush(); err != nil {
		return err
	}
	sm.destroyPools()
	if err := sm.resources.Shutdown(); err != nil {
		return err
	}
	if err := sm.frames.Shutdown(); err != nil {
		return err
	}
	if total := sm.telemetry.CurrentTotal(); total != 0 {
		core.LogWarn("telemetry reports %d bytes still allocated after shutdown", total)
	}
	return nil
}

func (sm *SystemManager) destroyPools() {
	for name, pool := range sm.pools {
		pool.Destroy()
		delete(sm.pools, name)
	}
}

func isOutOfDeviceMemory(err error) bool {
	return err != nil && errors.Is(err, core.ErrOutOfDeviceMemory)
}
