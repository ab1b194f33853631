package systems

import (
	"fmt"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer"
	"github.com/spaghettifunk/aurora/engine/renderer/metadata"
)

type deferredFreeEntry struct {
	handle          metadata.Handle
	framesRemaining int
}

// DeferredDestructionQueue retires resources whose application-visible
// lifetime ends before the device is guaranteed to be done with them: a
// terrain chunk that was just regenerated, a texture that was resized. The
// actual free is delayed by framesInFlight frame boundaries, which by the
// frame coordinator's invariant is enough to outlast any command stream that
// might still reference the resource.
//
// Each entry counts down to zero exactly once and is then released; entries
// are never resurrected.
type DeferredDestructionQueue struct {
	resources      *ResourceSystem
	device         renderer.Device
	framesInFlight int
	entries        []deferredFreeEntry
}

func NewDeferredDestructionQueue(resources *ResourceSystem, device renderer.Device, framesInFlight int) (*DeferredDestructionQueue, error) {
	if framesInFlight <= 0 {
		return nil, fmt.Errorf("deferred destruction queue needs a positive frames-in-flight count")
	}
	return &DeferredDestructionQueue{
		resources:      resources,
		device:         device,
		framesInFlight: framesInFlight,
	}, nil
}

// Enqueue retires the resource with the default grace of framesInFlight
// frame boundaries. The resource stays resolvable until the final tick.
func (dq *DeferredDestructionQueue) Enqueue(handle metadata.Handle) {
	dq.EnqueueFor(handle, dq.framesInFlight)
}

// EnqueueFor retires the resource after the given number of frame
// boundaries. framesToLive below 1 is clamped to 1 so the free never happens
// inside the current frame.
func (dq *DeferredDestructionQueue) EnqueueFor(handle metadata.Handle, framesToLive int) {
	if framesToLive < 1 {
		framesToLive = 1
	}
	dq.entries = append(dq.entries, deferredFreeEntry{handle: handle, framesRemaining: framesToLive})
	core.LogDebug("deferred free of %s in %d frames", handle, framesToLive)
}

// Tick advances every entry by one frame boundary and releases the ones whose
// countdown reached zero. The frame coordinator calls this exactly once per
// frame.
func (dq *DeferredDestructionQueue) Tick() {
	keep := dq.entries[:0]
	for _, entry := range dq.entries {
		entry.framesRemaining--
		if entry.framesRemaining > 0 {
			keep = append(keep, entry)
			continue
		}
		if err := dq.resources.Release(entry.handle); err != nil {
			// The handle went stale while queued: someone released it
			// directly. Nothing left to free.
			core.LogWarn("deferred free of %s failed: %v", entry.handle, err)
		}
	}
	dq.entries = keep
}

// Flush drains the device completely and releases every queued entry now.
// This is the only sanctioned shortcut past the countdown, used for
// out-of-device-memory recovery and shutdown.
func (dq *DeferredDestructionQueue) Flush() error {
	if len(dq.entries) == 0 {
		return nil
	}
	if err := dq.device.WaitIdle(); err != nil {
		return fmt.Errorf("drain before deferred flush: %w", err)
	}
	for _, entry := range dq.entries {
		if err := dq.resources.Release(entry.handle); err != nil {
			core.LogWarn("deferred flush of %s failed: %v", entry.handle, err)
		}
	}
	dq.entries = dq.entries[:0]
	return nil
}

// Len returns the number of entries still counting down.
func (dq *DeferredDestructionQueue) Len() int {
	return len(dq.entries)
}
