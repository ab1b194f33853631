package systems

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/aurora/engine/renderer"
	"github.com/spaghettifunk/aurora/engine/renderer/metadata"
)

type FrameCoordinatorConfig struct {
	// FramesInFlight is the number of frames the device may lag behind the
	// host. Every other lifecycle system derives its safety margin from this.
	FramesInFlight int
	// BeginFrameTimeout bounds the wait on a completion signal; zero waits
	// indefinitely.
	BeginFrameTimeout time.Duration
}

// FrameCoordinator tracks frame completion with one signal per frame in
// flight, indexed by frame number modulo FramesInFlight. BeginFrame blocks
// the host until the slot's signal from FramesInFlight frames ago is set,
// which is the single invariant the ring buffer pools and the deferred
// destruction queue build their safety margins on.
type FrameCoordinator struct {
	device      renderer.Device
	deferred    *DeferredDestructionQueue
	signals     []renderer.CompletionSignal
	timeout     time.Duration
	currentSlot int
	frameNumber uint64
	inFrame     bool
}

func NewFrameCoordinator(config *FrameCoordinatorConfig, device renderer.Device, deferred *DeferredDestructionQueue) (*FrameCoordinator, error) {
	if config.FramesInFlight <= 0 {
		return nil, fmt.Errorf("func NewFrameCoordinator - config.FramesInFlight must be > 0")
	}

	fc := &FrameCoordinator{
		device:   device,
		deferred: deferred,
		timeout:  config.BeginFrameTimeout,
		signals:  make([]renderer.CompletionSignal, config.FramesInFlight),
	}
	for i := range fc.signals {
		// Created signaled so the first FramesInFlight BeginFrame calls do
		// not wait on work that was never submitted.
		signal, err := device.CreateSignal(true)
		if err != nil {
			fc.destroySignals()
			return nil, fmt.Errorf("completion signal %d: %w", i, err)
		}
		fc.signals[i] = signal
	}
	return fc, nil
}

// FramesInFlight returns the bound F that rotation counts and deferred
// countdowns must respect.
func (fc *FrameCoordinator) FramesInFlight() int {
	return len(fc.signals)
}

// CurrentSlot returns frameNumber mod FramesInFlight for the frame being
// recorded.
func (fc *FrameCoordinator) CurrentSlot() int {
	return fc.currentSlot
}

func (fc *FrameCoordinator) FrameNumber() uint64 {
	return fc.frameNumber
}

// BeginFrame blocks until the device finished the frame that occupied this
// slot FramesInFlight frames ago, then advances the deferred destruction
// queue by one frame boundary. After it returns, any per-slot resource from
// that old frame is safe to reuse.
func (fc *FrameCoordinator) BeginFrame() (*metadata.RenderPacket, error) {
	if fc.inFrame {
		return nil, fmt.Errorf("BeginFrame called twice without EndFrame")
	}

	signal := fc.signals[fc.currentSlot]
	if !signal.Wait(fc.timeout) {
		return nil, fmt.Errorf("completion signal for slot %d not set within %s", fc.currentSlot, fc.timeout)
	}
	if err := signal.Reset(); err != nil {
		return nil, err
	}

	fc.inFrame = true
	fc.deferred.Tick()

	return &metadata.RenderPacket{
		FrameNumber: fc.frameNumber,
		FrameSlot:   fc.currentSlot,
	}, nil
}

// EndFrame submits the recorded work, arranging for this slot's signal to be
// set when the device finishes it, and rotates to the next slot.
func (fc *FrameCoordinator) EndFrame() error {
	if !fc.inFrame {
		return fmt.Errorf("EndFrame called without a matching BeginFrame")
	}
	if err := fc.device.Submit(fc.signals[fc.currentSlot]); err != nil {
		return fmt.Errorf("submit for slot %d: %w", fc.currentSlot, err)
	}
	fc.inFrame = false
	fc.frameNumber++
	fc.currentSlot = int(fc.frameNumber % uint64(len(fc.signals)))
	return nil
}

// WaitIdle drains the device completely. Outside of shutdown and
// out-of-memory recovery, prefer letting the rotation and the deferred queue
// do their job.
func (fc *FrameCoordinator) WaitIdle() error {
	return fc.device.WaitIdle()
}

func (fc *FrameCoordinator) Shutdown() error {
	if err := fc.device.WaitIdle(); err != nil {
		return err
	}
	fc.destroySignals()
	return nil
}

func (fc *FrameCoordinator) destroySignals() {
	for i, signal := range fc.signals {
		if signal == nil {
			continue
		}
		signal.Destroy()
		fc.signals[i] = nil
	}
}
