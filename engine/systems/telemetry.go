package systems

import (
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/math"
)

// TelemetryCounter keeps a running total of bytes currently allocated on the
// device. It is purely observational: nothing consults it to decide whether
// an allocation may proceed.
//
// Unlike the rest of the lifecycle systems this one is shared across
// threads (background workers read CurrentTotal for display), so the
// identity map is mutex-guarded and the totals are atomics.
type TelemetryCounter struct {
	total atomic.Int64
	peak  atomic.Int64

	mu    sync.Mutex
	sizes map[string]int64
}

func NewTelemetryCounter() *TelemetryCounter {
	return &TelemetryCounter{
		sizes: make(map[string]int64),
	}
}

// RecordAlloc registers bytes against an allocation identity so that
// RecordFree can report the correct size without the caller re-supplying it.
func (tc *TelemetryCounter) RecordAlloc(identity string, bytes int64) {
	tc.mu.Lock()
	if previous, ok := tc.sizes[identity]; ok {
		core.LogWarn("telemetry identity '%s' reused while still recorded (%d bytes); replacing", identity, previous)
		tc.total.Add(-previous)
	}
	tc.sizes[identity] = bytes
	tc.mu.Unlock()

	total := tc.total.Add(bytes)
	for {
		peak := tc.peak.Load()
		if total <= peak || tc.peak.CompareAndSwap(peak, total) {
			break
		}
	}
}

// RecordFree removes an allocation identity and subtracts its recorded size.
func (tc *TelemetryCounter) RecordFree(identity string) {
	tc.mu.Lock()
	bytes, ok := tc.sizes[identity]
	if ok {
		delete(tc.sizes, identity)
	}
	tc.mu.Unlock()

	if !ok {
		core.LogWarn("telemetry free for unknown identity '%s'", identity)
		return
	}
	tc.total.Add(-bytes)
}

// CurrentTotal returns the bytes currently allocated. Lock-free; safe to call
// from any thread.
func (tc *TelemetryCounter) CurrentTotal() int64 {
	return tc.total.Load()
}

// PeakTotal returns the high-water mark of CurrentTotal since construction.
func (tc *TelemetryCounter) PeakTotal() int64 {
	return math.Max(tc.peak.Load(), tc.total.Load())
}

// TrackedAllocations returns the number of identities currently recorded.
func (tc *TelemetryCounter) TrackedAllocations() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.sizes)
}
