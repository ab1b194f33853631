package systems_test

import (
	"fmt"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/spaghettifunk/aurora/engine/systems"
)

func TestTelemetryRunningTotal(t *testing.T) {
	c := qt.New(t)
	tc := systems.NewTelemetryCounter()

	tc.RecordAlloc("buffer-a", 1024)
	tc.RecordAlloc("buffer-b", 2048)
	c.Assert(tc.CurrentTotal(), qt.Equals, int64(3072))
	c.Assert(tc.TrackedAllocations(), qt.Equals, 2)

	tc.RecordFree("buffer-a")
	c.Assert(tc.CurrentTotal(), qt.Equals, int64(2048))
	c.Assert(tc.TrackedAllocations(), qt.Equals, 1)

	// The peak keeps the high-water mark after frees.
	c.Assert(tc.PeakTotal(), qt.Equals, int64(3072))

	tc.RecordFree("buffer-b")
	c.Assert(tc.CurrentTotal(), qt.Equals, int64(0))
	c.Assert(tc.TrackedAllocations(), qt.Equals, 0)
}

func TestTelemetryUnknownFreeIsIgnored(t *testing.T) {
	c := qt.New(t)
	tc := systems.NewTelemetryCounter()

	tc.RecordAlloc("buffer-a", 512)
	tc.RecordFree("never-recorded")
	c.Assert(tc.CurrentTotal(), qt.Equals, int64(512))
}

func TestTelemetryIdentityReuseReplaces(t *testing.T) {
	c := qt.New(t)
	tc := systems.NewTelemetryCounter()

	tc.RecordAlloc("buffer-a", 100)
	tc.RecordAlloc("buffer-a", 300)
	c.Assert(tc.CurrentTotal(), qt.Equals, int64(300))

	tc.RecordFree("buffer-a")
	c.Assert(tc.CurrentTotal(), qt.Equals, int64(0))
}

func TestTelemetryConcurrentReaders(t *testing.T) {
	c := qt.New(t)
	tc := systems.NewTelemetryCounter()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				total := tc.CurrentTotal()
				if total < 0 {
					t.Errorf("negative total %d", total)
					return
				}
				_ = tc.PeakTotal()
			}
		}()
	}
	for i := 0; i < 100; i++ {
		tc.RecordAlloc(fmt.Sprintf("alloc-%d", i), 64)
	}
	for i := 0; i < 100; i++ {
		tc.RecordFree(fmt.Sprintf("alloc-%d", i))
	}
	wg.Wait()

	c.Assert(tc.CurrentTotal(), qt.Equals, int64(0))
	c.Assert(tc.PeakTotal(), qt.Equals, int64(6400))
}
