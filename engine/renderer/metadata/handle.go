package metadata

import "fmt"

// InvalidIndex marks an unoccupied slot.
const InvalidIndex uint32 = ^uint32(0)

// Handle identifies a live resource table entry. Index addresses the slot;
// Generation is bumped every time the slot is released, so a handle kept
// past its resource's lifetime stops resolving instead of silently aliasing
// whatever was allocated into the slot afterwards.
type Handle struct {
	Index      uint32
	Generation uint32
}

// NilHandle never resolves to a resource.
var NilHandle = Handle{Index: InvalidIndex}

func (h Handle) IsNil() bool {
	return h.Index == InvalidIndex
}

func (h Handle) String() string {
	if h.IsNil() {
		return "handle(nil)"
	}
	return fmt.Sprintf("handle(%d.%d)", h.Index, h.Generation)
}
