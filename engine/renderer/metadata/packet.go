package metadata

// RenderPacket carries per-frame information from the frame loop into the
// systems that build device work.
type RenderPacket struct {
	DeltaTime   float64
	FrameNumber uint64
	// Slot this frame occupies in the completion tracker, in [0, FramesInFlight).
	FrameSlot int
}
