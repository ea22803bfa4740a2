package pose

// Target describes one facial pose. In coarse mode it is a single viseme
// with an intensity weight; in fine mode Frame carries a dense weight
// vector keyed by blendshape channel name. Unknown channel names are
// ignored downstream, never treated as errors.
type Target struct {
	Viseme Viseme
	Weight float32
	Frame  map[string]float32
}

// IsFrame reports whether the target is a dense per-frame weight vector.
func (t Target) IsFrame() bool {
	return t.Frame != nil
}

// Event pairs a pose target with its offset from utterance start.
type Event struct {
	TimestampMs int
	Target      Target
}

// Clamp01 clamps a channel weight to the valid [0,1] range. Source data may
// be negative or exceed 1 and must be clamped before it reaches a mesh.
func Clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
