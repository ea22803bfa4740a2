// Package scene exposes mesh parts as morph-channel tables plus live weight
// arrays, and maps abstract pose-channel names onto them. It needs no
// rendering access: the name table is read once and the weight array is
// written every frame by whoever owns the animation.
package scene

// Part is one mesh piece (e.g. a head or a teeth mesh). The mapper only
// requires read access to the channel name table and read/write access to
// the live weight array.
type Part interface {
	Name() string
	// ChannelIndex resolves a morph-channel name to its local index.
	ChannelIndex(name string) (int, bool)
	ChannelCount() int
	Weight(idx int) float32
	SetWeight(idx int, value float32)
}

// MemoryPart is a Part backed by plain slices, used in tests and headless
// runs.
type MemoryPart struct {
	name    string
	index   map[string]int
	weights []float32
}

// NewMemoryPart creates a part exposing the given channel names in order.
func NewMemoryPart(name string, channels []string) *MemoryPart {
	index := make(map[string]int, len(channels))
	for i, c := range channels {
		index[c] = i
	}
	return &MemoryPart{
		name:    name,
		index:   index,
		weights: make([]float32, len(channels)),
	}
}

func (p *MemoryPart) Name() string { return p.name }

func (p *MemoryPart) ChannelIndex(name string) (int, bool) {
	i, ok := p.index[name]
	return i, ok
}

func (p *MemoryPart) ChannelCount() int { return len(p.weights) }

func (p *MemoryPart) Weight(idx int) float32 {
	if idx < 0 || idx >= len(p.weights) {
		return 0
	}
	return p.weights[idx]
}

func (p *MemoryPart) SetWeight(idx int, value float32) {
	if idx < 0 || idx >= len(p.weights) {
		return
	}
	p.weights[idx] = value
}
