package scene

import (
	"github.com/rs/zerolog"

	"github.com/normanking/facesync/internal/pose"
)

// Mapper routes abstract pose-channel names to every mesh part exposing a
// morph channel of that name. Writing one channel updates all parts that
// share it, which keeps e.g. jaw channels on a head mesh and a teeth mesh
// numerically identical.
//
// A correction policy may dampen specific channels by a constant factor
// before writing; the stock config uses it to pull jawOpen down and fix a
// rest-pose underbite.
type Mapper struct {
	log      zerolog.Logger
	order    []string
	bindings map[string][]binding
	dampen   map[string]float32
}

type binding struct {
	part Part
	idx  int
}

// NewMapper creates a mapper with an optional per-channel dampening table.
func NewMapper(log zerolog.Logger, dampen map[string]float32) *Mapper {
	return &Mapper{
		log:      log.With().Str("component", "mapper").Logger(),
		bindings: make(map[string][]binding),
		dampen:   dampen,
	}
}

// Bind scans the parts for the given vocabulary channels and records a
// (part, local index) pair for every match. Channels absent from every part
// are simply never written. Returns true if at least one channel mapped;
// zero mappings is a valid but inert state, not a hard error.
func (m *Mapper) Bind(parts []Part, vocab pose.Vocabulary) bool {
	m.order = m.order[:0]
	m.bindings = make(map[string][]binding)

	for _, name := range vocab.Channels() {
		for _, p := range parts {
			idx, ok := p.ChannelIndex(name)
			if !ok {
				continue
			}
			if len(m.bindings[name]) == 0 {
				m.order = append(m.order, name)
			}
			m.bindings[name] = append(m.bindings[name], binding{part: p, idx: idx})
		}
	}

	m.log.Info().
		Int("parts", len(parts)).
		Int("channels", len(m.order)).
		Str("vocabulary", vocab.String()).
		Msg("channel mapping built")

	return len(m.order) > 0
}

// Write sets the value on every part exposing the channel, after applying
// the dampening correction and clamping to [0,1]. Unmapped channels are
// ignored.
func (m *Mapper) Write(channel string, value float32) {
	bs, ok := m.bindings[channel]
	if !ok {
		return
	}
	if d, ok := m.dampen[channel]; ok {
		value *= d
	}
	value = pose.Clamp01(value)
	for _, b := range bs {
		b.part.SetWeight(b.idx, value)
	}
}

// WriteRaw sets the value without applying the correction policy, clamping
// only. The neutral-return animation uses it so that snapshot values, which
// are already corrected, are not dampened twice.
func (m *Mapper) WriteRaw(channel string, value float32) {
	bs, ok := m.bindings[channel]
	if !ok {
		return
	}
	value = pose.Clamp01(value)
	for _, b := range bs {
		b.part.SetWeight(b.idx, value)
	}
}

// Read returns the current value of a mapped channel (from its first
// binding; shared bindings are kept identical by Write).
func (m *Mapper) Read(channel string) (float32, bool) {
	bs, ok := m.bindings[channel]
	if !ok || len(bs) == 0 {
		return 0, false
	}
	return bs[0].part.Weight(bs[0].idx), true
}

// Mapped reports whether the channel resolved to at least one part.
func (m *Mapper) Mapped(channel string) bool {
	return len(m.bindings[channel]) > 0
}

// Channels returns the bound channel names in vocabulary order.
func (m *Mapper) Channels() []string {
	return m.order
}

// Snapshot captures the current value of every bound channel. The
// neutral-return animation eases from this snapshot down to zero.
func (m *Mapper) Snapshot() map[string]float32 {
	snap := make(map[string]float32, len(m.order))
	for _, name := range m.order {
		v, _ := m.Read(name)
		snap[name] = v
	}
	return snap
}

// Reset zeroes every mapped channel on every part.
func (m *Mapper) Reset() {
	for _, bs := range m.bindings {
		for _, b := range bs {
			b.part.SetWeight(b.idx, 0)
		}
	}
}
