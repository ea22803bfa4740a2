package engine

import (
	"github.com/normanking/facesync/internal/bus"
	"github.com/normanking/facesync/internal/pose"
)

// Tick advances the animation by one display frame. The host calls it once
// per refresh; between utterances it is a cheap no-op. All channel writes
// happen here, on the caller's goroutine.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.phase {
	case phaseSpeaking:
		e.tickSpeaking()
	case phaseEasing:
		e.tickEasing()
	}
}

// tickSpeaking consumes every event whose timestamp has passed, then
// performs the mode-specific write. Buffer exhaustion never stops the
// scheduler: events may still be streaming in, and only the playback-ended
// signal terminates this phase. Caller holds e.mu.
func (e *Engine) tickSpeaking() {
	if !e.t0Set {
		return
	}
	elapsed := int(e.cfg.Clock().Sub(e.t0).Milliseconds())
	if elapsed < 0 {
		elapsed = 0
	}

	fine := e.source.Vocabulary() == pose.VocabularyBlendshape
	for {
		ev, ok := e.buf.NextDue(elapsed)
		if !ok {
			break
		}
		if fine {
			e.applyFrameLocked(ev.Target.Frame)
		} else {
			e.retargetLocked(ev.Target)
		}
	}

	if !fine {
		e.smoothLocked()
	}
}

// retargetLocked sets the one-hot desired weights for a due coarse event:
// the event's intensity on the mapped channel, zero everywhere else. The
// actual channel values approach these exponentially in smoothLocked.
func (e *Engine) retargetLocked(t pose.Target) {
	mapped := t.Viseme.Channel()
	if t.Viseme == pose.VisemeSil {
		// Silence drives every channel toward rest instead of raising a
		// dedicated sil morph.
		mapped = ""
	}
	for c := range e.desired {
		if c == mapped {
			e.desired[c] = t.Weight * e.cfg.Intensity
		} else {
			e.desired[c] = 0
		}
	}
	e.publish(bus.Event{Type: bus.EventPoseApplied, Data: map[string]any{
		"channel": mapped,
		"weight":  t.Weight,
	}})
}

// smoothLocked advances every coarse channel toward its desired weight and
// writes the result, every tick, even when no new event became due — the
// exponential approach continues between events.
func (e *Engine) smoothLocked() {
	for c, cur := range e.current {
		cur += (e.desired[c] - cur) * e.cfg.BlendFactor
		if cur < epsilon && cur > -epsilon {
			cur = 0
		}
		e.current[c] = cur
		e.mapper.Write(c, cur)
	}
}

// applyFrameLocked copies one dense frame into the channel arrays. Source
// frames are already dense at a fixed rate, so no inter-event smoothing is
// applied; each value is scaled by the global intensity and clamped by the
// mapper. Unknown channel names are ignored.
func (e *Engine) applyFrameLocked(frame map[string]float32) {
	for name, v := range frame {
		e.mapper.Write(name, v*e.cfg.Intensity)
	}
}

// tickEasing runs the neutral-return animation: a cubic ease-out from the
// snapshot taken at speech end down to zero, then a hard reset to exact
// zeros. Caller holds e.mu.
func (e *Engine) tickEasing() {
	dur := e.cfg.NeutralReturn
	t := float32(e.cfg.Clock().Sub(e.easeT0)) / float32(dur)
	if t >= 1 {
		e.mapper.Reset()
		e.phase = phaseIdle
		e.start = nil
		e.publishNeutral(e.token)
		return
	}

	inv := 1 - t
	eased := 1 - inv*inv*inv
	for c, s := range e.start {
		e.mapper.WriteRaw(c, s*(1-eased))
	}
}
