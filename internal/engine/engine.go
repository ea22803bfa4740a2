// Package engine synchronizes timed facial-pose events with audio playback.
// It buffers events as a synthesis provider delivers them, replays them in
// lock-step with playback time on every display frame, blends discrete pose
// targets into continuous channel values, invalidates stale data when a new
// utterance preempts an in-flight one, and eases the face back to neutral
// when speech ends.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/facesync/internal/bus"
	"github.com/normanking/facesync/internal/pose"
	"github.com/normanking/facesync/internal/provider"
	"github.com/normanking/facesync/internal/scene"
	"github.com/normanking/facesync/internal/timeline"
)

// Weights below this snap to exactly zero so channels never drift.
const epsilon = 0.01

// Config is the flat tuning surface for the engine. Values outside the
// documented ranges are clamped, never rejected.
type Config struct {
	// Intensity is a global multiplier on pose weights, range [0.3, 1.5].
	Intensity float32
	// BlendFactor is the per-tick exponential approach rate for coarse
	// visemes, range (0, 1). Smaller is smoother, larger snappier.
	BlendFactor float32
	// NeutralReturn is how long the face takes to ease back to rest after
	// speech ends.
	NeutralReturn time.Duration
	// Clock overrides the time source; nil means time.Now. Tests inject a
	// manual clock here.
	Clock func() time.Time
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Intensity:     1.0,
		BlendFactor:   0.3,
		NeutralReturn: 250 * time.Millisecond,
	}
}

func (c *Config) clamp() {
	if c.Intensity < 0.3 {
		c.Intensity = 0.3
	}
	if c.Intensity > 1.5 {
		c.Intensity = 1.5
	}
	if c.BlendFactor <= 0 {
		c.BlendFactor = 0.3
	}
	if c.BlendFactor >= 1 {
		c.BlendFactor = 1
	}
	if c.NeutralReturn <= 0 {
		c.NeutralReturn = 250 * time.Millisecond
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// phase is the engine's write-ownership state: exactly one of the blend
// scheduler (speaking) or the neutral-return animator (easing) writes
// channel values in a given frame.
type phase int

const (
	phaseIdle phase = iota
	phaseSpeaking
	phaseEasing
)

// Engine owns the per-utterance animation state. The host calls Tick once
// per display refresh; provider callbacks arrive on their own goroutines and
// are token-checked before touching shared state.
type Engine struct {
	log    zerolog.Logger
	events *bus.Bus
	cfg    Config
	source provider.Source
	mapper *scene.Mapper

	mu      sync.Mutex
	cancel  context.CancelFunc
	token   uint64
	buf     *timeline.Buffer
	phase   phase
	ended   bool
	t0      time.Time
	t0Set   bool
	desired map[string]float32 // coarse: latest one-hot targets
	current map[string]float32 // coarse: smoothed values
	easeT0  time.Time
	start   map[string]float32 // easing: snapshot at speech end
}

// New creates an engine writing through the given mapper. The bus receives
// lifecycle notifications (speech started/ended, face returned to neutral)
// and may be shared with the host UI.
func New(cfg Config, src provider.Source, mapper *scene.Mapper, events *bus.Bus, log zerolog.Logger) *Engine {
	cfg.clamp()
	return &Engine{
		log:    log.With().Str("component", "engine").Logger(),
		events: events,
		cfg:    cfg,
		source: src,
		mapper: mapper,
		buf:    timeline.NewBuffer(),
	}
}

// Utterance is the handle for one Speak call. The playback collaborator
// reports audio start/end through it; signals from a superseded utterance
// are dropped silently.
type Utterance struct {
	e     *Engine
	token uint64
}

// Token returns the session token of this utterance.
func (u *Utterance) Token() uint64 { return u.token }

// PlaybackStarted anchors the animation timeline at the current instant.
// Call it when audio output actually begins, not when synthesis completes.
func (u *Utterance) PlaybackStarted() { u.e.playbackStarted(u.token) }

// PlaybackEnded triggers the neutral-return animation. A non-nil err (a
// canceled or failed synthesis) takes the same path so the face never
// freezes mid-expression.
func (u *Utterance) PlaybackEnded(err error) { u.e.playbackEnded(u.token, err) }

// Speak preempts any in-flight utterance and issues a new synthesis
// request. It increments the session token, clears the event buffer, cancels
// pending scheduler and neutral-return work, and unsets the playback anchor
// before the provider call. Safe to call at any time, including while a
// previous utterance is still animating.
func (e *Engine) Speak(ctx context.Context, req provider.Request) *Utterance {
	e.mu.Lock()
	e.token++
	tok := e.token
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.buf.Reset()
	e.phase = phaseIdle
	e.ended = false
	e.t0Set = false
	e.start = nil
	e.resetCoarseLocked()
	e.mu.Unlock()

	e.log.Info().Uint64("session", tok).Msg("utterance started")

	h := provider.Handler{
		OnEvent:   func(ev pose.Event) { e.ingest(tok, ev) },
		OnStarted: func() { e.playbackStarted(tok) },
		OnEnded:   func(err error) { e.playbackEnded(tok, err) },
	}

	go func() {
		if err := e.source.Synthesize(ctx, req, h); err != nil {
			e.log.Warn().Err(err).Uint64("session", tok).Msg("synthesis ended with error")
			// Sources that fail before the stream opens never reach their
			// OnEnded callback; route the failure through the same completion
			// path so the host still hears about it. Idempotent for sources
			// that did call OnEnded before returning the error.
			e.playbackEnded(tok, err)
		}
	}()

	return &Utterance{e: e, token: tok}
}

// Session returns the current session token.
func (e *Engine) Session() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

// Buffered returns how many events the current utterance has accumulated.
func (e *Engine) Buffered() int {
	return e.buf.Len()
}

// Speaking reports whether the blend scheduler currently owns the channels.
func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase == phaseSpeaking
}

// ingest validates and buffers one provider event.
func (e *Engine) ingest(tok uint64, ev pose.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tok != e.token {
		e.log.Debug().Uint64("got", tok).Uint64("want", e.token).Msg("stale event dropped")
		return
	}
	if err := e.validate(ev); err != nil {
		e.log.Warn().Err(err).Int("timestamp_ms", ev.TimestampMs).Msg("malformed event discarded")
		return
	}
	if !e.buf.Append(ev) {
		e.log.Debug().Int("timestamp_ms", ev.TimestampMs).Msg("late event dropped behind cursor")
	}
}

func (e *Engine) validate(ev pose.Event) error {
	if ev.TimestampMs < 0 {
		return errNegativeTimestamp
	}
	if e.source.Vocabulary() == pose.VocabularyBlendshape {
		if !ev.Target.IsFrame() {
			return errWrongVocabulary
		}
		return nil
	}
	if ev.Target.IsFrame() {
		return errWrongVocabulary
	}
	if !ev.Target.Viseme.Valid() {
		return errUnknownViseme
	}
	return nil
}

func (e *Engine) playbackStarted(tok uint64) {
	e.mu.Lock()
	if tok != e.token {
		e.mu.Unlock()
		e.log.Debug().Uint64("got", tok).Msg("stale playback-start dropped")
		return
	}
	e.t0 = e.cfg.Clock()
	e.t0Set = true
	e.phase = phaseSpeaking
	e.mu.Unlock()

	e.log.Debug().Uint64("session", tok).Msg("playback anchored")
	e.publish(bus.Event{Type: bus.EventSpeechStarted, Data: map[string]any{"session": tok}})
}

func (e *Engine) playbackEnded(tok uint64, cause error) {
	e.mu.Lock()
	if tok != e.token {
		e.mu.Unlock()
		e.log.Debug().Uint64("got", tok).Msg("stale playback-end dropped")
		return
	}
	if e.ended {
		e.mu.Unlock()
		return
	}
	e.ended = true
	// The scheduler stops here; the neutral-return animator takes over from
	// a snapshot of whatever the face currently shows.
	e.phase = phaseEasing
	e.t0Set = false
	e.start = e.mapper.Snapshot()
	e.easeT0 = e.cfg.Clock()
	e.mu.Unlock()

	if cause != nil {
		e.log.Warn().Err(cause).Uint64("session", tok).Msg("speech ended with error")
	} else {
		e.log.Debug().Uint64("session", tok).Msg("speech ended")
	}
	data := map[string]any{"session": tok}
	if cause != nil {
		data["error"] = cause.Error()
	}
	e.publish(bus.Event{Type: bus.EventSpeechEnded, Data: data})
}

// resetCoarseLocked rebuilds the coarse smoothing state. Caller holds e.mu.
func (e *Engine) resetCoarseLocked() {
	channels := e.source.Vocabulary().Channels()
	e.desired = make(map[string]float32, len(channels))
	e.current = make(map[string]float32, len(channels))
	for _, c := range channels {
		e.desired[c] = 0
		e.current[c] = 0
	}
}

func (e *Engine) publish(ev bus.Event) {
	if e.events != nil {
		e.events.Publish(ev)
	}
}

// publishNeutral signals hosts (e.g. a UI clearing its "speaking"
// indicator) that the face finished returning to rest. Caller holds e.mu;
// bus handlers run on their own goroutines so this never blocks the tick.
func (e *Engine) publishNeutral(tok uint64) {
	e.log.Debug().Uint64("session", tok).Msg("face returned to neutral")
	e.publish(bus.Event{Type: bus.EventFaceNeutral, Data: map[string]any{"session": tok}})
}
