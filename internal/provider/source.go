// Package provider adapts external synthesis collaborators into a stream of
// timed pose events plus lifecycle signals. The engine never interprets the
// request text or audio; it only consumes the timing/pose stream.
package provider

import (
	"context"

	"github.com/normanking/facesync/internal/pose"
)

// Word is a word-level timestamp from a TTS provider, in seconds from
// utterance start.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Request describes one utterance to synthesize. Text-driven sources use
// Text (and Words when the TTS provider reported timestamps); audio-driven
// sources use Audio.
type Request struct {
	Text  string
	Voice string
	Audio []byte
	// Words carries word-level timestamps when the TTS provider reported
	// them; text-driven sources prefer them over raw-text estimation.
	Words []Word
	// Duration is the known audio duration, used by text-driven sources to
	// pace approximate timelines.
	Duration float64
	// Started, when non-nil, gates the stream on actual audio playback: the
	// source waits for a receive before reporting "started". Without it the
	// source anchors at stream start and the host must begin playback at the
	// same moment.
	Started <-chan struct{}
}

// Handler receives the pose/timing stream and lifecycle signals for one
// request. Callbacks may fire from the source's own goroutine; the engine
// guards them with the session token captured at request time.
type Handler struct {
	OnEvent   func(ev pose.Event)
	OnStarted func()
	OnEnded   func(err error)
}

func (h Handler) event(ev pose.Event) {
	if h.OnEvent != nil {
		h.OnEvent(ev)
	}
}

func (h Handler) started() {
	if h.OnStarted != nil {
		h.OnStarted()
	}
}

func (h Handler) ended(err error) {
	if h.OnEnded != nil {
		h.OnEnded(err)
	}
}

// Source produces timed pose events for one utterance at a time. A new
// request supersedes any in-flight one from the engine's point of view; the
// source itself only has to honor ctx cancellation.
type Source interface {
	// Vocabulary reports which channel set this source emits. The two
	// vocabularies are never mixed within one utterance.
	Vocabulary() pose.Vocabulary
	// Synthesize streams events and lifecycle signals to h until the
	// utterance completes, fails, or ctx is canceled. It blocks for the
	// duration of the stream.
	Synthesize(ctx context.Context, req Request, h Handler) error
}
