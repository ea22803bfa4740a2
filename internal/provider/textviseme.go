package provider

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/facesync/internal/pose"
)

// charVisemes maps letters and digraphs to coarse visemes. Consonants
// without an exact category borrow the closest mouth shape.
var charVisemes = map[string]pose.Viseme{
	"p": pose.VisemePP, "b": pose.VisemePP, "m": pose.VisemePP,
	"f": pose.VisemeFF, "v": pose.VisemeFF,
	"th": pose.VisemeTH,
	"t":  pose.VisemeDD, "d": pose.VisemeDD,
	"k": pose.VisemeKK, "g": pose.VisemeKK, "c": pose.VisemeKK, "q": pose.VisemeKK, "x": pose.VisemeKK,
	"ch": pose.VisemeCH, "j": pose.VisemeCH, "sh": pose.VisemeCH,
	"s": pose.VisemeSS, "z": pose.VisemeSS,
	"n": pose.VisemeNN, "l": pose.VisemeNN,
	"r": pose.VisemeRR,
	"a": pose.VisemeAA, "h": pose.VisemeAA,
	"e": pose.VisemeE,
	"i": pose.VisemeIH, "y": pose.VisemeIH,
	"o": pose.VisemeOH,
	"u": pose.VisemeOU, "w": pose.VisemeOU,
}

// TextVisemeSource approximates a coarse viseme timeline from text when the
// TTS provider reports no phoneme data. With word timestamps the visemes of
// each word are spread across its reported span; otherwise timing is
// estimated from character classes.
type TextVisemeSource struct {
	log zerolog.Logger
	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTextVisemeSource creates a text-driven coarse source.
func NewTextVisemeSource(log zerolog.Logger) *TextVisemeSource {
	return &TextVisemeSource{
		log: log.With().Str("component", "textviseme").Logger(),
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

func (s *TextVisemeSource) Vocabulary() pose.Vocabulary {
	return pose.VocabularyViseme
}

// Synthesize deposits the whole timeline up front, signals started when
// playback begins, and signals ended once the timeline duration elapses.
func (s *TextVisemeSource) Synthesize(ctx context.Context, req Request, h Handler) error {
	var events []pose.Event
	var durationMs int
	if len(req.Words) > 0 {
		events, durationMs = EventsFromWords(req.Words)
	} else {
		events, durationMs = EventsFromText(req.Text, req.Duration)
	}

	s.log.Debug().Int("events", len(events)).Int("duration_ms", durationMs).Msg("timeline generated")

	for _, ev := range events {
		h.event(ev)
	}

	if req.Started != nil {
		select {
		case <-req.Started:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.started()

	if err := s.sleep(ctx, time.Duration(durationMs)*time.Millisecond); err != nil {
		h.ended(err)
		return err
	}
	h.ended(nil)
	return nil
}

// EventsFromWords builds a timeline from word-level timestamps, spreading
// each word's viseme sequence evenly across its span and inserting brief
// silences at word boundaries.
func EventsFromWords(words []Word) ([]pose.Event, int) {
	events := []pose.Event{silence(0, 1)}

	var maxEndMs float64
	for _, w := range words {
		startMs := w.Start * 1000
		endMs := w.End * 1000
		if endMs > maxEndMs {
			maxEndMs = endMs
		}

		seq := visemeSequence(w.Text)
		if len(seq) == 0 {
			continue
		}
		step := (endMs - startMs) / float64(len(seq))
		for i, v := range seq {
			events = append(events, pose.Event{
				TimestampMs: int(startMs + float64(i)*step),
				Target:      pose.Target{Viseme: v, Weight: 0.8},
			})
		}
		events = append(events, silence(int(endMs), 0.3))
	}

	end := int(maxEndMs) + 50
	events = append(events, silence(end, 1))
	return events, end + 50
}

// EventsFromText estimates a timeline from raw text and a known (or guessed)
// audio duration. Vowels hold longer than consonants; punctuation and word
// boundaries insert pauses.
func EventsFromText(text string, durationSec float64) ([]pose.Event, int) {
	clean := strings.TrimSpace(text)
	events := []pose.Event{silence(0, 1)}
	if clean == "" {
		return events, 0
	}

	nowMs := 50.0
	chars := []byte(strings.ToLower(clean))
	for i := 0; i < len(chars); i++ {
		ch := chars[i]

		switch {
		case ch == ' ' || ch == '\n' || ch == '\t':
			events = append(events, silence(int(nowMs), 0.5))
			nowMs += 80
			continue
		case ch == '.' || ch == '!' || ch == '?':
			events = append(events, silence(int(nowMs), 1))
			nowMs += 150
			continue
		case ch == ',' || ch == ';' || ch == ':':
			events = append(events, silence(int(nowMs), 0.7))
			nowMs += 100
			continue
		case ch < 'a' || ch > 'z':
			continue
		}

		key := string(ch)
		if d, n := digraphAt(chars, i); n > 0 {
			key = d
			i += n - 1
		}
		v, ok := charVisemes[key]
		if !ok {
			v = pose.VisemeSil
		}

		events = append(events, pose.Event{
			TimestampMs: int(nowMs),
			Target:      pose.Target{Viseme: v, Weight: 0.8},
		})
		nowMs += charDurationMs(ch)
	}

	events = append(events, silence(int(nowMs), 1))

	total := int(nowMs) + 50
	if known := int(durationSec * 1000); known > total {
		total = known
	}
	return events, total
}

// visemeSequence converts one word into its viseme sequence, collapsing
// consecutive repeats.
func visemeSequence(word string) []pose.Viseme {
	chars := []byte(strings.ToLower(word))
	var seq []pose.Viseme
	for i := 0; i < len(chars); i++ {
		ch := chars[i]
		if ch < 'a' || ch > 'z' {
			continue
		}
		key := string(ch)
		if d, n := digraphAt(chars, i); n > 0 {
			key = d
			i += n - 1
		}
		v, ok := charVisemes[key]
		if !ok {
			v = pose.VisemeAA
		}
		if len(seq) > 0 && seq[len(seq)-1] == v {
			continue
		}
		seq = append(seq, v)
	}
	return seq
}

// digraphAt reports a th/ch/sh digraph starting at i, with its length.
func digraphAt(chars []byte, i int) (string, int) {
	if i+1 >= len(chars) {
		return "", 0
	}
	d := string(chars[i : i+2])
	if d == "th" || d == "ch" || d == "sh" {
		return d, 2
	}
	return "", 0
}

// charDurationMs gives rough per-class phoneme durations.
func charDurationMs(ch byte) float64 {
	switch ch {
	case 'a', 'e', 'i', 'o', 'u':
		return 100
	case 's', 'z', 'f', 'v':
		return 80
	default:
		return 60
	}
}

func silence(tsMs int, weight float32) pose.Event {
	return pose.Event{
		TimestampMs: tsMs,
		Target:      pose.Target{Viseme: pose.VisemeSil, Weight: weight},
	}
}
