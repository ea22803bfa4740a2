package provider

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/facesync/internal/pose"
)

func TestEventsFromText_StartsAndEndsWithSilence(t *testing.T) {
	events, _ := EventsFromText("hello", 0)

	if len(events) < 3 {
		t.Fatalf("expected silence + visemes + silence, got %d events", len(events))
	}
	if events[0].Target.Viseme != pose.VisemeSil || events[0].TimestampMs != 0 {
		t.Errorf("expected leading silence at 0ms, got %+v", events[0])
	}
	if events[len(events)-1].Target.Viseme != pose.VisemeSil {
		t.Errorf("expected trailing silence, got %+v", events[len(events)-1])
	}
}

func TestEventsFromText_MonotonicTimestamps(t *testing.T) {
	events, durationMs := EventsFromText("Hello there, how are you today?", 0)

	last := -1
	for i, ev := range events {
		if ev.TimestampMs < last {
			t.Fatalf("event %d at %dms before previous %dms", i, ev.TimestampMs, last)
		}
		last = ev.TimestampMs
	}
	if durationMs <= last-50 {
		t.Errorf("duration %dms should cover the last event at %dms", durationMs, last)
	}
}

func TestEventsFromText_Digraphs(t *testing.T) {
	events, _ := EventsFromText("th", 0)

	// silence, th, silence
	if len(events) != 3 {
		t.Fatalf("expected 3 events for digraph word, got %d", len(events))
	}
	if events[1].Target.Viseme != pose.VisemeTH {
		t.Errorf("expected TH viseme, got %v", events[1].Target.Viseme)
	}
}

func TestEventsFromText_KnownDurationWins(t *testing.T) {
	_, durationMs := EventsFromText("hi", 5.0)
	if durationMs != 5000 {
		t.Errorf("expected known 5000ms duration, got %d", durationMs)
	}
}

func TestEventsFromText_Empty(t *testing.T) {
	events, durationMs := EventsFromText("   ", 0)
	if len(events) != 1 || durationMs != 0 {
		t.Errorf("expected single silence for empty text, got %d events, %dms", len(events), durationMs)
	}
}

func TestEventsFromWords_SpreadsAcrossSpan(t *testing.T) {
	events, durationMs := EventsFromWords([]Word{
		{Text: "map", Start: 0.1, End: 0.4},
		{Text: "go", Start: 0.5, End: 0.7},
	})

	last := -1
	for _, ev := range events {
		if ev.TimestampMs < last {
			t.Fatalf("timestamps not monotonic: %d after %d", ev.TimestampMs, last)
		}
		last = ev.TimestampMs
	}

	// "map" visemes land within the word span.
	var sawPP bool
	for _, ev := range events {
		if ev.Target.Viseme == pose.VisemePP {
			sawPP = true
			if ev.TimestampMs < 100 || ev.TimestampMs > 400 {
				t.Errorf("PP viseme at %dms outside word span [100,400]", ev.TimestampMs)
			}
		}
	}
	if !sawPP {
		t.Error("expected a PP viseme for 'map'")
	}
	if durationMs < 700 {
		t.Errorf("duration %dms should cover the last word end", durationMs)
	}
}

func TestVisemeSequence_CollapsesRepeats(t *testing.T) {
	seq := visemeSequence("bb")
	if len(seq) != 1 || seq[0] != pose.VisemePP {
		t.Errorf("expected single PP for 'bb', got %v", seq)
	}
}

func TestTextVisemeSource_Synthesize(t *testing.T) {
	src := NewTextVisemeSource(zerolog.Nop())
	src.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	var events []pose.Event
	var started, ended bool
	h := Handler{
		OnEvent:   func(ev pose.Event) { events = append(events, ev) },
		OnStarted: func() { started = true },
		OnEnded:   func(err error) { ended = err == nil },
	}

	err := src.Synthesize(context.Background(), Request{Text: "hi there"}, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected events deposited up front")
	}
	if !started || !ended {
		t.Errorf("expected started and clean ended, got started=%v ended=%v", started, ended)
	}
}

func TestTextVisemeSource_StartGate(t *testing.T) {
	src := NewTextVisemeSource(zerolog.Nop())
	src.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	gate := make(chan struct{})
	startedAt := make(chan struct{}, 1)
	h := Handler{OnStarted: func() { startedAt <- struct{}{} }}

	done := make(chan error, 1)
	go func() {
		done <- src.Synthesize(context.Background(), Request{Text: "hi", Started: gate}, h)
	}()

	select {
	case <-startedAt:
		t.Fatal("started fired before the playback gate opened")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-startedAt:
	default:
		t.Fatal("started never fired after the gate opened")
	}
}
