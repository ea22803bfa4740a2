package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/facesync/internal/pose"
)

// fakeBridge emulates the Audio2Face bridge: /process accepts a multipart
// audio upload and /ws/{session} streams scripted messages once the client
// sends the start action.
type fakeBridge struct {
	t        *testing.T
	messages []a2fMessage

	mu        sync.Mutex
	sessionID string
	gotAudio  bool
}

func (b *fakeBridge) handler() http.Handler {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("audio")
		if err != nil {
			http.Error(w, "missing audio", http.StatusBadRequest)
			return
		}
		f.Close()

		b.mu.Lock()
		b.sessionID = "sess-test"
		b.gotAudio = true
		b.mu.Unlock()

		json.NewEncoder(w).Encode(processResponse{
			SessionID:  "sess-test",
			FrameCount: len(b.messages),
			Duration:   0.1,
			FPS:        30,
		})
	})

	mux.HandleFunc("/ws/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sess-test") {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var start map[string]string
		if err := conn.ReadJSON(&start); err != nil || start["action"] != "start" {
			b.t.Errorf("expected start action, got %v (err %v)", start, err)
			return
		}
		for _, msg := range b.messages {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	})

	return mux
}

func frameMsg(frame int, ts float64, shapes map[string]float32) a2fMessage {
	return a2fMessage{Type: "frame", Data: &a2fFrame{Frame: frame, Timestamp: ts, Blendshapes: shapes}}
}

func TestA2FSource_StreamsFrames(t *testing.T) {
	bridge := &fakeBridge{t: t, messages: []a2fMessage{
		frameMsg(0, 0, map[string]float32{"jawOpen": 0.5}),
		frameMsg(1, 0.0333, map[string]float32{"jawOpen": 0.6, "mouthSmileLeft": 0.1}),
		{Type: "complete"},
	}}
	srv := httptest.NewServer(bridge.handler())
	defer srv.Close()

	src := NewA2FSource(A2FConfig{BaseURL: srv.URL}, zerolog.Nop())

	var events []pose.Event
	var started bool
	var endErr error
	ended := false
	h := Handler{
		OnEvent:   func(ev pose.Event) { events = append(events, ev) },
		OnStarted: func() { started = true },
		OnEnded:   func(err error) { ended, endErr = true, err },
	}

	if err := src.Synthesize(context.Background(), Request{Audio: []byte("RIFFwav")}, h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !bridge.gotAudio {
		t.Error("bridge never received the audio upload")
	}
	if !started {
		t.Error("started never fired")
	}
	if !ended || endErr != nil {
		t.Errorf("expected clean end, got ended=%v err=%v", ended, endErr)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 frame events, got %d", len(events))
	}
	if events[0].TimestampMs != 0 || events[1].TimestampMs != 33 {
		t.Errorf("timestamps not converted to ms: %d, %d", events[0].TimestampMs, events[1].TimestampMs)
	}
	if !events[1].Target.IsFrame() {
		t.Error("expected dense frame targets")
	}
	if events[1].Target.Frame["jawOpen"] != 0.6 {
		t.Errorf("frame data lost: %v", events[1].Target.Frame)
	}
}

func TestA2FSource_StreamError(t *testing.T) {
	bridge := &fakeBridge{t: t, messages: []a2fMessage{
		frameMsg(0, 0, map[string]float32{"jawOpen": 0.4}),
		{Type: "error", Message: "inference failed"},
	}}
	srv := httptest.NewServer(bridge.handler())
	defer srv.Close()

	src := NewA2FSource(A2FConfig{BaseURL: srv.URL}, zerolog.Nop())

	var endErr error
	h := Handler{OnEnded: func(err error) { endErr = err }}

	err := src.Synthesize(context.Background(), Request{Audio: []byte("RIFFwav")}, h)
	if err == nil || !strings.Contains(err.Error(), "inference failed") {
		t.Fatalf("expected stream error, got %v", err)
	}
	if endErr == nil {
		t.Error("ended handler did not receive the error")
	}
}

func TestA2FSource_WaitsForPlaybackGate(t *testing.T) {
	bridge := &fakeBridge{t: t, messages: []a2fMessage{{Type: "complete"}}}
	srv := httptest.NewServer(bridge.handler())
	defer srv.Close()

	src := NewA2FSource(A2FConfig{BaseURL: srv.URL}, zerolog.Nop())

	gate := make(chan struct{})
	startedAt := make(chan struct{}, 1)
	h := Handler{OnStarted: func() { startedAt <- struct{}{} }}

	done := make(chan error, 1)
	go func() {
		done <- src.Synthesize(context.Background(), Request{Audio: []byte("RIFFwav"), Started: gate}, h)
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

func TestA2FSource_CancelUnblocksStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(processResponse{SessionID: "sess-test", FPS: 30})
	})
	mux.HandleFunc("/ws/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var start map[string]string
		conn.ReadJSON(&start)
		// Never send anything; the client must unblock via cancelation.
		time.Sleep(2 * time.Second)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := NewA2FSource(A2FConfig{BaseURL: srv.URL}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- src.Synthesize(ctx, Request{Audio: []byte("RIFFwav")}, Handler{})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a cancelation error")
		}
	case <-time.After(time.Second):
		t.Fatal("Synthesize did not unblock after cancel")
	}
}

func TestA2FSource_RejectsEmptyAudio(t *testing.T) {
	src := NewA2FSource(A2FConfig{BaseURL: "http://unused"}, zerolog.Nop())
	if err := src.Synthesize(context.Background(), Request{}, Handler{}); err == nil {
		t.Fatal("expected error for empty audio")
	}
}

func TestWebsocketURL(t *testing.T) {
	cases := map[string]string{
		"http://host:8000":  "ws://host:8000",
		"https://host:8000": "wss://host:8000",
		"host:8000":         "ws://host:8000",
	}
	for in, want := range cases {
		if got := websocketURL(in); got != want {
			t.Errorf("websocketURL(%q) = %q, want %q", in, got, want)
		}
	}
}
