package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/facesync/internal/pose"
)

// A2FConfig configures the Audio2Face bridge client.
type A2FConfig struct {
	// BaseURL of the bridge, e.g. "http://gpu-host:8000".
	BaseURL string
	// ProcessTimeout bounds the audio upload + inference call.
	ProcessTimeout time.Duration
}

// A2FSource streams dense ARKit blendshape frames from an Audio2Face bridge
// server. Protocol: POST the audio to /process, then open /ws/{session_id}
// and send {"action":"start"} when playback begins; the server replays
// frames at real-time rate.
type A2FSource struct {
	cfg  A2FConfig
	log  zerolog.Logger
	http *http.Client
	dial *websocket.Dialer
}

// NewA2FSource creates a bridge client.
func NewA2FSource(cfg A2FConfig, log zerolog.Logger) *A2FSource {
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 60 * time.Second
	}
	return &A2FSource{
		cfg:  cfg,
		log:  log.With().Str("component", "a2f").Logger(),
		http: &http.Client{Timeout: cfg.ProcessTimeout},
		dial: websocket.DefaultDialer,
	}
}

func (s *A2FSource) Vocabulary() pose.Vocabulary {
	return pose.VocabularyBlendshape
}

// processResponse is the /process reply.
type processResponse struct {
	SessionID  string  `json:"session_id"`
	FrameCount int     `json:"frame_count"`
	Duration   float64 `json:"duration_sec"`
	FPS        int     `json:"fps"`
}

// a2fMessage is one websocket message from the bridge.
type a2fMessage struct {
	Type    string    `json:"type"`
	Message string    `json:"message,omitempty"`
	Data    *a2fFrame `json:"data,omitempty"`
}

// a2fFrame is one frame of blendshape animation.
type a2fFrame struct {
	Frame       int                `json:"frame"`
	Timestamp   float64            `json:"timestamp"` // seconds from start
	Blendshapes map[string]float32 `json:"blendshapes"`
}

// Synthesize uploads req.Audio, then relays the frame stream to h. The
// "started" signal fires when the start action is sent, i.e. when req.Started
// is signaled (or immediately if it is nil).
func (s *A2FSource) Synthesize(ctx context.Context, req Request, h Handler) error {
	if len(req.Audio) == 0 {
		return fmt.Errorf("a2f: request has no audio")
	}

	reqID := uuid.NewString()[:8]
	log := s.log.With().Str("request", reqID).Logger()

	proc, err := s.process(ctx, req.Audio)
	if err != nil {
		return fmt.Errorf("a2f process: %w", err)
	}
	log.Info().
		Str("session", proc.SessionID).
		Int("frames", proc.FrameCount).
		Float64("duration_sec", proc.Duration).
		Msg("audio processed")

	wsURL := websocketURL(s.cfg.BaseURL) + "/ws/" + proc.SessionID
	conn, _, err := s.dial.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("a2f dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	// Close the socket when ctx is canceled so the read loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// Anchor the stream at actual audio playback, not at request time.
	if req.Started != nil {
		select {
		case <-req.Started:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := conn.WriteJSON(map[string]string{"action": "start"}); err != nil {
		return fmt.Errorf("a2f start signal: %w", err)
	}
	h.started()

	for {
		var msg a2fMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				h.ended(ctx.Err())
				return ctx.Err()
			}
			h.ended(err)
			return fmt.Errorf("a2f read: %w", err)
		}

		switch msg.Type {
		case "frame":
			if msg.Data == nil || msg.Data.Blendshapes == nil {
				log.Warn().Msg("frame message without blendshape data, skipping")
				continue
			}
			h.event(pose.Event{
				TimestampMs: int(msg.Data.Timestamp*1000 + 0.5),
				Target:      pose.Target{Frame: msg.Data.Blendshapes},
			})
		case "complete":
			log.Debug().Msg("stream complete")
			h.ended(nil)
			return nil
		case "error":
			err := fmt.Errorf("a2f stream: %s", msg.Message)
			h.ended(err)
			return err
		default:
			log.Debug().Str("type", msg.Type).Msg("ignoring unknown message type")
		}
	}
}

// process uploads the audio and returns the bridge session descriptor.
func (s *A2FSource) process(ctx context.Context, audio []byte) (*processResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", "utterance.wav")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/process", &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var proc processResponse
	if err := json.NewDecoder(resp.Body).Decode(&proc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if proc.SessionID == "" {
		return nil, fmt.Errorf("response missing session_id")
	}
	return &proc, nil
}

func websocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
