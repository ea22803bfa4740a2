// facesync-sim drives the sync engine without a renderer: it synthesizes a
// coarse viseme timeline from text, ticks the engine at the configured frame
// rate, and prints sampled channel weights until the face returns to neutral.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/normanking/facesync/internal/bus"
	"github.com/normanking/facesync/internal/config"
	"github.com/normanking/facesync/internal/engine"
	"github.com/normanking/facesync/internal/logging"
	"github.com/normanking/facesync/internal/pose"
	"github.com/normanking/facesync/internal/provider"
	"github.com/normanking/facesync/internal/scene"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.yaml")
	text := flag.String("text", "Hello there, how are you today?", "text to animate")
	flag.Parse()

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: true,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()
	log := logger.Component("sim")

	parts, err := buildParts(cfg)
	if err != nil {
		return err
	}

	mapper := scene.NewMapper(logger.Component("mapper"), cfg.Face.Corrections)
	src := provider.NewTextVisemeSource(logger.Zerolog())
	if !mapper.Bind(parts, src.Vocabulary()) {
		return fmt.Errorf("no channels mapped; the face would stay frozen")
	}

	events := bus.New()
	eng := engine.New(engine.Config{
		Intensity:     cfg.Face.Intensity,
		BlendFactor:   cfg.Face.BlendFactor,
		NeutralReturn: cfg.Face.NeutralReturn,
	}, src, mapper, events, logger.Zerolog())

	events.Subscribe(bus.EventSpeechStarted, func(ev bus.Event) {
		log.Info().Interface("data", ev.Data).Msg("speech started")
	})
	events.Subscribe(bus.EventSpeechEnded, func(ev bus.Event) {
		log.Info().Interface("data", ev.Data).Msg("speech ended")
	})
	neutral := make(chan struct{}, 1)
	events.Subscribe(bus.EventFaceNeutral, func(bus.Event) {
		select {
		case neutral <- struct{}{}:
		default:
		}
	})

	start := time.Now()
	started := make(chan struct{})
	eng.Speak(context.Background(), provider.Request{Text: *text, Started: started})
	close(started) // no real audio device; playback begins immediately

	frame := time.Second / time.Duration(cfg.Face.FrameRate)
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	sample := time.NewTicker(100 * time.Millisecond)
	defer sample.Stop()

	watch := []string{
		pose.VisemeAA.Channel(),
		pose.VisemePP.Channel(),
		pose.VisemeOU.Channel(),
	}

	for {
		select {
		case <-ticker.C:
			eng.Tick()
		case <-sample.C:
			ev := log.Info()
			for _, c := range watch {
				if v, ok := mapper.Read(c); ok {
					ev = ev.Float32(c, v)
				}
			}
			ev.Msg("channels")
		case <-neutral:
			log.Info().Str("elapsed", logging.Elapsed(start)).Msg("face returned to neutral")
			return nil
		case <-time.After(2 * time.Minute):
			return fmt.Errorf("timed out waiting for neutral return")
		}
	}
}

// buildParts loads morph-target parts from the configured glTF model, or
// falls back to in-memory head and teeth parts covering the viseme channels.
func buildParts(cfg *config.Config) ([]scene.Part, error) {
	if cfg.Scene.ModelPath != "" {
		gparts, err := scene.LoadParts(cfg.Scene.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("load model %s: %w", cfg.Scene.ModelPath, err)
		}
		parts := make([]scene.Part, len(gparts))
		for i, p := range gparts {
			parts[i] = p
		}
		return parts, nil
	}

	channels := append([]string{}, pose.VocabularyViseme.Channels()...)
	channels = append(channels, "jawOpen")
	head := scene.NewMemoryPart("head", channels)
	teeth := scene.NewMemoryPart("teeth", []string{"jawOpen"})
	return []scene.Part{head, teeth}, nil
}
