// Package config provides configuration management for the facesync engine.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Face     FaceConfig     `mapstructure:"face"`
	Provider ProviderConfig `mapstructure:"provider"`
	Scene    SceneConfig    `mapstructure:"scene"`
	Log      LogConfig      `mapstructure:"log"`
}

// FaceConfig tunes the blend scheduler.
type FaceConfig struct {
	// Mode selects the pose vocabulary: "viseme" or "blendshape".
	Mode string `mapstructure:"mode"`
	// Intensity scales all pose weights, clamped to [0.3, 1.5].
	Intensity float32 `mapstructure:"intensity"`
	// BlendFactor is the per-tick approach rate for coarse visemes, (0, 1).
	BlendFactor float32 `mapstructure:"blend_factor"`
	// FrameRate is the host's display refresh used by the simulator loop.
	FrameRate int `mapstructure:"frame_rate"`
	// NeutralReturn is how long the face eases back to rest after speech.
	NeutralReturn time.Duration `mapstructure:"neutral_return"`
	// Corrections are per-channel dampening multipliers applied before
	// clamping, e.g. jawOpen: 0.7 for meshes whose jaw morph overshoots.
	Corrections map[string]float32 `mapstructure:"corrections"`
}

// ProviderConfig configures the pose-event source.
type ProviderConfig struct {
	// A2FURL is the Audio2Face bridge base URL for blendshape mode.
	A2FURL string `mapstructure:"a2f_url"`
	// ProcessTimeout bounds the bridge's upload + inference call.
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
}

// SceneConfig locates the face model.
type SceneConfig struct {
	// ModelPath is a glTF file with morph targets; empty means in-memory
	// parts supplied by the host.
	ModelPath string `mapstructure:"model_path"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Face: FaceConfig{
			Mode:          "viseme",
			Intensity:     1.0,
			BlendFactor:   0.3,
			FrameRate:     60,
			NeutralReturn: 250 * time.Millisecond,
			Corrections: map[string]float32{
				"jawOpen": 0.7,
			},
		},
		Provider: ProviderConfig{
			A2FURL:         "http://localhost:8000",
			ProcessTimeout: 60 * time.Second,
		},
		Scene: SceneConfig{
			ModelPath: "",
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Clamp pulls out-of-range tuning values back into their documented ranges.
// Bad numbers in a hand-edited yaml file degrade the animation, they never
// stop the program.
func (c *Config) Clamp() {
	f := &c.Face
	if f.Intensity < 0.3 {
		f.Intensity = 0.3
	}
	if f.Intensity > 1.5 {
		f.Intensity = 1.5
	}
	if f.BlendFactor <= 0 {
		f.BlendFactor = 0.3
	}
	if f.BlendFactor >= 1 {
		f.BlendFactor = 1
	}
	if f.FrameRate <= 0 {
		f.FrameRate = 60
	}
	if f.NeutralReturn <= 0 {
		f.NeutralReturn = 250 * time.Millisecond
	}
	if f.Mode != "blendshape" {
		f.Mode = "viseme"
	}
}

// Loader reads and watches one configuration file.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader for the given config file path. An empty path
// falls back to config.yaml in ~/.facesync and the working directory.
func NewLoader(path string) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".facesync"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FACESYNC")
	v.AutomaticEnv()

	return &Loader{v: v}
}

// Load reads configuration from file and environment. A missing file is not
// an error; defaults apply.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return cfg, err
	}
	l.applyCorrections(cfg)

	cfg.Clamp()
	return cfg, nil
}

// applyCorrections re-reads the corrections table straight from the yaml
// file. Viper lowercases map keys on the way through, which would break
// camelCase channel names like jawOpen; channel names are case-sensitive.
func (l *Loader) applyCorrections(cfg *Config) {
	path := l.v.ConfigFileUsed()
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var doc struct {
		Face struct {
			Corrections map[string]float32 `yaml:"corrections"`
		} `yaml:"face"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return
	}
	if doc.Face.Corrections != nil {
		cfg.Face.Corrections = doc.Face.Corrections
	}
}

// Watch reloads the config whenever the file changes and hands the fresh,
// clamped result to fn. Lets intensity and blend factor be tuned live while
// an avatar is running.
func (l *Loader) Watch(fn func(*Config)) {
	l.v.OnConfigChange(func(fsnotify.Event) {
		cfg := DefaultConfig()
		if err := l.v.Unmarshal(cfg); err != nil {
			return
		}
		l.applyCorrections(cfg)
		cfg.Clamp()
		fn(cfg)
	})
	l.v.WatchConfig()
}
