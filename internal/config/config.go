// Package config loads the daemon's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

type Voice struct {
	Enabled             bool          `yaml:"enabled"`
	WakeWord            string        `yaml:"wake_word"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	Language            string        `yaml:"language"`
	Recognizer          string        `yaml:"recognizer"`  // cloud | offline | none
	Synthesizer         string        `yaml:"synthesizer"` // espeak | cloud | none
	Voice               string        `yaml:"voice"`
	WhisperModel        string        `yaml:"whisper_model"`
	CaptureTimeout      time.Duration `yaml:"capture_timeout"`
	ListenTimeout       time.Duration `yaml:"listen_timeout"`
	Beep                string        `yaml:"beep"`
	Duck                bool          `yaml:"duck"`
}

type UI struct {
	Theme      string `yaml:"theme"`
	MaxHistory int    `yaml:"max_history"`
	AutoScroll bool   `yaml:"auto_scroll"`
}

type System struct {
	AutoStart      bool `yaml:"auto_start"`
	MinimizeToTray bool `yaml:"minimize_to_tray"`
	CheckUpdates   bool `yaml:"check_updates"`
}

type Server struct {
	Listen  string        `yaml:"listen"`
	Timeout time.Duration `yaml:"timeout"`
}

type Storage struct {
	Backend         string `yaml:"backend"` // file | redis
	HistoryPath     string `yaml:"history_path"`
	PreferencesPath string `yaml:"preferences_path"`
	RedisURL        string `yaml:"redis_url"`
	RedisKey        string `yaml:"redis_key"`
}

type IPC struct {
	Socket string `yaml:"socket"`
}

type Config struct {
	AppName string  `yaml:"app_name"`
	Version string  `yaml:"version"`
	Debug   bool    `yaml:"debug"`
	Voice   Voice   `yaml:"voice"`
	UI      UI      `yaml:"ui"`
	System  System  `yaml:"system"`
	Server  Server  `yaml:"server"`
	Storage Storage `yaml:"storage"`
	IPC     IPC     `yaml:"ipc"`
	Proxy   string  `yaml:"proxy"`
}

func Default() Config {
	return Config{
		AppName: "JARVIS Assistant",
		Version: "1.0.0",
		Voice: Voice{
			Enabled:             true,
			WakeWord:            "jarvis",
			ConfidenceThreshold: 0.7,
			Language:            "en",
			Recognizer:          "cloud",
			Synthesizer:         "espeak",
			Voice:               "alloy",
			WhisperModel:        "models/ggml-base.en.bin",
			CaptureTimeout:      time.Second,
			ListenTimeout:       5 * time.Second,
			Beep:                "beep.mp3",
		},
		UI: UI{
			Theme:      "dark",
			MaxHistory: 100,
			AutoScroll: true,
		},
		System: System{
			CheckUpdates: true,
		},
		Server: Server{
			Listen:  "127.0.0.1:8501",
			Timeout: 30 * time.Second,
		},
		Storage: Storage{
			Backend:         "file",
			HistoryPath:     "data/conversation_history.json",
			PreferencesPath: "config/user_preferences.json",
			RedisKey:        "jarvis:conversation",
		},
		IPC: IPC{
			Socket: "/tmp/jarvis.sock",
		},
	}
}

// Load reads a YAML file over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{"file", "redis"}, c.Storage.Backend) {
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if !slices.Contains([]string{"cloud", "offline", "none"}, c.Voice.Recognizer) {
		errs = append(errs, fmt.Errorf("unknown recognizer %q", c.Voice.Recognizer))
	}
	if !slices.Contains([]string{"espeak", "cloud", "none"}, c.Voice.Synthesizer) {
		errs = append(errs, fmt.Errorf("unknown synthesizer %q", c.Voice.Synthesizer))
	}
	if c.UI.MaxHistory <= 0 {
		errs = append(errs, fmt.Errorf("ui.max_history must be positive, got %d", c.UI.MaxHistory))
	}
	if c.Voice.CaptureTimeout <= 0 || c.Voice.ListenTimeout <= 0 {
		errs = append(errs, errors.New("voice timeouts must be positive"))
	}
	return errors.Join(errs...)
}
