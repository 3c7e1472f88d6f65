// Package prefs loads and saves the user's assistant preferences.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// WakeWords lists the wake words the settings form offers.
var WakeWords = []string{"jarvis", "computer", "assistant"}

const (
	MinConfidence = 0.1
	MaxConfidence = 1.0
	MinSpeed      = 0.5
	MaxSpeed      = 2.0
)

type Preferences struct {
	VoiceEnabled        bool    `json:"voice_enabled"`
	WakeWord            string  `json:"wake_word"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	ResponseSpeed       float64 `json:"response_speed"`
}

func Defaults() Preferences {
	return Preferences{
		VoiceEnabled:        true,
		WakeWord:            "jarvis",
		ConfidenceThreshold: 0.7,
		ResponseSpeed:       1.0,
	}
}

// Normalize clamps p into the ranges the settings form allows.
func (p Preferences) Normalize() Preferences {
	if !slices.Contains(WakeWords, p.WakeWord) {
		p.WakeWord = Defaults().WakeWord
	}
	d := Defaults()
	p.ConfidenceThreshold = clamp(p.ConfidenceThreshold, MinConfidence, MaxConfidence, d.ConfidenceThreshold)
	p.ResponseSpeed = clamp(p.ResponseSpeed, MinSpeed, MaxSpeed, d.ResponseSpeed)
	return p
}

// clamp bounds v to [lo, hi]; NaN and infinities become def.
func clamp(v, lo, hi, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return max(lo, min(hi, v))
}

// Store holds the current preferences and writes them to a JSON file.
type Store struct {
	path string

	mu  sync.RWMutex
	cur Preferences
}

// Load reads path. A missing or unreadable file yields the defaults; keys
// absent from the file keep their default values.
func Load(path string) *Store {
	return LoadWithDefaults(path, Defaults())
}

// LoadWithDefaults is Load with base in place of Defaults, e.g. values from
// the application config.
func LoadWithDefaults(path string, base Preferences) *Store {
	base = base.Normalize()
	s := &Store{path: path, cur: base}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("Failed to read preferences, using defaults", "path", path, "err", err)
		}
		return s
	}

	p := base
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn("Failed to decode preferences, using defaults", "path", path, "err", err)
		return s
	}
	s.cur = p.Normalize()
	return s
}

func (s *Store) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Save replaces the stored preferences wholesale and persists them.
// The normalized value is kept in memory even when writing fails.
func (s *Store) Save(p Preferences) (Preferences, error) {
	p = p.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = p

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return p, fmt.Errorf("encode preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return p, fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return p, fmt.Errorf("write %s: %w", s.path, err)
	}
	return p, nil
}

func (s *Store) Path() string {
	return s.path
}
