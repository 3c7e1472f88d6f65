package prefs

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Equal(t, Defaults(), s.Get())
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	assert.Equal(t, Defaults(), Load(path).Get())
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"wake_word":"computer"}`), 0o644))

	got := Load(path).Get()
	assert.Equal(t, "computer", got.WakeWord)
	assert.True(t, got.VoiceEnabled)
	assert.Equal(t, 0.7, got.ConfidenceThreshold)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "user_preferences.json")
	want := Preferences{
		VoiceEnabled:        false,
		WakeWord:            "assistant",
		ConfidenceThreshold: 0.4,
		ResponseSpeed:       1.5,
	}

	saved, err := Load(path).Save(want)
	require.NoError(t, err)
	assert.Equal(t, want, saved)

	assert.Equal(t, want, Load(path).Get())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"voice_enabled\": false")
}

func TestNormalize(t *testing.T) {
	tbl := []struct {
		name string
		in   Preferences
		want Preferences
	}{
		{"defaults untouched", Defaults(), Defaults()},
		{
			"clamped high",
			Preferences{true, "computer", 7, 9},
			Preferences{true, "computer", 1.0, 2.0},
		},
		{
			"clamped low",
			Preferences{true, "jarvis", -1, 0},
			Preferences{true, "jarvis", 0.1, 0.5},
		},
		{
			"not a number",
			Preferences{true, "jarvis", math.NaN(), math.NaN()},
			Preferences{true, "jarvis", 0.7, 1.0},
		},
		{
			"infinite",
			Preferences{true, "jarvis", math.Inf(1), math.Inf(-1)},
			Preferences{true, "jarvis", 0.7, 1.0},
		},
		{
			"unknown wake word",
			Preferences{false, "friday", 0.5, 1},
			Preferences{false, "jarvis", 0.5, 1},
		},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestSaveWriteFailureKeepsValue(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	s := Load(filepath.Join(blocker, "prefs.json"))
	p := Defaults()
	p.WakeWord = "computer"
	_, err := s.Save(p)
	assert.Error(t, err)
	assert.Equal(t, "computer", s.Get().WakeWord)
}

func TestLoadWithDefaults(t *testing.T) {
	dir := t.TempDir()
	base := Preferences{VoiceEnabled: false, WakeWord: "computer", ConfidenceThreshold: 0.5, ResponseSpeed: 3}

	s := LoadWithDefaults(filepath.Join(dir, "missing.json"), base)
	assert.Equal(t, Preferences{WakeWord: "computer", ConfidenceThreshold: 0.5, ResponseSpeed: MaxSpeed}, s.Get())

	path := filepath.Join(dir, "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"voice_enabled": true}`), 0o644))
	s = LoadWithDefaults(path, base)
	assert.True(t, s.Get().VoiceEnabled)
	assert.Equal(t, "computer", s.Get().WakeWord)
}

func TestSaveNotANumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s := Load(path)

	p := Defaults()
	p.ConfidenceThreshold = math.NaN()
	saved, err := s.Save(p)
	require.NoError(t, err)
	assert.Equal(t, 0.7, saved.ConfidenceThreshold)
	assert.Equal(t, 0.7, Load(path).Get().ConfidenceThreshold)
}
