package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, Default().Validate())
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
app_name: Friday
debug: true
voice:
  recognizer: offline
  capture_timeout: 2s
  wake_word: computer
ui:
  max_history: 20
storage:
  backend: redis
  redis_url: redis://localhost:6379/0
server:
  listen: ":9000"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Friday", cfg.AppName)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "offline", cfg.Voice.Recognizer)
	assert.Equal(t, 2*time.Second, cfg.Voice.CaptureTimeout)
	assert.Equal(t, 5*time.Second, cfg.Voice.ListenTimeout, "untouched keys keep defaults")
	assert.Equal(t, "computer", cfg.Voice.WakeWord)
	assert.Equal(t, 20, cfg.UI.MaxHistory)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "data/conversation_history.json", cfg.Storage.HistoryPath)
	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, "/tmp/jarvis.sock", cfg.IPC.Socket)
}

func TestLoadInvalid(t *testing.T) {
	tbl := []struct {
		name string
		yml  string
		msg  string
	}{
		{"bad yaml", "voice: [", "parse config"},
		{"bad backend", "storage: {backend: sqlite}", "storage backend"},
		{"bad recognizer", "voice: {recognizer: google}", "recognizer"},
		{"bad history", "ui: {max_history: 0}", "max_history"},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yml), 0o644))
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
