package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_LocalDefaults(t *testing.T) {
	t.Setenv("BRANDBOT_CONFIG", "")
	t.Setenv("BRANDBOT_MODE", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, cfg.Mode)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mock", cfg.LLM.Backend)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 3, cfg.Synthesis.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Synthesis.Backoff)
	assert.Equal(t, time.Second, cfg.AutosaveDelay)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brandbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "local"
port = "9000"
autosave_delay = "250ms"

[storage]
backend = "badger"
blobs = "badger"
badger_dir = "/tmp/brandbot"

[synthesis]
strategy = "two-phase"
retry_backoff = "500ms"

[auth]
static_tokens = ["demo123:demo@user.com"]
`), 0o600))
	t.Setenv("BRANDBOT_CONFIG", path)
	t.Setenv("BRANDBOT_MODE", "")
	t.Setenv("BRANDBOT_PORT", "7000")
	t.Setenv("BRANDBOT_SYNTH_MAX_ATTEMPTS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/brandbot", cfg.Storage.BadgerDir)
	assert.Equal(t, "two-phase", cfg.Synthesis.Strategy)
	assert.Equal(t, 5, cfg.Synthesis.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Synthesis.Backoff)
	assert.Equal(t, 250*time.Millisecond, cfg.AutosaveDelay)
	assert.Equal(t, []string{"demo123:demo@user.com"}, cfg.Auth.StaticTokens)
}

func TestLoad_GCPRequiresProject(t *testing.T) {
	t.Setenv("BRANDBOT_CONFIG", "")
	t.Setenv("BRANDBOT_MODE", "gcp")
	t.Setenv("BRANDBOT_GCP_PROJECT", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BRANDBOT_GCP_PROJECT")
}

func TestLoad_RejectsUnknownValues(t *testing.T) {
	t.Setenv("BRANDBOT_CONFIG", "")
	t.Setenv("BRANDBOT_MODE", "")
	t.Setenv("BRANDBOT_CHAT_STRATEGY", "regex")
	t.Setenv("BRANDBOT_SYNTH_BACKOFF", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat.strategy")
	assert.Contains(t, err.Error(), "retry_backoff")
}

func TestLoad_BadInteger(t *testing.T) {
	t.Setenv("BRANDBOT_CONFIG", "")
	t.Setenv("BRANDBOT_SYNTH_MAX_ATTEMPTS", "three")
	_, err := Load()
	assert.Error(t, err)
}
