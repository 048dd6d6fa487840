package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvDefaults(t *testing.T) {
	var cfg Device
	require.NoError(t, ParseEnv(&cfg))

	assert.Equal(t, "host", cfg.Role)
	assert.Equal(t, 30*time.Second, cfg.Heartbeat)
	assert.Equal(t, 10, cfg.MaxReconnects)
	assert.Equal(t, 5*time.Second, cfg.SaveDebounce)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("TABLETOP_ADDR", ":9999")
	t.Setenv("TABLETOP_WS_ORIGINS", "localhost:*,example.com")

	var cfg Server
	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, []string{"localhost:*", "example.com"}, cfg.WSOrigins)
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("TABLETOP_MAX_RECONNECTS", "lots")

	var cfg Device
	err := ParseEnv(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLoadReadsDotEnvAndIgnoresMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TABLETOP_SESSION_ID=abc123\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TABLETOP_SESSION_ID") })

	var cfg Device
	require.NoError(t, Load(&cfg, filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "abc123", cfg.SessionID)
}
