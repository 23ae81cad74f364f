package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "INBOX", cfg.DefaultLabel)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 300, cfg.BatchDelayMs)
	assert.False(t, cfg.Debug)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().PageSize, cfg.PageSize)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"page_size": 25, "default_label": "STARRED"}`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, "STARRED", cfg.DefaultLabel)
	// Untouched fields keep their defaults.
	assert.Equal(t, 10, cfg.BatchSize)
}

func TestLoadConfig_UnreadableFileIsAnError(t *testing.T) {
	// A path that exists but cannot be read as a file must surface an
	// error instead of silently falling back to defaults.
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GMAELSTROM_CREDENTIALS", "/tmp/alt-creds.json")
	t.Setenv("GMAELSTROM_SESSION_DB", "/tmp/alt-session.db")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/alt-creds.json", cfg.Credentials)
	assert.Equal(t, "/tmp/alt-session.db", cfg.SessionDB)
}

func TestLoadConfig_ClampsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"page_size": -1, "batch_size": 0, "batch_delay_ms": -5}`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 0, cfg.BatchDelayMs)
}

func TestDefaultConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("GMAELSTROM_CONFIG", "/tmp/custom/config.json")
	assert.Equal(t, "/tmp/custom/config.json", DefaultConfigPath())
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.PageSize = 75

	require.NoError(t, cfg.SaveConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded Config
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, 75, loaded.PageSize)
}
