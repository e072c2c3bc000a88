package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	assert.Equal(t, "arbiter.db", v.GetString("database.path"))
	assert.Equal(t, DefaultServerPort, v.GetInt("server.port"))
	assert.Equal(t, 500, v.GetInt("jobs.trigger_wait_ms"))
	assert.Equal(t, 15, v.GetInt("jobs.watch_poll_interval_minutes"))
	assert.Equal(t, 30, v.GetInt("watch.requests_per_minute"))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arbiter.toml")
	content := `
[database]
path = "/tmp/test.db"

[jobs]
scan_interval_minutes = 60
trigger_wait_ms = 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 60, cfg.Jobs.ScanIntervalMinutes)
	assert.Equal(t, 100, cfg.Jobs.TriggerWaitMs)
	// Unset keys fall back to defaults
	assert.Equal(t, 250, cfg.Jobs.PausePollMs)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestSaveAndUpdateSetting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arbiter.toml")

	require.NoError(t, UpdateSetting(path, "jobs", "scan_interval_minutes", 30))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Jobs.ScanIntervalMinutes)

	// A second update rotates a backup of the first write
	require.NoError(t, UpdateSetting(path, "jobs", "scan_interval_minutes", 45))
	_, statErr := os.Stat(path + ".back1")
	assert.NoError(t, statErr)

	cfg, err = LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.Jobs.ScanIntervalMinutes)
}

func TestReset(t *testing.T) {
	Reset()
	assert.Nil(t, globalConfig)
	assert.Nil(t, viperInstance)
}
