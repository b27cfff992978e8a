package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Empty directory, no config file
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 300, cfg.Data.DefaultLimit)
	assert.Equal(t, 1000, cfg.Data.MaxLimit)
	assert.Equal(t, 5*time.Second, cfg.Simulator.Interval)

	assert.Equal(t, 3000, cfg.Dashboard.PollIntervalMs)
	assert.Equal(t, 3*time.Second, cfg.Dashboard.PollInterval())
	assert.Equal(t, float64(580), cfg.Dashboard.AlertThreshold)
	assert.Equal(t, 10, cfg.Dashboard.WindowSize)
	assert.Equal(t, float64(80), cfg.Dashboard.NoiseCeiling)
	assert.True(t, cfg.Dashboard.TrackNoise)
	assert.False(t, cfg.Audio.Permission)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
dashboard:
  alert_threshold: 600
  window_size: 20
database:
  driver: sqlite
  path: test.db
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	t.Setenv("BEEWATCH_DASHBOARD_NOISE_CEILING", "75")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, float64(600), cfg.Dashboard.AlertThreshold)
	assert.Equal(t, 20, cfg.Dashboard.WindowSize)
	assert.Equal(t, float64(75), cfg.Dashboard.NoiseCeiling)
	assert.Equal(t, "test.db", cfg.Database.Path)
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:    ServerConfig{Environment: "production"},
			Database:  DatabaseConfig{Driver: "sqlite", Path: "x.db"},
			Data:      DataConfig{DefaultLimit: 300, MaxLimit: 1000},
			Dashboard: DashboardConfig{WindowSize: 10, PollIntervalMs: 3000},
			Simulator: SimulatorConfig{Interval: 5 * time.Second},
		}
	}

	t.Run("Should accept a minimal valid config", func(t *testing.T) {
		assert.NoError(t, validateConfig(base()))
	})

	t.Run("Should reject unknown database driver", func(t *testing.T) {
		cfg := base()
		cfg.Database.Driver = "mysql"
		assert.Error(t, validateConfig(cfg))
	})

	t.Run("Should reject zero window size", func(t *testing.T) {
		cfg := base()
		cfg.Dashboard.WindowSize = 0
		assert.Error(t, validateConfig(cfg))
	})

	t.Run("Should require JWT secret for device auth outside development", func(t *testing.T) {
		cfg := base()
		cfg.JWT.RequireDevice = true
		assert.Error(t, validateConfig(cfg))

		cfg.Server.Environment = "development"
		assert.NoError(t, validateConfig(cfg))
		assert.NotEmpty(t, cfg.JWT.Secret)
	})

	t.Run("Should reject a non-positive simulator interval", func(t *testing.T) {
		cfg := base()
		cfg.Simulator.Interval = 0
		assert.Error(t, validateConfig(cfg))
	})

	t.Run("Should require push URLs when push is enabled", func(t *testing.T) {
		cfg := base()
		cfg.Push.Enabled = true
		assert.Error(t, validateConfig(cfg))
	})
}
