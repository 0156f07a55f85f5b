package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LCM-Bus/internal/core/network"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lcm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, network.DefaultURL, cfg.URL)
	assert.Equal(t, 30, cfg.QueueCapacity)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, `
url: memq://
queue_capacity: 5
log:
  level: debug
  format: json
  development: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memq://", cfg.URL)
	assert.Equal(t, 5, cfg.QueueCapacity)
	assert.Equal(t, Log{Level: "debug", Format: "json", Development: true}, cfg.Log)
}

func TestLoadPartialYAMLKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "queue_capacity: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.QueueCapacity)
	assert.Equal(t, network.DefaultURL, cfg.URL)
	assert.Equal(t, "info", cfg.Log.Level)

	cfg, err = Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("LCM_DEFAULT_URL", "redis://localhost:6379/0")
	t.Setenv("LCM_QUEUE_CAPACITY", "100")
	t.Setenv("LCM_LOG_LEVEL", "warn")
	t.Setenv("LCM_LOG_QUIET", "true")

	cfg, err := Load(writeFile(t, "url: memq://\nqueue_capacity: 5\n"))
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", cfg.URL)
	assert.Equal(t, 100, cfg.QueueCapacity)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Log.Quiet)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeFile(t, "unknown_key: 1\n"))
	assert.ErrorContains(t, err, "invalid config")

	_, err = Load(writeFile(t, "url: ftp://example\n"))
	assert.ErrorIs(t, err, network.ErrUnknownScheme)

	_, err = Load(writeFile(t, "log:\n  format: xml\n"))
	assert.ErrorContains(t, err, "log format")

	t.Setenv("LCM_QUEUE_CAPACITY", "lots")
	_, err = Load("")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid environment"), err.Error())
}

func TestValidateLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := Default()
		cfg.Log.Level = level
		assert.NoError(t, cfg.Validate(), level)
	}
	cfg := Default()
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())
}
