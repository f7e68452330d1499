package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/socmon/internal/config"
	"codeberg.org/mutker/socmon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetArgs(t *testing.T, args ...string) {
	t.Helper()
	oldArgs := os.Args
	os.Args = append([]string{"socmon"}, args...)
	t.Cleanup(func() { os.Args = oldArgs })
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "socmon.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return configPath
}

func TestLoad(t *testing.T) {
	resetArgs(t)

	configPath := writeConfig(t, `
interval = 2
temperature_interval = 15
frequency_interval = 25
power_interval = 4
failure_threshold = 5
always_on = true
exporter = false
log_level = "debug"
diag_frequency = true
`)
	t.Setenv("SOCMON_CONFIG", configPath)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Interval, "Expected Interval 2")
	assert.Equal(t, 15, cfg.TemperatureInterval, "Expected TemperatureInterval 15")
	assert.Equal(t, 25, cfg.FrequencyInterval, "Expected FrequencyInterval 25")
	assert.Equal(t, 4, cfg.PowerInterval, "Expected PowerInterval 4")
	assert.Equal(t, 5, cfg.FailureThreshold, "Expected FailureThreshold 5")
	assert.True(t, cfg.AlwaysOn, "Expected AlwaysOn true")
	assert.False(t, cfg.Exporter, "Expected Exporter false")
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel debug")
	assert.True(t, cfg.DiagFrequency, "Expected DiagFrequency true")
	assert.False(t, cfg.DiagPower, "Expected DiagPower false")
}

func TestLoadDefaults(t *testing.T) {
	resetArgs(t)
	t.Setenv("SOCMON_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, 1, cfg.Interval, "Expected default Interval 1")
	assert.Equal(t, 20, cfg.TemperatureInterval, "Expected default TemperatureInterval 20")
	assert.Equal(t, 30, cfg.FrequencyInterval, "Expected default FrequencyInterval 30")
	assert.Equal(t, 5, cfg.PowerInterval, "Expected default PowerInterval 5")
	assert.Equal(t, 60, cfg.ThermalInterval, "Expected default ThermalInterval 60")
	assert.Equal(t, 3, cfg.FailureThreshold, "Expected default FailureThreshold 3")
	assert.Equal(t, 15, cfg.VisibilityWindow, "Expected default VisibilityWindow 15")
	assert.False(t, cfg.AlwaysOn, "Expected default AlwaysOn false")
	assert.True(t, cfg.Exporter, "Expected default Exporter true")
	assert.Equal(t, ":9757", cfg.Listen, "Expected default Listen :9757")
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel, "Expected default LogLevel info")
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	resetArgs(t)

	configPath := writeConfig(t, `
This is not a valid TOML file
`)
	t.Setenv("SOCMON_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig), "Expected read_config_failed code")
}

func TestInvalidLogLevel(t *testing.T) {
	resetArgs(t)

	configPath := writeConfig(t, `
log_level = "invalid"
`)
	t.Setenv("SOCMON_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel), "Expected invalid_log_level code")
}

func TestInvalidInterval(t *testing.T) {
	resetArgs(t)

	configPath := writeConfig(t, `
interval = 0
`)
	t.Setenv("SOCMON_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidInterval), "Expected invalid_interval code")
}

func TestLogLevelFlag(t *testing.T) {
	resetArgs(t, "--log-level", "debug")
	t.Setenv("SOCMON_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
}

func TestFlagOverridesFile(t *testing.T) {
	resetArgs(t, "--interval", "3")

	configPath := writeConfig(t, `
interval = 7
`)
	t.Setenv("SOCMON_CONFIG", configPath)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Interval, "Expected flag to override file value")
}

func TestWithConfigFile(t *testing.T) {
	resetArgs(t)
	t.Setenv("SOCMON_CONFIG", "")

	configPath := writeConfig(t, `
listen = "127.0.0.1:9900"
`)

	cfg, err := config.Load(config.WithConfigFile(configPath))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9900", cfg.Listen)
}
