package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Core.Monitor)
	assert.Empty(t, cfg.Core.AppRoot)

	assert.Empty(t, cfg.Tracking.IgnorePaths)
	assert.Equal(t, 5, cfg.Tracking.NPlusOneThreshold)
	assert.True(t, cfg.Tracking.CollectBacktraces)
	assert.Equal(t, 50, cfg.Tracking.MaxBacktraceFrames)
	assert.Equal(t, 256, cfg.Tracking.ExportQueueSize)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SCOUT_MONITOR", "false")
	t.Setenv("SCOUT_NAME", "checkout-service")
	t.Setenv("SCOUT_APP_ROOT", "/srv/checkout")
	t.Setenv("SCOUT_IGNORE", "/health,/metrics")
	t.Setenv("SCOUT_N_PLUS_ONE_THRESHOLD", "3")
	t.Setenv("SCOUT_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Core.Monitor)
	assert.Equal(t, "checkout-service", cfg.Core.Name)
	assert.Equal(t, "/srv/checkout", cfg.Core.AppRoot)
	assert.Equal(t, []string{"/health", "/metrics"}, cfg.Tracking.IgnorePaths)
	assert.Equal(t, 3, cfg.Tracking.NPlusOneThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("SCOUT_N_PLUS_ONE_THRESHOLD", "not-a-number")

	cfg := LoadOrDefault()
	require.NotNil(t, cfg)
	assert.Equal(t, 5, cfg.Tracking.NPlusOneThreshold)

	os.Unsetenv("SCOUT_N_PLUS_ONE_THRESHOLD")
}
