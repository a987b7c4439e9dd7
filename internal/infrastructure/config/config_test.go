package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bivex/billing-bridge/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "android", cfg.Platform)
	assert.Equal(t, 15*time.Second, cfg.Correlation.Timeout)
	assert.True(t, cfg.Recovery.AutoRun)
	assert.True(t, cfg.IAP.AppleProduction)
	assert.Empty(t, cfg.Sentry.DSN)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("PLATFORM", "ios")
	t.Setenv("CORRELATION_TIMEOUT", "30s")
	t.Setenv("RECOVERY_AUTORUN", "false")
	t.Setenv("IAP_GOOGLEPACKAGENAME", "com.bivex.app")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "ios", cfg.Platform)
	assert.Equal(t, 30*time.Second, cfg.Correlation.Timeout)
	assert.False(t, cfg.Recovery.AutoRun)
	assert.Equal(t, "com.bivex.app", cfg.IAP.GooglePackageName)
}

func TestLoadValidation(t *testing.T) {
	t.Run("rejects unknown platform", func(t *testing.T) {
		t.Setenv("PLATFORM", "windows")

		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PLATFORM")
	})

	t.Run("rejects non-positive correlation timeout", func(t *testing.T) {
		t.Setenv("CORRELATION_TIMEOUT", "-1s")

		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CORRELATION_TIMEOUT")
	})
}
