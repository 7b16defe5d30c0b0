package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New(), "")
	require.NoError(t, err)

	require.Equal(t, "localhost", cfg.Server.Host)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "libsql", cfg.Store.Driver)
	require.Equal(t, 15, cfg.Throttle.MaxRequests)
	require.Equal(t, time.Minute, cfg.Throttle.Window)
	require.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.Equal(t, "exponential", cfg.Retry.Strategy)
	require.Equal(t, 5, cfg.Breaker.FailureThreshold)
	require.Equal(t, 6*time.Hour, cfg.Archive.Interval)
	require.Equal(t, 24*time.Hour, cfg.Archive.UsedRetention)
	require.Equal(t, 7*24*time.Hour, cfg.Archive.ActiveRetention)
	require.Equal(t, 3, cfg.Passes.MaxActivePerUser)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "easypass.yaml")
	content := `
server:
  port: 9000
throttle:
  max_requests: 5
  window: 30s
archive:
  used_retention: 48h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := load(viper.New(), path)
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, 5, cfg.Throttle.MaxRequests)
	require.Equal(t, 30*time.Second, cfg.Throttle.Window)
	require.Equal(t, 48*time.Hour, cfg.Archive.UsedRetention)
	// Untouched sections keep their defaults.
	require.Equal(t, "localhost", cfg.Server.Host)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("EASYPASS_STORE_PATH", ":memory:")
	t.Setenv("EASYPASS_LOGGING_LEVEL", "debug")

	cfg, err := load(viper.New(), "")
	require.NoError(t, err)

	require.Equal(t, ":memory:", cfg.Store.Path)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadBadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "easypass.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o600))

	_, err := load(viper.New(), path)
	require.Error(t, err)
}
