package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wsmonitor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsWithoutFile(t *testing.T) {
	l, err := NewLoader(nil, "")
	require.NoError(t, err)

	cfg := l.Config()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Server.BindAddress)
	assert.Equal(t, 256, cfg.Server.ViewerBuffer)
	assert.Equal(t, []string{"s-", "server-"}, cfg.Graph.ServerPrefixes)
	assert.Equal(t, "@every 5s", cfg.Source.SweepSchedule)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout.Duration)

	opts := cfg.Graph.Options()
	assert.Zero(t, opts.DrainInterval)
	assert.Equal(t, []string{"s-", "server-"}, opts.ServerPrefixes)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
hostname: S-test
graph:
  drain_interval: 10ms
  fade_deadline: 1000000000
  fade_step: 0.25
  palette: ["#111111", "#222222"]
source:
  url: http://backend:8000
  idle_timeout: 1m
redis:
  url: redis://localhost:6379/2
`)

	l, err := NewLoader(nil, path)
	require.NoError(t, err)

	cfg := l.Config()
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "S-test", cfg.Hostname)
	assert.Equal(t, time.Minute, cfg.Source.IdleTimeout.Duration)
	assert.Equal(t, "redis://localhost:6379/2", cfg.Redis.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.Redis.Timeout.Duration)

	opts := cfg.Graph.Options()
	assert.Equal(t, 10*time.Millisecond, opts.DrainInterval)
	assert.Equal(t, time.Second, opts.FadeDeadline)
	assert.Equal(t, 0.25, opts.FadeStep)
	assert.Equal(t, []string{"#111111", "#222222"}, opts.Palette)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIKey, "key")
	t.Setenv(EnvToken, "token")
	t.Setenv(EnvBindAddress, "127.0.0.1:9999")

	path := writeConfig(t, "backend:\n  url: http://backend:8000\n")
	l, err := NewLoader(nil, path)
	require.NoError(t, err)

	cfg := l.Config()
	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, "token", cfg.Token)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.BindAddress)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("WS_MONITOR_TOKEN=from-dotenv\n"), 0o644))
	t.Setenv(EnvToken, "")
	require.NoError(t, os.Unsetenv(EnvToken))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv(EnvToken))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]string{
		"bad level":        "log_level: loud\n",
		"bad palette":      "graph:\n  palette: [red]\n",
		"bad server color": "graph:\n  server_color: black\n",
		"fade step":        "graph:\n  fade_step: 2\n",
		"threshold":        "graph:\n  fade_threshold: 300\n",
		"source url":       "source:\n  url: backend:8000\n",
		"backend no key":   "backend:\n  url: http://backend:8000\n",
		"bad duration":     "graph:\n  drain_interval: soon\n",
		"redis url":        "redis:\n  url: mysql://localhost\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(EnvAPIKey, "")
			_, err := NewLoader(nil, writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestReloadNotifies(t *testing.T) {
	path := writeConfig(t, "graph:\n  drain_interval: 10ms\n")
	l, err := NewLoader(nil, path)
	require.NoError(t, err)

	var got []*Config
	l.OnChange(func(cfg *Config) { got = append(got, cfg) })

	require.NoError(t, os.WriteFile(path, []byte("graph:\n  drain_interval: 20ms\n"), 0o644))
	cfg, err := l.Reload()
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Same(t, cfg, got[0])
	assert.Same(t, cfg, l.Config())
	assert.Equal(t, 20*time.Millisecond, cfg.Graph.DrainInterval.Duration)
}

func TestReloadKeepsPreviousOnError(t *testing.T) {
	path := writeConfig(t, "log_level: warn\n")
	l, err := NewLoader(nil, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("log_level: [\n"), 0o644))
	_, err = l.Reload()
	assert.Error(t, err)
	assert.Equal(t, "warn", l.Config().LogLevel)
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, "graph:\n  drain_interval: 10ms\n")
	l, err := NewLoader(nil, path)
	require.NoError(t, err)

	stop, err := l.Watch()
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("graph:\n  drain_interval: 30ms\n"), 0o644))

	require.Eventually(t, func() bool {
		return l.Config().Graph.DrainInterval.Duration == 30*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)
}
