package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_EmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "local", cfg.Sessions.Backend)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
sessions:
  timeout: 120
  debug: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 120, cfg.Sessions.Timeout)
	assert.True(t, cfg.Sessions.Debug)

	// Sections absent from the file keep their defaults.
	assert.Equal(t, "/ws", cfg.Server.WSPath)
	assert.Equal(t, 60, cfg.Sessions.CleanupInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
`), 0o644))

	t.Setenv("VAD_ADDR", ":7070")
	t.Setenv("VAD_DEBUG", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.True(t, cfg.Sessions.Debug)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"empty ws path", func(c *Config) { c.Server.WSPath = "" }},
		{"zero control timeout", func(c *Config) { c.Server.ControlTimeout = 0 }},
		{"tiny read buffer", func(c *Config) { c.Server.ReadBufferSize = 64 }},
		{"zero session timeout", func(c *Config) { c.Sessions.Timeout = 0 }},
		{"unknown backend", func(c *Config) { c.Sessions.Backend = "cloud" }},
		{"unknown exporter", func(c *Config) { c.Tracing.Exporter = "jaeger2" }},
		{"sampling rate out of range", func(c *Config) { c.Tracing.SamplingRate = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 300.0, cfg.Sessions.GetSessionTimeout().Seconds())
	assert.Equal(t, 60.0, cfg.Sessions.GetCleanupInterval().Seconds())
	assert.Equal(t, 5.0, cfg.Server.GetControlTimeout().Seconds())
}
