// Package config loads the service configuration from a YAML file with
// environment variable overrides for deployment-sensitive values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voicebridge/vad-engine/pkg/vad"
)

// Config represents the complete service configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Sessions SessionsConfig `yaml:"sessions"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ServerConfig contains the listener configuration
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	WSPath          string `yaml:"ws_path"`
	AuthToken       string `yaml:"auth_token"`
	ControlTimeout  int    `yaml:"control_timeout"` // seconds
	ReadBufferSize  int    `yaml:"read_buffer_size"`
	WriteBufferSize int    `yaml:"write_buffer_size"`
}

// SessionsConfig contains the session registry configuration
type SessionsConfig struct {
	Timeout         int    `yaml:"timeout"`          // seconds
	CleanupInterval int    `yaml:"cleanup_interval"` // seconds
	Backend         string `yaml:"backend"`          // "local" or "webrtc"
	Debug           bool   `yaml:"debug"`
}

// TracingConfig contains the OpenTelemetry configuration
type TracingConfig struct {
	Exporter     string  `yaml:"exporter"` // "stdout", "otlp", or "none"
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			WSPath:          "/ws",
			ControlTimeout:  5,
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		Sessions: SessionsConfig{
			Timeout:         300,
			CleanupInterval: 60,
			Backend:         string(vad.BackendLocal),
			Debug:           false,
		},
		Tracing: TracingConfig{
			Exporter:     "none",
			OTLPEndpoint: "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// Load reads and parses the configuration file, then applies
// environment overrides. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// applyEnv overrides file values with environment variables. Secrets
// and per-deployment knobs belong in the environment, not the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("VAD_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("VAD_AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv("VAD_BACKEND"); v != "" {
		c.Sessions.Backend = v
	}
	if v := os.Getenv("VAD_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Sessions.Debug = b
		}
	}
	if v := os.Getenv("TRACE_EXPORTER"); v != "" {
		c.Tracing.Exporter = v
	}
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Sessions.Validate(); err != nil {
		return fmt.Errorf("sessions config: %w", err)
	}
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing config: %w", err)
	}
	return nil
}

// Validate validates the listener configuration
func (s *ServerConfig) Validate() error {
	if s.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	if s.WSPath == "" {
		return fmt.Errorf("ws_path cannot be empty")
	}
	if s.ControlTimeout < 1 {
		return fmt.Errorf("control_timeout must be at least 1 second, got %d", s.ControlTimeout)
	}
	if s.ReadBufferSize < 1024 {
		return fmt.Errorf("read_buffer_size must be at least 1024 bytes, got %d", s.ReadBufferSize)
	}
	if s.WriteBufferSize < 1024 {
		return fmt.Errorf("write_buffer_size must be at least 1024 bytes, got %d", s.WriteBufferSize)
	}
	return nil
}

// Validate validates the session registry configuration
func (s *SessionsConfig) Validate() error {
	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}
	if s.CleanupInterval < 1 {
		return fmt.Errorf("cleanup_interval must be at least 1 second, got %d", s.CleanupInterval)
	}
	switch vad.Backend(s.Backend) {
	case vad.BackendLocal, vad.BackendWebRTC:
	default:
		return fmt.Errorf("backend must be 'local' or 'webrtc', got '%s'", s.Backend)
	}
	return nil
}

// Validate validates the tracing configuration
func (t *TracingConfig) Validate() error {
	switch t.Exporter {
	case "stdout", "otlp", "none":
	default:
		return fmt.Errorf("exporter must be one of [stdout, otlp, none], got '%s'", t.Exporter)
	}
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be between 0 and 1, got %f", t.SamplingRate)
	}
	return nil
}

// GetSessionTimeout returns the idle timeout as a time.Duration
func (s *SessionsConfig) GetSessionTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// GetCleanupInterval returns the janitor interval as a time.Duration
func (s *SessionsConfig) GetCleanupInterval() time.Duration {
	return time.Duration(s.CleanupInterval) * time.Second
}

// GetControlTimeout returns the control timeout as a time.Duration
func (s *ServerConfig) GetControlTimeout() time.Duration {
	return time.Duration(s.ControlTimeout) * time.Second
}
