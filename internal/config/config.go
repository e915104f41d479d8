package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rivetr/rivetr-console/internal/models"
	"github.com/rivetr/rivetr-console/internal/stream"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Servers []models.ServerProfile `yaml:"servers"`
	UI      UIConfig               `yaml:"ui"`
	Stream  StreamConfig           `yaml:"stream"`
	Log     LogConfig              `yaml:"log"`
}

// UIConfig holds UI-related settings
type UIConfig struct {
	Theme           string `yaml:"theme"`
	RefreshMs       int    `yaml:"refresh_ms"`        // App list polling
	ActiveRefreshMs int    `yaml:"active_refresh_ms"` // Polling while a deployment is in progress
	LogTailLines    int    `yaml:"log_tail_lines"`
	Follow          bool   `yaml:"follow"`
}

// StreamConfig bounds reconnection and picks the log transport
type StreamConfig struct {
	MaxAttempts  int                  `yaml:"max_attempts"`
	BaseDelay    time.Duration        `yaml:"base_delay"`
	MaxDelay     time.Duration        `yaml:"max_delay"`
	LogTransport models.TransportKind `yaml:"log_transport"`
}

// LogConfig controls the diagnostic log
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"` // Empty uses the state directory
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	policy := stream.DefaultPolicy()
	return &Config{
		Servers: []models.ServerProfile{},
		UI: UIConfig{
			Theme:           "auto",
			RefreshMs:       5000,
			ActiveRefreshMs: 2000,
			LogTailLines:    stream.DefaultLogCap,
			Follow:          true,
		},
		Stream: StreamConfig{
			MaxAttempts:  policy.MaxAttempts,
			BaseDelay:    policy.BaseDelay,
			MaxDelay:     policy.MaxDelay,
			LogTransport: models.TransportSSE,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	// Check XDG_CONFIG_HOME first
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "rivetr-console"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// Load loads the configuration from the default path
// Returns the config, whether this is a first run (no config exists), and any error
func Load() (*Config, bool, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, false, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration from path
func LoadFrom(path string) (*Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// First run - return default config
			return DefaultConfig(), true, nil
		}
		return nil, false, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, false, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}

	return cfg, false, nil
}

// Save writes the configuration to the default path
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the configuration to path atomically
func SaveTo(cfg *Config, path string) error {
	// Create config directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Write atomically: write to temp file, then rename
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// Validate checks values that would otherwise fail later at dial time
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Servers))
	for i, s := range c.Servers {
		if s.Name == "" {
			return fmt.Errorf("servers[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("servers[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		if err := validateURL(s.URL); err != nil {
			return fmt.Errorf("server %q: %w", s.Name, err)
		}
	}

	switch c.Stream.LogTransport {
	case "", models.TransportSSE, models.TransportWebSocket:
	default:
		return fmt.Errorf("stream.log_transport: unknown transport %q", c.Stream.LogTransport)
	}
	if c.Stream.MaxAttempts < 0 {
		return errors.New("stream.max_attempts must not be negative")
	}
	if c.Stream.BaseDelay < 0 || c.Stream.MaxDelay < 0 {
		return errors.New("stream delays must not be negative")
	}
	if c.UI.LogTailLines < 0 {
		return errors.New("ui.log_tail_lines must not be negative")
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

// RetryPolicy returns the reconnection bounds for stream sessions
func (c *Config) RetryPolicy() stream.Policy {
	return stream.Policy{
		MaxAttempts: c.Stream.MaxAttempts,
		BaseDelay:   c.Stream.BaseDelay,
		MaxDelay:    c.Stream.MaxDelay,
	}
}

// Transport returns the log transport, defaulting to SSE
func (c *Config) Transport() models.TransportKind {
	if c.Stream.LogTransport == "" {
		return models.TransportSSE
	}
	return c.Stream.LogTransport
}

// AddServer adds a new server to the configuration
func (c *Config) AddServer(server models.ServerProfile) {
	c.Servers = append(c.Servers, server)
}

// GetServer returns a server by name
func (c *Config) GetServer(name string) *models.ServerProfile {
	for i := range c.Servers {
		if c.Servers[i].Name == name {
			return &c.Servers[i]
		}
	}
	return nil
}
