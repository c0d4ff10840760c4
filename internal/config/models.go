package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bryanchriswhite/TaskGroups/internal/logger"
	"github.com/bryanchriswhite/TaskGroups/internal/window"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPollIntervalMs is the polling period for backends without events
	DefaultPollIntervalMs = 1000
	// MinPollIntervalMs keeps polling backends from spinning
	MinPollIntervalMs = 100
)

// ErrInvalidConfig marks a config file or override that failed validation
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the application configuration
type Config struct {
	LogLevel       string `json:"log_level" yaml:"log_level"`
	LogPretty      bool   `json:"log_pretty" yaml:"log_pretty"`
	Backend        string `json:"backend" yaml:"backend"`
	PollIntervalMs int    `json:"poll_interval_ms" yaml:"poll_interval_ms"`
	Listen         string `json:"listen" yaml:"listen"`
}

// Defaults returns the configuration used when no file is present
func Defaults() Config {
	return Config{
		LogLevel:       "info",
		Backend:        window.BackendAuto,
		PollIntervalMs: DefaultPollIntervalMs,
	}
}

// Validate checks every key against its allowed values
func (c Config) Validate() error {
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("%w: log_level %q (want debug, info, warn or error)", ErrInvalidConfig, c.LogLevel)
	}
	if !slices.Contains(window.BackendNames, c.Backend) {
		return fmt.Errorf("%w: backend %q (want one of: %s)", ErrInvalidConfig, c.Backend, strings.Join(window.BackendNames, ", "))
	}
	if c.PollIntervalMs < MinPollIntervalMs {
		return fmt.Errorf("%w: poll_interval_ms %d is below %d", ErrInvalidConfig, c.PollIntervalMs, MinPollIntervalMs)
	}
	return nil
}

// Manager handles configuration. The file is only ever read.
type Manager struct {
	configPath string
	config     Config
	mu         sync.RWMutex
}

// DefaultConfigPath returns $HOME/.config/taskgroups/config.yaml
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "taskgroups", "config.yaml"), nil
}

// NewManager loads configFile, or the default path when empty. A missing
// file yields the defaults; a malformed or invalid one is an error.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return nil, err
		}
	}

	m := &Manager{configPath: path, config: Defaults()}
	log := logger.WithComponent("config")

	if err := m.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if configFile != "" {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("No config file, using defaults")
		return m, nil
	}

	log.Debug().
		Str("path", path).
		Str("backend", m.config.Backend).
		Msg("Config loaded")
	return m, nil
}

// load reads the configuration from disk over the defaults
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, m.configPath, err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Backend = strings.ToLower(cfg.Backend)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", m.configPath, err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// apply validates a changed copy before storing it
func (m *Manager) apply(change func(*Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := m.config
	change(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// SetLogLevel overrides the log level for this run
func (m *Manager) SetLogLevel(level string) error {
	return m.apply(func(c *Config) { c.LogLevel = strings.ToLower(level) })
}

// SetLogPretty overrides console log formatting for this run
func (m *Manager) SetLogPretty(pretty bool) error {
	return m.apply(func(c *Config) { c.LogPretty = pretty })
}

// SetBackend overrides the backend for this run
func (m *Manager) SetBackend(backend string) error {
	return m.apply(func(c *Config) { c.Backend = strings.ToLower(backend) })
}

// SetPollIntervalMs overrides the polling period for this run
func (m *Manager) SetPollIntervalMs(ms int) error {
	return m.apply(func(c *Config) { c.PollIntervalMs = ms })
}

// SetListen overrides the API listen address for this run
func (m *Manager) SetListen(addr string) error {
	return m.apply(func(c *Config) { c.Listen = addr })
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
