// Package config provides configuration management for the touch keyboard
// helper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"tabtip/internal/hotkey"
	"tabtip/internal/hwkbd"
	"tabtip/internal/keyboard"
)

const appName = "tabtip"

// Config represents the application configuration
type Config struct {
	Automation AutomationConfig `yaml:"automation"`
	Keyboard   KeyboardConfig   `yaml:"keyboard"`
	General    GeneralConfig    `yaml:"general"`
	Log        LogConfig        `yaml:"log"`
}

// AutomationConfig controls which controls trigger the keyboard and when
// automation is suspended.
type AutomationConfig struct {
	// IgnorePolicy decides which attached keyboards are disregarded
	IgnorePolicy hwkbd.IgnorePolicy `yaml:"ignore_policy"`

	// IgnoredKeyboards lists device descriptions used by the list policies
	IgnoredKeyboards []string `yaml:"ignored_keyboards"`

	// Bindings are the window classes that open the keyboard on focus
	Bindings []Binding `yaml:"bindings"`

	// QuietWindow is how long focus must stay away before closing
	QuietWindow time.Duration `yaml:"quiet_window"`
}

// Binding enrolls one window class.
type Binding struct {
	Class      string `yaml:"class"`
	PopupOnTap bool   `yaml:"popup_on_tap"`
}

// KeyboardConfig contains on-screen keyboard presentation settings
type KeyboardConfig struct {
	DockMode keyboard.DockMode `yaml:"dock_mode"`

	// ToggleHotkey opens or closes the keyboard from anywhere, e.g.
	// "Ctrl+Alt+K". Empty disables it.
	ToggleHotkey string `yaml:"toggle_hotkey"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// StartOnBoot determines if app starts on user login
	StartOnBoot bool `yaml:"start_on_boot"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `yaml:"level"`
	// File enables a rotating JSON log in addition to the console.
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Automation: AutomationConfig{
			IgnorePolicy: hwkbd.DoNotIgnore,
			Bindings: []Binding{
				{Class: "Edit", PopupOnTap: true},
				{Class: "RichEdit20W", PopupOnTap: true},
				{Class: "RICHEDIT50W", PopupOnTap: true},
			},
			QuietWindow: 100 * time.Millisecond,
		},
		Keyboard: KeyboardConfig{
			DockMode:     keyboard.DockNoChange,
			ToggleHotkey: "Ctrl+Alt+K",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Automation.IgnoredKeyboards = slices.Clone(c.Automation.IgnoredKeyboards)
	out.Automation.Bindings = slices.Clone(c.Automation.Bindings)
	return &out
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	for i, b := range c.Automation.Bindings {
		if strings.TrimSpace(b.Class) == "" {
			errs = append(errs, fmt.Errorf("automation.bindings[%d]: class is required", i))
		}
	}
	if c.Automation.QuietWindow < 0 {
		errs = append(errs, errors.New("automation.quiet_window must not be negative"))
	}
	if h := c.Keyboard.ToggleHotkey; h != "" {
		if _, err := hotkey.Parse(h); err != nil {
			errs = append(errs, fmt.Errorf("keyboard.toggle_hotkey: %w", err))
		}
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); c.Log.Level != "" && err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
	logger     *zap.Logger
}

// NewManager creates a manager for the per-user config file
func NewManager(logger *zap.Logger) (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(configPath, logger), nil
}

// NewManagerAt creates a manager for the config file at path.
func NewManagerAt(path string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
		logger:     logger.Named("config"),
	}
}

// Dir returns the per-user directory holding config and logs.
func Dir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, appName)
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", appName)
	}
	return configDir, nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	configDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// Path returns the config file location.
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk. Missing keys keep their defaults.
func (m *Manager) Load() error {
	m.mu.Lock()

	data, err := os.ReadFile(m.configPath)
	if errors.Is(err, os.ErrNotExist) {
		m.mu.Unlock()
		m.logger.Debug("no config file, using defaults", zap.String("path", m.configPath))
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("parse %s: %w", m.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}
	m.config = cfg
	onChanged := m.onChanged
	m.mu.Unlock()

	if onChanged != nil {
		onChanged()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}
	m.logger.Info("saving configuration", zap.String("path", m.configPath), zap.Int("bytes", len(data)))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.Clone()
}

// Set updates the configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config.Clone()
	onChanged := m.onChanged
	m.mu.Unlock()
	if onChanged != nil {
		onChanged()
	}
}

// Update applies fn to a copy of the configuration, stores it and saves it.
func (m *Manager) Update(fn func(*Config)) error {
	cfg := m.Get()
	fn(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.Set(cfg)
	return m.Save()
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
