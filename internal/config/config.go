// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override, e.g. ACTIONGATE_ENGINE_DEFAULT_TIMEOUT.
const EnvPrefix = "ACTIONGATE"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Engine() EngineConfig
	Browser() BrowserConfig
	Input() InputConfig

	// Engine Setters
	SetEngineDefaultTimeout(d time.Duration)
	SetEngineNavigationTimeout(d time.Duration)

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserIgnoreTLSErrors(bool)
	SetBrowserExecPath(string)
}

// Config holds the entire application configuration.
// Sections are exported so viper can decode into them; callers should go through Interface.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	EngineCfg  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	InputCfg   InputConfig   `mapstructure:"input" yaml:"input"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Engine() EngineConfig   { return c.EngineCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Input() InputConfig     { return c.InputCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetEngineDefaultTimeout(d time.Duration)    { c.EngineCfg.DefaultTimeout = d }
func (c *Config) SetEngineNavigationTimeout(d time.Duration) { c.EngineCfg.NavigationTimeout = d }
func (c *Config) SetBrowserHeadless(b bool)                  { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserIgnoreTLSErrors(b bool)           { c.BrowserCfg.IgnoreTLSErrors = b }
func (c *Config) SetBrowserExecPath(p string)                { c.BrowserCfg.ExecPath = p }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EngineConfig tunes the action engine's retry loop.
type EngineConfig struct {
	// DefaultTimeout applies to any action without a call, page or context override.
	DefaultTimeout    time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// StableFrameInterval is the wait before the second stability sample, roughly one animation frame.
	StableFrameInterval time.Duration `mapstructure:"stable_frame_interval" yaml:"stable_frame_interval"`
	// ActionsPerSecond paces dispatches across the engine. Zero disables pacing.
	ActionsPerSecond float64 `mapstructure:"actions_per_second" yaml:"actions_per_second"`
}

// BrowserConfig holds settings for the Chrome instance driven by the CLI.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
	ExecPath        string         `mapstructure:"exec_path" yaml:"exec_path"`
}

// InputConfig controls the timing of synthesized mouse and keyboard events.
type InputConfig struct {
	ClickHoldMinMs int `mapstructure:"click_hold_min_ms" yaml:"click_hold_min_ms"`
	ClickHoldMaxMs int `mapstructure:"click_hold_max_ms" yaml:"click_hold_max_ms"`
	KeyHoldMs      int `mapstructure:"key_hold_ms" yaml:"key_hold_ms"`
	TypeDelayMs    int `mapstructure:"type_delay_ms" yaml:"type_delay_ms"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "actiongate")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Engine --
	v.SetDefault("engine.default_timeout", "30s")
	v.SetDefault("engine.navigation_timeout", "30s")
	v.SetDefault("engine.poll_interval", "50ms")
	v.SetDefault("engine.stable_frame_interval", "16ms")
	v.SetDefault("engine.actions_per_second", 0.0)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 720})
	v.SetDefault("browser.exec_path", "")

	// -- Input --
	v.SetDefault("input.click_hold_min_ms", 40)
	v.SetDefault("input.click_hold_max_ms", 90)
	v.SetDefault("input.key_hold_ms", 20)
	v.SetDefault("input.type_delay_ms", 0)
}

// SearchPaths returns the directories searched for config.yaml, in order.
func SearchPaths() []string {
	paths := []string{"."}
	if home, err := homedir.Expand("~"); err == nil {
		paths = append(paths, filepath.Join(home, ".actiongate"))
	}
	return paths
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Every key with a default is overridable from the environment.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.EngineCfg.Validate(); err != nil {
		return fmt.Errorf("engine configuration invalid: %w", err)
	}
	if err := c.InputCfg.Validate(); err != nil {
		return fmt.Errorf("input configuration invalid: %w", err)
	}
	for _, dim := range []string{"width", "height"} {
		if n, ok := c.BrowserCfg.Viewport[dim]; ok && n <= 0 {
			return fmt.Errorf("browser.viewport.%s must be a positive integer", dim)
		}
	}
	return nil
}

// Validate checks the engine timing settings.
func (e *EngineConfig) Validate() error {
	if e.DefaultTimeout <= 0 {
		return fmt.Errorf("default_timeout must be a positive duration")
	}
	if e.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be a positive duration")
	}
	if e.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if e.StableFrameInterval <= 0 {
		return fmt.Errorf("stable_frame_interval must be a positive duration")
	}
	if e.ActionsPerSecond < 0 {
		return fmt.Errorf("actions_per_second cannot be negative")
	}
	return nil
}

// Validate checks the input timing settings.
func (i *InputConfig) Validate() error {
	if i.ClickHoldMinMs < 0 || i.KeyHoldMs < 0 || i.TypeDelayMs < 0 {
		return fmt.Errorf("input timings cannot be negative")
	}
	if i.ClickHoldMaxMs < i.ClickHoldMinMs {
		return fmt.Errorf("click_hold_max_ms must not be less than click_hold_min_ms")
	}
	return nil
}
