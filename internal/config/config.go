// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	Network() NetworkConfig
	Discovery() DiscoveryConfig
	Executor() ExecutorConfig
	Runner() RunnerConfig
	Agent() AgentConfig
	Service() ServiceConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserMode(BrowserMode)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	NetworkCfg   NetworkConfig   `mapstructure:"network" yaml:"network"`
	DiscoveryCfg DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	ExecutorCfg  ExecutorConfig  `mapstructure:"executor" yaml:"executor"`
	RunnerCfg    RunnerConfig    `mapstructure:"runner" yaml:"runner"`
	AgentCfg     AgentConfig     `mapstructure:"agent" yaml:"agent"`
	ServiceCfg   ServiceConfig   `mapstructure:"service" yaml:"service"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig   { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Network() NetworkConfig     { return c.NetworkCfg }
func (c *Config) Discovery() DiscoveryConfig { return c.DiscoveryCfg }
func (c *Config) Executor() ExecutorConfig   { return c.ExecutorCfg }
func (c *Config) Runner() RunnerConfig       { return c.RunnerCfg }
func (c *Config) Agent() AgentConfig         { return c.AgentCfg }
func (c *Config) Service() ServiceConfig     { return c.ServiceCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)     { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserMode(m BrowserMode) { c.BrowserCfg.Mode = m }

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

// DatabaseConfig holds the saved-scenario store connection details. An empty
// URL selects the in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserMode selects the launch strategy.
type BrowserMode string

const (
	BrowserModeAuto       BrowserMode = "auto"
	BrowserModeLocal      BrowserMode = "local"
	BrowserModeServerless BrowserMode = "serverless"
)

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Mode            BrowserMode      `mapstructure:"mode" yaml:"mode"`
	ExecutablePath  string           `mapstructure:"executable_path" yaml:"executable_path"`
	Headless        bool             `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool             `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string         `mapstructure:"args" yaml:"args"`
	ViewportWidth   int              `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight  int              `mapstructure:"viewport_height" yaml:"viewport_height"`
	LaunchTimeout   time.Duration    `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	Serverless      ServerlessConfig `mapstructure:"serverless" yaml:"serverless"`
}

// ServerlessConfig describes the packaged browser used in constrained
// execution environments.
type ServerlessConfig struct {
	ExecutablePath string   `mapstructure:"executable_path" yaml:"executable_path"`
	HeadlessMode   string   `mapstructure:"headless_mode" yaml:"headless_mode"`
	Args           []string `mapstructure:"args" yaml:"args"`
}

// NetworkConfig tunes page loading and settle detection.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	QuietPeriod       time.Duration `mapstructure:"quiet_period" yaml:"quiet_period"`
}

// DiscoveryConfig configures page context extraction.
type DiscoveryConfig struct {
	SettleTimeout time.Duration `mapstructure:"settle_timeout" yaml:"settle_timeout"`
	MaxNavLinks   int           `mapstructure:"max_nav_links" yaml:"max_nav_links"`
}

// ExecutorConfig bounds the waits of the action executor.
type ExecutorConfig struct {
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" yaml:"visibility_timeout"`
	SettleTimeout     time.Duration `mapstructure:"settle_timeout" yaml:"settle_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
}

// RunnerConfig configures the scenario runner.
type RunnerConfig struct {
	DefaultWait       time.Duration `mapstructure:"default_wait" yaml:"default_wait"`
	ScreenshotTimeout time.Duration `mapstructure:"screenshot_timeout" yaml:"screenshot_timeout"`
	MaxScenarios      int           `mapstructure:"max_scenarios" yaml:"max_scenarios"`
	CaptureScreenshot bool          `mapstructure:"capture_screenshot" yaml:"capture_screenshot"`
}

// AgentConfig holds settings related to the scenario oracle.
type AgentConfig struct {
	LLM LLMConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini    LLMProvider = "gemini"
	ProviderAnthropic LLMProvider = "anthropic"
	// ProviderFixture serves scenarios from a local JSON file.
	ProviderFixture LLMProvider = "fixture"
)

// LLMConfig defines the configuration for the scenario oracle.
type LLMConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	FixturePath       string        `mapstructure:"fixture_path" yaml:"fixture_path"`
}

// ServiceConfig configures the HTTP surface.
type ServiceConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs" yaml:"max_concurrent_runs"`
	RunTimeout        time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
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
	v.SetDefault("logger.service_name", "pagepilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.mode", string(BrowserModeAuto))
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 768)
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.serverless.executable_path", "/opt/chromium/chromium")
	v.SetDefault("browser.serverless.headless_mode", "new")

	// -- Network --
	v.SetDefault("network.navigation_timeout", "30s")
	v.SetDefault("network.idle_timeout", "10s")
	v.SetDefault("network.quiet_period", "500ms")

	// -- Discovery --
	v.SetDefault("discovery.settle_timeout", "15s")
	v.SetDefault("discovery.max_nav_links", 50)

	// -- Executor --
	v.SetDefault("executor.visibility_timeout", "5s")
	v.SetDefault("executor.settle_timeout", "5s")
	v.SetDefault("executor.poll_interval", "250ms")
	v.SetDefault("executor.action_timeout", "10s")

	// -- Runner --
	v.SetDefault("runner.default_wait", "5s")
	v.SetDefault("runner.screenshot_timeout", "10s")
	v.SetDefault("runner.max_scenarios", 10)
	v.SetDefault("runner.capture_screenshot", true)

	// -- Agent --
	v.SetDefault("agent.llm.provider", string(ProviderGemini))
	v.SetDefault("agent.llm.model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.timeout", "60s")
	v.SetDefault("agent.llm.temperature", 0.2)
	v.SetDefault("agent.llm.max_tokens", 4096)
	v.SetDefault("agent.llm.requests_per_minute", 30)
	v.SetDefault("agent.llm.retry_backoff", "2s")

	// -- Service --
	v.SetDefault("service.addr", ":8080")
	v.SetDefault("service.max_concurrent_runs", 2)
	v.SetDefault("service.run_timeout", "10m")
	v.SetDefault("service.read_timeout", "30s")
	v.SetDefault("service.shutdown_timeout", "15s")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("agent.llm.api_key", "PAGEPILOT_LLM_API_KEY")
	_ = v.BindEnv("database.url", "PAGEPILOT_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Fall back to the provider's conventional variable when no key was configured.
	if cfg.AgentCfg.LLM.APIKey == "" {
		switch cfg.AgentCfg.LLM.Provider {
		case ProviderGemini:
			cfg.AgentCfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		case ProviderAnthropic:
			cfg.AgentCfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves '~' in file system paths.
func (c *Config) expandPaths() error {
	paths := []*string{
		&c.LoggerCfg.LogFile,
		&c.BrowserCfg.ExecutablePath,
		&c.BrowserCfg.Serverless.ExecutablePath,
		&c.AgentCfg.LLM.FixturePath,
	}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("could not resolve path '%s': %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.BrowserCfg.Mode {
	case BrowserModeAuto, BrowserModeLocal, BrowserModeServerless:
	default:
		return fmt.Errorf("browser.mode must be one of auto, local, serverless (got %q)", c.BrowserCfg.Mode)
	}
	if c.BrowserCfg.LaunchTimeout <= 0 {
		return fmt.Errorf("browser.launch_timeout must be a positive duration")
	}
	if c.NetworkCfg.NavigationTimeout <= 0 || c.NetworkCfg.IdleTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout and network.idle_timeout must be positive durations")
	}
	if c.NetworkCfg.QuietPeriod <= 0 {
		return fmt.Errorf("network.quiet_period must be a positive duration")
	}
	if c.DiscoveryCfg.SettleTimeout <= 0 {
		return fmt.Errorf("discovery.settle_timeout must be a positive duration")
	}
	if err := c.ExecutorCfg.Validate(); err != nil {
		return fmt.Errorf("executor configuration invalid: %w", err)
	}
	if c.RunnerCfg.DefaultWait <= 0 || c.RunnerCfg.ScreenshotTimeout <= 0 {
		return fmt.Errorf("runner.default_wait and runner.screenshot_timeout must be positive durations")
	}
	if err := c.AgentCfg.LLM.Validate(); err != nil {
		return fmt.Errorf("agent.llm configuration invalid: %w", err)
	}
	if c.ServiceCfg.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("service.max_concurrent_runs must be a positive integer")
	}
	return nil
}

// Validate checks the ExecutorConfig settings.
func (e *ExecutorConfig) Validate() error {
	if e.VisibilityTimeout <= 0 || e.SettleTimeout <= 0 || e.ActionTimeout <= 0 {
		return fmt.Errorf("visibility_timeout, settle_timeout and action_timeout must be positive durations")
	}
	if e.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	return nil
}

// Validate checks the LLMConfig settings.
func (l *LLMConfig) Validate() error {
	switch l.Provider {
	case ProviderGemini, ProviderAnthropic:
		if l.Model == "" {
			return fmt.Errorf("model is required for provider %s", l.Provider)
		}
	case ProviderFixture:
		if l.FixturePath == "" {
			return fmt.Errorf("fixture_path is required for the fixture provider")
		}
	default:
		return fmt.Errorf("unknown or unsupported LLM provider '%s'", l.Provider)
	}
	if l.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive duration")
	}
	if l.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}
	return nil
}
