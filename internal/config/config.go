// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix namespaces every environment override, e.g. HINDSIGHT_API_MODEL.
	EnvPrefix = "HINDSIGHT"
	// DirName is the per-user configuration directory under $HOME.
	DirName = ".hindsight"
	// FileName is the configuration file inside DirName.
	FileName = "config.yaml"
)

// Environment variables consulted for credentials. Keys are never persisted.
const (
	EnvAPIKey          = "HINDSIGHT_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvModel           = "HINDSIGHT_MODEL"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// ConsoleLevel gates the terminal core separately so the report on
	// stdout is not buried in diagnostics.
	ConsoleLevel string      `mapstructure:"console_level" yaml:"console_level"`
	Format       string      `mapstructure:"format" yaml:"format"`
	AddSource    bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName  string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile      string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize      int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups   int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge       int         `mapstructure:"max_age" yaml:"max_age"`
	Compress     bool        `mapstructure:"compress" yaml:"compress"`
	Colors       ColorConfig `mapstructure:"colors" yaml:"colors"`
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

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderGemini    LLMProvider = "gemini"
)

// APIConfig configures the explanation model.
type APIConfig struct {
	Provider LLMProvider `mapstructure:"provider" yaml:"provider"`
	Model    string      `mapstructure:"model" yaml:"model"`
	// FastModel serves lightweight requests; empty means Model.
	FastModel         string        `mapstructure:"fast_model" yaml:"fast_model"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	// APIKey is resolved from the environment only.
	APIKey string `mapstructure:"-" yaml:"-"`
}

// FastModelOrDefault returns the model used for lightweight requests.
func (a APIConfig) FastModelOrDefault() string {
	if a.FastModel != "" {
		return a.FastModel
	}
	return a.Model
}

// AnalysisConfig bounds the attribution pipeline.
type AnalysisConfig struct {
	MaxCommits       int      `mapstructure:"max_commits" yaml:"max_commits"`
	MaxFileSize      int64    `mapstructure:"max_file_size" yaml:"max_file_size"`
	ExcludedPatterns []string `mapstructure:"excluded_patterns" yaml:"excluded_patterns"`
	Workers          int      `mapstructure:"workers" yaml:"workers"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Format  string `mapstructure:"format" yaml:"format"`
	Color   bool   `mapstructure:"color" yaml:"color"`
	Verbose bool   `mapstructure:"verbose" yaml:"verbose"`
}

// CacheConfig controls the on-disk result cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// MaxSize is in megabytes.
	MaxSize int    `mapstructure:"max_size" yaml:"max_size"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Dir returns the per-user configuration directory. If the home directory
// cannot be resolved the directory is relative to the working directory.
func Dir() string {
	home, err := homedir.Dir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, DirName)
}

// DefaultFile returns the path of the per-user configuration file.
func DefaultFile() string {
	return filepath.Join(Dir(), FileName)
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	dir := Dir()

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.console_level", "warn")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "hindsight")
	v.SetDefault("logger.log_file", filepath.Join(dir, "logs", "hindsight.log"))
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- API --
	v.SetDefault("api.provider", string(ProviderAnthropic))
	v.SetDefault("api.model", "claude-sonnet-4-20250514")
	v.SetDefault("api.fast_model", "")
	v.SetDefault("api.endpoint", "")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.max_tokens", 2048)
	v.SetDefault("api.temperature", 0.2)
	v.SetDefault("api.requests_per_minute", 50)

	// -- Analysis --
	v.SetDefault("analysis.max_commits", 50)
	v.SetDefault("analysis.max_file_size", 1_048_576)
	v.SetDefault("analysis.excluded_patterns", []string{"*.pyc", "__pycache__/*", ".git/*"})
	v.SetDefault("analysis.workers", 1)

	// -- Output --
	v.SetDefault("output.format", "terminal")
	v.SetDefault("output.color", true)
	v.SetDefault("output.verbose", false)

	// -- Cache --
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.max_size", 100)
	v.SetDefault("cache.path", filepath.Join(dir, "cache", "hindsight.db"))
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The short model override predates the prefixed key.
	_ = v.BindEnv("api.model", EnvModel, EnvPrefix+"_API_MODEL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.API.APIKey = LookupAPIKey(cfg.API.Provider)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// LookupAPIKey reads the credential for provider from the environment. The
// tool-specific variable wins over the vendor one.
func LookupAPIKey(provider LLMProvider) string {
	if key := os.Getenv(EnvAPIKey); key != "" {
		return key
	}
	switch provider {
	case ProviderGemini:
		return os.Getenv(EnvGeminiAPIKey)
	default:
		return os.Getenv(EnvAnthropicAPIKey)
	}
}

// Validate checks the configuration for sane values and reports every
// problem found, not just the first.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.API.Provider {
	case ProviderAnthropic, ProviderGemini:
	default:
		result = multierror.Append(result, fmt.Errorf("api.provider %q is not supported (use %s or %s)", c.API.Provider, ProviderAnthropic, ProviderGemini))
	}
	if c.API.Timeout < time.Second {
		result = multierror.Append(result, errors.New("API timeout must be at least 1 second"))
	}
	if c.API.MaxRetries < 0 {
		result = multierror.Append(result, errors.New("max_retries must be non-negative"))
	}
	if c.API.RequestsPerMinute < 0 {
		result = multierror.Append(result, errors.New("requests_per_minute must be non-negative"))
	}
	if c.Analysis.MaxCommits < 1 {
		result = multierror.Append(result, errors.New("max_commits must be at least 1"))
	}
	if c.Analysis.MaxFileSize < 1 {
		result = multierror.Append(result, errors.New("max_file_size must be at least 1 byte"))
	}
	if c.Analysis.Workers < 1 {
		result = multierror.Append(result, errors.New("workers must be at least 1"))
	}
	switch strings.ToLower(c.Output.Format) {
	case "terminal", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("output.format %q is not supported (use terminal or json)", c.Output.Format))
	}
	if c.Cache.TTL < 0 {
		result = multierror.Append(result, errors.New("cache ttl must be non-negative"))
	}
	if c.Cache.MaxSize < 0 {
		result = multierror.Append(result, errors.New("cache max_size must be non-negative"))
	}
	return result.ErrorOrNil()
}

// Save writes the configuration as YAML, readable only by the owner.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to restrict config file permissions: %w", err)
	}
	return nil
}
