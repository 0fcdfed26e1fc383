package config

import (
	"fmt"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	Registry() RegistryConfig
	Inference() InferenceConfig
	Capture() CaptureConfig
	Importer() ImporterConfig

	// Registry setters, driven by CLI flags.
	SetRegistryHistorySize(int)
	SetCapturePreserveBodies(bool)
}

// Config holds the entire application configuration. It uses private fields
// to enforce access through the Interface's getter methods.
type Config struct {
	logger    LoggerConfig
	database  DatabaseConfig
	registry  RegistryConfig
	inference InferenceConfig
	capture   CaptureConfig
	importer  ImporterConfig
}

// rawConfig is the decode target for viper. mapstructure cannot populate
// unexported fields, so decoding goes through this exported mirror and is
// copied into Config afterwards.
type rawConfig struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Registry  RegistryConfig  `mapstructure:"registry" yaml:"registry"`
	Inference InferenceConfig `mapstructure:"inference" yaml:"inference"`
	Capture   CaptureConfig   `mapstructure:"capture" yaml:"capture"`
	Importer  ImporterConfig  `mapstructure:"importer" yaml:"importer"`
}

func (r rawConfig) toConfig() *Config {
	return &Config{
		logger:    r.Logger,
		database:  r.Database,
		registry:  r.Registry,
		inference: r.Inference,
		capture:   r.Capture,
		importer:  r.Importer,
	}
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.logger }
func (c *Config) Database() DatabaseConfig   { return c.database }
func (c *Config) Registry() RegistryConfig   { return c.registry }
func (c *Config) Inference() InferenceConfig { return c.inference }
func (c *Config) Capture() CaptureConfig     { return c.capture }
func (c *Config) Importer() ImporterConfig   { return c.importer }

// --- Setters ---

func (c *Config) SetRegistryHistorySize(n int)     { c.registry.HistorySize = n }
func (c *Config) SetCapturePreserveBodies(on bool) { c.capture.PreserveBodies = on }

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

// DatabaseConfig holds the persistence collaborator's connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// RegistryConfig tunes the format handler registry.
type RegistryConfig struct {
	// HistorySize bounds the in-memory import/export history ring buffer.
	HistorySize int `mapstructure:"history_size" yaml:"history_size"`
}

// InferenceConfig tunes the traffic schema inference engine.
type InferenceConfig struct {
	// MaxBodyBytes caps how much of a captured body is parsed for schema
	// inference. Bodies beyond the cap are skipped, not truncated.
	MaxBodyBytes int `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	// CommonHeaderThreshold is the share of requests a header must appear
	// in before it is reported as a common header.
	CommonHeaderThreshold float64 `mapstructure:"common_header_threshold" yaml:"common_header_threshold"`
}

// CaptureConfig configures the recording proxy and capture log handling.
type CaptureConfig struct {
	ListenAddr     string `mapstructure:"listen_addr" yaml:"listen_addr"`
	LogFile        string `mapstructure:"log_file" yaml:"log_file"`
	PreserveBodies bool   `mapstructure:"preserve_bodies" yaml:"preserve_bodies"`
}

// ImporterConfig tunes URL and git based import sources.
type ImporterConfig struct {
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	MaxFetchBytes int64         `mapstructure:"max_fetch_bytes" yaml:"max_fetch_bytes"`
}

// NewDefaultConfig builds a Config populated entirely from defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return raw.toConfig()
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "apiscribe")
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
	v.SetDefault("logger.colors.fatal", "red")

	// -- Registry --
	v.SetDefault("registry.history_size", 100)

	// -- Inference --
	v.SetDefault("inference.max_body_bytes", 1<<20)
	v.SetDefault("inference.common_header_threshold", 0.5)

	// -- Capture --
	v.SetDefault("capture.listen_addr", "127.0.0.1:8889")
	v.SetDefault("capture.log_file", filepath.Join(DefaultDataDir(), "capture.jsonl"))
	v.SetDefault("capture.preserve_bodies", true)

	// -- Importer --
	v.SetDefault("importer.fetch_timeout", 30*time.Second)
	v.SetDefault("importer.rate_per_second", 2.0)
	v.SetDefault("importer.max_fetch_bytes", int64(16<<20))
}

// NewConfigFromViper builds a Config from a fully loaded viper instance
// (defaults, config file, and environment already applied).
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg := raw.toConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.registry.HistorySize < 0 {
		return fmt.Errorf("registry.history_size must not be negative")
	}
	if c.inference.MaxBodyBytes <= 0 {
		return fmt.Errorf("inference.max_body_bytes must be positive")
	}
	if c.inference.CommonHeaderThreshold < 0 || c.inference.CommonHeaderThreshold > 1 {
		return fmt.Errorf("inference.common_header_threshold must be between 0 and 1")
	}
	if c.importer.RatePerSecond < 0 {
		return fmt.Errorf("importer.rate_per_second must not be negative")
	}
	return nil
}

// DefaultDataDir resolves the per-user data directory. Falls back to the
// current directory when the home directory cannot be determined.
func DefaultDataDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return ".apiscribe"
	}
	return filepath.Join(home, ".apiscribe")
}
