package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/marmos91/tinymmo/pkg/api"
	"github.com/marmos91/tinymmo/pkg/ledger/s3"
	"github.com/marmos91/tinymmo/pkg/server"
	"github.com/spf13/viper"
)

// Config represents the complete tinymmo configuration.
//
// This structure captures all configurable aspects of the server:
//   - Logging configuration
//   - Tick loop and transport settings
//   - Ingress rate limiting
//   - Metrics and admin API endpoints
//   - Session ledger selection and configuration (store-specific)
//
// Configuration sources (in order of precedence):
//  1. Environment variables (TINYMMO_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each ledger store defines its own configuration type. The Config struct
// contains type-specific sections (ledger.memory, ledger.badger) and only the
// section matching ledger.type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains the tick loop and UDP transport settings
	Server server.Config `mapstructure:"server"`

	// RateLimit bounds how many datagrams per second the loop processes
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`

	// API configures the admin HTTP API
	API api.Config `mapstructure:"api"`

	// Ledger configures the session history store
	Ledger LedgerConfig `mapstructure:"ledger"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// RateLimitConfig configures the ingress token bucket.
type RateLimitConfig struct {
	// PacketsPerSecond is the sustained datagram rate. 0 disables limiting.
	PacketsPerSecond uint `mapstructure:"packets_per_second"`

	// Burst is the bucket size. 0 means PacketsPerSecond.
	Burst uint `mapstructure:"burst"`
}

// MetricsConfig configures the Prometheus metrics server.
type MetricsConfig struct {
	// Enabled starts the metrics server and switches collectors from no-op
	// to Prometheus
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port serving /metrics
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// LedgerConfig specifies the ledger store.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type LedgerConfig struct {
	// Type specifies which ledger store to use
	// Valid values: none, memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=none memory badger"`

	// QueueSize is the number of records buffered between the loop and the
	// store. Records beyond it are dropped with a warning.
	QueueSize int `mapstructure:"queue_size" validate:"min=0"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// Archive configures the shutdown export of the ledger
	Archive ArchiveConfig `mapstructure:"archive"`
}

// ArchiveConfig configures where the ledger is exported at shutdown.
type ArchiveConfig struct {
	// S3 uploads the ledger as JSON lines when S3.Bucket is set
	S3 s3.Config `mapstructure:"s3"`
}

// storeEnvKeys are the store-specific keys that can be set from the
// environment. Store sections are free-form maps, so they cannot be derived
// from the Config type.
var storeEnvKeys = []string{
	"ledger.memory.max_records",
	"ledger.badger.db_path",
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TINYMMO_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use TINYMMO_ prefix and underscores
	// Example: TINYMMO_SERVER_TICK_RATE=60
	v.SetEnvPrefix("TINYMMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only consults the environment for keys viper already
	// knows, so every leaf is bound explicitly.
	bindEnv(v, reflect.TypeOf(Config{}), "")
	for _, key := range storeEnvKeys {
		_ = v.BindEnv(key)
	}

	// Configure config file search
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/tinymmo/config.{yaml,toml}
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnv walks t and binds every leaf mapstructure key under prefix.
func bindEnv(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		switch field.Type.Kind() {
		case reflect.Struct:
			bindEnv(v, field.Type, key)
		case reflect.Map:
			// Free-form store sections, see storeEnvKeys.
		default:
			_ = v.BindEnv(key)
		}
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist is also acceptable
		if configPath != "" && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tinymmo")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "tinymmo")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
