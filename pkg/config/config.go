// Package config loads and validates ts-core's runtime configuration:
// a Config struct with viper-backed Load/MustLoad, mapstructure decode
// hooks, and precedence order env > file > defaults. It covers the ambient stack (logging, telemetry,
// metrics) and the domain stack this module adds: owner/variable-store
// sizing, storage backend selection, the audit ledger, and the REST
// transport.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/arm-trusted-services/ts-core/internal/bytesize"
	"github.com/arm-trusted-services/ts-core/internal/telemetry"
	"github.com/arm-trusted-services/ts-core/pkg/audit"
)

// Config represents the full ts-core demo server configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (TS_CORE_*; read only when a config file is found)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// The only CLI flag involved is tsctl's --config, which picks the file; no
// flag overrides individual values.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Owner configures the single variable-store owner the demo server
	// exposes; its id scopes every object in the storage backends.
	Owner OwnerConfig `mapstructure:"owner" yaml:"owner"`

	// Storage selects and configures the persistent and volatile object
	// storage backends behind the variable index.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Audit configures the authentication audit ledger.
	Audit audit.Config `mapstructure:"audit" yaml:"audit"`

	// Transport configures the REST front door.
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
}

// OwnerConfig configures the owner the demo binary's variable store
// serves, matching store.New's ownerID/maxVariables/index-slot-UID
// parameters.
type OwnerConfig struct {
	// OwnerID identifies the caller this process's store belongs to.
	OwnerID uint32 `mapstructure:"owner_id" validate:"omitempty" yaml:"owner_id"`

	// MaxVariables bounds the number of distinct variables the index
	// will track.
	// Default: 1024
	MaxVariables int `mapstructure:"max_variables" validate:"omitempty,gt=0" yaml:"max_variables"`

	// MaxVariableSize bounds the size of a single variable's data.
	// Default: 4096 (store.DefaultMaxVariableSize)
	MaxVariableSize bytesize.ByteSize `mapstructure:"max_variable_size" yaml:"max_variable_size,omitempty"`
}

// LoggingConfig controls logging behavior, matching internal/logger.Config.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format.
	// Valid values: text, json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written.
	// Valid values: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing, matching
// internal/telemetry.Config.
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName    string  `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string  `mapstructure:"service_version" yaml:"service_version"`
	Endpoint       string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure       bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate     float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// ToTelemetryConfig adapts the config-file shape to internal/telemetry.Config.
func (c TelemetryConfig) ToTelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Enabled,
		ServiceName:    c.ServiceName,
		ServiceVersion: c.ServiceVersion,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		SampleRate:     c.SampleRate,
	}
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected into the default
	// Prometheus registry. When false, pkg/metrics.NullMetrics() is used
	// and the handlers record nothing (zero overhead). No /metrics HTTP
	// listener is started by this module.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is a configured HTTP port for a /metrics endpoint; nothing in
	// this module reads it or listens on it.
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// StorageConfig selects the persistent and volatile storage backends.
type StorageConfig struct {
	Persistent StorageBackendConfig `mapstructure:"persistent" yaml:"persistent"`
	Volatile   StorageBackendConfig `mapstructure:"volatile" yaml:"volatile"`
}

// StorageBackendConfig configures a single storage.Backend selection:
// Type plus one populated per-backend sub-config.
type StorageBackendConfig struct {
	// Type selects the backend implementation.
	// Valid values: memory, badger, s3.
	Type string `mapstructure:"type" validate:"required,oneof=memory badger s3" yaml:"type"`

	// TotalCapacity bounds the storage.Delegate's total byte budget.
	TotalCapacity bytesize.ByteSize `mapstructure:"total_capacity" yaml:"total_capacity,omitempty"`

	Badger BadgerConfig `mapstructure:"badger" yaml:"badger,omitempty"`
	S3     S3Config     `mapstructure:"s3" yaml:"s3,omitempty"`
}

// BadgerConfig configures the dgraph-io/badger/v4 backend.
type BadgerConfig struct {
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// S3Config configures the aws-sdk-go-v2/service/s3 backend, matching
// storage.S3Config's construction parameters.
type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	KeyPrefix       string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Region          string `mapstructure:"region" yaml:"region,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// TransportConfig configures the REST front door (pkg/rest.Server).
type TransportConfig struct {
	// ListenAddr is the address the REST server binds to.
	// Default: ":8080"
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`

	// RequireAuth enables bearer-token authentication on all routes
	// except /v1/schema.
	RequireAuth bool `mapstructure:"require_auth" yaml:"require_auth"`

	// JWTSecret signs and verifies bearer tokens when RequireAuth is set.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, producing actionable errors when the
// file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Run 'tsctl init' to create one, or pass --config", GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("TS_CORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ts-core")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "ts-core")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir exposes the configuration directory for 'tsctl init'.
func GetConfigDir() string {
	return getConfigDir()
}
