package config

import (
	"github.com/arm-trusted-services/ts-core/internal/bytesize"
	"github.com/arm-trusted-services/ts-core/pkg/audit"
	"github.com/arm-trusted-services/ts-core/pkg/variable/store"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields: zero values are replaced, explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyOwnerDefaults(&cfg.Owner)
	applyStorageBackendDefaults(&cfg.Storage.Persistent)
	applyStorageBackendDefaults(&cfg.Storage.Volatile)
	cfg.Audit.ApplyDefaults()
	applyTransportDefaults(&cfg.Transport)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "ts-core"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "dev"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyOwnerDefaults(cfg *OwnerConfig) {
	if cfg.MaxVariables == 0 {
		cfg.MaxVariables = 1024
	}
	if cfg.MaxVariableSize == 0 {
		cfg.MaxVariableSize = bytesize.ByteSize(store.DefaultMaxVariableSize)
	}
}

func applyStorageBackendDefaults(cfg *StorageBackendConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.TotalCapacity == 0 {
		cfg.TotalCapacity = bytesize.ByteSize(bytesize.MiB) * 16
	}
	if cfg.Type == "badger" && cfg.Badger.Path == "" {
		cfg.Badger.Path = "/tmp/ts-core-variables"
	}
	if cfg.Type == "s3" {
		if cfg.S3.KeyPrefix == "" {
			cfg.S3.KeyPrefix = "variables/"
		}
		if cfg.S3.Region == "" {
			cfg.S3.Region = "us-east-1"
		}
	}
}

func applyTransportDefaults(cfg *TransportConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
}

// GetDefaultConfig returns a Config with every field populated from
// defaults, used when no config file is present and by 'tsctl init'.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			Persistent: StorageBackendConfig{Type: "badger"},
			Volatile:   StorageBackendConfig{Type: "memory"},
		},
		Audit: audit.Config{Type: audit.TypeSQLite},
	}
	ApplyDefaults(cfg)
	return cfg
}
