package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags across the whole Config tree plus a few
// cross-field rules the validator tags can't express (e.g. S3 bucket
// required when the backend type is s3).
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := validateStorageBackend("storage.persistent", cfg.Storage.Persistent); err != nil {
		return err
	}
	if err := validateStorageBackend("storage.volatile", cfg.Storage.Volatile); err != nil {
		return err
	}

	if cfg.Transport.RequireAuth && cfg.Transport.JWTSecret == "" {
		return fmt.Errorf("transport.jwt_secret is required when transport.require_auth is true")
	}

	return nil
}

func validateStorageBackend(field string, cfg StorageBackendConfig) error {
	switch cfg.Type {
	case "s3":
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("%s.s3.bucket is required when type is s3", field)
		}
	case "badger":
		if cfg.Badger.Path == "" {
			return fmt.Errorf("%s.badger.path is required when type is badger", field)
		}
	}
	return nil
}
