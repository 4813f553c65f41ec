package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/tinymmo/pkg/ledger/badger"
	"github.com/marmos91/tinymmo/pkg/ledger/memory"
	"github.com/mitchellh/mapstructure"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Server.TickRate <= 0 {
		return fmt.Errorf("server.tick_rate: must be positive")
	}
	if cfg.Server.Capacity <= 0 {
		return fmt.Errorf("server.capacity: must be positive")
	}

	// Two HTTP servers cannot share a port
	if cfg.Metrics.Enabled && cfg.API.Enabled && cfg.Metrics.Port == cfg.API.Port {
		return fmt.Errorf("api.port: %d is already used by metrics.port", cfg.API.Port)
	}

	if err := validateLedgerStore(&cfg.Ledger); err != nil {
		return err
	}

	archive := cfg.Ledger.Archive.S3
	if archive.Enabled() {
		if cfg.Ledger.Type == "none" {
			return fmt.Errorf("ledger.archive.s3: archiving requires a ledger (ledger.type is none)")
		}
		if archive.Region == "" {
			return fmt.Errorf("ledger.archive.s3.region: required when bucket is set")
		}
		if (archive.AccessKeyID == "") != (archive.SecretAccessKey == "") {
			return fmt.Errorf("ledger.archive.s3: access_key_id and secret_access_key must be set together")
		}
	}

	return nil
}

// validateLedgerStore decodes the section of the selected store and runs its
// struct tags.
func validateLedgerStore(cfg *LedgerConfig) error {
	var target any
	var section map[string]any

	switch cfg.Type {
	case "memory":
		target, section = &memory.Config{}, cfg.Memory
	case "badger":
		target, section = &badger.Config{}, cfg.Badger
	default:
		return nil
	}

	if err := decodeStoreConfig(section, target); err != nil {
		return fmt.Errorf("ledger.%s: %w", cfg.Type, err)
	}
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("ledger.%s: %w", cfg.Type, formatValidationError(err))
	}
	return nil
}

// decodeStoreConfig decodes a free-form store section. Weak typing accepts
// values that arrived as strings from the environment.
func decodeStoreConfig(section map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(section); err != nil {
		return fmt.Errorf("failed to decode store config: %w", err)
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
