package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the configuration using struct tags plus custom rules
// that tags cannot express.
//
// Log level normalization happens in ApplyDefaults, not here; validation
// accepts both spellings.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	// a burst without a rate is meaningless: the limiter would be disabled
	// while looking configured
	if cfg.Server.SessionBurst > 0 && cfg.Server.SessionRate == 0 {
		return fmt.Errorf("server: session_burst is set but session_rate is 0")
	}

	if cfg.Server.Timeout < 0 {
		return fmt.Errorf("server: timeout must not be negative")
	}

	if sectionForType(&cfg.Source) == nil {
		switch cfg.Source.Type {
		case "filesystem", "s3", "badger":
			return fmt.Errorf("source: type %q selected but its section is missing", cfg.Source.Type)
		}
	}

	return nil
}

// sectionForType returns the option map matching the selected source type,
// nil when absent. The memory backend works without options.
func sectionForType(cfg *SourceConfig) map[string]any {
	switch cfg.Type {
	case "filesystem":
		return cfg.Filesystem
	case "memory":
		if cfg.Memory == nil {
			return map[string]any{}
		}
		return cfg.Memory
	case "s3":
		return cfg.S3
	case "badger":
		return cfg.Badger
	default:
		return nil
	}
}

// formatValidationError converts validator errors into readable messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
