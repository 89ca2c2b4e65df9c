package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid values.
//
// Validation is driven by the `validate` struct tags (go-playground/validator)
// plus a few cross-field checks the tags cannot express.
//
// Note that the Kerberos principal is deliberately NOT required here: whether
// the manager is enabled at all depends on runtime environment facts, and a
// config without a principal is legal on hosts where the manager is inert.
// kerberos.NewManager enforces the principal requirement when enabled.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	// Cross-field checks
	if cfg.Keytab.Source == "s3" {
		if cfg.Keytab.S3.Bucket == "" {
			return fmt.Errorf("keytab.s3.bucket is required when keytab.source is s3")
		}
		if cfg.Keytab.S3.Key == "" {
			return fmt.Errorf("keytab.s3.key is required when keytab.source is s3")
		}
	}
	if cfg.Keytab.Source == "file" && cfg.Keytab.Path == "" {
		// Acceptable: warm is the only consumer and it reports a clear error,
		// but catch the obvious misconfiguration of an explicit file source
		// with no path when an S3 bucket was configured instead.
		if cfg.Keytab.S3.Bucket != "" {
			return fmt.Errorf("keytab.source is file but keytab.path is empty (did you mean source: s3?)")
		}
	}

	return nil
}
