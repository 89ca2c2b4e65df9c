package config

import (
	"strings"
	"time"
)

// Default filesystem paths for the ticket lifecycle manager.
//
// The template lives in the read-only deployment directory; everything the
// manager writes goes to the writable scratch directory.
const (
	DefaultTemplatePath = "/var/task/krb5.conf.tmpl"
	DefaultConfPath     = "/tmp/krb5.conf"
	DefaultKeytabPath   = "/tmp/tgtkeep.keytab"
	DefaultCcachePath   = "/tmp/krb5cc_tgtkeep"
)

// DefaultMarkerEnv is the environment variable whose presence marks the
// target function-runtime execution context.
const DefaultMarkerEnv = "AWS_LAMBDA_FUNCTION_NAME"

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyOpsDefaults(&cfg.Ops)
	applyKerberosDefaults(&cfg.Kerberos)
	applyKeytabDefaults(&cfg.Keytab)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyOpsDefaults sets ops HTTP server defaults.
func applyOpsDefaults(cfg *OpsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8044
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	// RefreshInterval zero means derive from ticket lifetime at runtime
}

// applyKerberosDefaults sets ticket lifecycle manager defaults.
func applyKerberosDefaults(cfg *KerberosConfig) {
	if cfg.TicketLifetime == 0 {
		cfg.TicketLifetime = 8 * time.Hour
	}
	if cfg.AcquireTimeout == 0 {
		cfg.AcquireTimeout = time.Minute
	}
	if cfg.KinitPath == "" {
		cfg.KinitPath = "kinit"
	}
	if cfg.MarkerEnv == "" {
		cfg.MarkerEnv = DefaultMarkerEnv
	}
	if cfg.TemplatePath == "" {
		cfg.TemplatePath = DefaultTemplatePath
	}
	if cfg.ConfPath == "" {
		cfg.ConfPath = DefaultConfPath
	}
	if cfg.KeytabPath == "" {
		cfg.KeytabPath = DefaultKeytabPath
	}
	if cfg.CcachePath == "" {
		cfg.CcachePath = DefaultCcachePath
	}
}

// applyKeytabDefaults sets keytab source defaults.
func applyKeytabDefaults(cfg *KeytabConfig) {
	if cfg.Source == "" {
		cfg.Source = "file"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
