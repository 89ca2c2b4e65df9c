package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the tgtkeep configuration.
//
// This structure captures the static configuration of the ticket manager:
//   - Logging configuration
//   - Telemetry/tracing configuration
//   - Kerberos ticket lifecycle settings (principal, KDC discovery, paths)
//   - Keytab provisioning source (local file or S3)
//   - Ops HTTP server settings (sidecar mode)
//   - Prometheus metrics settings
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (TGTKEEP_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	// of the ops server in sidecar mode
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics contains Prometheus metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Ops contains the ops HTTP server configuration (health, status,
	// refresh and metrics endpoints for sidecar mode)
	Ops OpsConfig `mapstructure:"ops" yaml:"ops"`

	// Kerberos contains the ticket lifecycle manager configuration.
	// Environment variable overrides:
	//   TGTKEEP_KERBEROS_PRINCIPAL overrides Principal
	//   TGTKEEP_KERBEROS_REALM_KDC overrides RealmKdc
	Kerberos KerberosConfig `mapstructure:"kerberos" yaml:"kerberos"`

	// Keytab configures where keytab bytes are provisioned from
	Keytab KeytabConfig `mapstructure:"keytab" yaml:"keytab"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// 1.0 = sample all traces, 0.5 = sample 50%, 0.0 = no sampling
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures Prometheus metrics collection.
// When Enabled is false, no metrics are collected (zero overhead).
// The /metrics endpoint is served by the ops server.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// OpsConfig configures the ops HTTP server used in sidecar mode.
//
// The ops server provides health probes, ticket status, an on-demand
// refresh endpoint, and the Prometheus /metrics endpoint.
type OpsConfig struct {
	// Port is the HTTP port for the ops endpoints.
	// Default: 8044
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// RefreshInterval is the period of the background refresh ticker in
	// sidecar mode. Zero derives the interval from the ticket lifetime
	// (lifetime/4, floored at 1m).
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
}

// KerberosConfig contains the ticket lifecycle manager configuration.
//
// The manager acquires an initial TGT at startup and renews it when its
// age exceeds TicketLifetime. The actual ticket-granting exchange is
// delegated to the external kinit executable; this configuration names
// the principal, the KDC discovery inputs and the fixed filesystem paths
// the manager operates on.
type KerberosConfig struct {
	// Principal is the Kerberos principal the TGT is acquired for.
	// Format: name@REALM (e.g., svc-reports@EXAMPLE.COM).
	// Required when the manager is enabled.
	// Override: TGTKEEP_KERBEROS_PRINCIPAL
	Principal string `mapstructure:"principal" yaml:"principal"`

	// RealmKdc is a static KDC hostname. When set, DNS SRV discovery is
	// skipped entirely.
	// Override: TGTKEEP_KERBEROS_REALM_KDC
	RealmKdc string `mapstructure:"realm_kdc" yaml:"realm_kdc,omitempty"`

	// RealmKdcSrvName is the full DNS SRV query name used to discover the
	// KDC when RealmKdc is not set.
	// Example: _kerberos._udp.EXAMPLE.COM
	RealmKdcSrvName string `mapstructure:"realm_kdc_srv_name" yaml:"realm_kdc_srv_name,omitempty"`

	// TicketLifetime is the renewal threshold: a refresh re-acquires the
	// ticket once its age exceeds this duration.
	// Default: 8h
	TicketLifetime time.Duration `mapstructure:"ticket_lifetime" validate:"omitempty,gt=0" yaml:"ticket_lifetime"`

	// AcquireTimeout bounds a single kinit invocation. Exceeding it is
	// treated as an acquisition failure.
	// Default: 1m
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`

	// KinitPath is the path of the external credential-issuance executable.
	// Default: "kinit" (resolved via PATH)
	KinitPath string `mapstructure:"kinit_path" yaml:"kinit_path"`

	// MarkerEnv is the environment variable whose non-empty presence marks
	// the target function-runtime execution context. The manager is a
	// no-op when the variable is empty or unset.
	// Default: AWS_LAMBDA_FUNCTION_NAME
	MarkerEnv string `mapstructure:"marker_env" yaml:"marker_env"`

	// TemplatePath is the krb5.conf template source path (read-only
	// deployment directory).
	// Default: /var/task/krb5.conf.tmpl
	TemplatePath string `mapstructure:"template_path" yaml:"template_path"`

	// ConfPath is the rendered krb5.conf target path (writable scratch
	// directory). Exported as KRB5_CONFIG after materialization.
	// Default: /tmp/krb5.conf
	ConfPath string `mapstructure:"conf_path" yaml:"conf_path"`

	// KeytabPath is the provisioned keytab target path.
	// Default: /tmp/tgtkeep.keytab
	KeytabPath string `mapstructure:"keytab_path" yaml:"keytab_path"`

	// CcachePath is the credential cache target path.
	// Default: /tmp/krb5cc_tgtkeep
	CcachePath string `mapstructure:"ccache_path" yaml:"ccache_path"`
}

// KeytabConfig configures where keytab bytes are fetched from at warmup.
type KeytabConfig struct {
	// Source selects the keytab source.
	// Valid values: file, s3
	// Default: file
	Source string `mapstructure:"source" validate:"omitempty,oneof=file s3" yaml:"source"`

	// Path is the local keytab path (file source).
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// S3 configures the S3 keytab source.
	S3 S3KeytabConfig `mapstructure:"s3" yaml:"s3,omitempty"`
}

// S3KeytabConfig configures the S3 keytab source.
//
// Endpoint, ForcePathStyle and the static credentials fields exist for
// S3-compatible stores (MinIO, Localstack); leave them empty for AWS.
type S3KeytabConfig struct {
	// Bucket is the S3 bucket name.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	// Key is the object key of the keytab.
	Key string `mapstructure:"key" yaml:"key"`

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`

	// AccessKeyID and SecretAccessKey are static credentials for
	// S3-compatible stores. Empty values fall back to the SDK default
	// credential chain.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TGTKEEP_*)
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

	setupViper(v, configPath)

	// A missing config file is fine: function-runtime deployments
	// usually configure everything through TGTKEEP_* variables.
	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal into config struct with custom decode hooks. Weakly
	// typed input coerces environment strings ("true", "8044") into
	// bool and numeric fields.
	var cfg Config
	err := v.Unmarshal(&cfg,
		viper.DecodeHook(configDecodeHooks()),
		func(dc *mapstructure.DecoderConfig) { dc.WeaklyTypedInput = true },
	)
	if err != nil {
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

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  tgtkeep config init\n\n"+
				"Or specify a custom config file:\n"+
				"  tgtkeep <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  tgtkeep config init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Restricted permissions: the config may carry S3 credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use TGTKEEP_ prefix and underscores
	// Example: TGTKEEP_KERBEROS_PRINCIPAL=svc@EXAMPLE.COM
	v.SetEnvPrefix("TGTKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	registerKeys(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/tgtkeep/config.yaml
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// registerKeys declares every configuration key to viper.
//
// AutomaticEnv only surfaces TGTKEEP_* variables for keys viper already
// knows about, so each key must be registered for environment-only
// deployments (no config file at all) to work. The zero values here are
// placeholders; real defaults are applied by ApplyDefaults after
// unmarshalling.
func registerKeys(v *viper.Viper) {
	for _, key := range []string{
		"logging.level",
		"logging.format",
		"logging.output",
		"telemetry.endpoint",
		"kerberos.principal",
		"kerberos.realm_kdc",
		"kerberos.realm_kdc_srv_name",
		"kerberos.kinit_path",
		"kerberos.marker_env",
		"kerberos.template_path",
		"kerberos.conf_path",
		"kerberos.keytab_path",
		"kerberos.ccache_path",
		"keytab.source",
		"keytab.path",
		"keytab.s3.bucket",
		"keytab.s3.key",
		"keytab.s3.region",
		"keytab.s3.endpoint",
		"keytab.s3.access_key_id",
		"keytab.s3.secret_access_key",
		"telemetry.profiling.endpoint",
	} {
		v.SetDefault(key, "")
	}

	for _, key := range []string{
		"shutdown_timeout",
		"ops.read_timeout",
		"ops.write_timeout",
		"ops.idle_timeout",
		"ops.refresh_interval",
		"kerberos.ticket_lifetime",
		"kerberos.acquire_timeout",
	} {
		v.SetDefault(key, "0s")
	}

	for _, key := range []string{
		"telemetry.enabled",
		"telemetry.profiling.enabled",
		"metrics.enabled",
		"keytab.s3.force_path_style",
	} {
		v.SetDefault(key, false)
	}

	v.SetDefault("ops.port", 0)
	v.SetDefault("telemetry.sample_rate", 0.0)

	// Insecure defaults to true (local development); override with
	// TGTKEEP_TELEMETRY_INSECURE=false for TLS-enabled collectors.
	v.SetDefault("telemetry.insecure", true)
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// Also check for os.PathError when explicit config file doesn't exist
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "8h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tgtkeep")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "tgtkeep")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for config init).
func GetConfigDir() string {
	return getConfigDir()
}
