package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/tgtkeep/internal/logger"
	"github.com/marmos91/tgtkeep/pkg/config"
	"github.com/marmos91/tgtkeep/pkg/kerberos"
	"github.com/marmos91/tgtkeep/pkg/metrics"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig loads configuration from the --config flag path, falling
// back to environment variables and defaults when no file exists.
// Function-runtime deployments typically configure everything through
// TGTKEEP_* variables and never ship a config file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newTicketManager wires metrics and constructs the ticket manager from
// configuration.
func newTicketManager(cfg *config.Config) (*kerberos.Manager, error) {
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	mgr, err := kerberos.NewManager(&cfg.Kerberos, metrics.NewKerberosMetrics(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket manager: %w", err)
	}

	return mgr, nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// GetDefaultStateDir returns the default state directory path.
func GetDefaultStateDir() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "/tmp"
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "tgtkeep")
}

// GetDefaultPidFile returns the default PID file path.
func GetDefaultPidFile() string {
	return filepath.Join(GetDefaultStateDir(), "tgtkeep.pid")
}

// GetDefaultLogFile returns the default log file path for daemon mode.
func GetDefaultLogFile() string {
	return filepath.Join(GetDefaultStateDir(), "tgtkeep.log")
}

// opsBaseURL returns the local sidecar base URL for the configured port.
func opsBaseURL(cfg *config.Config) string {
	return fmt.Sprintf("http://localhost:%d", cfg.Ops.Port)
}
