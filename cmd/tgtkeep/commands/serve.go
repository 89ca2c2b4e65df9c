package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/tgtkeep/internal/logger"
	"github.com/marmos91/tgtkeep/internal/telemetry"
	"github.com/marmos91/tgtkeep/pkg/keytab"
	"github.com/marmos91/tgtkeep/pkg/ops"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/tgtkeep/pkg/metrics/prometheus"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run tgtkeep as a sidecar: warm up, serve ops endpoints, refresh in background",
	Long: `Run tgtkeep as a long-lived sidecar process.

At startup the sidecar performs the full warmup sequence (KDC discovery,
krb5.conf rendering, keytab provisioning, initial TGT acquisition), then
serves the ops HTTP endpoints (health, ticket status, on-demand refresh,
Prometheus metrics) and renews the ticket on a background ticker.

By default, the sidecar runs in the background (daemon mode). Use
--foreground when managed by a process supervisor or container runtime.

Examples:
  # Run in background (default)
  tgtkeep serve

  # Run in foreground (containers, systemd)
  tgtkeep serve --foreground

  # Run with environment variable overrides
  TGTKEEP_KERBEROS_PRINCIPAL=svc@EXAMPLE.COM tgtkeep serve --foreground`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	serveCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/tgtkeep/tgtkeep.pid)")
	serveCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/tgtkeep/tgtkeep.log)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Handle daemon mode (background)
	if !foreground {
		return startDaemon()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "tgtkeep",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "tgtkeep",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	mgr, err := newTicketManager(cfg)
	if err != nil {
		return err
	}

	// Warm up before accepting traffic. A sidecar that cannot acquire
	// its initial ticket is broken; fail fast and let the supervisor
	// restart it.
	if mgr.Enabled() {
		source, err := keytab.FromConfig(ctx, &cfg.Keytab)
		if err != nil {
			return fmt.Errorf("failed to configure keytab source: %w", err)
		}

		logger.Info("fetching keytab", "source", source.Describe())
		fetchCtx, fetchSpan := telemetry.StartSpan(ctx, telemetry.SpanKeytabFetch)
		keytabBytes, err := source.Fetch(fetchCtx)
		if err != nil {
			telemetry.RecordError(fetchCtx, err)
			fetchSpan.End()
			return fmt.Errorf("failed to fetch keytab: %w", err)
		}
		fetchSpan.End()

		if err := mgr.Init(ctx, keytabBytes); err != nil {
			return fmt.Errorf("warmup failed: %w", err)
		}

		kdc, kdcSource := mgr.KDC()
		logger.Info("initial TGT acquired",
			"principal", mgr.Principal(),
			"kdc", kdc,
			"kdc_source", kdcSource,
		)
	}

	// Write PID file if specified
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Background refresh ticker keeps a mostly-idle sidecar fresh
	if mgr.Enabled() {
		go runRefreshTicker(ctx, cfg.Ops.RefreshInterval, mgr)
	}

	server := ops.NewServer(cfg.Ops, mgr, cfg.ShutdownTimeout)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Sidecar is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Ops server shutdown error", "error", err)
			return err
		}
		logger.Info("Sidecar stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Ops server error", "error", err)
			return err
		}
		logger.Info("Sidecar stopped")
	}

	return nil
}

// runRefreshTicker renews the ticket periodically until ctx is cancelled.
//
// The interval defaults to a quarter of the ticket lifetime, floored at
// one minute, so renewal always happens well before staleness.
func runRefreshTicker(ctx context.Context, interval time.Duration, mgr ticketRefresher) {
	if interval <= 0 {
		interval = mgr.TicketLifetime() / 4
		if interval < time.Minute {
			interval = time.Minute
		}
	}

	logger.Info("background refresh ticker started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("background refresh ticker stopped")
			return
		case <-ticker.C:
			if err := mgr.Refresh(ctx, false); err != nil {
				logger.Error("background refresh failed", "error", err)
			}
		}
	}
}

// ticketRefresher is the slice of the ticket manager the ticker needs.
type ticketRefresher interface {
	TicketLifetime() time.Duration
	Refresh(ctx context.Context, force bool) error
}
