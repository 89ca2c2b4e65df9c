package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/tgtkeep/internal/logger"
	"github.com/marmos91/tgtkeep/pkg/keytab"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/tgtkeep/pkg/metrics/prometheus"
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "One-shot warmup: provision the keytab and acquire the initial TGT",
	Long: `Run the full warmup sequence once and exit: resolve the KDC, render
krb5.conf, fetch and provision the keytab, then acquire the initial TGT.

Exits non-zero when any step fails, which makes it suitable for
provisioned-concurrency warmup hooks and container smoke tests.

Outside a recognized function runtime (marker environment variable not
set) the command is a no-op and exits zero.

Examples:
  # Warm up with config from environment variables only
  TGTKEEP_KERBEROS_PRINCIPAL=svc@EXAMPLE.COM tgtkeep warm

  # Warm up with an explicit config file
  tgtkeep warm --config /var/task/tgtkeep.yaml`,
	RunE: runWarm,
}

func runWarm(cmd *cobra.Command, args []string) error {
	return warmOnce(cmd.Context())
}

// warmOnce performs the warmup sequence. Shared with the refresh
// command's local fallback.
func warmOnce(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	mgr, err := newTicketManager(cfg)
	if err != nil {
		return err
	}

	if !mgr.Enabled() {
		fmt.Println("tgtkeep is disabled in this environment, nothing to do")
		return nil
	}

	source, err := keytab.FromConfig(ctx, &cfg.Keytab)
	if err != nil {
		return fmt.Errorf("failed to configure keytab source: %w", err)
	}

	logger.Info("fetching keytab", "source", source.Describe())

	keytabBytes, err := source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch keytab: %w", err)
	}

	if err := mgr.Init(ctx, keytabBytes); err != nil {
		return fmt.Errorf("warmup failed: %w", err)
	}

	kdc, kdcSource := mgr.KDC()
	fmt.Printf("TGT acquired for %s\n", mgr.Principal())
	if kdc != "" {
		fmt.Printf("  KDC:      %s (%s)\n", kdc, kdcSource)
	}
	fmt.Printf("  config:   %s\n", mgr.ConfPath())
	fmt.Printf("  acquired: %s\n", mgr.LastAcquired().Format("2006-01-02 15:04:05"))

	return nil
}
