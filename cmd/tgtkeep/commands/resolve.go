package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/tgtkeep/pkg/kerberos"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the KDC and print the result",
	Long: `Resolve the KDC using the configured discovery inputs and print the
selected host and its source.

A static realm_kdc wins without touching DNS; otherwise the configured
SRV name is queried and the first answer is used. Useful for verifying
discovery configuration before deployment.

Examples:
  # Resolve with config from environment variables
  TGTKEEP_KERBEROS_REALM_KDC_SRV_NAME=_kerberos._udp.EXAMPLE.COM tgtkeep resolve`,
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resolver := kerberos.NewResolver(cfg.Kerberos.RealmKdc, cfg.Kerberos.RealmKdcSrvName, nil)

	kdc, source, err := resolver.Resolve(cmd.Context())
	if err != nil {
		return fmt.Errorf("KDC resolution failed: %w", err)
	}

	switch {
	case source == kerberos.SourceNone:
		fmt.Println("No KDC configured (no static host, no SRV name)")
	case kdc == "":
		fmt.Printf("SRV query %s returned no records\n", cfg.Kerberos.RealmKdcSrvName)
	default:
		fmt.Printf("KDC:    %s\n", kdc)
		fmt.Printf("Source: %s\n", source)
	}

	return nil
}
