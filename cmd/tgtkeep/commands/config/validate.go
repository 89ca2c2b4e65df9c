package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/tgtkeep/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the tgtkeep configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  tgtkeep config validate

  # Validate specific config file
  tgtkeep config validate --config /etc/tgtkeep/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Determine path for display
	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Additional validation checks
	var warnings []string

	if cfg.Kerberos.Principal == "" {
		warnings = append(warnings, "Kerberos principal not configured - warmup will fail inside the function runtime")
	}
	if cfg.Kerberos.RealmKdc == "" && cfg.Kerberos.RealmKdcSrvName == "" {
		warnings = append(warnings, "No KDC discovery configured (neither realm_kdc nor realm_kdc_srv_name) - kinit will rely on system defaults")
	}
	if cfg.Keytab.Source == "file" && cfg.Keytab.Path == "" {
		warnings = append(warnings, "Keytab source is 'file' but no path configured")
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Principal:       %s\n", cfg.Kerberos.Principal)
	fmt.Printf("  Keytab source:   %s\n", cfg.Keytab.Source)
	fmt.Printf("  Ops port:        %d\n", cfg.Ops.Port)
	fmt.Printf("  Ticket lifetime: %s\n", cfg.Kerberos.TicketLifetime)
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
