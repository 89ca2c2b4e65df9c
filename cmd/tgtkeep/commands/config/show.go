package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/tgtkeep/internal/cli/output"
	"github.com/marmos91/tgtkeep/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the current tgtkeep configuration.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show config as YAML
  tgtkeep config show

  # Show as JSON
  tgtkeep config show --output json

  # Show specific config file
  tgtkeep config show --config /etc/tgtkeep/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load with file + environment + defaults so the output reflects
	// what the sidecar would actually run with.
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}
