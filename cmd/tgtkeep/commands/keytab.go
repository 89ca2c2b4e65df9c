package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/tgtkeep/internal/cli/output"
	"github.com/marmos91/tgtkeep/pkg/keytab"
)

var keytabOutput string

var keytabCmd = &cobra.Command{
	Use:   "keytab [path]",
	Short: "Validate a keytab and list its entries",
	Long: `Parse the keytab at the given path (or the configured keytab source
path), validate it and list its entries.

When the configured principal is set, the command also reports whether
the keytab carries an entry for it.

Examples:
  # Inspect an explicit keytab file
  tgtkeep keytab /etc/tgtkeep/svc.keytab

  # Inspect the configured keytab, output as JSON
  tgtkeep keytab -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKeytab,
}

func init() {
	keytabCmd.Flags().StringVarP(&keytabOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runKeytab(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(keytabOutput)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := cfg.Keytab.Path
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no keytab path given and none configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read keytab: %w", err)
	}

	if err := keytab.Validate(data); err != nil {
		return fmt.Errorf("invalid keytab %s: %w", path, err)
	}

	entries, err := keytab.Entries(data)
	if err != nil {
		return fmt.Errorf("failed to list keytab entries: %w", err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, entries)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, entries)
	default:
		table := output.NewTableData("PRINCIPAL", "REALM", "KVNO", "ETYPE", "TIMESTAMP")
		for _, e := range entries {
			table.AddRow(
				e.Principal,
				e.Realm,
				strconv.Itoa(int(e.KVNO)),
				strconv.Itoa(int(e.EType)),
				e.Timestamp.Format("2006-01-02 15:04:05"),
			)
		}
		if err := output.PrintTable(os.Stdout, table); err != nil {
			return err
		}
	}

	fmt.Printf("\n%s: valid, %d entries\n", path, len(entries))

	if cfg.Kerberos.Principal != "" {
		found, err := keytab.HasPrincipal(data, cfg.Kerberos.Principal)
		if err != nil {
			return err
		}
		if found {
			fmt.Printf("Entry for configured principal %s: present\n", cfg.Kerberos.Principal)
		} else {
			fmt.Printf("Entry for configured principal %s: MISSING\n", cfg.Kerberos.Principal)
		}
	}

	return nil
}
