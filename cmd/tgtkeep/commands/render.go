package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/tgtkeep/pkg/kerberos"
)

var renderOut string

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the krb5.conf template and print or write the result",
	Long: `Render the configured krb5.conf template with the resolved KDC and
the configured principal, keytab and ccache paths.

Unlike warmup, rendering never touches the process environment or the
configured conf path: the result goes to stdout (default) or to --out.
Useful for inspecting exactly what the sidecar would materialize.

Examples:
  # Print the rendered configuration
  tgtkeep render

  # Write it to a file
  tgtkeep render --out /tmp/krb5.conf.preview`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderOut, "out", "-", "Output path ('-' for stdout)")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	template, err := os.ReadFile(cfg.Kerberos.TemplatePath)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	resolver := kerberos.NewResolver(cfg.Kerberos.RealmKdc, cfg.Kerberos.RealmKdcSrvName, nil)
	kdc, _, err := resolver.Resolve(cmd.Context())
	if err != nil {
		// Render proceeds with an empty KDC; the template may not even
		// reference it.
		fmt.Fprintf(os.Stderr, "warning: KDC resolution failed: %v\n", err)
	}

	rendered := kerberos.Render(string(template),
		kdc,
		cfg.Kerberos.Principal,
		cfg.Kerberos.KeytabPath,
		cfg.Kerberos.CcachePath,
	)

	if renderOut == "-" || renderOut == "" {
		fmt.Print(rendered)
		return nil
	}

	if err := os.WriteFile(renderOut, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write rendered config: %w", err)
	}
	fmt.Printf("Rendered configuration written to %s\n", renderOut)

	return nil
}
