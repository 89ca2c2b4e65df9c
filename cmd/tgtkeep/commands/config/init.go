package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/tgtkeep/internal/cli/prompt"
	"github.com/marmos91/tgtkeep/pkg/config"
)

var (
	initForce          bool
	initNonInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Create a tgtkeep configuration file.

By default, the command walks through the essential settings
interactively (principal, KDC discovery, keytab source, ops port).
Use --non-interactive to write a config with default values only.

The file is created at $XDG_CONFIG_HOME/tgtkeep/config.yaml unless
--config specifies a custom path.

Examples:
  # Interactive setup at the default location
  tgtkeep config init

  # Defaults only, custom path
  tgtkeep config init --non-interactive --config /etc/tgtkeep/config.yaml

  # Force overwrite existing config
  tgtkeep config init --force`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVar(&initNonInteractive, "non-interactive", false, "Write defaults without prompting")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if initNonInteractive {
		if err := config.InitConfigToPath(configPath, initForce); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		printNextSteps(configPath)
		return nil
	}

	cfg := config.GetDefaultConfig()

	if err := promptSettings(cfg); err != nil {
		if prompt.IsAborted(err) {
			fmt.Println("\nAborted, no configuration written")
			return nil
		}
		return err
	}

	if !initForce && config.DefaultConfigExists() && configPath == config.GetDefaultConfigPath() {
		overwrite, err := prompt.Confirm(fmt.Sprintf("Overwrite existing %s", configPath), false)
		if err != nil || !overwrite {
			fmt.Println("Aborted, existing configuration kept")
			return nil
		}
	}

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printNextSteps(configPath)
	return nil
}

// promptSettings fills in the settings a first deployment actually
// needs; everything else keeps its default.
func promptSettings(cfg *config.Config) error {
	principal, err := prompt.InputRequired("Kerberos principal (name@REALM)")
	if err != nil {
		return err
	}
	cfg.Kerberos.Principal = principal

	discovery, err := prompt.Select("KDC discovery", []prompt.SelectOption{
		{Label: "DNS SRV", Value: "srv", Description: "Query a _kerberos._udp SRV record"},
		{Label: "Static host", Value: "static", Description: "Fixed KDC hostname, no DNS"},
	})
	if err != nil {
		return err
	}

	switch discovery {
	case "static":
		kdc, err := prompt.InputRequired("KDC hostname")
		if err != nil {
			return err
		}
		cfg.Kerberos.RealmKdc = kdc
	default:
		srvName, err := prompt.InputRequired("SRV query name (e.g. _kerberos._udp.EXAMPLE.COM)")
		if err != nil {
			return err
		}
		cfg.Kerberos.RealmKdcSrvName = srvName
	}

	source, err := prompt.Select("Keytab source", []prompt.SelectOption{
		{Label: "Local file", Value: "file", Description: "Keytab shipped with the deployment"},
		{Label: "S3 object", Value: "s3", Description: "Fetched at warmup from S3"},
	})
	if err != nil {
		return err
	}
	cfg.Keytab.Source = source

	switch source {
	case "s3":
		if cfg.Keytab.S3.Bucket, err = prompt.InputRequired("S3 bucket"); err != nil {
			return err
		}
		if cfg.Keytab.S3.Key, err = prompt.InputRequired("S3 object key"); err != nil {
			return err
		}
		if cfg.Keytab.S3.Region, err = prompt.InputOptional("AWS region (empty for SDK default)"); err != nil {
			return err
		}
		if cfg.Keytab.S3.Endpoint, err = prompt.InputOptional("Custom S3 endpoint (empty for AWS)"); err != nil {
			return err
		}
		if cfg.Keytab.S3.Endpoint != "" {
			cfg.Keytab.S3.ForcePathStyle = true
			if cfg.Keytab.S3.AccessKeyID, err = prompt.InputOptional("Access key ID (empty for default chain)"); err != nil {
				return err
			}
			if cfg.Keytab.S3.AccessKeyID != "" {
				if cfg.Keytab.S3.SecretAccessKey, err = prompt.Password("Secret access key"); err != nil {
					return err
				}
			}
		}
	default:
		if cfg.Keytab.Path, err = prompt.InputRequired("Keytab file path"); err != nil {
			return err
		}
	}

	port, err := prompt.InputPort("Ops HTTP port", cfg.Ops.Port)
	if err != nil {
		return err
	}
	cfg.Ops.Port = port

	metricsEnabled, err := prompt.Confirm("Enable Prometheus metrics", true)
	if err != nil {
		return err
	}
	cfg.Metrics.Enabled = metricsEnabled

	return nil
}

func printNextSteps(configPath string) {
	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Verify the setup with: tgtkeep config validate")
	fmt.Println("  2. Warm up once with: tgtkeep warm")
	fmt.Printf("  3. Or run the sidecar: tgtkeep serve --config %s\n", configPath)
}
