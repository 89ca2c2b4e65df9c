package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/tgtkeep/pkg/ops"
)

var refreshForce bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the TGT",
	Long: `Refresh the TGT through a running sidecar's ops API.

When no sidecar is listening on the configured ops port, the command
falls back to a local one-shot warmup (keytab provisioning + kinit).

A plain refresh is a no-op while the ticket is still fresh; use --force
to re-acquire unconditionally.

Examples:
  # Refresh only if the ticket is stale
  tgtkeep refresh

  # Force re-acquisition regardless of ticket age
  tgtkeep refresh --force`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshForce, "force", false, "Re-acquire even if the ticket is still fresh")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	url := opsBaseURL(cfg) + "/api/v1/ticket/refresh"
	if refreshForce {
		url += "?force=true"
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		// No sidecar listening: refresh locally instead.
		fmt.Printf("No sidecar reachable on port %d, refreshing locally\n", cfg.Ops.Port)
		return warmOnce(cmd.Context())
	}
	defer func() { _ = resp.Body.Close() }()

	var body ops.Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode sidecar response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if body.Error != "" {
			return fmt.Errorf("refresh failed: %s", body.Error)
		}
		return fmt.Errorf("refresh failed with status %d", resp.StatusCode)
	}

	fmt.Println("Ticket refreshed via sidecar")
	return nil
}
