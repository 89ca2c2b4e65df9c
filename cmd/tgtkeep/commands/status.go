package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/tgtkeep/internal/cli/health"
	"github.com/marmos91/tgtkeep/internal/cli/output"
	"github.com/marmos91/tgtkeep/internal/cli/timeutil"
	"github.com/marmos91/tgtkeep/pkg/config"
	"github.com/marmos91/tgtkeep/pkg/kerberos"
	"github.com/marmos91/tgtkeep/pkg/ops"
)

var (
	statusOutput  string
	statusPidFile string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sidecar and ticket status",
	Long: `Display the current status of the tgtkeep sidecar and the TGT.

The command queries a running sidecar's ops endpoints for health and
ticket details. When no sidecar is reachable, it falls back to
inspecting the local credential cache directly.

Examples:
  # Check status (uses default settings)
  tgtkeep status

  # Output as JSON
  tgtkeep status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/tgtkeep/tgtkeep.pid)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// SidecarStatus represents the sidecar and ticket status information.
type SidecarStatus struct {
	Running   bool           `json:"running" yaml:"running"`
	PID       int            `json:"pid,omitempty" yaml:"pid,omitempty"`
	Healthy   bool           `json:"healthy" yaml:"healthy"`
	Message   string         `json:"message" yaml:"message"`
	StartedAt string         `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string         `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Ticket    *ops.TicketInfo `json:"ticket,omitempty" yaml:"ticket,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	status := SidecarStatus{
		Running: false,
		Healthy: false,
		Message: "Sidecar is not running",
	}

	// Use default PID file if not specified
	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	// Check PID file first
	pidData, err := os.ReadFile(pidPath)
	if err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
		if err == nil {
			// On Unix, FindProcess always succeeds, we need to send signal 0 to check
			process, err := os.FindProcess(pid)
			if err == nil && process.Signal(syscall.Signal(0)) == nil {
				status.Running = true
				status.PID = pid
			}
		}
	}

	client := &http.Client{Timeout: 2 * time.Second}

	// Check health endpoint (works for both daemon and foreground mode)
	resp, err := client.Get(opsBaseURL(cfg) + "/health")
	if err == nil {
		defer func() { _ = resp.Body.Close() }()

		var healthResp health.Response
		if err := json.NewDecoder(resp.Body).Decode(&healthResp); err == nil {
			status.Running = true
			status.Healthy = healthResp.Status == "healthy"
			status.StartedAt = healthResp.Data.StartedAt
			status.Uptime = healthResp.Data.Uptime
			if status.Healthy {
				status.Message = "Sidecar is running and healthy"
			} else {
				status.Message = fmt.Sprintf("Sidecar is running but unhealthy: %s", healthResp.Error)
			}
		} else {
			status.Running = true
			status.Message = "Sidecar is running but health response invalid"
		}
	} else if status.Running {
		// PID file says running but health check failed
		status.Message = "Sidecar process exists but health check failed"
	}

	if status.Running {
		status.Ticket = fetchTicketInfo(client, cfg)
	}

	// No sidecar: inspect the credential cache directly so one-shot
	// deployments still get ticket visibility.
	if status.Ticket == nil {
		if ccache, err := kerberos.InspectCCache(cfg.Kerberos.CcachePath); err == nil {
			status.Ticket = &ops.TicketInfo{
				Principal: ccache.Principal + "@" + ccache.Realm,
				Ccache:    ccache,
			}
			status.Message += " (ticket read from local credential cache)"
		}
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}

	return nil
}

// fetchTicketInfo queries the sidecar's ticket endpoint. Best effort:
// a nil return just means the sidecar did not answer.
func fetchTicketInfo(client *http.Client, cfg *config.Config) *ops.TicketInfo {
	resp, err := client.Get(opsBaseURL(cfg) + "/api/v1/ticket")
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Data ops.TicketInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil
	}
	return &body.Data
}

func printStatusTable(status SidecarStatus) {
	fmt.Println()
	fmt.Println("tgtkeep Sidecar Status")
	fmt.Println("======================")
	fmt.Println()

	if status.Running {
		if status.Healthy {
			fmt.Printf("  Status:     \033[32m● Running\033[0m\n")
		} else {
			fmt.Printf("  Status:     \033[33m● Running (unhealthy)\033[0m\n")
		}
		if status.PID != 0 {
			fmt.Printf("  PID:        %d\n", status.PID)
		}
		if status.StartedAt != "" {
			fmt.Printf("  Started:    %s\n", timeutil.FormatTime(status.StartedAt))
		}
		if status.Uptime != "" {
			fmt.Printf("  Uptime:     %s\n", timeutil.FormatUptime(status.Uptime))
		}
	} else {
		fmt.Printf("  Status:     \033[31m○ Stopped\033[0m\n")
	}

	if t := status.Ticket; t != nil {
		fmt.Println()
		fmt.Println("  Ticket")
		if t.Principal != "" {
			fmt.Printf("    Principal:  %s\n", t.Principal)
		}
		if t.Kdc != "" {
			fmt.Printf("    KDC:        %s (%s)\n", t.Kdc, t.KdcSource)
		}
		if t.LastAcquired != nil {
			fmt.Printf("    Acquired:   %s\n", t.LastAcquired.Local().Format(timeutil.LocalTimeFormat))
		}
		if t.TicketAge != "" {
			fmt.Printf("    Age:        %s (lifetime %s)\n", t.TicketAge, t.TicketLifetime)
		}
		if c := t.Ccache; c != nil {
			if !c.ExpiresAt.IsZero() {
				fmt.Printf("    Expires:    %s\n", c.ExpiresAt.Local().Format(timeutil.LocalTimeFormat))
			}
			if c.Expired(time.Now()) {
				fmt.Printf("    State:      \033[31mexpired\033[0m\n")
			} else if c.HasTGT {
				fmt.Printf("    State:      \033[32mvalid TGT\033[0m\n")
			}
		}
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()
}
