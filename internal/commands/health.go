package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the backend",
	Long: `Probe the backend's health endpoint and report REST and database
reachability. Exits non-zero when the backend reports a degraded state.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHealth()
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "Output as JSON")
}

func runHealth() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	resp, err := newAPIClient(cfg).Health(ctx)
	if err != nil {
		return fmt.Errorf("backend unreachable at %s: %w", cfg.APIURL, err)
	}

	if healthJSON {
		fmt.Print(marshalJSONOrFallback(resp))
	} else {
		fmt.Printf("status: %s\n", resp.Status)
		fmt.Printf("  rest_ok: %v\n", resp.RestOK)
		fmt.Printf("  db_ok:   %v\n", resp.DBOK)
		if resp.LatencyMS > 0 {
			fmt.Printf("  latency: %dms\n", resp.LatencyMS)
		}
	}

	if resp.Status != "ok" || !resp.RestOK || !resp.DBOK {
		return fmt.Errorf("backend degraded (status=%s rest_ok=%v db_ok=%v)", resp.Status, resp.RestOK, resp.DBOK)
	}
	return nil
}
