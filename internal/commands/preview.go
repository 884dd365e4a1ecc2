package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loopmsg/loopconsole/internal/config"
	"github.com/loopmsg/loopconsole/internal/coordinator"
)

var previewJSON bool

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Dry-run the bot and show pending replies",
	Long: `Run the bot over the shared thread in dry-run mode and show what it
would deliver to each participant. Nothing is committed; repeated previews
are safe and each one replaces the previous proposals.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPreview()
	},
}

func init() {
	previewCmd.Flags().BoolVar(&previewJSON, "json", false, "Output as JSON")
}

func runPreview() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	coord, err := newCoordinator(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	refresh := func(ctx context.Context) error {
		return coord.RefreshPreviews(ctx)
	}
	if previewJSON || !isTTY() {
		err = refresh(ctx)
	} else {
		err = runWithSpinner(ctx, os.Stderr, "Previewing bot replies...", refresh)
	}
	if err != nil {
		return err
	}

	if previewJSON {
		fmt.Print(marshalJSONOrFallback(struct {
			Previews map[string]string `json:"previews"`
		}{Previews: collectPreviews(coord)}))
		return nil
	}

	printPreviews(cfg, coord)
	return nil
}

// collectPreviews snapshots the preview map keyed by participant.
func collectPreviews(coord *coordinator.Coordinator) map[string]string {
	out := make(map[string]string)
	for _, id := range coord.Participants() {
		if text, ok := coord.Preview(id.Key); ok {
			out[id.Key] = text
		}
	}
	return out
}

func printPreviews(cfg *config.Config, coord *coordinator.Coordinator) {
	found := false
	for _, id := range coord.Participants() {
		text, ok := coord.Preview(id.Key)
		if !ok {
			continue
		}
		found = true
		fmt.Printf("Pending for %s:\n  %s\n", labelFor(cfg, id.Key), text)
	}
	if !found {
		fmt.Println("No pending bot replies.")
	}
}
