package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loopmsg/loopconsole/internal/client"
)

var (
	feedPreview bool
	feedJSON    bool
)

var feedCmd = &cobra.Command{
	Use:   "feed <participant>",
	Short: "Fetch the loop digest for a participant",
	Long: `Fetch the backend's digest of loop activity addressed to a participant.

By default the backend advances the participant's last-seen pointer; use
--preview to read the digest without consuming it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFeed(args[0])
	},
}

func init() {
	feedCmd.Flags().BoolVar(&feedPreview, "preview", false, "Do not advance the last-seen pointer")
	feedCmd.Flags().BoolVar(&feedJSON, "json", false, "Output as JSON")
}

func runFeed(key string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, cred, err := participantCredential(cfg, key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	resp, err := newAPIClient(cfg).Feed(ctx, cred, &client.FeedRequest{
		LoopID:       cfg.LoopID,
		ForProfileID: p.ProfileID,
		Preview:      feedPreview,
	})
	if err != nil {
		return err
	}

	if feedJSON {
		fmt.Print(marshalJSONOrFallback(resp))
		return nil
	}

	if resp.ItemsCount == 0 {
		fmt.Printf("No loop activity for %s.\n", labelFor(cfg, key))
		return nil
	}
	fmt.Printf("Digest for %s (%d items", labelFor(cfg, key), resp.ItemsCount)
	if resp.WindowStart != "" {
		fmt.Printf(", %s to %s", formatWhen(resp.WindowStart), formatWhen(resp.WindowEnd))
	}
	fmt.Println("):")
	fmt.Println(resp.DigestText)
	if feedPreview {
		fmt.Println("(preview: last-seen pointer not advanced)")
	}
	return nil
}
