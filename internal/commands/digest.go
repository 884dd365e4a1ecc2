package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loopmsg/loopconsole/internal/client"
)

var digestJSON bool

var digestCmd = &cobra.Command{
	Use:   "digest <participant>",
	Short: "Ask the bot to post a digest message",
	Long: `Ask the backend to summarize recent loop activity for a participant and
post the summary into their thread as a bot message. Requires an operator
credential. The participant sees the digest on their next refresh.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDigest(args[0])
	},
}

func init() {
	digestCmd.Flags().BoolVar(&digestJSON, "json", false, "Output as JSON")
}

func runDigest(key string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, ok := cfg.Participants[key]
	if !ok {
		return fmt.Errorf("unknown participant %q", key)
	}
	op, err := operatorCredential(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	resp, err := newAPIClient(cfg).BotPostDigest(ctx, op, &client.BotPostDigestRequest{
		LoopID:       cfg.LoopID,
		ThreadID:     cfg.ThreadFor(key),
		ForProfileID: p.ProfileID,
	})
	if err != nil {
		return err
	}

	if digestJSON {
		fmt.Print(marshalJSONOrFallback(resp))
		return nil
	}

	if !resp.OK {
		return fmt.Errorf("digest not posted: %s", resp.Message)
	}
	fmt.Printf("Digest posted for %s.\n", labelFor(cfg, key))
	return nil
}
