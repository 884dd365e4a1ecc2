package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loopmsg/loopconsole/internal/client"
	"github.com/loopmsg/loopconsole/internal/config"
	"github.com/loopmsg/loopconsole/internal/coordinator"
)

var refreshJSON bool

var refreshCmd = &cobra.Command{
	Use:   "refresh <participant>",
	Short: "Publish, fetch, and diff a participant's feed",
	Long: `Run the two-stage refresh cycle for a participant:

1. Publish pending bot replies (best-effort; a failure is reported as a
   note, not as the command's failure)
2. Fetch the participant's feed with their own credential
3. Diff against the stored last-seen marker

Prints "No new updates since <time>" when nothing genuinely new arrived,
otherwise the full feed most-recent-first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRefresh(args[0])
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshJSON, "json", false, "Output as JSON")
}

func runRefresh(key string) error {
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

	result, err := coord.PublishThenFetch(ctx, key)
	if err != nil {
		return err
	}
	if result.PublishErr != nil {
		QueueNotice("publish stage failed: %v", result.PublishErr)
	}
	if result.PreviewErr != nil {
		QueueNotice("preview refresh after publish failed: %v", result.PreviewErr)
	}

	if refreshJSON {
		fmt.Print(marshalJSONOrFallback(refreshOutput(result)))
		return nil
	}

	printRefreshResult(cfg, key, result)
	return nil
}

func refreshOutput(result *coordinator.RefreshResult) any {
	return struct {
		Outcome   coordinator.Outcome `json:"outcome"`
		CheckedAt string              `json:"checked_at"`
		NewestID  string              `json:"newest_id,omitempty"`
		Messages  []client.Message    `json:"messages,omitempty"`
	}{
		Outcome:   result.Outcome,
		CheckedAt: result.CheckedAt.Format(time.RFC3339),
		NewestID:  result.NewestID,
		Messages:  result.Messages,
	}
}

func printRefreshResult(cfg *config.Config, key string, result *coordinator.RefreshResult) {
	if result.Outcome == coordinator.OutcomeUnchanged {
		fmt.Printf("No new updates since %s\n", result.CheckedAt.Local().Format("2006-01-02 15:04:05"))
		return
	}

	fmt.Printf("Updates for %s:\n", labelFor(cfg, key))
	for _, msg := range result.Messages {
		printMessageLine(msg)
	}
}

// printMessageLine renders one feed entry. Bot replies are marked so a
// participant can tell their own posts from deliveries.
func printMessageLine(msg client.Message) {
	who := "you"
	if msg.Audience == client.AudienceBotToUser {
		who = "bot"
	}
	fmt.Printf("  [%s] %-3s  %s\n", formatWhen(msg.CreatedAt), who, msg.Content)
}
