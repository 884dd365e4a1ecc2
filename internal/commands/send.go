package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sendJSON bool

var sendCmd = &cobra.Command{
	Use:   "send <participant> <text>...",
	Short: "Post a message as a participant",
	Long: `Post a message into the participant's thread as a human -> bot message.

The message does not reach other participants until the bot processes it;
with preview_on_send enabled (the default) a dry-run follows the send so the
proposed replies show up immediately.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(args[0], strings.Join(args[1:], " "))
	},
}

func init() {
	sendCmd.Flags().BoolVar(&sendJSON, "json", false, "Output as JSON")
}

func runSend(key, text string) error {
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

	result, err := coord.SendMessage(ctx, key, text)
	if err != nil {
		return err
	}
	if result.PreviewErr != nil {
		QueueNotice("message sent, but the preview refresh failed: %v", result.PreviewErr)
	}

	if sendJSON {
		out := struct {
			Sent     any               `json:"sent"`
			Previews map[string]string `json:"previews,omitempty"`
		}{Sent: result.Message, Previews: collectPreviews(coord)}
		fmt.Print(marshalJSONOrFallback(out))
		return nil
	}

	fmt.Printf("Sent as %s (message %s)\n", labelFor(cfg, key), result.Message.ID)
	if result.PreviewErr == nil && cfg.PreviewOnSendEnabled() {
		printPreviews(cfg, coord)
	}
	return nil
}
