// Package commands implements the loopconsole CLI commands.
package commands

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/loopmsg/loopconsole/internal/config"
)

var versionInfo struct {
	version string
	commit  string
	date    string
}

// SetVersionInfo sets version information from main (populated by goreleaser).
func SetVersionInfo(version, commit, date string) {
	versionInfo.version = version
	versionInfo.commit = commit
	versionInfo.date = date
}

var configPathFlag string

var rootCmd = &cobra.Command{
	Use:   "loopconsole",
	Short: "Console client for a Loop messaging backend",
	Long: `loopconsole drives a Loop backend's preview/publish message pipeline
from the terminal:

1. Participants post messages into a shared thread
2. The bot's pending replies can be previewed without committing them
3. Refreshing a participant publishes pending replies, fetches their feed,
   and reports whether anything genuinely new arrived

Commands:
  loopconsole send <who> <text>   - Post a message as a participant
  loopconsole preview             - Dry-run the bot and show pending replies
  loopconsole refresh <who>       - Publish, fetch, and diff a participant's feed
  loopconsole console             - Render every participant's view at once
  loopconsole feed <who>          - Fetch the loop digest for a participant
  loopconsole digest <who>        - Ask the bot to post a digest message
  loopconsole health              - Probe the backend
  loopconsole init                - Scaffold a .loopconsole config file

Global flags:
  --config <path>   - Use an alternate .loopconsole config file

Environment variables:
  LOOP_API_URL          - Backend URL (overrides api_url)
  LOOP_OPERATOR_TOKEN   - Operator bearer token (overrides operator_token)
  LOOP_BOT_PROFILE_ID   - Bot profile id (overrides bot_profile_id)`,
	// Don't show usage/errors on errors from subcommands (main.go handles errors)
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configPathFlag != "" {
			config.SetPath(configPathFlag)
		}
		loadDotenvBestEffort()
	},
}

func init() {
	// Disable cobra's auto-generated completion command - it pollutes the namespace
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "Path to .loopconsole config file")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadDotenvBestEffort() {
	_ = godotenv.Load()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("loopconsole %s\n", versionInfo.version)
		if versionInfo.commit != "" && versionInfo.commit != "none" {
			cmd.Printf("  commit: %s\n", versionInfo.commit)
		}
		if versionInfo.date != "" && versionInfo.date != "unknown" {
			cmd.Printf("  built:  %s\n", versionInfo.date)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	defer config.SetPath("") // Reset after command completes
	return rootCmd.Execute()
}

// isTTY reports whether stdout is a terminal.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
