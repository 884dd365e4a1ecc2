package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loopmsg/loopconsole/internal/config"
)

// CLI flags for init command
var (
	initURL          string
	initLoopID       string
	initThreadID     string
	initBotProfileID string
	initParticipants []string
	initForce        bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a .loopconsole config file",
	Long: `Create a .loopconsole configuration file in the current directory.

Participants are given as key=profile_id pairs:

  loopconsole init --api-url http://localhost:8000 \
    --loop 11111111-1111-1111-1111-111111111111 \
    --thread 22222222-2222-2222-2222-222222222222 \
    --bot-profile 33333333-3333-3333-3333-333333333333 \
    --participant anna=44444444-4444-4444-4444-444444444444 \
    --participant ben=55555555-5555-5555-5555-555555555555

Tokens and per-participant thread overrides are added by editing the file.
The file holds credentials; keep it out of version control.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func init() {
	initCmd.Flags().StringVar(&initURL, "api-url", "http://localhost:8000", "Backend URL")
	initCmd.Flags().StringVar(&initLoopID, "loop", "", "Loop identifier (UUID)")
	initCmd.Flags().StringVar(&initThreadID, "thread", "", "Shared thread identifier (UUID)")
	initCmd.Flags().StringVar(&initBotProfileID, "bot-profile", "", "Bot profile identifier (UUID)")
	initCmd.Flags().StringArrayVar(&initParticipants, "participant", nil, "Participant as key=profile_id (repeatable)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit() error {
	if _, err := os.Stat(config.FileName); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", config.FileName)
	}

	cfg := &config.Config{
		APIURL:       initURL,
		LoopID:       initLoopID,
		ThreadID:     initThreadID,
		BotProfileID: initBotProfileID,
		Participants: make(map[string]config.Participant),
	}
	for _, pair := range initParticipants {
		key, profileID, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --participant %q (want key=profile_id)", pair)
		}
		cfg.Participants[key] = config.Participant{ProfileID: profileID}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}

	wd, _ := os.Getwd()
	fmt.Printf("Wrote %s/%s\n", wd, config.FileName)
	fmt.Printf("  loop_id:   %s\n", cfg.LoopID)
	fmt.Printf("  thread_id: %s\n", cfg.ThreadID)
	for _, key := range participantKeys(cfg) {
		fmt.Printf("  participant %s: %s\n", key, cfg.Participants[key].ProfileID)
	}
	fmt.Println()
	fmt.Println("Add tokens or per-participant thread overrides by editing the file.")
	return nil
}
