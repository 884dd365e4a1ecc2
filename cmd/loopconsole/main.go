// loopconsole - console client for a Loop messaging backend
//
// Drives the preview/publish message pipeline from the terminal:
// 1. Participants post messages into a shared thread
// 2. Pending bot replies can be previewed without committing them
// 3. Refreshing publishes, fetches, and diffs a participant's feed
package main

import (
	"fmt"
	"os"

	"github.com/loopmsg/loopconsole/internal/commands"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	err := commands.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	// Print queued notices at the end of every command
	commands.PrintNotices(os.Stderr)
	if err != nil {
		os.Exit(1)
	}
}
