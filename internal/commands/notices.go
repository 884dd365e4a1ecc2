package commands

import (
	"fmt"
	"io"
	"sync"
)

// Notices collect the best-effort failures a command chose not to fail on
// (publish errors during a refresh, preview errors after a send). They are
// queued during command execution and printed once by main.go so they never
// interleave with the command's primary output.
var (
	noticesMu sync.Mutex
	notices   []string
)

// QueueNotice records a secondary warning for end-of-command printing.
func QueueNotice(format string, args ...any) {
	noticesMu.Lock()
	notices = append(notices, fmt.Sprintf(format, args...))
	noticesMu.Unlock()
}

// PrintNotices prints queued notices and clears the queue.
// This is the single entry point called by main.go at the end of every command.
func PrintNotices(w io.Writer) {
	noticesMu.Lock()
	queued := notices
	notices = nil
	noticesMu.Unlock()

	if len(queued) == 0 {
		return
	}
	for _, n := range queued {
		fmt.Fprintf(w, "note: %s\n", n)
	}
}
