package commands

import (
	"strings"
	"time"
)

// apiTimeout is the default timeout for API calls.
const apiTimeout = 10 * time.Second

// formatWhen renders a backend RFC3339 timestamp for terminal output.
// Unparseable input is shown as-is rather than hidden.
func formatWhen(ts string) string {
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return ts
		}
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}

// truncateText caps text at max runes for single-line displays.
func truncateText(text string, max int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
