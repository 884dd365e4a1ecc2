package commands

import "testing"

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		max      int
		expected string
	}{
		{"short text unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long text gets ellipsis", "hello world", 8, "hello..."},
		{"newlines flattened", "line1\nline2", 20, "line1 line2"},
		{"tiny max has no room for ellipsis", "hello", 2, "he"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncateText(tt.text, tt.max)
			if result != tt.expected {
				t.Errorf("truncateText(%q, %d) = %q, expected %q", tt.text, tt.max, result, tt.expected)
			}
		})
	}
}

func TestFormatWhen(t *testing.T) {
	// Unparseable timestamps pass through so bad backend data stays visible.
	if got := formatWhen("not-a-timestamp"); got != "not-a-timestamp" {
		t.Errorf("formatWhen passthrough = %q", got)
	}
	if got := formatWhen("2025-10-20T11:00:00Z"); got == "" || got == "2025-10-20T11:00:00Z" {
		t.Errorf("formatWhen did not reformat a valid timestamp: %q", got)
	}
}
