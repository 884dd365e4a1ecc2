package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintNotices(t *testing.T) {
	QueueNotice("publish stage failed: %v", "boom")
	QueueNotice("preview refresh failed")

	var buf bytes.Buffer
	PrintNotices(&buf)

	out := buf.String()
	if !strings.Contains(out, "note: publish stage failed: boom") {
		t.Errorf("missing first notice in %q", out)
	}
	if !strings.Contains(out, "note: preview refresh failed") {
		t.Errorf("missing second notice in %q", out)
	}

	// Queue is drained after printing.
	buf.Reset()
	PrintNotices(&buf)
	if buf.Len() != 0 {
		t.Errorf("expected empty output on second print, got %q", buf.String())
	}
}

func TestPrintNotices_EmptyProducesNoOutput(t *testing.T) {
	var buf bytes.Buffer
	PrintNotices(&buf)
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
