package console

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Output: &buf})

	l.Debug("hidden")
	l.Info("visible", "team_id", 7)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug line to be filtered, got %q", out)
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "team_id=7") {
		t.Fatalf("expected info line with key values, got %q", out)
	}
}
