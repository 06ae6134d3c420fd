package logx

import (
	"bytes"
	"strings"
	"testing"
)

// captureOutput redirects every logger into a buffer for the duration of the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	t.Cleanup(func() { SetOutput(prev) })
	return &buf
}

func TestLogFormat(t *testing.T) {
	buf := captureOutput(t)

	logger := NewLogger("session")
	logger.Info("Captured SID: %s", "12345")

	output := buf.String()
	if !strings.Contains(output, "[session]") {
		t.Errorf("Expected component in output, got: %s", output)
	}
	if !strings.Contains(output, "INFO: Captured SID: 12345") {
		t.Errorf("Expected formatted message in output, got: %s", output)
	}
	if !strings.HasPrefix(output, "[") || !strings.Contains(output, "Z]") {
		t.Errorf("Expected ISO timestamp prefix, got: %s", output)
	}
}

func TestLogLevels(t *testing.T) {
	buf := captureOutput(t)
	SetDebug(true)
	defer SetDebug(false)

	logger := NewLogger("pipeline")
	tests := []struct {
		logFunc  func(string, ...any)
		expected string
	}{
		{logger.Debug, "DEBUG"},
		{logger.Info, "INFO"},
		{logger.Warn, "WARN"},
		{logger.Error, "ERROR"},
	}

	for _, tt := range tests {
		buf.Reset()
		tt.logFunc("message")
		if !strings.Contains(buf.String(), tt.expected+": message") {
			t.Errorf("Expected level %s, got: %s", tt.expected, buf.String())
		}
	}
}

func TestDebugDomainFiltering(t *testing.T) {
	buf := captureOutput(t)

	SetDebug(false)
	NewLogger("session").Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected no debug output when disabled, got: %s", buf.String())
	}

	SetDebug(true, "ci")
	defer SetDebug(false)

	NewLogger("session").Debug("filtered")
	NewLogger("ci").Debug("visible")

	output := buf.String()
	if strings.Contains(output, "filtered") {
		t.Errorf("Expected session debug to be filtered, got: %s", output)
	}
	if !strings.Contains(output, "visible") {
		t.Errorf("Expected ci debug line, got: %s", output)
	}
}

func TestWithSubComponent(t *testing.T) {
	buf := captureOutput(t)

	NewLogger("pipeline").With("ci").Warn("slow")
	if !strings.Contains(buf.String(), "[pipeline/ci] WARN: slow") {
		t.Errorf("Expected sub-component tag, got: %s", buf.String())
	}
}
