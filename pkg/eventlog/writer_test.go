package eventlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"viberunner/pkg/events"
)

func TestNewWriter(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "events")

	writer, err := NewWriter(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	currentFile := writer.CurrentFile()
	if currentFile == "" {
		t.Fatal("No current log file set")
	}
	if _, err := os.Stat(currentFile); os.IsNotExist(err) {
		t.Error("Current log file does not exist")
	}
}

func TestWriteAndReadEvents(t *testing.T) {
	writer, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	writer.Emit(events.New(events.CycleStart, "Starting cycle", map[string]any{events.KeyBranch: "feat/x"}))
	writer.Emit(events.New(events.CheckResult, "Security Scan", map[string]any{events.KeyStatus: events.StatusPass}))
	writer.Emit(events.New(events.Error, "boom", nil))

	read, err := ReadEvents(writer.CurrentFile())
	if err != nil {
		t.Fatalf("Failed to read events: %v", err)
	}
	if len(read) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(read))
	}
	if read[0].Type != events.CycleStart || read[0].Str(events.KeyBranch) != "feat/x" {
		t.Errorf("Unexpected first event: %+v", read[0])
	}
	if read[1].Str(events.KeyStatus) != events.StatusPass {
		t.Errorf("Expected pass status, got %+v", read[1].Payload)
	}
	if read[2].Type != events.Error {
		t.Errorf("Expected error event, got %s", read[2].Type)
	}
}

func TestDailyRotation(t *testing.T) {
	tmpDir := t.TempDir()
	writer, err := NewWriter(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer writer.Close()

	writer.Emit(events.New(events.AgentMessage, "today", nil))
	initialFile := writer.CurrentFile()

	writer.mu.Lock()
	writer.now = func() time.Time { return time.Date(2025, 12, 25, 10, 0, 0, 0, time.UTC) }
	writer.mu.Unlock()
	writer.Emit(events.New(events.AgentMessage, "christmas", nil))

	newFile := writer.CurrentFile()
	if newFile == initialFile {
		t.Fatalf("Expected rotation away from %s", initialFile)
	}
	if filepath.Base(newFile) != "events-2025-12-25.jsonl" {
		t.Errorf("Unexpected rotated file name: %s", newFile)
	}

	files, err := ListLogFiles(tmpDir)
	if err != nil {
		t.Fatalf("Failed to list files: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 log files, got %d", len(files))
	}

	first, err := ReadEvents(initialFile)
	if err != nil || len(first) != 1 || first[0].Message != "today" {
		t.Errorf("Original file should keep its single event, got %v (err %v)", first, err)
	}
}
