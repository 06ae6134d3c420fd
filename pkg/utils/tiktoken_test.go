package utils

import (
	"fmt"
	"strings"
	"testing"
)

func TestCountTokens(t *testing.T) {
	counter, err := NewTokenCounter()
	if err != nil {
		t.Fatalf("NewTokenCounter failed: %v", err)
	}

	if got := counter.CountTokens(""); got != 0 {
		t.Errorf("empty text: got %d tokens", got)
	}
	if got := counter.CountTokens("hello world"); got < 1 || got > 4 {
		t.Errorf("hello world: got %d tokens", got)
	}
}

func TestCountTokens_NilCounterEstimates(t *testing.T) {
	var counter *TokenCounter
	if got := counter.CountTokens("abcdefgh"); got != 2 {
		t.Errorf("expected 2 estimated tokens, got %d", got)
	}
}

func TestTailToTokenLimit_KeepsTail(t *testing.T) {
	counter, err := NewTokenCounter()
	if err != nil {
		t.Fatalf("NewTokenCounter failed: %v", err)
	}

	var lines []string
	for i := 0; i < 500; i++ {
		lines = append(lines, fmt.Sprintf("step %d: running go test ./pkg/...", i))
	}
	text := strings.Join(lines, "\n")

	out, dropped := counter.TailToTokenLimit(text, 100)
	if dropped == 0 {
		t.Fatal("expected leading lines to be dropped")
	}
	if counter.CountTokens(out) > 100 {
		t.Errorf("excerpt exceeds budget: %d tokens", counter.CountTokens(out))
	}
	if !strings.HasSuffix(out, lines[499]) {
		t.Errorf("last line not preserved: %q", out[len(out)-40:])
	}
	if !strings.HasSuffix(text, out) {
		t.Error("excerpt is not a suffix of the input")
	}
}

func TestTailToTokenLimit_UnderBudget(t *testing.T) {
	counter, err := NewTokenCounter()
	if err != nil {
		t.Fatalf("NewTokenCounter failed: %v", err)
	}
	out, dropped := counter.TailToTokenLimit("short log", 100)
	if out != "short log" || dropped != 0 {
		t.Errorf("got %q, %d", out, dropped)
	}
}
